package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// TravelMode is how the traveler moves along the route.
type TravelMode string

const (
	TravelWalking   TravelMode = "WALKING"
	TravelDriving   TravelMode = "DRIVING"
	TravelBicycling TravelMode = "BICYCLING"
	TravelTransit   TravelMode = "TRANSIT"
)

// MaxJourneyDuration is the longest journey a story can be generated for.
const MaxJourneyDuration = 4 * time.Hour

// Journey is the input to story generation. It is produced by a route
// planner and is immutable once a story has started.
type Journey struct {
	StartAddress    string         `json:"start_address" yaml:"start_address"`
	EndAddress      string         `json:"end_address" yaml:"end_address"`
	TravelMode      TravelMode     `json:"travel_mode" yaml:"travel_mode"`
	DurationSeconds int            `json:"duration_seconds" yaml:"duration_seconds"`
	Duration        string         `json:"duration,omitempty" yaml:"duration,omitempty"` // human label, e.g. "25 mins"
	Style           Style          `json:"style" yaml:"style"`
	Voice           string         `json:"voice,omitempty" yaml:"voice,omitempty"`
	Path            orb.LineString `json:"-" yaml:"-"`
}

// ErrInvalidJourney is returned by Validate.
var ErrInvalidJourney = errors.New("invalid journey")

// Validate checks the fields the generator depends on.
func (j *Journey) Validate() error {
	if strings.TrimSpace(j.StartAddress) == "" || strings.TrimSpace(j.EndAddress) == "" {
		return fmt.Errorf("%w: start and end address are required", ErrInvalidJourney)
	}
	if j.DurationSeconds <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidJourney)
	}
	if time.Duration(j.DurationSeconds)*time.Second > MaxJourneyDuration {
		return fmt.Errorf("%w: journeys are limited to %s", ErrInvalidJourney, MaxJourneyDuration)
	}
	switch j.TravelMode {
	case TravelWalking, TravelDriving, TravelBicycling, TravelTransit:
	case "":
		j.TravelMode = TravelWalking
	default:
		return fmt.Errorf("%w: unknown travel mode %q", ErrInvalidJourney, j.TravelMode)
	}
	return nil
}

// DurationLabel returns the human duration, falling back to whole minutes.
func (j *Journey) DurationLabel() string {
	if j.Duration != "" {
		return j.Duration
	}
	mins := j.DurationSeconds / 60
	if mins < 1 {
		mins = 1
	}
	return fmt.Sprintf("%d mins", mins)
}
