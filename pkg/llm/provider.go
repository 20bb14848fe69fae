package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Provider defines the interface for interacting with LLM services.
type Provider interface {
	// GenerateText sends a prompt and returns the text response.
	GenerateText(ctx context.Context, name, prompt string) (string, error)

	// GenerateJSON sends a prompt and unmarshals the response into the target.
	GenerateJSON(ctx context.Context, name, prompt string, target any) error

	// HealthCheck verifies that the provider is configured and reachable.
	HealthCheck(ctx context.Context) error

	// HasProfile checks if the provider has a specific profile configured.
	HasProfile(name string) bool
}

var (
	ErrNotConfigured = errors.New("llm provider not configured")
	ErrEmptyResponse = errors.New("llm returned no text")
	ErrInvalidJSON   = errors.New("llm returned invalid json")
)

// FinishError is returned when a response ended for a reason other than a
// normal stop.
type FinishError struct {
	Reason string
}

func (e *FinishError) Error() string {
	return fmt.Sprintf("response finished with %s", e.Reason)
}

// StatusError carries the HTTP status of a failed provider call.
type StatusError struct {
	Provider string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api error %d: %s", e.Provider, e.Code, e.Message)
}

// Transient reports whether the status indicates overload or a server-side
// hiccup rather than a bad request.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}
