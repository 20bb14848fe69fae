package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"

	"echopaths/pkg/audio"
	"echopaths/pkg/config"
	"echopaths/pkg/model"
	"echopaths/pkg/tracker"
	"echopaths/pkg/tts"
	"echopaths/pkg/tts/edgetts"
	ttsgemini "echopaths/pkg/tts/gemini"
)

// speechProviders holds the configured engine and, when one is available,
// the engine used once the primary stays overloaded.
type speechProviders struct {
	Primary  tts.Provider
	Fallback tts.Provider
}

func initSpeech(cfg *config.Config, tr *tracker.Tracker) (speechProviders, error) {
	edge := func() tts.Provider { return edgetts.NewProvider(tr, cfg.TTS.EdgeTTS.VoiceID) }

	switch cfg.TTS.Engine {
	case "edge-tts":
		if _, err := edgetts.EndpointFromEnv(); err != nil {
			return speechProviders{}, fmt.Errorf("edge-tts is not configured: %w", err)
		}
		slog.Info("TTS: Using Edge TTS")
		return speechProviders{Primary: edge()}, nil
	default:
		p, err := ttsgemini.NewProvider(cfg.TTS.Gemini, cfg.LLM.Key, "", tr)
		if err != nil {
			return speechProviders{}, fmt.Errorf("failed to initialize gemini tts: %w", err)
		}
		sp := speechProviders{Primary: p}
		if _, err := edgetts.EndpointFromEnv(); err == nil {
			sp.Fallback = edge()
			slog.Info("TTS: Using Gemini TTS with Edge TTS fallback")
		} else {
			slog.Info("TTS: Using Gemini TTS")
		}
		return sp, nil
	}
}

func initPlayer(cfg *config.Config, volume float64) audio.Player {
	if cfg.Audio.Backend == "silent" {
		slog.Info("Audio: Using silent backend")
		return audio.NewSilent(volume, 1.0)
	}
	return audio.New(volume)
}

// journeyFile is the YAML form of a journey. Route points are [lon, lat].
type journeyFile struct {
	model.Journey `yaml:",inline"`
	Route         [][2]float64 `yaml:"route,omitempty"`
}

func loadJourney(path string) (*model.Journey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read journey file: %w", err)
	}
	var f journeyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse journey file: %w", err)
	}
	j := f.Journey
	if len(f.Route) > 0 {
		j.Path = make(orb.LineString, len(f.Route))
		for i, p := range f.Route {
			j.Path[i] = orb.Point{p[0], p[1]}
		}
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return &j, nil
}
