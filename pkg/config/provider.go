package config

import (
	"context"
	"strconv"
	"time"

	"echopaths/pkg/store"
)

// Provider exposes settings that can be changed at runtime on top of the
// static file configuration.
type Provider interface {
	Lookahead(ctx context.Context) int
	MinInterval(ctx context.Context) time.Duration
	DefaultStyle(ctx context.Context) string
	DefaultVoice(ctx context.Context) string
	Volume(ctx context.Context) float64

	// Raw access (for components that need deep access)
	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and persistent Store.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider. st may be nil.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

func (p *UnifiedProvider) Lookahead(ctx context.Context) int {
	v := p.getInt(ctx, KeyLookahead, p.base.Generation.Lookahead)
	if v < 1 {
		return p.base.Generation.Lookahead
	}
	return v
}

func (p *UnifiedProvider) MinInterval(ctx context.Context) time.Duration {
	return p.base.Generation.MinInterval.Std()
}

func (p *UnifiedProvider) DefaultStyle(ctx context.Context) string {
	return p.getString(ctx, KeyDefaultStyle, p.base.Generation.DefaultStyle)
}

func (p *UnifiedProvider) DefaultVoice(ctx context.Context) string {
	fallback := p.base.TTS.Gemini.Voice
	if p.base.TTS.Engine == "edge-tts" {
		fallback = p.base.TTS.EdgeTTS.VoiceID
	}
	return p.getString(ctx, KeyDefaultVoice, fallback)
}

func (p *UnifiedProvider) Volume(ctx context.Context) float64 {
	v := p.getFloat64(ctx, KeyVolume, p.base.Audio.Volume)
	if v < 0 || v > 1 {
		return p.base.Audio.Volume
	}
	return v
}

// --- Helpers ---

func (p *UnifiedProvider) getString(ctx context.Context, key, fallback string) string {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val
		}
	}
	return fallback
}

func (p *UnifiedProvider) getInt(ctx context.Context, key string, fallback int) int {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				return i
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getFloat64(ctx context.Context, key string, fallback float64) float64 {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f
			}
		}
	}
	return fallback
}
