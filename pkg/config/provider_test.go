package config

import (
	"context"
	"testing"
	"time"
)

// MockStateStore implements store.StateStore for testing.
type MockStateStore struct {
	data map[string]string
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{data: make(map[string]string)}
}

func (m *MockStateStore) GetState(ctx context.Context, key string) (string, bool) {
	val, ok := m.data[key]
	return val, ok
}

func (m *MockStateStore) SetState(ctx context.Context, key, val string) error {
	m.data[key] = val
	return nil
}

func (m *MockStateStore) DeleteState(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestUnifiedProvider(t *testing.T) {
	ctx := context.Background()
	base := DefaultConfig()
	st := NewMockStateStore()
	p := NewProvider(base, st)

	t.Run("Defaults", func(t *testing.T) {
		if p.Lookahead(ctx) != 2 {
			t.Errorf("expected lookahead 2, got %d", p.Lookahead(ctx))
		}
		if p.MinInterval(ctx) != 2*time.Second {
			t.Errorf("expected 2s, got %v", p.MinInterval(ctx))
		}
		if p.DefaultStyle(ctx) != "IMMERSIVE" {
			t.Errorf("expected IMMERSIVE, got %s", p.DefaultStyle(ctx))
		}
		if p.DefaultVoice(ctx) != "Kore" {
			t.Errorf("expected Kore, got %s", p.DefaultVoice(ctx))
		}
		if p.Volume(ctx) != 1.0 {
			t.Errorf("expected volume 1.0, got %f", p.Volume(ctx))
		}
	})

	t.Run("StoreOverrides", func(t *testing.T) {
		_ = st.SetState(ctx, KeyLookahead, "4")
		_ = st.SetState(ctx, KeyDefaultStyle, "NOIR")
		_ = st.SetState(ctx, KeyVolume, "0.25")
		if p.Lookahead(ctx) != 4 {
			t.Errorf("expected lookahead 4, got %d", p.Lookahead(ctx))
		}
		if p.DefaultStyle(ctx) != "NOIR" {
			t.Errorf("expected NOIR, got %s", p.DefaultStyle(ctx))
		}
		if p.Volume(ctx) != 0.25 {
			t.Errorf("expected 0.25, got %f", p.Volume(ctx))
		}
	})

	t.Run("InvalidStoredValuesFallBack", func(t *testing.T) {
		_ = st.SetState(ctx, KeyLookahead, "0")
		_ = st.SetState(ctx, KeyVolume, "7")
		if p.Lookahead(ctx) != 2 {
			t.Errorf("expected fallback lookahead 2, got %d", p.Lookahead(ctx))
		}
		if p.Volume(ctx) != 1.0 {
			t.Errorf("expected fallback volume 1.0, got %f", p.Volume(ctx))
		}
	})

	t.Run("EdgeVoiceFallback", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TTS.Engine = "edge-tts"
		ep := NewProvider(cfg, nil)
		if ep.DefaultVoice(ctx) != cfg.TTS.EdgeTTS.VoiceID {
			t.Errorf("expected edge voice, got %s", ep.DefaultVoice(ctx))
		}
	})
}
