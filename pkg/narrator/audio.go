package narrator

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"

	"echopaths/pkg/model"
	"echopaths/pkg/story"
	"echopaths/pkg/tts"
)

const cachePrefix = "audio_"

// GenerateSegmentAudio synthesizes text, serving repeats from the cache.
func (c *Client) GenerateSegmentAudio(ctx context.Context, text, voice string) (*model.Audio, error) {
	key := cacheKey(text, voice)
	if a, ok := c.cached(ctx, key); ok {
		return a, nil
	}

	var audio *model.Audio
	err := c.transport(ctx, ttsBackoffKey, func(ctx context.Context) error {
		a, err := c.speaker().Synthesize(ctx, text, voice)
		if err != nil {
			return classify(err)
		}
		if err := tts.Verify(a); err != nil {
			return &story.AudioError{Err: err}
		}
		audio = a
		return nil
	})
	if err != nil {
		if story.Overloaded(err) && c.activateFallback() {
			return c.GenerateSegmentAudio(ctx, text, voice)
		}
		return nil, err
	}

	c.store(ctx, key, audio)
	return audio, nil
}

func (c *Client) speaker() tts.Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.useFallback && c.opts.Fallback != nil {
		return c.opts.Fallback
	}
	return c.tts
}

// activateFallback switches to the fallback engine for the rest of the
// session. It reports false when there is nothing to switch to.
func (c *Client) activateFallback() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.useFallback || c.opts.Fallback == nil {
		return false
	}
	slog.Warn("Narrator: Activating fallback TTS for this session")
	c.useFallback = true
	return true
}

func cacheKey(text, voice string) string {
	sum := sha256.Sum256([]byte(voice + "|" + text))
	return cachePrefix + hex.EncodeToString(sum[:])
}

// Cached audio is stored as "<format>\x00<data>".
func (c *Client) cached(ctx context.Context, key string) (*model.Audio, bool) {
	if c.opts.Cache == nil {
		return nil, false
	}
	raw, ok := c.opts.Cache.GetCache(ctx, key)
	if !ok {
		c.trackCache(false)
		return nil, false
	}
	i := bytes.IndexByte(raw, 0)
	if i <= 0 || i == len(raw)-1 {
		slog.Warn("Narrator: Discarding malformed cache entry", "key", key)
		c.trackCache(false)
		return nil, false
	}
	c.trackCache(true)
	return &model.Audio{Format: string(raw[:i]), Data: raw[i+1:]}, true
}

func (c *Client) store(ctx context.Context, key string, a *model.Audio) {
	if c.opts.Cache == nil {
		return
	}
	raw := make([]byte, 0, len(a.Format)+1+len(a.Data))
	raw = append(raw, a.Format...)
	raw = append(raw, 0)
	raw = append(raw, a.Data...)
	if err := c.opts.Cache.SetCache(ctx, key, raw); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("Narrator: Failed to cache audio", "error", err)
	}
}

func (c *Client) trackCache(hit bool) {
	if c.opts.Tracker == nil {
		return
	}
	if hit {
		c.opts.Tracker.TrackCacheHit("audio")
	} else {
		c.opts.Tracker.TrackCacheMiss("audio")
	}
}
