package tracker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Tracker tracks usage statistics per provider and mirrors them into
// OpenTelemetry instruments when metrics are attached.
type Tracker struct {
	mu      sync.RWMutex
	stats   map[string]*ProviderStats
	metrics *Metrics

	segmentsReady  int64
	segmentsFailed int64
	bufferingWaits int64
	retries        int64
}

// ProviderStats holds metrics for a specific provider.
// Fields are accessed atomically.
type ProviderStats struct {
	CacheHits     int64 `json:"cache_hits"`
	CacheMisses   int64 `json:"cache_misses"`
	APISuccess    int64 `json:"api_success"`
	APIFailures   int64 `json:"api_failures"`
	APIZeroResult int64 `json:"api_zero_result"`
}

// StoryCounters are story-level totals since start.
type StoryCounters struct {
	SegmentsReady  int64 `json:"segments_ready"`
	SegmentsFailed int64 `json:"segments_failed"`
	BufferingWaits int64 `json:"buffering_waits"`
	Retries        int64 `json:"retries"`
}

// New creates a new Tracker. m may be nil.
func New(m *Metrics) *Tracker {
	return &Tracker{
		stats:   make(map[string]*ProviderStats),
		metrics: m,
	}
}

// getStats returns the stats object for a provider, creating it if needed.
func (t *Tracker) getStats(provider string) *ProviderStats {
	t.mu.RLock()
	s, ok := t.stats[provider]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.stats[provider]; ok {
		return s
	}
	s = &ProviderStats{}
	t.stats[provider] = s
	return s
}

func (t *Tracker) TrackCacheHit(provider string) {
	atomic.AddInt64(&t.getStats(provider).CacheHits, 1)
	t.request(provider, "cache_hit")
}

func (t *Tracker) TrackCacheMiss(provider string) {
	atomic.AddInt64(&t.getStats(provider).CacheMisses, 1)
}

func (t *Tracker) TrackAPISuccess(provider string) {
	atomic.AddInt64(&t.getStats(provider).APISuccess, 1)
	t.request(provider, "ok")
}

func (t *Tracker) TrackAPIFailure(provider string) {
	atomic.AddInt64(&t.getStats(provider).APIFailures, 1)
	t.request(provider, "error")
}

// TrackAPIZero counts calls that succeeded but returned nothing usable.
func (t *Tracker) TrackAPIZero(provider string) {
	atomic.AddInt64(&t.getStats(provider).APIZeroResult, 1)
	t.request(provider, "empty")
}

func (t *Tracker) request(provider, status string) {
	if t.metrics == nil {
		return
	}
	t.metrics.ProviderRequests.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}

// TrackGeneration records the latency of one generation stage ("outline", "text", "audio").
func (t *Tracker) TrackGeneration(stage string, d time.Duration, err error) {
	if t.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	t.metrics.GenerationDuration.Record(context.Background(), d.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}

func (t *Tracker) TrackSegmentReady() {
	atomic.AddInt64(&t.segmentsReady, 1)
	if t.metrics != nil {
		t.metrics.SegmentsReady.Add(context.Background(), 1)
	}
}

func (t *Tracker) TrackSegmentFailed() {
	atomic.AddInt64(&t.segmentsFailed, 1)
	if t.metrics != nil {
		t.metrics.SegmentFailures.Add(context.Background(), 1)
	}
}

func (t *Tracker) TrackBufferingWait() {
	atomic.AddInt64(&t.bufferingWaits, 1)
	if t.metrics != nil {
		t.metrics.BufferingWaits.Add(context.Background(), 1)
	}
}

// TrackRetry counts one backoff of the named retry policy.
func (t *Tracker) TrackRetry(policy string) {
	atomic.AddInt64(&t.retries, 1)
	if t.metrics != nil {
		t.metrics.Retries.Add(context.Background(), 1, metric.WithAttributes(attribute.String("policy", policy)))
	}
}

// Snapshot returns a copy of the current provider stats.
func (t *Tracker) Snapshot() map[string]ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]ProviderStats)
	for k, v := range t.stats {
		result[k] = ProviderStats{
			CacheHits:     atomic.LoadInt64(&v.CacheHits),
			CacheMisses:   atomic.LoadInt64(&v.CacheMisses),
			APISuccess:    atomic.LoadInt64(&v.APISuccess),
			APIFailures:   atomic.LoadInt64(&v.APIFailures),
			APIZeroResult: atomic.LoadInt64(&v.APIZeroResult),
		}
	}
	return result
}

// Counters returns the story-level totals.
func (t *Tracker) Counters() StoryCounters {
	return StoryCounters{
		SegmentsReady:  atomic.LoadInt64(&t.segmentsReady),
		SegmentsFailed: atomic.LoadInt64(&t.segmentsFailed),
		BufferingWaits: atomic.LoadInt64(&t.bufferingWaits),
		Retries:        atomic.LoadInt64(&t.retries),
	}
}

// Reset zeroes all provider stats and story counters.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.stats = make(map[string]*ProviderStats)
	t.mu.Unlock()
	atomic.StoreInt64(&t.segmentsReady, 0)
	atomic.StoreInt64(&t.segmentsFailed, 0)
	atomic.StoreInt64(&t.bufferingWaits, 0)
	atomic.StoreInt64(&t.retries, 0)
}
