package api

import (
	"net/http"
	"runtime"
	"time"

	"echopaths/pkg/tracker"
)

// StatsHandler serves provider and story counters plus process figures.
type StatsHandler struct {
	tracker *tracker.Tracker
	started time.Time
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(t *tracker.Tracker) *StatsHandler {
	return &StatsHandler{tracker: t, started: time.Now()}
}

type processStats struct {
	UptimeSeconds int64   `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
	HeapMB        float64 `json:"heap_mb"`
}

type statsResponse struct {
	Providers map[string]tracker.ProviderStats `json:"providers"`
	Story     tracker.StoryCounters            `json:"story"`
	Process   processStats                     `json:"process"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, statsResponse{
		Providers: h.tracker.Snapshot(),
		Story:     h.tracker.Counters(),
		Process: processStats{
			UptimeSeconds: int64(time.Since(h.started).Seconds()),
			Goroutines:    runtime.NumGoroutine(),
			HeapMB:        float64(mem.HeapAlloc) / (1024 * 1024),
		},
	})
}
