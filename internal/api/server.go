package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"echopaths/pkg/version"
)

// NewServer creates and configures the HTTP server.
// metrics may be nil when the Prometheus exporter is disabled.
func NewServer(addr string, storyH *StoryHandler, settingsH *SettingsHandler, stats *StatsHandler, metrics http.Handler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health and meta
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)
	mux.Handle("GET /api/stats", stats)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	// 2. Story
	mux.HandleFunc("POST /api/story", storyH.HandleStart)
	mux.HandleFunc("GET /api/story", storyH.HandleStatus)
	mux.HandleFunc("DELETE /api/story", storyH.HandleReset)
	mux.HandleFunc("POST /api/story/reset", storyH.HandleReset)
	mux.HandleFunc("POST /api/story/retry", storyH.HandleRetry)
	mux.HandleFunc("GET /api/playback", storyH.HandlePlaybackStatus)
	mux.HandleFunc("POST /api/playback/{action}", storyH.HandlePlayback)
	mux.HandleFunc("GET /api/stories", storyH.HandleArchive)
	mux.HandleFunc("GET /api/stories/{id}", storyH.HandleArchivedStory)
	mux.HandleFunc("GET /api/ws", storyH.HandleStream)

	// 3. Settings
	mux.HandleFunc("GET /api/settings", settingsH.HandleGet)
	mux.HandleFunc("PUT /api/settings", settingsH.HandleUpdate)
	mux.HandleFunc("DELETE /api/settings", settingsH.HandleReset)
	mux.HandleFunc("GET /api/styles", settingsH.HandleStyles)
	mux.HandleFunc("GET /api/voices", settingsH.HandleVoices)

	// 4. Shutdown
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Let the response flush first.
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// Starting a story blocks until the first segment has audio.
		WriteTimeout: 6 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// errorResponse is the body of every non-2xx JSON reply.
type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
