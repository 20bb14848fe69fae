package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"echopaths/pkg/model"
	"echopaths/pkg/store"
	"echopaths/pkg/story"
)

// StoryService is the part of the coordinator the API drives.
type StoryService interface {
	Start(ctx context.Context, j model.Journey) (model.StorySnapshot, error)
	StartAsync(ctx context.Context, j model.Journey) (model.StorySnapshot, error)
	Reset()
	TogglePlayback() (model.PlaybackPosition, error)
	Next() (model.PlaybackPosition, error)
	Previous() (model.PlaybackPosition, error)
	RetryFailedSegments() error
	Snapshot() model.StorySnapshot
	Subscribe() (<-chan model.StorySnapshot, func())
}

// ClipProgress reports how much of the loaded clip is left.
type ClipProgress interface {
	Remaining() time.Duration
}

// StoryHandler serves story lifecycle, playback control and the archive.
type StoryHandler struct {
	story    StoryService
	archive  store.StoryStore
	progress ClipProgress
}

// NewStoryHandler creates a new StoryHandler. archive and progress may be nil.
func NewStoryHandler(svc StoryService, archive store.StoryStore, progress ClipProgress) *StoryHandler {
	return &StoryHandler{story: svc, archive: archive, progress: progress}
}

// StartRequest is a journey with an optional GeoJSON LineString route.
type StartRequest struct {
	model.Journey
	Path *geojson.Geometry `json:"path,omitempty"`
}

// journey converts the request, rejecting routes that are not a line.
func (r *StartRequest) journey() (model.Journey, error) {
	j := r.Journey
	if r.Path == nil {
		return j, nil
	}
	line, ok := r.Path.Geometry().(orb.LineString)
	if !ok {
		return j, errors.New("path must be a GeoJSON LineString")
	}
	j.Path = line
	return j, nil
}

// HandleStart handles POST /api/story. With ?async=true the story is
// generated in the background and progress is reported on /api/ws.
func (h *StoryHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	j, err := req.journey()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := j.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		snap, err := h.story.StartAsync(context.WithoutCancel(r.Context()), j)
		if err != nil {
			writeStoryError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, snap)
		return
	}

	snap, err := h.story.Start(r.Context(), j)
	if err != nil {
		writeStoryError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// writeStoryError maps the story error taxonomy onto HTTP statuses.
func writeStoryError(w http.ResponseWriter, err error) {
	var initial *story.InitialFailure
	switch {
	case errors.As(err, &initial):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: initial.UserMessage(), Stage: string(initial.Stage)})
	case errors.Is(err, model.ErrInvalidJourney):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, story.ErrBusy), errors.Is(err, story.ErrDiscarded), errors.Is(err, story.ErrNoStory):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, story.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
		slog.Debug("API: Request cancelled", "error", err)
	default:
		slog.Error("API: Story request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// HandleStatus handles GET /api/story.
func (h *StoryHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.story.Snapshot())
}

// HandleReset handles DELETE /api/story and POST /api/story/reset.
func (h *StoryHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.story.Reset()
	writeJSON(w, http.StatusOK, h.story.Snapshot())
}

// HandleRetry handles POST /api/story/retry.
func (h *StoryHandler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	if err := h.story.RetryFailedSegments(); err != nil {
		writeStoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.story.Snapshot())
}

// HandlePlayback handles POST /api/playback/{toggle,next,previous}.
func (h *StoryHandler) HandlePlayback(w http.ResponseWriter, r *http.Request) {
	var fn func() (model.PlaybackPosition, error)
	switch r.PathValue("action") {
	case "toggle":
		fn = h.story.TogglePlayback
	case "next":
		fn = h.story.Next
	case "previous":
		fn = h.story.Previous
	default:
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}

	pos, err := fn()
	if err != nil {
		writeStoryError(w, err)
		return
	}
	slog.Debug("API: Playback control", "action", r.PathValue("action"), "state", pos.State, "index", pos.CurrentIndex)
	writeJSON(w, http.StatusOK, pos)
}

// playbackStatus is the playback position plus the time left in the clip.
type playbackStatus struct {
	model.PlaybackPosition
	NowPlaying       *model.NowPlaying `json:"now_playing,omitempty"`
	RemainingSeconds float64           `json:"remaining_seconds"`
}

// HandlePlaybackStatus handles GET /api/playback.
func (h *StoryHandler) HandlePlaybackStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.story.Snapshot()
	status := playbackStatus{PlaybackPosition: snap.Playback, NowPlaying: snap.NowPlaying}
	if h.progress != nil && snap.NowPlaying != nil {
		status.RemainingSeconds = h.progress.Remaining().Seconds()
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleArchive handles GET /api/stories?limit=N.
func (h *StoryHandler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeJSON(w, http.StatusOK, []store.StoryRecord{})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	recs, err := h.archive.ListStories(r.Context(), limit)
	if err != nil {
		slog.Error("API: Failed to list stories", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list stories")
		return
	}
	if recs == nil {
		recs = []store.StoryRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// archivedStory is a stored story with the text of its segments.
type archivedStory struct {
	*store.StoryRecord
	Segments []string `json:"segments"`
}

// HandleArchivedStory handles GET /api/stories/{id}.
func (h *StoryHandler) HandleArchivedStory(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotFound, "story not found")
		return
	}
	rec, segments, err := h.archive.GetStory(r.Context(), r.PathValue("id"))
	if err != nil {
		slog.Error("API: Failed to load story", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load story")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "story not found")
		return
	}
	writeJSON(w, http.StatusOK, archivedStory{StoryRecord: rec, Segments: segments})
}
