package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"echopaths/pkg/config"
	"echopaths/pkg/model"
	"echopaths/pkg/store"
	"echopaths/pkg/tts"
)

// VolumeControl is satisfied by the audio backends.
type VolumeControl interface {
	SetVolume(vol float64)
	Volume() float64
}

// FallbackStatus reports whether speech comes from the fallback engine.
type FallbackStatus interface {
	UsingFallback() bool
}

// maxLookahead bounds the runtime lookahead setting.
const maxLookahead = 10

// SettingsHandler serves the runtime settings persisted in the state store.
type SettingsHandler struct {
	settings config.Provider
	state    store.StateStore
	volume   VolumeControl
	voices   tts.Provider
	fallback FallbackStatus
}

// NewSettingsHandler creates a new SettingsHandler. voices and fallback may be nil.
func NewSettingsHandler(settings config.Provider, st store.StateStore, vol VolumeControl, voices tts.Provider, fallback FallbackStatus) *SettingsHandler {
	return &SettingsHandler{settings: settings, state: st, volume: vol, voices: voices, fallback: fallback}
}

// runtimeKeys are the settings HandleUpdate may persist.
var runtimeKeys = []string{config.KeyVolume, config.KeyDefaultStyle, config.KeyDefaultVoice, config.KeyLookahead}

// SettingsResponse is the current runtime configuration.
type SettingsResponse struct {
	Volume       float64 `json:"volume"`
	DefaultStyle string  `json:"default_style"`
	DefaultVoice string  `json:"default_voice"`
	Lookahead    int     `json:"lookahead"`
	TTSEngine    string  `json:"tts_engine"`
	TTSFallback  bool    `json:"tts_fallback_active"`
	AutoPlay     bool    `json:"autoplay"`
}

// SettingsRequest updates a subset of settings; nil fields are left alone.
type SettingsRequest struct {
	Volume       *float64 `json:"volume,omitempty"`
	DefaultStyle *string  `json:"default_style,omitempty"`
	DefaultVoice *string  `json:"default_voice,omitempty"`
	Lookahead    *int     `json:"lookahead,omitempty"`
}

func (h *SettingsHandler) current(r *http.Request) SettingsResponse {
	ctx := r.Context()
	app := h.settings.AppConfig()
	return SettingsResponse{
		Volume:       h.volume.Volume(),
		DefaultStyle: string(model.ParseStyle(h.settings.DefaultStyle(ctx))),
		DefaultVoice: h.settings.DefaultVoice(ctx),
		Lookahead:    h.settings.Lookahead(ctx),
		TTSEngine:    app.TTS.Engine,
		TTSFallback:  h.fallback != nil && h.fallback.UsingFallback(),
		AutoPlay:     app.Audio.AutoPlay,
	}
}

// HandleGet handles GET /api/settings.
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.current(r))
}

// HandleUpdate handles PUT /api/settings.
func (h *SettingsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updates := map[string]string{}
	if req.Volume != nil {
		if *req.Volume < 0 || *req.Volume > 1 {
			writeError(w, http.StatusBadRequest, "volume must be within [0, 1]")
			return
		}
		updates[config.KeyVolume] = fmt.Sprintf("%.2f", *req.Volume)
	}
	if req.Lookahead != nil {
		if *req.Lookahead < 1 || *req.Lookahead > maxLookahead {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("lookahead must be within [1, %d]", maxLookahead))
			return
		}
		updates[config.KeyLookahead] = strconv.Itoa(*req.Lookahead)
	}
	if req.DefaultStyle != nil {
		updates[config.KeyDefaultStyle] = string(model.ParseStyle(*req.DefaultStyle))
	}
	if req.DefaultVoice != nil {
		updates[config.KeyDefaultVoice] = *req.DefaultVoice
	}

	if h.state != nil {
		for k, v := range updates {
			if err := h.state.SetState(r.Context(), k, v); err != nil {
				slog.Error("API: Failed to persist setting", "key", k, "error", err)
				writeError(w, http.StatusInternalServerError, "failed to persist settings")
				return
			}
		}
	}
	if req.Volume != nil {
		h.volume.SetVolume(*req.Volume)
	}

	slog.Info("API: Settings updated", "keys", len(updates))
	writeJSON(w, http.StatusOK, h.current(r))
}

// HandleReset handles DELETE /api/settings. Persisted overrides are removed
// and the file configuration applies again.
func (h *SettingsHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if h.state != nil {
		for _, k := range runtimeKeys {
			if err := h.state.DeleteState(r.Context(), k); err != nil {
				slog.Error("API: Failed to reset setting", "key", k, "error", err)
				writeError(w, http.StatusInternalServerError, "failed to reset settings")
				return
			}
		}
	}
	h.volume.SetVolume(h.settings.Volume(r.Context()))

	slog.Info("API: Settings reset to defaults")
	writeJSON(w, http.StatusOK, h.current(r))
}

// styleInfo describes one narration style.
type styleInfo struct {
	ID   model.Style `json:"id"`
	Name string      `json:"name"`
}

// HandleStyles handles GET /api/styles.
func (h *SettingsHandler) HandleStyles(w http.ResponseWriter, r *http.Request) {
	styles := model.Styles()
	out := make([]styleInfo, 0, len(styles))
	for _, s := range styles {
		out = append(out, styleInfo{ID: s, Name: s.DisplayName()})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleVoices handles GET /api/voices.
func (h *SettingsHandler) HandleVoices(w http.ResponseWriter, r *http.Request) {
	if h.voices == nil {
		writeJSON(w, http.StatusOK, []tts.Voice{})
		return
	}
	voices, err := h.voices.Voices(r.Context())
	if err != nil {
		slog.Error("API: Failed to list voices", "error", err)
		writeError(w, http.StatusBadGateway, "failed to list voices")
		return
	}
	writeJSON(w, http.StatusOK, voices)
}
