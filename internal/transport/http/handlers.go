package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"longform-transcriber/internal/domain"
	"longform-transcriber/internal/runs"
	"longform-transcriber/internal/transcribe"
)

type appCore interface {
	StartRun(mediaPath string) (domain.Run, error)
	CurrentRun() domain.Run
	CancelRun() error
	Events(since int64) []runs.Event
	Settings() domain.Settings
	SaveSettings(settings domain.Settings) (domain.Settings, error)
	Diagnostics() domain.DiagnosticReport
	LatestResult() (transcribe.Result, bool)
}

type Handler struct {
	app appCore
}

// NewHandler wires HTTP handlers with the application core.
func NewHandler(app appCore) *Handler {
	return &Handler{app: app}
}

// Health handles the liveness endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StartRun handles run creation for a media file.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MediaPath string `json:"mediaPath"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.MediaPath) == "" {
		http.Error(w, "mediaPath is required", http.StatusBadRequest)
		return
	}

	run, err := h.app.StartRun(body.MediaPath)
	if err != nil {
		if errors.Is(err, runs.ErrRunAlreadyActive) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusAccepted, run)
}

// CurrentRun handles the current run snapshot endpoint.
func (h *Handler) CurrentRun(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.CurrentRun())
}

// CancelRun handles cancellation of the active run.
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	if err := h.app.CancelRun(); err != nil {
		if errors.Is(err, runs.ErrNoActiveRun) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// Events handles incremental event polling.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	since := int64(0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid since parameter", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	events := h.app.Events(since)
	if events == nil {
		events = []runs.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// GetSettings handles the settings read endpoint.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Settings())
}

// PutSettings handles settings replacement.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	saved, err := h.app.SaveSettings(settings)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// Diagnostics handles the environment check endpoint.
func (h *Handler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Diagnostics())
}

// Transcript handles retrieval of the most recent completed transcript.
func (h *Handler) Transcript(w http.ResponseWriter, r *http.Request) {
	result, ok := h.app.LatestResult()
	if !ok {
		http.Error(w, "no transcript available", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transcript": result.Transcript,
		"counts":     result.Counts,
		"textPath":   result.TextPath,
	})
}

// writeJSON encodes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
