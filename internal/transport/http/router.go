package http

import (
	"github.com/gorilla/mux"
)

// NewRouter configures HTTP routes for the transcription service.
func NewRouter(handler *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", handler.Health).Methods("GET")
	r.HandleFunc("/api/runs", handler.StartRun).Methods("POST")
	r.HandleFunc("/api/runs/current", handler.CurrentRun).Methods("GET")
	r.HandleFunc("/api/runs/current/cancel", handler.CancelRun).Methods("POST")
	r.HandleFunc("/api/events", handler.Events).Methods("GET")
	r.HandleFunc("/api/settings", handler.GetSettings).Methods("GET")
	r.HandleFunc("/api/settings", handler.PutSettings).Methods("PUT")
	r.HandleFunc("/api/diagnostics", handler.Diagnostics).Methods("GET")
	r.HandleFunc("/api/transcript", handler.Transcript).Methods("GET")
	return r
}
