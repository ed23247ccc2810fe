package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/satindergrewal/rtradio/internal/autodj"
	"github.com/satindergrewal/rtradio/internal/pipeline"
	"github.com/satindergrewal/rtradio/internal/style"
)

type statusSource interface {
	Status() pipeline.Status
}

// api is the HTTP control surface: genre requests, auto-DJ toggling and
// status.
type api struct {
	pub       style.Publisher
	dj        *autodj.Scheduler
	pipeline  statusSource
	listeners func() int
	logger    *slog.Logger
}

func (a *api) register(mux *http.ServeMux) {
	mux.HandleFunc("/genre", a.handleGenre)
	mux.HandleFunc("/api/genre", a.handleGenre)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/autodj", a.handleAutoDJ)
}

func cors(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (a *api) handleGenre(w http.ResponseWriter, r *http.Request) {
	cors(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Genre  string `json:"genre"`
		Smooth bool   `json:"smooth"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req := style.Request{Genre: strings.TrimSpace(body.Genre), Mode: style.Hard}
	if body.Smooth {
		req.Mode = style.Smooth
	}

	if err := a.pub.Publish(req); err != nil {
		if errors.Is(err, style.ErrMalformed) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		a.logger.Error("publish genre request", "genre", req.Genre, "err", err)
		http.Error(w, "failed to change genre", http.StatusInternalServerError)
		return
	}
	if a.dj != nil {
		a.dj.SetGenre(req.Genre)
	}
	a.logger.Info("genre change requested", "genre", req.Genre, "mode", req.Mode)

	writeJSON(w, map[string]string{
		"status": "success",
		"genre":  req.Genre,
		"mode":   req.Mode.String(),
	})
}

func (a *api) handleStatus(w http.ResponseWriter, r *http.Request) {
	cors(w)
	if r.Method != http.MethodGet {
		http.Error(w, "GET required", http.StatusMethodNotAllowed)
		return
	}
	resp := map[string]any{
		"pipeline": a.pipeline.Status(),
	}
	if a.dj != nil {
		resp["autodj"] = a.dj.Status()
	}
	if a.listeners != nil {
		resp["listeners"] = a.listeners()
	}
	writeJSON(w, resp)
}

func (a *api) handleAutoDJ(w http.ResponseWriter, r *http.Request) {
	cors(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	a.dj.SetAutoDJ(body.Enabled)
	writeJSON(w, map[string]any{"ok": true, "auto_dj": body.Enabled})
}
