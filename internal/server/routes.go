/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/muninn_nowplaying/internal/telemetry"
)

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/nowplaying", s.handleNowPlaying)
		r.Get("/status", s.handleStatus)
		r.Post("/inline", s.handleInline)
		r.Post("/playback", s.handlePlayback)
		r.Get("/nowplaying/ws", s.handleNowPlayingWS)
	})
}

// handleNowPlaying returns the current arbitrated track.
func (s *Server) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.arb.Current())
}

type statusResponse struct {
	Playing           bool      `json:"playing"`
	StreamURL         string    `json:"stream_url"`
	IsRecognizing     bool      `json:"is_recognizing"`
	LastAttemptAt     time.Time `json:"last_attempt_at"`
	LastSuccessAt     time.Time `json:"last_success_at"`
	LastError         string    `json:"last_error,omitempty"`
	BackoffSeconds    float64   `json:"backoff_seconds"`
	LastRecognitionAt time.Time `json:"last_recognition_at"`
	NowPlaying        any       `json:"now_playing"`
}

// handleStatus returns a diagnostic snapshot of the pipeline.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.sched.Status()
	writeJSON(w, http.StatusOK, statusResponse{
		Playing:           s.engine.IsPlaying(),
		StreamURL:         s.engine.StreamURL(),
		IsRecognizing:     st.InFlight,
		LastAttemptAt:     st.LastAttemptAt,
		LastSuccessAt:     st.LastSuccessAt,
		LastError:         st.LastError,
		BackoffSeconds:    st.Backoff.Seconds(),
		LastRecognitionAt: s.arb.LastRecognitionAt(),
		NowPlaying:        s.arb.Current(),
	})
}

// handleInline accepts an inline metadata update, either as JSON
// {"raw": "..."} or as a plain text body.
func (s *Server) handleInline(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	raw := string(body)
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Raw string `json:"raw"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		raw = req.Raw
	}

	if strings.TrimSpace(raw) == "" {
		http.Error(w, "empty metadata", http.StatusBadRequest)
		return
	}

	s.inline.Handle(raw)
	w.WriteHeader(http.StatusAccepted)
}

// handlePlayback toggles the playback flag the scheduler observes.
func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Playing *bool `json:"playing"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Playing == nil {
		http.Error(w, `expected {"playing": true|false}`, http.StatusBadRequest)
		return
	}
	s.engine.SetPlaying(*req.Playing)
	s.logger.Info().Bool("playing", *req.Playing).Msg("playback state updated")
	writeJSON(w, http.StatusOK, map[string]bool{"playing": *req.Playing})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
