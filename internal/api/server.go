// SPDX-License-Identifier: MIT

// Package api exposes a player over HTTP: state and segment snapshots,
// transport controls, a server-sent event stream, health probes and
// Prometheus metrics.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MohamedMahfouzzzzz/lion-player/internal/buffer"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/eventbus"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/health"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/playback"
)

const maxBodyBytes = 1 << 16

// Player is the player surface the API reads and configures.
type Player interface {
	ID() string
	MediaID() string
	Bus() *eventbus.Bus
	State() playback.State
	Segments() []buffer.Segment
	Thresholds() buffer.Thresholds
	SetThresholds(th buffer.Thresholds) error
}

// Controls drives the media element.
type Controls interface {
	Play() error
	Pause()
	Seek(position float64)
	SetVolume(volume float64, muted bool)
	SetPlaybackRate(rate float64)
}

// Config tunes the HTTP surface.
type Config struct {
	// RateLimit is the per-IP request budget per RateWindow for /api routes.
	// Zero disables rate limiting.
	RateLimit  int
	RateWindow time.Duration
	// TracingService names the tracer; empty disables request spans.
	TracingService string
}

// Server routes HTTP requests to one player.
type Server struct {
	router   chi.Router
	player   Player
	controls Controls
	health   *health.Manager
}

// New builds the router. controls may be nil for a read-only API.
func New(p Player, controls Controls, hm *health.Manager, cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		player:   p,
		controls: controls,
		health:   hm,
	}

	r := s.router
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(metrics)
	if cfg.TracingService != "" {
		r.Use(tracing(cfg.TracingService))
	}
	r.Use(playerContext(p))
	r.Use(accessLog)

	if hm != nil {
		r.Get("/healthz", hm.ServeHealth)
		r.Get("/readyz", hm.ServeReady)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/player", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			window := cfg.RateWindow
			if window <= 0 {
				window = time.Minute
			}
			r.Use(rateLimit(cfg.RateLimit, window))
		}
		r.Get("/", s.handleState)
		r.Get("/segments", s.handleSegments)
		r.Get("/thresholds", s.handleGetThresholds)
		r.Put("/thresholds", s.handlePutThresholds)
		r.Get("/events", s.handleEvents)

		r.Post("/play", s.handlePlay)
		r.Post("/pause", s.handlePause)
		r.Post("/seek", s.handleSeek)
		r.Post("/volume", s.handleVolume)
		r.Post("/rate", s.handleRate)
	})
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

type stateResponse struct {
	ID      string         `json:"id"`
	MediaID string         `json:"media_id,omitempty"`
	State   playback.State `json:"state"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{
		ID:      s.player.ID(),
		MediaID: s.player.MediaID(),
		State:   s.player.State(),
	})
}

func (s *Server) handleSegments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.player.Segments())
}

func (s *Server) handleGetThresholds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.player.Thresholds())
}

func (s *Server) handlePutThresholds(w http.ResponseWriter, r *http.Request) {
	var th buffer.Thresholds
	if err := decodeBody(w, r, &th); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.player.SetThresholds(th); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, s.player.Thresholds())
}

func (s *Server) handlePlay(w http.ResponseWriter, _ *http.Request) {
	if !s.requireControls(w) {
		return
	}
	if err := s.controls.Play(); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	if !s.requireControls(w) {
		return
	}
	s.controls.Pause()
	w.WriteHeader(http.StatusNoContent)
}

type seekRequest struct {
	Position *float64 `json:"position"`
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	if !s.requireControls(w) {
		return
	}
	var req seekRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Position == nil || !finite(*req.Position) {
		writeError(w, http.StatusBadRequest, errors.New("position must be a finite number"))
		return
	}
	s.controls.Seek(*req.Position)
	w.WriteHeader(http.StatusNoContent)
}

type volumeRequest struct {
	Volume float64 `json:"volume"`
	Muted  bool    `json:"muted"`
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	if !s.requireControls(w) {
		return
	}
	var req volumeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Volume < 0 || req.Volume > 1 {
		writeError(w, http.StatusBadRequest, errors.New("volume must be within [0,1]"))
		return
	}
	s.controls.SetVolume(req.Volume, req.Muted)
	w.WriteHeader(http.StatusNoContent)
}

type rateRequest struct {
	Rate float64 `json:"rate"`
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	if !s.requireControls(w) {
		return
	}
	var req rateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Rate <= 0 || !finite(req.Rate) {
		writeError(w, http.StatusBadRequest, errors.New("rate must be positive"))
		return
	}
	s.controls.SetPlaybackRate(req.Rate)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireControls(w http.ResponseWriter) bool {
	if s.controls == nil {
		writeError(w, http.StatusNotImplemented, errors.New("player controls are not available"))
		return false
	}
	return true
}

// decodeBody strictly decodes a single JSON object.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
