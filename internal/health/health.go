// SPDX-License-Identifier: MIT

// Package health answers liveness and readiness probes for one player.
//
// Liveness is always 200 while the process serves HTTP. Readiness is 503
// until the player runs, after it closes, and while any checker reports
// unhealthy. Both bodies carry the player id, the loaded media and a short
// buffer summary so a probe log shows what the player was doing.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MohamedMahfouzzzzz/lion-player/internal/log"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/playback"
	"golang.org/x/sync/errgroup"
)

// Status is the aggregated state of a set of checks.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// CheckResult is what one checker reports.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Checker is one component probe.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Subject is the player the probes describe.
type Subject interface {
	ID() string
	MediaID() string
	Running() bool
	State() playback.State
}

// PlayerSummary is the buffer picture included in every probe body.
type PlayerSummary struct {
	ID           string  `json:"id"`
	MediaID      string  `json:"media_id,omitempty"`
	Running      bool    `json:"running"`
	Playing      bool    `json:"playing"`
	Buffering    bool    `json:"buffering"`
	BufferHealth string  `json:"buffer_health"`
	BufferAhead  float64 `json:"buffer_ahead"`
	CurrentTime  float64 `json:"current_time"`
}

// Report is the body of both probes.
type Report struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Uptime    int64                  `json:"uptime_seconds"`
	Timestamp time.Time              `json:"timestamp"`
	Player    *PlayerSummary         `json:"player,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadyReport adds the readiness verdict to a Report.
type ReadyReport struct {
	Report
	Ready bool `json:"ready"`
}

// Manager runs registered checkers for the probe endpoints.
type Manager struct {
	version  string
	started  time.Time
	subject  Subject
	checkers []Checker
}

// NewManager returns a manager reporting on subject. A non-nil subject gets
// a PlayerChecker registered over its state.
func NewManager(version string, subject Subject) *Manager {
	m := &Manager{version: version, started: time.Now(), subject: subject}
	if subject != nil {
		m.checkers = append(m.checkers, NewPlayerChecker(subject.State))
	}
	return m
}

// RegisterChecker adds a checker. It must be called before serving.
func (m *Manager) RegisterChecker(c Checker) {
	m.checkers = append(m.checkers, c)
}

// Live reports liveness. Checks are only run when verbose is set; their
// status is informational and never fails the probe.
func (m *Manager) Live(ctx context.Context, verbose bool) Report {
	r := m.base()
	if verbose {
		r.Status, r.Checks = m.evaluate(ctx)
	}
	return r
}

// Ready runs every checker and reports whether the player can take traffic.
func (m *Manager) Ready(ctx context.Context) ReadyReport {
	r := ReadyReport{Report: m.base()}
	r.Status, r.Checks = m.evaluate(ctx)
	r.Ready = r.Status != StatusUnhealthy
	if m.subject != nil && !m.subject.Running() {
		r.Ready = false
		r.Checks["lifecycle"] = CheckResult{Status: StatusUnhealthy, Message: "player not running"}
		r.Status = StatusUnhealthy
	}
	return r
}

func (m *Manager) base() Report {
	r := Report{
		Status:    StatusHealthy,
		Version:   m.version,
		Uptime:    int64(time.Since(m.started).Seconds()),
		Timestamp: time.Now().UTC(),
	}
	if m.subject != nil {
		st := m.subject.State()
		r.Player = &PlayerSummary{
			ID:           m.subject.ID(),
			MediaID:      m.subject.MediaID(),
			Running:      m.subject.Running(),
			Playing:      st.Playing,
			Buffering:    st.Buffering,
			BufferHealth: st.BufferHealth.String(),
			BufferAhead:  st.BufferAhead,
			CurrentTime:  st.CurrentTime,
		}
	}
	return r
}

// evaluate runs the checkers concurrently and folds their results into the
// worst status seen.
func (m *Manager) evaluate(ctx context.Context) (Status, map[string]CheckResult) {
	results := make([]CheckResult, len(m.checkers))
	var g errgroup.Group
	for i, c := range m.checkers {
		g.Go(func() error {
			results[i] = c.Check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	status := StatusHealthy
	checks := make(map[string]CheckResult, len(results)+1)
	for i, c := range m.checkers {
		checks[c.Name()] = results[i]
		if results[i].Status.rank() > status.rank() {
			status = results[i].Status
		}
	}
	return status, checks
}

// ServeHealth answers the liveness probe; add ?verbose=true for checks.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"
	rep := m.Live(r.Context(), verbose)
	writeReport(w, r, http.StatusOK, "health", rep.Status, rep)
}

// ServeReady answers the readiness probe.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	rep := m.Ready(r.Context())
	code := http.StatusOK
	if !rep.Ready {
		code = http.StatusServiceUnavailable
	}
	writeReport(w, r, code, "readiness", rep.Status, rep)
}

func writeReport(w http.ResponseWriter, r *http.Request, code int, probe string, status Status, body any) {
	logger := log.WithComponentFromContext(r.Context(), "health")
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, probe+".encode_error").Msg("failed to encode probe response")
		return
	}
	logger.Debug().
		Str(log.FieldEvent, probe+".checked").
		Str("status", string(status)).
		Int("code", code).
		Msg("probe answered")
}
