// SPDX-License-Identifier: MIT

// Package metrics holds the Prometheus instruments of the player core.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	DirectionStart = "start"
	DirectionStop  = "stop"

	CauseWatermark = "watermark"
	CauseHost      = "host"

	SkipNoRanges    = "no_ranges"
	SkipSourceError = "source_error"
	SkipPanic       = "panic"
	SkipClosed      = "closed"
)

var (
	BufferHealthTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lionplayer_buffer_health_ticks_total",
		Help: "Buffer health classifications by tier",
	}, []string{"tier"})

	BufferAheadSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lionplayer_buffer_ahead_seconds",
		Help:    "Seconds buffered ahead of the playhead at each monitor tick",
		Buckets: []float64{0.25, 0.5, 1, 2, 3, 5, 8, 13, 20, 30, 60},
	})

	BufferingTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lionplayer_buffering_transitions_total",
		Help: "Buffering state transitions by direction and cause",
	}, []string{"direction", "cause"})

	BufferTickSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lionplayer_buffer_tick_skipped_total",
		Help: "Monitor ticks that produced no new information, by reason",
	}, []string{"reason"})
)

// ObserveBufferHealth records one classification.
func ObserveBufferHealth(tier string, aheadSeconds float64) {
	BufferHealthTicksTotal.WithLabelValues(normalizeTierLabel(tier)).Inc()
	if aheadSeconds < 0 {
		aheadSeconds = 0
	}
	BufferAheadSeconds.Observe(aheadSeconds)
}

// IncBufferingTransition records a buffering enter/exit.
func IncBufferingTransition(direction, cause string) {
	BufferingTransitionsTotal.WithLabelValues(
		normalizeDirectionLabel(direction),
		normalizeCauseLabel(cause),
	).Inc()
}

// IncBufferTickSkipped records a tick that was treated as a no-op.
func IncBufferTickSkipped(reason string) {
	BufferTickSkippedTotal.WithLabelValues(normalizeSkipLabel(reason)).Inc()
}

func normalizeTierLabel(tier string) string {
	switch t := strings.ToLower(strings.TrimSpace(tier)); t {
	case "good", "medium", "poor":
		return t
	default:
		return "unknown"
	}
}

func normalizeDirectionLabel(direction string) string {
	switch d := strings.ToLower(strings.TrimSpace(direction)); d {
	case DirectionStart, DirectionStop:
		return d
	default:
		return "unknown"
	}
}

func normalizeCauseLabel(cause string) string {
	switch c := strings.ToLower(strings.TrimSpace(cause)); c {
	case CauseWatermark, CauseHost:
		return c
	default:
		return "unknown"
	}
}

func normalizeSkipLabel(reason string) string {
	switch r := strings.ToLower(strings.TrimSpace(reason)); r {
	case SkipNoRanges, SkipSourceError, SkipPanic, SkipClosed:
		return r
	default:
		return "unknown"
	}
}
