// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ResumeSavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lionplayer_resume_saves_total",
		Help: "Playback position saves by outcome",
	}, []string{"outcome"})

	ResumeRestoresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lionplayer_resume_restores_total",
		Help: "Saved playback positions offered back to the host",
	})
)

// IncResumeSave records a position save.
func IncResumeSave(ok bool) {
	outcome := "failed"
	if ok {
		outcome = "ok"
	}
	ResumeSavesTotal.WithLabelValues(outcome).Inc()
}

// IncResumeRestore records a restored position.
func IncResumeRestore() {
	ResumeRestoresTotal.Inc()
}
