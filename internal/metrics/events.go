// SPDX-License-Identifier: MIT

package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lionplayer_events_emitted_total",
		Help: "Player events dispatched through the event bus",
	}, []string{"event"})

	ListenerPanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lionplayer_listener_panics_total",
		Help: "Event listeners that panicked during dispatch",
	}, []string{"event"})

	HostNotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lionplayer_host_notifications_total",
		Help: "Lifecycle notifications received from the host media element",
	}, []string{"host_event"})

	MediaErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lionplayer_media_errors_total",
		Help: "Media playback errors reported by the host, by code",
	}, []string{"code"})

	ActivePlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lionplayer_active_players",
		Help: "Player instances constructed and not yet closed",
	})
)

// knownEvents mirrors the public event vocabulary to keep label cardinality bounded.
var knownEvents = map[string]struct{}{
	"loaddata": {}, "canplay": {}, "canplaythrough": {}, "play": {}, "pause": {},
	"ended": {}, "seeking": {}, "seeked": {}, "timeupdate": {}, "progress": {},
	"volumechange": {}, "error": {}, "ratechange": {}, "buffering": {}, "bufferfull": {},
	"resize": {}, "fullscreenchange": {}, "networkchange": {}, "themechange": {},
	"gesture": {}, "resume": {},
}

var knownHostEvents = map[string]struct{}{
	"loadstart": {}, "loadeddata": {}, "canplay": {}, "canplaythrough": {}, "play": {},
	"pause": {}, "ended": {}, "seeking": {}, "seeked": {}, "timeupdate": {},
	"progress": {}, "volumechange": {}, "ratechange": {}, "waiting": {}, "stalled": {},
	"suspend": {}, "error": {},
}

// IncEventEmitted records one dispatch of event.
func IncEventEmitted(event string) {
	EventsEmittedTotal.WithLabelValues(normalizeEventLabel(event)).Inc()
}

// IncListenerPanic records a recovered listener panic.
func IncListenerPanic(event string) {
	ListenerPanicsTotal.WithLabelValues(normalizeEventLabel(event)).Inc()
}

// IncHostNotification records one host lifecycle notification.
func IncHostNotification(hostEvent string) {
	label := strings.ToLower(strings.TrimSpace(hostEvent))
	if _, ok := knownHostEvents[label]; !ok {
		label = "unknown"
	}
	HostNotificationsTotal.WithLabelValues(label).Inc()
}

// IncMediaError records a host media error by its numeric code.
func IncMediaError(code int) {
	MediaErrorsTotal.WithLabelValues(mediaErrorCodeLabel(code)).Inc()
}

func normalizeEventLabel(event string) string {
	label := strings.ToLower(strings.TrimSpace(event))
	if _, ok := knownEvents[label]; ok {
		return label
	}
	return "unknown"
}

// mediaErrorCodeLabel maps the HTML MediaError codes onto stable labels.
func mediaErrorCodeLabel(code int) string {
	switch code {
	case 1:
		return "aborted"
	case 2:
		return "network"
	case 3:
		return "decode"
	case 4:
		return "src_not_supported"
	default:
		return "unknown"
	}
}
