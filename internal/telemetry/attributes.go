// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the player.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	// Player attributes
	PlayerIDKey = "player.id"
	MediaIDKey  = "player.media_id"

	// Host notification attributes
	HostEventKey    = "host.event"
	CurrentTimeKey  = "media.current_time"
	DurationKey     = "media.duration"
	NetworkStateKey = "media.network_state"
	ReadyStateKey   = "media.ready_state"

	// Buffer attributes
	BufferTierKey      = "buffer.tier"
	BufferAheadKey     = "buffer.ahead_seconds"
	BufferBufferingKey = "buffer.buffering"

	// Error attributes
	ErrorKey          = "error"
	ErrorTypeKey      = "error.type"
	MediaErrorCodeKey = "media.error_code"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// HostEventAttributes describes a host notification and the playhead at the
// time it was handled.
func HostEventAttributes(event string, currentTime, duration float64, networkState, readyState int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HostEventKey, event),
		attribute.Float64(CurrentTimeKey, currentTime),
		attribute.Float64(DurationKey, duration),
		attribute.Int(NetworkStateKey, networkState),
		attribute.Int(ReadyStateKey, readyState),
	}
}

// PlayerAttributes identifies the player and, when known, the loaded media.
func PlayerAttributes(playerID, mediaID string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if playerID != "" {
		attrs = append(attrs, attribute.String(PlayerIDKey, playerID))
	}
	if mediaID != "" {
		attrs = append(attrs, attribute.String(MediaIDKey, mediaID))
	}
	return attrs
}

// BufferAttributes creates buffer-health span attributes.
func BufferAttributes(tier string, aheadSeconds float64, buffering bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(BufferTierKey, tier),
		attribute.Float64(BufferAheadKey, aheadSeconds),
		attribute.Bool(BufferBufferingKey, buffering),
	}
}

// MediaErrorAttributes creates media-error span attributes.
func MediaErrorAttributes(code int, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
		attribute.Int(MediaErrorCodeKey, code),
	}
}
