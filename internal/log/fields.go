// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldPlayerID      = "player_id"
	FieldMediaID       = "media_id"
	FieldCorrelationID = "correlation_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Playback fields
	FieldHostEvent   = "host_event"
	FieldTier        = "tier"
	FieldAhead       = "ahead_seconds"
	FieldCurrentTime = "current_time"
	FieldDuration    = "duration"
	FieldCause       = "cause"
	FieldErrorCode   = "error_code"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path fields
	FieldPath = "path"
)
