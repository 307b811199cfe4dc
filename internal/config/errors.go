// SPDX-License-Identifier: MIT

package config

import "errors"

var (
	// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
	// Use errors.Is(err, ErrUnknownConfigField) instead of string matching.
	ErrUnknownConfigField = errors.New("unknown config field")

	// ErrInvalidSegmentCount is returned when player.segments is not positive.
	ErrInvalidSegmentCount = errors.New("invalid segment count")

	// ErrInvalidTickInterval is returned for non-positive or sub-millisecond tick intervals.
	ErrInvalidTickInterval = errors.New("invalid tick interval")

	// ErrInvalidThresholds wraps buffer threshold ordering failures.
	ErrInvalidThresholds = errors.New("invalid buffer thresholds")

	// ErrInvalidLogLevel is returned for levels zerolog cannot parse.
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrInvalidResumeBackend is returned for unsupported resume backends.
	ErrInvalidResumeBackend = errors.New("invalid resume backend")

	// ErrInvalidTracing is returned for inconsistent tracing settings.
	ErrInvalidTracing = errors.New("invalid tracing config")

	// ErrInvalidSimulation is returned for simulator settings that cannot produce media.
	ErrInvalidSimulation = errors.New("invalid simulation config")
)
