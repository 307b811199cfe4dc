// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const minTickInterval = 10 * time.Millisecond

// Validate checks the effective configuration. All problems are reported
// together; each one wraps its sentinel error.
func Validate(cfg AppConfig) error {
	var errs []error

	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil || cfg.LogLevel == "" {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.LogLevel))
	}

	if cfg.Player.Segments <= 0 {
		errs = append(errs, fmt.Errorf("%w: player.segments=%d must be positive", ErrInvalidSegmentCount, cfg.Player.Segments))
	}
	if cfg.Player.TickInterval < minTickInterval {
		errs = append(errs, fmt.Errorf("%w: player.tickInterval=%s must be at least %s", ErrInvalidTickInterval, cfg.Player.TickInterval, minTickInterval))
	}
	if err := cfg.Player.Thresholds.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidThresholds, err))
	}

	switch cfg.Resume.Backend {
	case "", "sqlite", "memory":
	case "redis":
		if cfg.Resume.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("%w: redis backend requires resume.redis.addr", ErrInvalidResumeBackend))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q (supported: sqlite, memory, redis)", ErrInvalidResumeBackend, cfg.Resume.Backend))
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Exporter != "grpc" && cfg.Tracing.Exporter != "http" {
			errs = append(errs, fmt.Errorf("%w: exporter %q (supported: grpc, http)", ErrInvalidTracing, cfg.Tracing.Exporter))
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, fmt.Errorf("%w: endpoint is required", ErrInvalidTracing))
		}
	}
	if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
		errs = append(errs, fmt.Errorf("%w: samplingRate %g outside [0,1]", ErrInvalidTracing, cfg.Tracing.SamplingRate))
	}

	if cfg.Sim.Duration <= 0 {
		errs = append(errs, fmt.Errorf("%w: sim.duration must be positive", ErrInvalidSimulation))
	}
	if cfg.Sim.Bitrate <= 0 {
		errs = append(errs, fmt.Errorf("%w: sim.bitrate must be positive", ErrInvalidSimulation))
	}
	if cfg.Sim.Step <= 0 {
		errs = append(errs, fmt.Errorf("%w: sim.step must be positive", ErrInvalidSimulation))
	}
	if _, err := ParseBandwidthProfile(cfg.Sim.Bandwidth); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidSimulation, err))
	}

	return errors.Join(errs...)
}

// ParseBandwidthProfile parses a comma separated list of positive
// bits-per-second values.
func ParseBandwidthProfile(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("bandwidth %q is not a positive integer", part)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, errors.New("bandwidth profile is empty")
	}
	return out, nil
}
