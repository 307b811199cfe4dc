// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/MohamedMahfouzzzzz/lion-player/internal/buffer"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/playback"
)

// PlayerChecker reports the playback pipeline of one player.
type PlayerChecker struct {
	state func() playback.State
}

// NewPlayerChecker creates a checker over a state snapshot function.
func NewPlayerChecker(state func() playback.State) *PlayerChecker {
	return &PlayerChecker{state: state}
}

func (c *PlayerChecker) Name() string {
	return "player"
}

// Check is unhealthy on a media error and degraded while stalled or
// playing on a poor buffer.
func (c *PlayerChecker) Check(_ context.Context) CheckResult {
	st := c.state()

	if st.Error != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   st.Error.Message,
			Message: fmt.Sprintf("media error code %d", st.Error.Code),
		}
	}
	if st.Buffering {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("buffering (%.1fs ahead)", st.BufferAhead),
		}
	}
	if st.Playing && st.BufferHealth == buffer.TierPoor {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("buffer health poor (%.1fs ahead)", st.BufferAhead),
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("buffer health %s", st.BufferHealth),
	}
}

// PingChecker wraps a backend probe such as a store health check.
type PingChecker struct {
	name    string
	timeout time.Duration
	ping    func(ctx context.Context) error
}

// NewPingChecker creates a checker that is unhealthy when ping fails.
func NewPingChecker(name string, timeout time.Duration, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, timeout: timeout, ping: ping}
}

func (c *PingChecker) Name() string {
	return c.name
}

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.ping(ctx); err != nil {
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  err.Error(),
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: "reachable",
	}
}

// FileChecker checks that a periodically written file exists and is fresh.
type FileChecker struct {
	name   string
	path   string
	maxAge time.Duration
}

// NewFileChecker creates a checker for a file written at least every maxAge.
// A zero maxAge only checks existence.
func NewFileChecker(name, path string, maxAge time.Duration) *FileChecker {
	return &FileChecker{
		name:   name,
		path:   path,
		maxAge: maxAge,
	}
}

func (c *FileChecker) Name() string {
	return c.name
}

func (c *FileChecker) Check(_ context.Context) CheckResult {
	if c.path == "" {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "not configured (optional)",
		}
	}

	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			// Not written yet.
			return CheckResult{
				Status:  StatusDegraded,
				Error:   "file not found",
				Message: c.path,
			}
		}
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  err.Error(),
		}
	}

	if info.IsDir() {
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  "expected file, got directory",
		}
	}

	if c.maxAge > 0 && time.Since(info.ModTime()) > c.maxAge {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("file older than %s", c.maxAge),
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "file exists and is fresh",
	}
}
