// SPDX-License-Identifier: MIT

// Package statefile dumps player state snapshots to disk for external
// tooling. Every write is atomic and durable.
package statefile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	xglog "github.com/MohamedMahfouzzzzz/lion-player/internal/log"
	"github.com/google/renameio/v2"
)

// WriteJSON writes v as indented JSON to path.
// renameio fsyncs before the rename so readers never see a partial file.
func WriteJSON(ctx context.Context, path string, v any) error {
	logger := xglog.WithComponentFromContext(ctx, "statefile")

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending state file: %w", err)
	}
	defer func() {
		// No-op after a successful commit.
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending state file")
		}
	}()

	enc := json.NewEncoder(pendingFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace state file: %w", err)
	}
	return nil
}

// Writer periodically persists the value returned by Snapshot.
type Writer struct {
	Path     string
	Interval time.Duration
	Snapshot func() any
}

// Run writes a snapshot every Interval until ctx is done, then writes a
// final one. Write failures are logged and do not stop the loop.
func (w *Writer) Run(ctx context.Context) error {
	if w.Path == "" || w.Interval <= 0 {
		return nil
	}
	logger := xglog.WithComponentFromContext(ctx, "statefile")

	write := func(ctx context.Context) {
		if err := WriteJSON(ctx, w.Path, w.Snapshot()); err != nil {
			logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "statefile.write_failed").
				Str(xglog.FieldPath, w.Path).
				Msg("failed to write state snapshot")
		}
	}

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			write(context.WithoutCancel(ctx))
			return nil
		case <-ticker.C:
			write(ctx)
		}
	}
}
