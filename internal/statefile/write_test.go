// SPDX-License-Identifier: MIT

package statefile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type snapshot struct {
	CurrentTime float64 `json:"current_time"`
	Buffering   bool    `json:"buffering"`
}

func readSnapshot(t *testing.T, path string) snapshot {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got snapshot
	require.NoError(t, json.Unmarshal(data, &got))
	return got
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	require.NoError(t, WriteJSON(context.Background(), path, snapshot{CurrentTime: 12.5}))
	assert.Equal(t, snapshot{CurrentTime: 12.5}, readSnapshot(t, path))

	// Overwrite replaces the whole file.
	require.NoError(t, WriteJSON(context.Background(), path, snapshot{Buffering: true}))
	assert.Equal(t, snapshot{Buffering: true}, readSnapshot(t, path))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteJSON_EncodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	err := WriteJSON(context.Background(), path, map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "failed write must not create the file")
}

func TestWriteJSON_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "state.json")
	assert.Error(t, WriteJSON(context.Background(), path, snapshot{}))
}

func TestWriter_Run(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "state.json")
	var n atomic.Int64
	w := &Writer{
		Path:     path,
		Interval: 10 * time.Millisecond,
		Snapshot: func() any { return snapshot{CurrentTime: float64(n.Add(1))} },
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool { return n.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	// The final write happens on shutdown.
	assert.Equal(t, float64(n.Load()), readSnapshot(t, path).CurrentTime)
}

func TestWriter_RunDisabled(t *testing.T) {
	w := &Writer{Snapshot: func() any { return nil }}
	assert.NoError(t, w.Run(context.Background()))
}
