// SPDX-License-Identifier: MIT

package resume

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MohamedMahfouzzzzz/lion-player/internal/eventbus"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/log"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/playback"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seekRecorder struct {
	positions []float64
}

func (s *seekRecorder) Seek(p float64) { s.positions = append(s.positions, p) }

type failingStore struct {
	*MemoryStore
}

func (failingStore) Put(context.Context, string, string, *State) error {
	return errors.New("disk full")
}

func newTracker(t *testing.T, store Store) (*Tracker, *eventbus.Bus, *seekRecorder) {
	t.Helper()
	bus := eventbus.New()
	seeker := &seekRecorder{}
	tr := NewTracker(store, bus, seeker, TrackerConfig{Profile: "alice", SaveInterval: time.Hour})
	tr.Attach()
	t.Cleanup(tr.Close)
	return tr, bus, seeker
}

func TestTracker_RestoresOnFirstLoadData(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "alice", "movie", &State{Position: 120, Duration: 600}))
	tr, bus, seeker := newTracker(t, store)

	var resumed []Resumed
	bus.On(eventbus.Resume, func(ev eventbus.Event) { resumed = append(resumed, ev.Payload.(Resumed)) })

	tr.SetMedia("movie")
	bus.Emit(eventbus.LoadData, nil)
	bus.Emit(eventbus.LoadData, playback.LoadData{Duration: 600})
	bus.Emit(eventbus.LoadData, playback.LoadData{Duration: 600})

	require.Len(t, resumed, 1)
	assert.Equal(t, Resumed{MediaID: "movie", Position: 120, Duration: 600}, resumed[0])
	assert.Equal(t, []float64{120}, seeker.positions)
}

func TestTracker_SkipsIneligiblePositions(t *testing.T) {
	tests := []struct {
		name  string
		state *State
	}{
		{name: "nothing saved"},
		{name: "finished", state: &State{Position: 300, Duration: 600, Finished: true}},
		{name: "too early", state: &State{Position: 2, Duration: 600}},
		{name: "near the end", state: &State{Position: 595, Duration: 600}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			if tt.state != nil {
				require.NoError(t, store.Put(context.Background(), "alice", "movie", tt.state))
			}
			tr, bus, seeker := newTracker(t, store)
			emitted := 0
			bus.On(eventbus.Resume, func(eventbus.Event) { emitted++ })

			tr.SetMedia("movie")
			bus.Emit(eventbus.LoadData, playback.LoadData{Duration: 600})

			assert.Zero(t, emitted)
			assert.Empty(t, seeker.positions)
		})
	}
}

func TestTracker_TimeUpdateThrottled(t *testing.T) {
	store := NewMemoryStore()
	tr, bus, _ := newTracker(t, store)
	tr.SetMedia("movie")

	bus.Emit(eventbus.TimeUpdate, playback.Position{CurrentTime: 10, Duration: 600})
	bus.Emit(eventbus.TimeUpdate, playback.Position{CurrentTime: 11, Duration: 600})

	got, err := store.Get(context.Background(), "alice", "movie")
	require.NoError(t, err)
	require.NotNil(t, got)
	// The hour-long interval lets only the first update through.
	assert.Equal(t, 10.0, got.Position)
}

func TestTracker_PauseAndEndedAlwaysSave(t *testing.T) {
	store := NewMemoryStore()
	tr, bus, _ := newTracker(t, store)
	tr.SetMedia("movie")

	bus.Emit(eventbus.TimeUpdate, playback.Position{CurrentTime: 10, Duration: 600})
	bus.Emit(eventbus.Pause, playback.Position{CurrentTime: 30, Duration: 600})
	got, _ := store.Get(context.Background(), "alice", "movie")
	assert.Equal(t, 30.0, got.Position)
	assert.False(t, got.Finished)

	bus.Emit(eventbus.Ended, playback.Position{CurrentTime: 600, Duration: 600})
	got, _ = store.Get(context.Background(), "alice", "movie")
	assert.True(t, got.Finished)
}

func TestTracker_NoMediaNoSave(t *testing.T) {
	store := NewMemoryStore()
	_, bus, _ := newTracker(t, store)

	bus.Emit(eventbus.Pause, playback.Position{CurrentTime: 30})
	got, err := store.Get(context.Background(), "alice", "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTracker_SaveFailureDoesNotPanic(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore()}
	tr, bus, _ := newTracker(t, store)
	tr.SetMedia("movie")

	assert.NotPanics(t, func() {
		bus.Emit(eventbus.Pause, playback.Position{CurrentTime: 30})
	})
}

func TestTracker_UsesConfiguredLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).With().Str(log.FieldPlayerID, "p-9").Logger()
	bus := eventbus.New()
	tr := NewTracker(&failingStore{MemoryStore: NewMemoryStore()}, bus, &seekRecorder{},
		TrackerConfig{Profile: "alice", Logger: &logger})
	tr.Attach()
	t.Cleanup(tr.Close)
	tr.SetMedia("movie")

	bus.Emit(eventbus.Pause, playback.Position{CurrentTime: 30})

	assert.Contains(t, buf.String(), `"player_id":"p-9"`)
	assert.Contains(t, buf.String(), "disk full")
}

func TestTracker_CloseUnsubscribes(t *testing.T) {
	store := NewMemoryStore()
	tr, bus, _ := newTracker(t, store)
	tr.SetMedia("movie")
	tr.Close()

	bus.Emit(eventbus.Pause, playback.Position{CurrentTime: 30})
	got, _ := store.Get(context.Background(), "alice", "movie")
	assert.Nil(t, got)
	assert.Zero(t, bus.Count(eventbus.LoadData))
}
