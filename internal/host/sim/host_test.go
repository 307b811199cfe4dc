// SPDX-License-Identifier: MIT

package sim

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MohamedMahfouzzzzz/lion-player/internal/buffer"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/playback"
)

// recorder captures every notification in delivery order.
type recorder struct {
	mu  sync.Mutex
	evs []playback.HostEvent
}

func record(h *Host) *recorder {
	r := &recorder{}
	for _, ev := range playback.HostEvents() {
		ev := ev
		h.Subscribe(ev, func() {
			r.mu.Lock()
			r.evs = append(r.evs, ev)
			r.mu.Unlock()
		})
	}
	return r
}

// take returns and clears the recorded notifications.
func (r *recorder) take() []playback.HostEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.evs
	r.evs = nil
	return out
}

func steadyConfig() Config {
	// Two media seconds per wall second.
	return Config{
		Duration:  10 * time.Second,
		Bitrate:   1_000_000,
		Bandwidth: []int64{2_000_000},
	}
}

func TestHost_DurationUnknownBeforeLoad(t *testing.T) {
	h := New(steadyConfig())
	assert.True(t, math.IsNaN(h.Duration()))
	assert.Equal(t, playback.NetworkEmpty, h.NetworkState())
	assert.ErrorIs(t, h.Play(), ErrNotLoaded)

	h.Load()
	assert.Equal(t, 10.0, h.Duration())
	assert.Equal(t, playback.NetworkLoading, h.NetworkState())
}

func TestHost_LoadAndPlayThrough(t *testing.T) {
	h := New(steadyConfig())
	r := record(h)

	h.Load()
	assert.Equal(t, []playback.HostEvent{playback.HostLoadStart}, r.take())

	h.Advance(time.Second)
	assert.Equal(t, []playback.HostEvent{playback.HostProgress, playback.HostLoadedData}, r.take())
	assert.Equal(t, playback.HaveCurrentData, h.ReadyState())

	h.Advance(time.Second)
	assert.Equal(t, []playback.HostEvent{playback.HostProgress, playback.HostCanPlay}, r.take())
	assert.Equal(t, playback.HaveFutureData, h.ReadyState())

	require.NoError(t, h.Play())
	assert.Equal(t, []playback.HostEvent{playback.HostPlay}, r.take())

	h.Advance(time.Second)
	assert.Equal(t, []playback.HostEvent{playback.HostProgress, playback.HostTimeUpdate}, r.take())
	assert.Equal(t, 1.0, h.CurrentTime())

	h.Advance(time.Second)
	h.Advance(time.Second)
	evs := r.take()
	assert.Contains(t, evs, playback.HostSuspend, "download completes at the media end")
	assert.Equal(t, playback.NetworkIdle, h.NetworkState())
	assert.Equal(t, playback.HaveEnoughData, h.ReadyState())

	ranges, err := h.BufferedRanges()
	require.NoError(t, err)
	assert.Equal(t, []buffer.TimeRange{{Start: 0, End: 10}}, ranges)

	for i := 0; i < 6; i++ {
		h.Advance(time.Second)
	}
	r.take()
	h.Advance(time.Second)
	assert.Equal(t, []playback.HostEvent{playback.HostTimeUpdate, playback.HostPause, playback.HostEnded}, r.take())
	assert.Equal(t, 10.0, h.CurrentTime())
	assert.True(t, h.Paused())

	// Playing again restarts from zero.
	require.NoError(t, h.Play())
	assert.Equal(t, []playback.HostEvent{playback.HostTimeUpdate, playback.HostPlay}, r.take())
	assert.Zero(t, h.CurrentTime())
}

func TestHost_StallsOnSlowNetwork(t *testing.T) {
	cfg := steadyConfig()
	cfg.Bandwidth = []int64{500_000}
	cfg.Autoplay = true
	h := New(cfg)
	r := record(h)

	h.Load()
	assert.Equal(t, []playback.HostEvent{playback.HostLoadStart, playback.HostPlay, playback.HostWaiting}, r.take())

	for i := 0; i < 5; i++ {
		h.Advance(time.Second)
	}
	assert.NotContains(t, r.take(), playback.HostCanPlay)
	assert.Zero(t, h.CurrentTime(), "no playback while waiting")

	h.Advance(time.Second)
	assert.Equal(t, []playback.HostEvent{playback.HostProgress, playback.HostCanPlay, playback.HostTimeUpdate}, r.take())

	// Playback outruns the download and stalls at the buffered end.
	var evs []playback.HostEvent
	for i := 0; i < 4; i++ {
		h.Advance(time.Second)
		evs = append(evs, r.take()...)
	}
	assert.Equal(t, playback.HostWaiting, evs[len(evs)-1])
	assert.Equal(t, 5.0, h.CurrentTime())
	assert.Equal(t, playback.HaveCurrentData, h.ReadyState())
}

func TestHost_SeekIntoBufferedAndUnbuffered(t *testing.T) {
	h := New(steadyConfig())
	h.Load()
	h.Advance(time.Second)
	h.Advance(time.Second)
	r := record(h)

	h.Seek(2)
	assert.Equal(t, []playback.HostEvent{playback.HostSeeking, playback.HostSeeked, playback.HostTimeUpdate}, r.take())

	h.Seek(8)
	assert.Equal(t, []playback.HostEvent{playback.HostSeeking}, r.take())
	assert.Equal(t, playback.HaveMetadata, h.ReadyState())

	h.Advance(time.Second)
	assert.Equal(t, []playback.HostEvent{
		playback.HostProgress,
		playback.HostSeeked,
		playback.HostTimeUpdate,
		playback.HostCanPlay,
		playback.HostCanPlayThrough,
		playback.HostSuspend,
	}, r.take())

	ranges, err := h.BufferedRanges()
	require.NoError(t, err)
	assert.Equal(t, []buffer.TimeRange{{Start: 0, End: 4}, {Start: 8, End: 10}}, ranges)
}

func TestHost_SeekClampsAndIgnoresNaN(t *testing.T) {
	h := New(steadyConfig())
	h.Seek(3)
	assert.Zero(t, h.CurrentTime(), "seek before load is ignored")

	h.Load()
	h.Seek(99)
	assert.Equal(t, 10.0, h.CurrentTime())
	h.Seek(-5)
	assert.Zero(t, h.CurrentTime())
	h.Seek(math.NaN())
	assert.Zero(t, h.CurrentTime())
}

func TestHost_BandwidthProfileCycles(t *testing.T) {
	cfg := steadyConfig()
	cfg.Bandwidth = []int64{1_000_000, 3_000_000}
	cfg.BandwidthStep = time.Second
	h := New(cfg)
	h.Load()

	h.Advance(time.Second)
	ranges, _ := h.BufferedRanges()
	assert.Equal(t, 1.0, ranges[0].End)

	h.Advance(time.Second)
	ranges, _ = h.BufferedRanges()
	assert.Equal(t, 4.0, ranges[0].End)

	h.Advance(time.Second)
	ranges, _ = h.BufferedRanges()
	assert.Equal(t, 5.0, ranges[0].End)
}

func TestHost_VolumeAndRate(t *testing.T) {
	h := New(steadyConfig())
	r := record(h)

	h.SetVolume(0.5, false)
	h.SetVolume(0.5, false) // unchanged
	h.SetVolume(2, true)
	assert.Equal(t, []playback.HostEvent{playback.HostVolumeChange, playback.HostVolumeChange}, r.take())
	assert.Equal(t, 1.0, h.Volume())
	assert.True(t, h.Muted())

	h.SetPlaybackRate(2)
	h.SetPlaybackRate(0)
	h.SetPlaybackRate(math.NaN())
	assert.Equal(t, []playback.HostEvent{playback.HostRateChange}, r.take())
	assert.Equal(t, 2.0, h.PlaybackRate())
}

func TestHost_Fail(t *testing.T) {
	h := New(steadyConfig())
	h.Load()
	require.NoError(t, h.Play())
	r := record(h)

	h.Fail(playback.MediaErrNetwork, "")
	assert.Equal(t, []playback.HostEvent{playback.HostError}, r.take())
	assert.Equal(t, &playback.MediaError{Code: playback.MediaErrNetwork}, h.LastError())
	assert.Equal(t, playback.NetworkNoSource, h.NetworkState())

	h.Advance(time.Second)
	assert.Empty(t, r.take(), "a failed element stays silent")

	h.Load()
	assert.Nil(t, h.LastError(), "load clears the error")
}

func TestHost_Unsubscribe(t *testing.T) {
	h := New(steadyConfig())
	calls := 0
	unsub := h.Subscribe(playback.HostLoadStart, func() { calls++ })

	h.Load()
	unsub()
	h.Load()
	assert.Equal(t, 1, calls)
}

func TestHost_SubscriberMayCallBack(t *testing.T) {
	h := New(steadyConfig())
	h.Subscribe(playback.HostLoadedData, func() { h.Seek(1) })
	r := record(h)

	h.Load()
	done := make(chan struct{})
	go func() {
		h.Advance(time.Second)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("re-entrant call deadlocked")
	}
	assert.Contains(t, r.take(), playback.HostSeeked)
	assert.Equal(t, 1.0, h.CurrentTime())
}

func TestHost_Run(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := New(steadyConfig())
	h.Load()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, 5*time.Millisecond) }()

	assert.Eventually(t, func() bool {
		ranges, _ := h.BufferedRanges()
		return len(ranges) == 1 && ranges[0].End > 0
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
