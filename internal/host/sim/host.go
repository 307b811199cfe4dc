// SPDX-License-Identifier: MIT

// Package sim is a deterministic media element. It downloads media at a
// scripted bandwidth and plays it back in fixed steps, raising the same
// notifications a browser media element would.
package sim

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/MohamedMahfouzzzzz/lion-player/internal/buffer"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/log"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/playback"
	"github.com/rs/zerolog"
)

// futureData is how much media must be buffered ahead before a stalled
// element resumes.
const futureData = 3.0

// ErrNotLoaded is returned for operations that need a loaded source.
var ErrNotLoaded = errors.New("sim: no source loaded")

// Config describes the simulated source and network.
type Config struct {
	// Duration of the media.
	Duration time.Duration
	// Bitrate of the media in bits per second.
	Bitrate int64
	// Bandwidth is cycled every BandwidthStep, in bits per second.
	Bandwidth     []int64
	BandwidthStep time.Duration
	Autoplay      bool
}

// Host is a simulated media element. It implements playback.Host.
// Notifications are delivered synchronously, outside the host lock, so
// subscribers may call back into the host.
type Host struct {
	mu  sync.Mutex
	cfg Config

	loaded       bool
	hasData      bool
	duration     float64
	current      float64
	head         float64 // download position
	ranges       []buffer.TimeRange
	elapsed      time.Duration
	paused       bool
	ended        bool
	waiting      bool
	seeking      bool
	suspended    bool
	canPlayFired bool
	volume       float64
	muted        bool
	rate         float64
	networkSt    playback.NetworkState
	readySt      playback.ReadyState
	lastErr      *playback.MediaError

	nextID int
	subs   map[playback.HostEvent]map[int]func()

	logger zerolog.Logger
}

var _ playback.Host = (*Host)(nil)

// New returns an empty element. Call Load to attach the source.
func New(cfg Config) *Host {
	return &Host{
		cfg:      cfg,
		duration: math.NaN(),
		paused:   true,
		volume:   1,
		rate:     1,
		subs:     make(map[playback.HostEvent]map[int]func()),
		logger:   log.WithComponent("sim"),
	}
}

// Subscribe registers fn for ev.
func (h *Host) Subscribe(ev playback.HostEvent, fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	if h.subs[ev] == nil {
		h.subs[ev] = make(map[int]func())
	}
	h.subs[ev][id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[ev], id)
	}
}

func (h *Host) BufferedRanges() ([]buffer.TimeRange, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]buffer.TimeRange(nil), h.ranges...), nil
}

func (h *Host) CurrentTime() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Duration is NaN until the source is loaded.
func (h *Host) Duration() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.duration
}

func (h *Host) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

func (h *Host) Muted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.muted
}

func (h *Host) PlaybackRate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rate
}

func (h *Host) NetworkState() playback.NetworkState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.networkSt
}

func (h *Host) ReadyState() playback.ReadyState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readySt
}

func (h *Host) LastError() *playback.MediaError {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastErr == nil {
		return nil
	}
	e := *h.lastErr
	return &e
}

// Paused reports whether playback is paused.
func (h *Host) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

// Load resets the element and starts downloading the source.
func (h *Host) Load() {
	h.mu.Lock()
	h.loaded = true
	h.hasData = false
	h.duration = h.cfg.Duration.Seconds()
	h.current = 0
	h.head = 0
	h.ranges = nil
	h.elapsed = 0
	h.paused = true
	h.ended = false
	h.waiting = false
	h.seeking = false
	h.suspended = false
	h.canPlayFired = false
	h.lastErr = nil
	h.networkSt = playback.NetworkLoading
	h.readySt = playback.HaveMetadata
	autoplay := h.cfg.Autoplay
	h.mu.Unlock()

	h.fire(playback.HostLoadStart)
	if autoplay {
		_ = h.Play()
	}
}

// Play starts or resumes playback. Playing from the end restarts at zero.
func (h *Host) Play() error {
	h.mu.Lock()
	if !h.loaded {
		h.mu.Unlock()
		return ErrNotLoaded
	}
	if !h.paused {
		h.mu.Unlock()
		return nil
	}
	var evs []playback.HostEvent
	if h.ended {
		h.ended = false
		h.current = 0
		evs = append(evs, playback.HostTimeUpdate)
	}
	h.paused = false
	evs = append(evs, playback.HostPlay)
	if h.readySt < playback.HaveFutureData {
		h.waiting = true
		h.canPlayFired = false
		evs = append(evs, playback.HostWaiting)
	}
	h.mu.Unlock()

	h.fire(evs...)
	return nil
}

// Pause pauses playback.
func (h *Host) Pause() {
	h.mu.Lock()
	if h.paused {
		h.mu.Unlock()
		return
	}
	h.paused = true
	h.waiting = false
	h.mu.Unlock()

	h.fire(playback.HostPause)
}

// Seek moves the playhead to position, clamped to the media. A seek into
// unbuffered media restarts the download there and completes once data
// arrives.
func (h *Host) Seek(position float64) {
	h.mu.Lock()
	if !h.loaded || math.IsNaN(position) {
		h.mu.Unlock()
		return
	}
	position = math.Max(0, math.Min(position, h.duration))
	h.current = position
	h.ended = false
	h.seeking = true
	evs := []playback.HostEvent{playback.HostSeeking}
	if end, ok := h.bufferedEnd(position); ok {
		h.resumeDownloadLocked(end)
		evs = append(evs, h.finishSeekLocked()...)
	} else {
		h.canPlayFired = false
		h.resumeDownloadLocked(position)
		h.readySt = playback.HaveMetadata
	}
	h.mu.Unlock()

	h.fire(evs...)
}

// SetVolume changes volume and mute state.
func (h *Host) SetVolume(volume float64, muted bool) {
	h.mu.Lock()
	volume = math.Max(0, math.Min(volume, 1))
	if h.volume == volume && h.muted == muted {
		h.mu.Unlock()
		return
	}
	h.volume = volume
	h.muted = muted
	h.mu.Unlock()

	h.fire(playback.HostVolumeChange)
}

// SetPlaybackRate changes the playback speed. Non-positive rates are ignored.
func (h *Host) SetPlaybackRate(rate float64) {
	h.mu.Lock()
	if rate <= 0 || math.IsNaN(rate) || h.rate == rate {
		h.mu.Unlock()
		return
	}
	h.rate = rate
	h.mu.Unlock()

	h.fire(playback.HostRateChange)
}

// Fail aborts the source with a media error.
func (h *Host) Fail(code int, message string) {
	h.mu.Lock()
	h.lastErr = &playback.MediaError{Code: code, Message: message}
	h.networkSt = playback.NetworkNoSource
	h.loaded = false
	h.paused = true
	h.waiting = false
	h.mu.Unlock()

	h.fire(playback.HostError)
}

// Advance moves the simulation forward by dt: it downloads, plays and
// raises the resulting notifications.
func (h *Host) Advance(dt time.Duration) {
	if dt <= 0 {
		return
	}
	h.mu.Lock()
	if !h.loaded {
		h.mu.Unlock()
		return
	}
	var evs []playback.HostEvent
	evs = append(evs, h.downloadLocked(dt)...)
	evs = append(evs, h.playLocked(dt)...)
	h.elapsed += dt
	h.mu.Unlock()

	h.fire(evs...)
}

// Run advances the simulation every step until ctx is done.
func (h *Host) Run(ctx context.Context, step time.Duration) error {
	ticker := time.NewTicker(step)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.Advance(step)
		}
	}
}

func (h *Host) bandwidthLocked() int64 {
	if len(h.cfg.Bandwidth) == 0 {
		return 0
	}
	idx := 0
	if h.cfg.BandwidthStep > 0 {
		idx = int(h.elapsed/h.cfg.BandwidthStep) % len(h.cfg.Bandwidth)
	}
	return h.cfg.Bandwidth[idx]
}

func (h *Host) downloadLocked(dt time.Duration) []playback.HostEvent {
	if h.suspended || h.networkSt != playback.NetworkLoading || h.cfg.Bitrate <= 0 {
		return nil
	}
	var evs []playback.HostEvent

	seconds := float64(h.bandwidthLocked()) * dt.Seconds() / float64(h.cfg.Bitrate)
	if seconds > 0 {
		to := math.Min(h.duration, h.head+seconds)
		h.addRangeLocked(h.head, to)
		// Skip media that is already buffered.
		if end, ok := h.bufferedEnd(to); ok {
			to = end
		}
		h.head = to
		evs = append(evs, playback.HostProgress)

		if !h.hasData {
			h.hasData = true
			evs = append(evs, playback.HostLoadedData)
		}
	}

	if h.seeking {
		if _, ok := h.bufferedEnd(h.current); ok {
			evs = append(evs, h.finishSeekLocked()...)
		}
	} else {
		evs = append(evs, h.updateReadinessLocked()...)
	}

	if h.head >= h.duration {
		h.suspended = true
		h.networkSt = playback.NetworkIdle
		evs = append(evs, playback.HostSuspend)
	}
	return evs
}

func (h *Host) playLocked(dt time.Duration) []playback.HostEvent {
	if h.paused || h.ended || h.seeking || h.waiting {
		return nil
	}
	end, ok := h.bufferedEnd(h.current)
	if !ok {
		return h.stallLocked(h.current)
	}

	next := h.current + dt.Seconds()*h.rate
	if next >= h.duration && end >= h.duration {
		h.current = h.duration
		h.paused = true
		h.ended = true
		return []playback.HostEvent{playback.HostTimeUpdate, playback.HostPause, playback.HostEnded}
	}
	if next >= end {
		h.current = end
		return append([]playback.HostEvent{playback.HostTimeUpdate}, h.stallLocked(end)...)
	}
	h.current = next
	return []playback.HostEvent{playback.HostTimeUpdate}
}

// stallLocked enters the waiting state and makes sure media after at is
// being downloaded.
func (h *Host) stallLocked(at float64) []playback.HostEvent {
	h.waiting = true
	h.canPlayFired = false
	h.readySt = playback.HaveCurrentData
	if h.head < at || h.suspended {
		h.resumeDownloadLocked(at)
	}
	return []playback.HostEvent{playback.HostWaiting}
}

func (h *Host) resumeDownloadLocked(from float64) {
	h.head = from
	if from < h.duration && h.suspended {
		h.suspended = false
		h.networkSt = playback.NetworkLoading
	}
}

func (h *Host) finishSeekLocked() []playback.HostEvent {
	h.seeking = false
	evs := []playback.HostEvent{playback.HostSeeked, playback.HostTimeUpdate}
	return append(evs, h.updateReadinessLocked()...)
}

// updateReadinessLocked derives the ready state from the data buffered at
// the playhead and raises canplay once per data run.
func (h *Host) updateReadinessLocked() []playback.HostEvent {
	end, ok := h.bufferedEnd(h.current)
	switch {
	case !ok:
		h.readySt = playback.HaveMetadata
	case end >= h.duration:
		h.readySt = playback.HaveEnoughData
	case end-h.current >= futureData:
		h.readySt = playback.HaveFutureData
	default:
		h.readySt = playback.HaveCurrentData
	}
	if h.readySt < playback.HaveFutureData || h.canPlayFired {
		return nil
	}
	h.canPlayFired = true
	h.waiting = false
	if h.readySt == playback.HaveEnoughData {
		return []playback.HostEvent{playback.HostCanPlay, playback.HostCanPlayThrough}
	}
	return []playback.HostEvent{playback.HostCanPlay}
}

func (h *Host) aheadLocked() float64 {
	end, ok := h.bufferedEnd(h.current)
	if !ok {
		return 0
	}
	return end - h.current
}

// bufferedEnd returns the end of the range containing t.
func (h *Host) bufferedEnd(t float64) (float64, bool) {
	for _, r := range h.ranges {
		if t >= r.Start && t <= r.End {
			return r.End, true
		}
	}
	return 0, false
}

func (h *Host) addRangeLocked(start, end float64) {
	if end <= start {
		return
	}
	h.ranges = append(h.ranges, buffer.TimeRange{Start: start, End: end})
	sort.Slice(h.ranges, func(i, j int) bool { return h.ranges[i].Start < h.ranges[j].Start })

	merged := h.ranges[:1]
	for _, r := range h.ranges[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			last.End = math.Max(last.End, r.End)
			continue
		}
		merged = append(merged, r)
	}
	h.ranges = merged
}

// fire delivers evs in order to the current subscribers.
func (h *Host) fire(evs ...playback.HostEvent) {
	if len(evs) == 0 {
		return
	}
	for _, ev := range evs {
		h.mu.Lock()
		fns := make([]func(), 0, len(h.subs[ev]))
		ids := make([]int, 0, len(h.subs[ev]))
		for id := range h.subs[ev] {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			fns = append(fns, h.subs[ev][id])
		}
		h.mu.Unlock()

		h.logger.Trace().Str(log.FieldHostEvent, string(ev)).Msg("host notification")
		for _, fn := range fns {
			fn()
		}
	}
}
