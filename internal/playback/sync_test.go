// SPDX-License-Identifier: MIT

package playback

import (
	"math"
	"sync"
	"testing"

	"github.com/MohamedMahfouzzzzz/lion-player/internal/buffer"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	mu       sync.Mutex
	ranges   []buffer.TimeRange
	current  float64
	duration float64
	volume   float64
	muted    bool
	rate     float64
	network  NetworkState
	ready    ReadyState
	lastErr  *MediaError
	nextID   int
	subs     map[HostEvent]map[int]func()
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		duration: 100,
		volume:   1,
		rate:     1,
		subs:     make(map[HostEvent]map[int]func()),
	}
}

func (h *fakeHost) BufferedRanges() ([]buffer.TimeRange, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]buffer.TimeRange(nil), h.ranges...), nil
}
func (h *fakeHost) CurrentTime() float64       { h.mu.Lock(); defer h.mu.Unlock(); return h.current }
func (h *fakeHost) Duration() float64          { h.mu.Lock(); defer h.mu.Unlock(); return h.duration }
func (h *fakeHost) Volume() float64            { h.mu.Lock(); defer h.mu.Unlock(); return h.volume }
func (h *fakeHost) Muted() bool                { h.mu.Lock(); defer h.mu.Unlock(); return h.muted }
func (h *fakeHost) PlaybackRate() float64      { h.mu.Lock(); defer h.mu.Unlock(); return h.rate }
func (h *fakeHost) NetworkState() NetworkState { h.mu.Lock(); defer h.mu.Unlock(); return h.network }
func (h *fakeHost) ReadyState() ReadyState     { h.mu.Lock(); defer h.mu.Unlock(); return h.ready }
func (h *fakeHost) LastError() *MediaError     { h.mu.Lock(); defer h.mu.Unlock(); return h.lastErr }

func (h *fakeHost) Subscribe(ev HostEvent, fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
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

func (h *fakeHost) fire(ev HostEvent) {
	h.mu.Lock()
	var fns []func()
	for _, fn := range h.subs[ev] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (h *fakeHost) subscriptions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range h.subs {
		n += len(m)
	}
	return n
}

type spyView struct {
	NopView
	mu    sync.Mutex
	calls map[string]int
	order []string
	last  map[string]any
}

func newSpyView() *spyView {
	return &spyView{calls: map[string]int{}, last: map[string]any{}}
}

func (v *spyView) record(name string, arg any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls[name]++
	v.order = append(v.order, name)
	v.last[name] = arg
}

func (v *spyView) total() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.order)
}

func (v *spyView) ShowLoading(on bool)                   { v.record("ShowLoading", on) }
func (v *spyView) ShowSeeking(on bool)                   { v.record("ShowSeeking", on) }
func (v *spyView) ShowBuffering(on bool)                 { v.record("ShowBuffering", on) }
func (v *spyView) ShowError(msg string)                  { v.record("ShowError", msg) }
func (v *spyView) RefreshLoaded(p float64)               { v.record("RefreshLoaded", p) }
func (v *spyView) RefreshTime(c, d float64)              { v.record("RefreshTime", c) }
func (v *spyView) RefreshProgress(p float64)             { v.record("RefreshProgress", p) }
func (v *spyView) RefreshPlayIcon(playing bool)          { v.record("RefreshPlayIcon", playing) }
func (v *spyView) RefreshVolumeIcon(vol float64, m bool) { v.record("RefreshVolumeIcon", m) }
func (v *spyView) RefreshRate(r float64)                 { v.record("RefreshRate", r) }
func (v *spyView) RefreshHealth(t buffer.Tier)           { v.record("RefreshHealth", t) }
func (v *spyView) RenderSegments(s []buffer.Segment)     { v.record("RenderSegments", len(s)) }

type harness struct {
	host *fakeHost
	bus  *eventbus.Bus
	view *spyView
	mon  *buffer.Monitor
	sync *Sync
	got  []eventbus.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{host: newFakeHost(), bus: eventbus.New(), view: newSpyView()}
	h.sync = NewSync(h.host, h.bus, nil, Options{View: h.view, SegmentCount: 10})
	h.mon = buffer.NewMonitor(h.host, buffer.Options{
		SegmentCount: 10,
		Playing:      h.sync.Playing,
		Emitter:      h.bus,
	})
	h.sync.buf = h.mon
	for _, n := range eventbus.Names() {
		h.bus.On(n, func(ev eventbus.Event) { h.got = append(h.got, ev) })
	}
	h.sync.Attach()
	return h
}

func (h *harness) names() []eventbus.Name {
	out := make([]eventbus.Name, 0, len(h.got))
	for _, ev := range h.got {
		out = append(out, ev.Name)
	}
	return out
}

func TestSync_PlayEmitsOnceAndRefreshesIconOnce(t *testing.T) {
	h := newHarness(t)

	h.host.fire(HostPlay)

	st := h.sync.State()
	assert.True(t, st.Playing)
	assert.False(t, st.Paused)
	assert.False(t, st.Ended)
	assert.Equal(t, []eventbus.Name{eventbus.Play}, h.names())
	assert.Equal(t, 1, h.view.calls["RefreshPlayIcon"])
	assert.Equal(t, true, h.view.last["RefreshPlayIcon"])
}

func TestSync_InitialStatePaused(t *testing.T) {
	h := newHarness(t)
	st := h.sync.State()
	assert.True(t, st.Paused)
	assert.False(t, st.Playing)
	assert.Len(t, st.Segments, 10)
}

func TestSync_PlayingPausedExclusive(t *testing.T) {
	h := newHarness(t)
	for _, ev := range []HostEvent{HostPlay, HostPause, HostPlay, HostEnded, HostPlay} {
		h.host.fire(ev)
		st := h.sync.State()
		assert.NotEqual(t, st.Playing, st.Paused, "after %s", ev)
		if st.Ended {
			assert.True(t, st.Paused)
		}
	}
}

func TestSync_HandlerTable(t *testing.T) {
	tests := []struct {
		ev    HostEvent
		setup func(*fakeHost)
		emit  eventbus.Name
		view  []string
		check func(*testing.T, State)
	}{
		{
			ev: HostLoadStart, emit: eventbus.LoadData,
			view:  []string{"ShowLoading", "RefreshLoaded"},
			check: func(t *testing.T, s State) { assert.True(t, s.Loading); assert.Zero(t, s.LoadedPercent) },
		},
		{
			ev: HostLoadedData, emit: eventbus.LoadData,
			setup: func(h *fakeHost) { h.duration = 42; h.ready = HaveCurrentData },
			view:  []string{"RefreshTime"},
			check: func(t *testing.T, s State) {
				assert.Equal(t, 42.0, s.Duration)
				assert.Equal(t, HaveCurrentData, s.ReadyState)
			},
		},
		{
			ev: HostCanPlay, emit: eventbus.CanPlay,
			view:  []string{"ShowLoading"},
			check: func(t *testing.T, s State) { assert.False(t, s.Loading) },
		},
		{
			ev: HostCanPlayThrough, emit: eventbus.CanPlayThrough,
			view: []string{"ShowLoading"},
		},
		{
			ev: HostPause, emit: eventbus.Pause,
			setup: func(h *fakeHost) { h.current = 17 },
			view:  []string{"RefreshPlayIcon"},
			check: func(t *testing.T, s State) { assert.True(t, s.Paused); assert.Equal(t, 17.0, s.CurrentTime) },
		},
		{
			ev: HostEnded, emit: eventbus.Ended,
			view:  []string{"RefreshPlayIcon"},
			check: func(t *testing.T, s State) { assert.True(t, s.Ended); assert.True(t, s.Paused) },
		},
		{
			ev: HostSeeking, emit: eventbus.Seeking,
			view:  []string{"ShowSeeking"},
			check: func(t *testing.T, s State) { assert.True(t, s.Seeking) },
		},
		{
			ev: HostSeeked, emit: eventbus.Seeked,
			view:  []string{"ShowSeeking", "RefreshTime"},
			check: func(t *testing.T, s State) { assert.False(t, s.Seeking) },
		},
		{
			ev: HostTimeUpdate, emit: eventbus.TimeUpdate,
			setup: func(h *fakeHost) { h.current = 25 },
			view:  []string{"RefreshTime", "RefreshProgress"},
			check: func(t *testing.T, s State) { assert.Equal(t, 25.0, s.CurrentTime) },
		},
		{
			ev: HostProgress, emit: eventbus.Progress,
			setup: func(h *fakeHost) { h.ranges = []buffer.TimeRange{{Start: 0, End: 30}} },
			view:  []string{"RefreshLoaded", "RenderSegments"},
			check: func(t *testing.T, s State) {
				assert.InDelta(t, 30, s.LoadedPercent, 1e-9)
				assert.True(t, s.Segments[2].Loaded)
				assert.False(t, s.Segments[5].Loaded)
			},
		},
		{
			ev: HostVolumeChange, emit: eventbus.VolumeChange,
			setup: func(h *fakeHost) { h.volume = 0.3; h.muted = true },
			view:  []string{"RefreshVolumeIcon"},
			check: func(t *testing.T, s State) { assert.Equal(t, 0.3, s.Volume); assert.True(t, s.Muted) },
		},
		{
			ev: HostRateChange, emit: eventbus.RateChange,
			setup: func(h *fakeHost) { h.rate = 1.5 },
			view:  []string{"RefreshRate"},
			check: func(t *testing.T, s State) { assert.Equal(t, 1.5, s.PlaybackRate) },
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.ev), func(t *testing.T) {
			h := newHarness(t)
			if tt.setup != nil {
				tt.setup(h.host)
			}
			h.host.fire(tt.ev)

			assert.Equal(t, []eventbus.Name{tt.emit}, h.names())
			assert.Equal(t, tt.view, h.view.order)
			if tt.check != nil {
				tt.check(t, h.sync.State())
			}
		})
	}
}

func TestSync_WaitingThenSuspendEndsNotBuffering(t *testing.T) {
	h := newHarness(t)
	h.host.fire(HostPlay)

	// Watermark alone would keep buffering: nothing is buffered ahead.
	h.host.mu.Lock()
	h.host.current = 10
	h.host.ranges = []buffer.TimeRange{{Start: 0, End: 10.2}}
	h.host.mu.Unlock()
	h.mon.Tick()
	require.True(t, h.sync.State().Buffering)

	h.host.fire(HostWaiting)
	h.host.fire(HostSuspend)

	assert.False(t, h.sync.State().Buffering)
	assert.Equal(t, []eventbus.Name{eventbus.Play, eventbus.Buffering, eventbus.BufferFull}, h.names())
}

func TestSync_WaitingAndStalledEnterOnce(t *testing.T) {
	h := newHarness(t)

	h.host.fire(HostWaiting)
	h.host.fire(HostStalled)
	h.host.fire(HostWaiting)

	assert.True(t, h.sync.State().Buffering)
	assert.Equal(t, []eventbus.Name{eventbus.Buffering}, h.names())
}

func TestSync_ErrorFallbackMessage(t *testing.T) {
	tests := []struct {
		name string
		raw  *MediaError
		want string
	}{
		{name: "no error object", raw: nil, want: UnknownErrorMessage},
		{name: "empty error", raw: &MediaError{}, want: UnknownErrorMessage},
		{name: "code only", raw: &MediaError{Code: MediaErrNetwork}, want: "network error"},
		{name: "unknown code", raw: &MediaError{Code: 99}, want: UnknownErrorMessage},
		{name: "host message", raw: &MediaError{Code: 3, Message: "bad frame"}, want: "bad frame"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.host.lastErr = tt.raw
			h.host.fire(HostError)

			assert.Equal(t, tt.want, h.view.last["ShowError"])
			st := h.sync.State()
			require.NotNil(t, st.Error)
			assert.Equal(t, tt.want, st.Error.Message)
			require.Len(t, h.got, 1)
			assert.Equal(t, eventbus.Error, h.got[0].Name)
			assert.Equal(t, tt.raw, h.got[0].Payload)
		})
	}
}

func TestSync_LoadStartClearsError(t *testing.T) {
	h := newHarness(t)
	h.host.fire(HostError)
	require.NotNil(t, h.sync.State().Error)

	h.host.fire(HostLoadStart)
	assert.Nil(t, h.sync.State().Error)
}

func TestSync_NonFiniteDuration(t *testing.T) {
	h := newHarness(t)
	h.host.duration = math.Inf(1)
	h.host.ranges = []buffer.TimeRange{{Start: 0, End: 5}}

	h.host.fire(HostProgress)
	st := h.sync.State()
	assert.Zero(t, st.LoadedPercent)
	for _, s := range st.Segments {
		assert.False(t, s.Loaded)
	}
}

func TestSync_ListenerCanReenter(t *testing.T) {
	h := newHarness(t)
	var seen State
	h.bus.On(eventbus.Play, func(eventbus.Event) { seen = h.sync.State() })

	h.host.fire(HostPlay)
	assert.True(t, seen.Playing)
}

func TestSync_MonitorCallbacksUpdateView(t *testing.T) {
	h := newHarness(t)
	h.sync.UpdateHealth(buffer.Classification{Tier: buffer.TierMedium, Ahead: 3})
	h.sync.UpdateSegments(make([]buffer.Segment, 10))
	h.sync.UpdateBuffering(true)

	assert.Equal(t, []string{"RefreshHealth", "RenderSegments", "ShowBuffering"}, h.view.order)
}

func TestSync_CloseStopsEverything(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, len(HostEvents()), h.host.subscriptions())
	h.host.fire(HostPlay)
	before := h.sync.State()
	calls := h.view.total()
	events := len(h.got)

	h.sync.Close()
	assert.Zero(t, h.host.subscriptions())

	// A late delivery straight into the handler must not mutate anything.
	h.host.volume = 0
	h.sync.Handle(HostVolumeChange)
	h.sync.Handle(HostPause)
	h.sync.UpdateHealth(buffer.Classification{Tier: buffer.TierGood})
	h.sync.UpdateBuffering(true)

	assert.Equal(t, before, h.sync.State())
	assert.Equal(t, calls, h.view.total())
	assert.Equal(t, events, len(h.got))

	h.sync.Attach()
	assert.Zero(t, h.host.subscriptions())
}

type panickyHost struct {
	*fakeHost
}

func (panickyHost) CurrentTime() float64 { panic("host detached") }

type panicView struct {
	NopView
}

func (panicView) RefreshPlayIcon(bool) { panic("view gone") }

func TestSync_HostGetterPanicIsContained(t *testing.T) {
	host := panickyHost{fakeHost: newFakeHost()}
	s := NewSync(host, eventbus.New(), nil, Options{})

	assert.NotPanics(t, func() { s.Handle(HostPlay) })
	assert.NotPanics(t, func() { s.Handle(HostSeeked) })
}

func TestSync_ViewPanicStillEmits(t *testing.T) {
	host := newFakeHost()
	bus := eventbus.New()
	s := NewSync(host, bus, nil, Options{View: panicView{}})

	var plays []eventbus.Event
	bus.On(eventbus.Play, func(ev eventbus.Event) { plays = append(plays, ev) })

	require.NotPanics(t, func() { s.Handle(HostPlay) })
	assert.Len(t, plays, 1)
	assert.True(t, s.State().Playing)
}

func TestSync_PausePayloadUsesLivePlayhead(t *testing.T) {
	h := newHarness(t)
	h.host.current = 10
	h.host.fire(HostTimeUpdate)
	h.host.current = 12.5
	h.host.fire(HostPause)

	last := h.got[len(h.got)-1]
	require.Equal(t, eventbus.Pause, last.Name)
	assert.Equal(t, Position{CurrentTime: 12.5, Duration: 100}, last.Payload)
}

func TestNopViewDefault(t *testing.T) {
	host := newFakeHost()
	s := NewSync(host, nil, nil, Options{})
	s.Attach()
	require.NotPanics(t, func() {
		for _, ev := range HostEvents() {
			host.fire(ev)
		}
	})
	assert.Len(t, s.State().Segments, buffer.DefaultSegmentCount)
}
