// SPDX-License-Identifier: MIT

// Package buffer classifies buffer health and drives the buffering state
// machine of a player.
package buffer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MohamedMahfouzzzzz/lion-player/internal/eventbus"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/fsm"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/log"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultTickInterval is used when Start is called with a non-positive interval.
const DefaultTickInterval = time.Second

// Source reports what the host has buffered.
type Source interface {
	BufferedRanges() ([]TimeRange, error)
	CurrentTime() float64
	Duration() float64
}

// Emitter publishes named player events.
type Emitter interface {
	Emit(name eventbus.Name, payload any) int
}

// State is the buffering state.
type State string

const (
	NotBuffering State = "not_buffering"
	Buffering    State = "buffering"
)

type transition string

const (
	enter transition = "enter"
	exit  transition = "exit"
)

func newBufferingMachine() *fsm.Machine[State, transition] {
	return fsm.MustNew(NotBuffering, []fsm.Transition[State, transition]{
		{From: NotBuffering, Event: enter, To: Buffering},
		{From: Buffering, Event: exit, To: NotBuffering},
	})
}

// Change describes a buffering transition; it is the payload of the
// buffering and bufferfull events.
type Change struct {
	Cause string  `json:"cause"`
	Ahead float64 `json:"ahead_seconds"`
}

// NetworkChange is the payload of the networkchange event.
type NetworkChange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Options configures a Monitor.
type Options struct {
	Thresholds   Thresholds
	SegmentCount int
	// Playing reports whether playback is running; watermark entry into
	// buffering only happens while playing. Nil means never playing.
	Playing func() bool
	// NetworkState, when set, is sampled every tick; a change is emitted as
	// networkchange.
	NetworkState func() int
	Emitter      Emitter
	Logger       *zerolog.Logger
}

// Monitor periodically samples a Source, classifies buffer health and applies
// the low/high watermark policy to the buffering state.
type Monitor struct {
	mu sync.Mutex

	src      Source
	th       Thresholds
	count    int
	playing  func() bool
	network  func() int
	emitter  Emitter
	logger   zerolog.Logger
	machine  *fsm.Machine[State, transition]
	health   Classification
	sampled  bool
	segments []Segment

	lastNetwork int
	hasNetwork  bool

	onHealth   []func(Classification)
	onSegments []func([]Segment)
	onStart    []func()
	onStop     []func()

	stop   chan struct{}
	closed bool

	clock clock
}

// NewMonitor returns a stopped monitor. Zero-value options fall back to
// DefaultThresholds and DefaultSegmentCount.
func NewMonitor(src Source, opts Options) *Monitor {
	th := opts.Thresholds
	if th == (Thresholds{}) {
		th = DefaultThresholds()
	}
	count := opts.SegmentCount
	if count <= 0 {
		count = DefaultSegmentCount
	}
	logger := log.WithComponent("buffer")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Monitor{
		src:      src,
		th:       th,
		count:    count,
		playing:  opts.Playing,
		network:  opts.NetworkState,
		emitter:  opts.Emitter,
		logger:   logger,
		machine:  newBufferingMachine(),
		segments: Segmentize(nil, 0, 0, count),
		clock:    realClock{},
	}
}

// OnHealthChanged registers fn for every classification.
func (m *Monitor) OnHealthChanged(fn func(Classification)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed && fn != nil {
		m.onHealth = append(m.onHealth, fn)
	}
}

// OnSegmentsChanged registers fn for every recomputed segment slice.
func (m *Monitor) OnSegmentsChanged(fn func([]Segment)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed && fn != nil {
		m.onSegments = append(m.onSegments, fn)
	}
}

// OnBufferingStart registers fn for entries into buffering.
func (m *Monitor) OnBufferingStart(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed && fn != nil {
		m.onStart = append(m.onStart, fn)
	}
}

// OnBufferingStop registers fn for exits from buffering.
func (m *Monitor) OnBufferingStop(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed && fn != nil {
		m.onStop = append(m.onStop, fn)
	}
}

// Start begins ticking every interval. Calling Start on a running or closed
// monitor does nothing.
func (m *Monitor) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	m.mu.Lock()
	if m.closed || m.stop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.stop = stop
	t := m.clock.NewTicker(interval)
	m.mu.Unlock()

	m.logger.Debug().
		Str(log.FieldEvent, "buffer.monitor_started").
		Dur("interval", interval).
		Msg("buffer monitor started")

	go func() {
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C():
				m.Tick()
			}
		}
	}()
}

// Stop cancels the ticker. It is idempotent and safe before Start.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
}

// Running reports whether the ticker is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stop != nil
}

// Close stops the ticker and drops every callback. Later Tick, ForceStart and
// ForceStop calls are no-ops.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	m.closed = true
	m.onHealth = nil
	m.onSegments = nil
	m.onStart = nil
	m.onStop = nil
	m.emitter = nil
}

// SetThresholds replaces the tier boundaries and watermarks from the next tick on.
func (m *Monitor) SetThresholds(th Thresholds) {
	m.mu.Lock()
	m.th = th
	m.mu.Unlock()
}

// Thresholds returns the active thresholds.
func (m *Monitor) Thresholds() Thresholds {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.th
}

// Health returns the latest classification and whether any tick has produced one.
func (m *Monitor) Health() (Classification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.health, m.sampled
}

// Segments returns a copy of the latest segment slice.
func (m *Monitor) Segments() []Segment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Segment(nil), m.segments...)
}

// SegmentCount is the fixed length of every segment slice.
func (m *Monitor) SegmentCount() int {
	return m.count
}

// Buffering reports whether the monitor is in the buffering state.
func (m *Monitor) Buffering() bool {
	return m.machine.State() == Buffering
}

type sample struct {
	ranges   []TimeRange
	current  float64
	duration float64
	playing  bool
	network  int
	hasNet   bool
}

func (m *Monitor) read() (s sample, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: source panic: %v", errPanic, r)
		}
	}()
	s.ranges, err = m.src.BufferedRanges()
	if err != nil {
		return s, err
	}
	s.current = m.src.CurrentTime()
	s.duration = m.src.Duration()
	if m.playing != nil {
		s.playing = m.playing()
	}
	if m.network != nil {
		s.network, s.hasNet = m.network(), true
	}
	return s, nil
}

var errPanic = errors.New("recovered panic")

// Tick samples the source once and applies the buffering policy. It never
// panics; a failed sample leaves the previous health and segments in place.
func (m *Monitor) Tick() {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		metrics.IncBufferTickSkipped(metrics.SkipClosed)
		return
	}

	s, err := m.read()
	if err != nil {
		reason := metrics.SkipSourceError
		if errors.Is(err, errPanic) {
			reason = metrics.SkipPanic
		}
		metrics.IncBufferTickSkipped(reason)
		m.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "buffer.tick_failed").
			Msg("buffered range sample failed")
		return
	}

	var pending []func()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if s.hasNet {
		if m.hasNetwork && s.network != m.lastNetwork {
			change := NetworkChange{From: m.lastNetwork, To: s.network}
			pending = append(pending, m.emitFn(eventbus.NetworkChange, change))
		}
		m.lastNetwork, m.hasNetwork = s.network, true
	}
	if len(s.ranges) == 0 {
		m.mu.Unlock()
		metrics.IncBufferTickSkipped(metrics.SkipNoRanges)
		m.dispatch(pending)
		return
	}

	c := Classify(s.ranges, s.current, s.duration, m.th)
	m.health, m.sampled = c, true
	for _, fn := range m.onHealth {
		fn := fn
		pending = append(pending, func() { fn(c) })
	}

	switch {
	case c.Ahead < m.th.EnterBelow && s.playing:
		pending = append(pending, m.transitionLocked(enter, metrics.CauseWatermark, c.Ahead)...)
	case c.Ahead > m.th.ExitAbove:
		pending = append(pending, m.transitionLocked(exit, metrics.CauseWatermark, c.Ahead)...)
	}

	segs := Segmentize(s.ranges, s.current, s.duration, m.count)
	m.segments = segs
	for _, fn := range m.onSegments {
		fn := fn
		out := append([]Segment(nil), segs...)
		pending = append(pending, func() { fn(out) })
	}
	m.mu.Unlock()

	metrics.ObserveBufferHealth(c.Tier.String(), c.Ahead)
	m.dispatch(pending)
}

// ForceStart enters buffering because the host reported it is starved.
// It does nothing when already buffering.
func (m *Monitor) ForceStart(cause string) {
	m.force(enter, cause)
}

// ForceStop leaves buffering because the host suspended loading.
// It does nothing when not buffering.
func (m *Monitor) ForceStop(cause string) {
	m.force(exit, cause)
}

func (m *Monitor) force(t transition, cause string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	pending := m.transitionLocked(t, cause, m.health.Ahead)
	m.mu.Unlock()
	m.dispatch(pending)
}

// transitionLocked moves the FSM and returns the notifications to deliver
// once the lock is released. Transitions not allowed from the current state
// return nothing.
func (m *Monitor) transitionLocked(t transition, cause string, ahead float64) []func() {
	if !m.machine.Can(t) {
		return nil
	}
	from := m.machine.State()
	to, err := m.machine.Fire(context.Background(), t)
	if err != nil {
		m.logger.Debug().Err(err).Str(log.FieldEvent, "buffer.transition_rejected").Msg("buffering transition rejected")
		return nil
	}

	direction, name, cbs := metrics.DirectionStart, eventbus.Buffering, m.onStart
	if t == exit {
		direction, name, cbs = metrics.DirectionStop, eventbus.BufferFull, m.onStop
	}
	metricCause := metrics.CauseHost
	if cause == metrics.CauseWatermark {
		metricCause = metrics.CauseWatermark
	}
	metrics.IncBufferingTransition(direction, metricCause)

	m.logger.Debug().
		Str(log.FieldEvent, "buffer.transition").
		Str(log.FieldOldState, string(from)).
		Str(log.FieldNewState, string(to)).
		Str(log.FieldCause, cause).
		Float64(log.FieldAhead, ahead).
		Msg("buffering state changed")

	pending := append([]func(){}, cbs...)
	return append(pending, m.emitFn(name, Change{Cause: cause, Ahead: ahead}))
}

func (m *Monitor) emitFn(name eventbus.Name, payload any) func() {
	em := m.emitter
	return func() {
		if em != nil {
			em.Emit(name, payload)
		}
	}
}

func (m *Monitor) dispatch(pending []func()) {
	for _, fn := range pending {
		m.safeCall(fn)
	}
}

func (m *Monitor) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncBufferTickSkipped(metrics.SkipPanic)
			m.logger.Error().
				Str(log.FieldEvent, "buffer.callback_panic").
				Str("panic", fmt.Sprint(r)).
				Msg("buffer monitor callback panicked")
		}
	}()
	fn()
}
