// SPDX-License-Identifier: MIT

// Package playback translates host media notifications into player state,
// view refreshes and player events.
package playback

import (
	"context"
	"math"
	"sync"

	"github.com/MohamedMahfouzzzzz/lion-player/internal/buffer"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/eventbus"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/log"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/metrics"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "lionplayer.playback"

// Emitter publishes named player events.
type Emitter interface {
	Emit(name eventbus.Name, payload any) int
}

// BufferControl is the part of the buffer monitor the host notifications drive.
type BufferControl interface {
	ForceStart(cause string)
	ForceStop(cause string)
	Buffering() bool
	Health() (buffer.Classification, bool)
}

// Options configures a Sync.
type Options struct {
	View         View
	SegmentCount int
	Logger       *zerolog.Logger
}

// Sync owns the player state and handles host notifications. Each handler
// updates state, refreshes the view and emits exactly one event, in that
// order. View calls and the emission run outside the state lock.
type Sync struct {
	mu     sync.Mutex
	state  State
	closed bool
	unsubs []func()

	host   Host
	bus    Emitter
	buf    BufferControl
	view   View
	count  int
	logger zerolog.Logger
}

// NewSync returns a detached Sync. buf may be nil when no monitor is wired.
func NewSync(host Host, bus Emitter, buf BufferControl, opts Options) *Sync {
	view := opts.View
	if view == nil {
		view = NopView{}
	}
	count := opts.SegmentCount
	if count <= 0 {
		count = buffer.DefaultSegmentCount
	}
	logger := log.WithComponent("playback")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	st := initialState()
	st.Segments = buffer.Segmentize(nil, 0, 0, count)
	return &Sync{
		state:  st,
		host:   host,
		bus:    bus,
		buf:    buf,
		view:   view,
		count:  count,
		logger: logger,
	}
}

// Attach subscribes to every host notification. It is a no-op once closed or
// when already attached.
func (s *Sync) Attach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.unsubs) > 0 {
		return
	}
	for _, ev := range HostEvents() {
		ev := ev
		s.unsubs = append(s.unsubs, s.host.Subscribe(ev, func() { s.Handle(ev) }))
	}
}

// Close removes every host subscription. Notifications delivered afterwards
// are ignored.
func (s *Sync) Close() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.closed = true
	s.mu.Unlock()

	for _, u := range unsubs {
		if u != nil {
			u()
		}
	}
}

// State returns a snapshot of the player state.
func (s *Sync) State() State {
	s.mu.Lock()
	st := s.state.clone()
	s.mu.Unlock()

	if s.buf != nil {
		st.Buffering = s.buf.Buffering()
		if c, ok := s.buf.Health(); ok {
			st.BufferHealth = c.Tier
			st.BufferAhead = c.Ahead
		}
	}
	return st
}

// Playing reports whether playback is running.
func (s *Sync) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Playing
}

// UpdateHealth repaints the health indicator after a monitor tick.
func (s *Sync) UpdateHealth(c buffer.Classification) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state.BufferHealth = c.Tier
	s.state.BufferAhead = c.Ahead
	s.mu.Unlock()
	s.refresh("monitor", func(v View) { v.RefreshHealth(c.Tier) })
}

// UpdateSegments stores and renders a segment slice computed by the monitor.
func (s *Sync) UpdateSegments(segs []buffer.Segment) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state.Segments = append(s.state.Segments[:0], segs...)
	s.mu.Unlock()
	s.refresh("monitor", func(v View) { v.RenderSegments(segs) })
}

// UpdateBuffering switches the view in and out of the buffering presentation.
func (s *Sync) UpdateBuffering(on bool) {
	s.mu.Lock()
	closed := s.closed
	if !closed {
		s.state.Buffering = on
	}
	s.mu.Unlock()
	if !closed {
		s.refresh("monitor", func(v View) { v.ShowBuffering(on) })
	}
}

// Handle processes one host notification.
func (s *Sync) Handle(ev HostEvent) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	metrics.IncHostNotification(string(ev))
	_, span := telemetry.Tracer(tracerName).Start(context.Background(), "playback."+string(ev),
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, "handler panic")
			s.logger.Error().
				Str(log.FieldEvent, "playback.handler_panic").
				Str(log.FieldHostEvent, string(ev)).
				Interface("panic", r).
				Msg("host notification handler panicked")
		}
	}()

	span.SetAttributes(telemetry.HostEventAttributes(string(ev),
		s.host.CurrentTime(), finiteOrZero(s.host.Duration()),
		int(s.host.NetworkState()), int(s.host.ReadyState()))...)

	switch ev {
	case HostWaiting, HostStalled:
		if s.buf != nil {
			s.buf.ForceStart(string(ev))
		}
		s.annotateBuffer(span)
		return
	case HostSuspend:
		if s.buf != nil {
			s.buf.ForceStop(string(ev))
		}
		s.annotateBuffer(span)
		return
	}

	h, ok := handlers[ev]
	if !ok {
		s.logger.Debug().Str(log.FieldHostEvent, string(ev)).Msg("unhandled host notification")
		return
	}

	out, ok := s.apply(h)
	if !ok {
		return
	}
	if out.err != nil {
		span.SetStatus(codes.Error, out.err.Message)
		span.SetAttributes(telemetry.MediaErrorAttributes(out.err.Code, "media")...)
	}
	for _, refresh := range out.view {
		s.refresh(string(ev), refresh)
	}
	if s.bus != nil {
		s.bus.Emit(out.event, out.payload)
	}
}

// refresh runs one view update. A failing view never suppresses the event.
func (s *Sync) refresh(source string, fn func(View)) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str(log.FieldEvent, "playback.view_panic").
				Str("source", source).
				Interface("panic", r).
				Msg("view refresh panicked")
		}
	}()
	fn(s.view)
}

func (s *Sync) apply(h handler) (outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return outcome{}, false
	}
	s.state.NetworkState = s.host.NetworkState()
	s.state.ReadyState = s.host.ReadyState()
	return h(s, &s.state), true
}

// outcome is what a handler decided while holding the state lock.
type outcome struct {
	view    []func(View)
	event   eventbus.Name
	payload any
	err     *MediaError
}

type handler func(s *Sync, st *State) outcome

var handlers = map[HostEvent]handler{
	HostLoadStart:      onLoadStart,
	HostLoadedData:     onLoadedData,
	HostCanPlay:        onCanPlay(eventbus.CanPlay),
	HostCanPlayThrough: onCanPlay(eventbus.CanPlayThrough),
	HostPlay:           onPlay,
	HostPause:          onPause,
	HostEnded:          onEnded,
	HostSeeking:        onSeeking,
	HostSeeked:         onSeeked,
	HostTimeUpdate:     onTimeUpdate,
	HostProgress:       onProgress,
	HostVolumeChange:   onVolumeChange,
	HostRateChange:     onRateChange,
	HostError:          onError,
}

func onLoadStart(_ *Sync, st *State) outcome {
	st.Loading = true
	st.LoadedPercent = 0
	st.Error = nil
	return outcome{
		view: []func(View){
			func(v View) { v.ShowLoading(true) },
			func(v View) { v.RefreshLoaded(0) },
		},
		event: eventbus.LoadData,
	}
}

func onLoadedData(s *Sync, st *State) outcome {
	st.Duration = finiteOrZero(s.host.Duration())
	st.CurrentTime = s.host.CurrentTime()
	cur, dur := st.CurrentTime, st.Duration
	return outcome{
		view:  []func(View){func(v View) { v.RefreshTime(cur, dur) }},
		event: eventbus.LoadData,
		payload: LoadData{
			Duration:   dur,
			ReadyState: st.ReadyState,
		},
	}
}

func onCanPlay(name eventbus.Name) handler {
	return func(_ *Sync, st *State) outcome {
		st.Loading = false
		return outcome{
			view:  []func(View){func(v View) { v.ShowLoading(false) }},
			event: name,
		}
	}
}

func onPlay(_ *Sync, st *State) outcome {
	st.Playing = true
	st.Paused = false
	st.Ended = false
	return outcome{
		view:  []func(View){func(v View) { v.RefreshPlayIcon(true) }},
		event: eventbus.Play,
	}
}

func onPause(s *Sync, st *State) outcome {
	st.Playing = false
	st.Paused = true
	st.CurrentTime = s.host.CurrentTime()
	return outcome{
		view:    []func(View){func(v View) { v.RefreshPlayIcon(false) }},
		event:   eventbus.Pause,
		payload: Position{CurrentTime: st.CurrentTime, Duration: st.Duration},
	}
}

func onEnded(s *Sync, st *State) outcome {
	st.Playing = false
	st.Paused = true
	st.Ended = true
	st.CurrentTime = s.host.CurrentTime()
	return outcome{
		view:    []func(View){func(v View) { v.RefreshPlayIcon(false) }},
		event:   eventbus.Ended,
		payload: Position{CurrentTime: st.CurrentTime, Duration: st.Duration},
	}
}

func onSeeking(s *Sync, st *State) outcome {
	st.Seeking = true
	st.CurrentTime = s.host.CurrentTime()
	return outcome{
		view:  []func(View){func(v View) { v.ShowSeeking(true) }},
		event: eventbus.Seeking,
	}
}

func onSeeked(s *Sync, st *State) outcome {
	st.Seeking = false
	st.CurrentTime = s.host.CurrentTime()
	cur, dur := st.CurrentTime, st.Duration
	return outcome{
		view: []func(View){
			func(v View) { v.ShowSeeking(false) },
			func(v View) { v.RefreshTime(cur, dur) },
		},
		event: eventbus.Seeked,
	}
}

func onTimeUpdate(s *Sync, st *State) outcome {
	st.CurrentTime = s.host.CurrentTime()
	st.Duration = finiteOrZero(s.host.Duration())
	cur, dur := st.CurrentTime, st.Duration
	played := 0.0
	if dur > 0 {
		played = math.Min(cur/dur*100, 100)
	}
	return outcome{
		view: []func(View){
			func(v View) { v.RefreshTime(cur, dur) },
			func(v View) { v.RefreshProgress(played) },
		},
		event:   eventbus.TimeUpdate,
		payload: Position{CurrentTime: cur, Duration: dur},
	}
}

func onProgress(s *Sync, st *State) outcome {
	ranges, err := s.host.BufferedRanges()
	if err != nil {
		s.logger.Debug().Err(err).Str(log.FieldEvent, "playback.ranges_unavailable").Msg("progress without buffered ranges")
		ranges = nil
	}
	dur := finiteOrZero(s.host.Duration())
	st.LoadedPercent = buffer.LoadedPercent(ranges, dur)
	st.Segments = buffer.Segmentize(ranges, s.host.CurrentTime(), dur, s.count)
	pct := st.LoadedPercent
	segs := append([]buffer.Segment(nil), st.Segments...)
	return outcome{
		view: []func(View){
			func(v View) { v.RefreshLoaded(pct) },
			func(v View) { v.RenderSegments(segs) },
		},
		event:   eventbus.Progress,
		payload: pct,
	}
}

func onVolumeChange(s *Sync, st *State) outcome {
	st.Volume = s.host.Volume()
	st.Muted = s.host.Muted()
	vol, muted := st.Volume, st.Muted
	return outcome{
		view:    []func(View){func(v View) { v.RefreshVolumeIcon(vol, muted) }},
		event:   eventbus.VolumeChange,
		payload: Volume{Volume: vol, Muted: muted},
	}
}

func onRateChange(s *Sync, st *State) outcome {
	st.PlaybackRate = s.host.PlaybackRate()
	rate := st.PlaybackRate
	return outcome{
		view:    []func(View){func(v View) { v.RefreshRate(rate) }},
		event:   eventbus.RateChange,
		payload: rate,
	}
}

func onError(s *Sync, st *State) outcome {
	raw := s.host.LastError()
	shown := displayError(raw)
	st.Error = &shown
	st.Loading = false

	metrics.IncMediaError(shown.Code)
	s.logger.Warn().
		Str(log.FieldEvent, "playback.media_error").
		Int(log.FieldErrorCode, shown.Code).
		Str("message", shown.Message).
		Msg("host reported media error")

	msg := shown.Message
	return outcome{
		view:    []func(View){func(v View) { v.ShowError(msg) }},
		event:   eventbus.Error,
		payload: raw,
		err:     &shown,
	}
}

// annotateBuffer records the buffer state a waiting/suspend notification left behind.
func (s *Sync) annotateBuffer(span trace.Span) {
	st := s.State()
	span.SetAttributes(telemetry.BufferAttributes(st.BufferHealth.String(), st.BufferAhead, st.Buffering)...)
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
