// SPDX-License-Identifier: MIT

// Package player assembles one media player: the event bus, the buffer
// health monitor, the host notification sync and the resume tracker.
package player

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MohamedMahfouzzzzz/lion-player/internal/buffer"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/eventbus"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/log"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/metrics"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/playback"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/resume"
)

// Host is the media element a player drives.
type Host interface {
	playback.Host
	Seek(position float64)
}

// Options configures a Player. Zero values fall back to package defaults.
type Options struct {
	// ID identifies the player in logs and traces; a UUID is generated when empty.
	ID           string
	MediaID      string
	Thresholds   buffer.Thresholds
	SegmentCount int
	TickInterval time.Duration
	View         playback.View
	// Store enables resume tracking when set. The player does not close it.
	Store  resume.Store
	Resume resume.TrackerConfig
}

// Player owns the components of one player instance and their wiring.
type Player struct {
	id      string
	host    Host
	bus     *eventbus.Bus
	monitor *buffer.Monitor
	sync    *playback.Sync
	tracker *resume.Tracker
	tick    time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	mediaID string
	started bool
	closed  bool
}

// New builds a player around host. Nothing is subscribed until Start.
func New(host Host, opts Options) *Player {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	base := log.Derive(func(c *zerolog.Context) {
		*c = c.Str(log.FieldPlayerID, id)
	})
	logger := base.With().Str(log.FieldComponent, "player").Logger()

	p := &Player{
		id:      id,
		host:    host,
		bus:     eventbus.New().WithLogger(logger),
		tick:    opts.TickInterval,
		logger:  logger,
		mediaID: opts.MediaID,
	}

	bufLogger := base.With().Str(log.FieldComponent, "buffer").Logger()
	p.monitor = buffer.NewMonitor(host, buffer.Options{
		Thresholds:   opts.Thresholds,
		SegmentCount: opts.SegmentCount,
		Playing:      func() bool { return p.sync.Playing() },
		NetworkState: func() int { return int(host.NetworkState()) },
		Emitter:      p.bus,
		Logger:       &bufLogger,
	})

	syncLogger := base.With().Str(log.FieldComponent, "playback").Logger()
	p.sync = playback.NewSync(host, p.bus, p.monitor, playback.Options{
		View:         opts.View,
		SegmentCount: p.monitor.SegmentCount(),
		Logger:       &syncLogger,
	})

	p.monitor.OnHealthChanged(p.sync.UpdateHealth)
	p.monitor.OnSegmentsChanged(p.sync.UpdateSegments)
	p.monitor.OnBufferingStart(func() { p.sync.UpdateBuffering(true) })
	p.monitor.OnBufferingStop(func() { p.sync.UpdateBuffering(false) })

	if opts.Store != nil {
		resumeCfg := opts.Resume
		if resumeCfg.Logger == nil {
			resumeLogger := base.With().Str(log.FieldComponent, "resume").Logger()
			resumeCfg.Logger = &resumeLogger
		}
		p.tracker = resume.NewTracker(opts.Store, p.bus, host, resumeCfg)
		p.tracker.SetMedia(opts.MediaID)
	}
	return p
}

// ID returns the player id.
func (p *Player) ID() string { return p.id }

// Bus returns the player's event bus for external listeners.
func (p *Player) Bus() *eventbus.Bus { return p.bus }

// Monitor returns the buffer health monitor.
func (p *Player) Monitor() *buffer.Monitor { return p.monitor }

// MediaID returns the media item being tracked.
func (p *Player) MediaID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mediaID
}

// Running reports whether the player has started and not yet closed.
func (p *Player) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started && !p.closed
}

// Start subscribes to host notifications and starts the monitor ticker.
// It is a no-op when already started or closed.
func (p *Player) Start() {
	p.mu.Lock()
	if p.started || p.closed {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	if p.tracker != nil {
		p.tracker.Attach()
	}
	p.sync.Attach()
	p.monitor.Start(p.tick)
	metrics.ActivePlayers.Inc()

	p.logger.Info().
		Str(log.FieldEvent, "player.started").
		Str(log.FieldMediaID, p.MediaID()).
		Msg("player started")
}

// Close detaches every component: the monitor stops ticking, host
// notifications are ignored, and bus listeners are dropped. It is idempotent.
func (p *Player) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	started := p.started
	p.mu.Unlock()

	p.monitor.Close()
	p.sync.Close()
	if p.tracker != nil {
		p.tracker.Close()
	}
	p.bus.Close()
	if started {
		metrics.ActivePlayers.Dec()
	}

	p.logger.Info().Str(log.FieldEvent, "player.closed").Msg("player closed")
}

// SetMedia switches the media item used for resume tracking.
func (p *Player) SetMedia(mediaID string) {
	p.mu.Lock()
	p.mediaID = mediaID
	p.mu.Unlock()
	if p.tracker != nil {
		p.tracker.SetMedia(mediaID)
	}
}

// State returns a snapshot of the player state.
func (p *Player) State() playback.State { return p.sync.State() }

// Segments returns the latest segment slice computed by the monitor.
func (p *Player) Segments() []buffer.Segment { return p.monitor.Segments() }

// Thresholds returns the active tier boundaries and watermarks.
func (p *Player) Thresholds() buffer.Thresholds { return p.monitor.Thresholds() }

// SetThresholds replaces the tier boundaries and watermarks.
func (p *Player) SetThresholds(th buffer.Thresholds) error {
	if err := th.Validate(); err != nil {
		return err
	}
	p.monitor.SetThresholds(th)
	p.logger.Info().
		Str(log.FieldEvent, "player.thresholds_changed").
		Interface("thresholds", th).
		Msg("buffer thresholds updated")
	return nil
}
