// SPDX-License-Identifier: MIT

package resume

import (
	"context"
	"sync"
	"time"

	"github.com/MohamedMahfouzzzzz/lion-player/internal/eventbus"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/log"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/metrics"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/playback"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Defaults for TrackerConfig.
const (
	DefaultSaveInterval = 5 * time.Second
	DefaultMinPosition  = 5.0
	DefaultEndGuard     = 10.0
)

const storeTimeout = 2 * time.Second

// Resumed is the payload of the resume event.
type Resumed struct {
	MediaID  string  `json:"media_id"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
}

// Seeker moves the playhead; the tracker uses it to apply a restored position.
type Seeker interface {
	Seek(position float64)
}

// TrackerConfig tunes save throttling and restore eligibility.
type TrackerConfig struct {
	Profile string
	// SaveInterval throttles saves triggered by timeupdate.
	SaveInterval time.Duration
	// MinPosition: saved positions earlier than this are not restored.
	MinPosition float64
	// EndGuard: positions this close to the end are not restored.
	EndGuard float64
	Logger   *zerolog.Logger
}

// Tracker saves the playback position on timeupdate (throttled), pause and
// ended, and restores it on the first loaddata after SetMedia.
type Tracker struct {
	store  Store
	bus    *eventbus.Bus
	seeker Seeker
	cfg    TrackerConfig
	logger zerolog.Logger

	mu        sync.Mutex
	mediaID   string
	restored  bool
	sometimes *rate.Sometimes
	subs      []eventbus.Subscription
}

// NewTracker returns a tracker that is not yet attached to a bus.
func NewTracker(store Store, bus *eventbus.Bus, seeker Seeker, cfg TrackerConfig) *Tracker {
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = DefaultSaveInterval
	}
	if cfg.MinPosition <= 0 {
		cfg.MinPosition = DefaultMinPosition
	}
	if cfg.EndGuard <= 0 {
		cfg.EndGuard = DefaultEndGuard
	}
	if cfg.Profile == "" {
		cfg.Profile = "default"
	}
	logger := log.WithComponent("resume")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Tracker{
		store:     store,
		bus:       bus,
		seeker:    seeker,
		cfg:       cfg,
		logger:    logger,
		sometimes: &rate.Sometimes{Interval: cfg.SaveInterval},
	}
}

// SetMedia switches the tracked media item. The next loaddata restores its
// saved position.
func (t *Tracker) SetMedia(mediaID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mediaID = mediaID
	t.restored = false
	t.sometimes = &rate.Sometimes{Interval: t.cfg.SaveInterval}
}

// Attach subscribes the tracker to the bus.
func (t *Tracker) Attach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.subs) > 0 {
		return
	}
	t.subs = []eventbus.Subscription{
		t.bus.On(eventbus.LoadData, t.onLoadData),
		t.bus.On(eventbus.TimeUpdate, t.onTimeUpdate),
		t.bus.On(eventbus.Pause, t.onPause),
		t.bus.On(eventbus.Ended, t.onEnded),
	}
}

// Close unsubscribes from the bus. The store is owned by the caller.
func (t *Tracker) Close() {
	t.mu.Lock()
	subs := t.subs
	t.subs = nil
	t.mu.Unlock()
	for _, s := range subs {
		t.bus.Off(s)
	}
}

func (t *Tracker) current() (string, *rate.Sometimes) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mediaID, t.sometimes
}

func (t *Tracker) onLoadData(ev eventbus.Event) {
	// loadstart also emits loaddata, without media details.
	if _, ok := ev.Payload.(playback.LoadData); !ok {
		return
	}
	t.mu.Lock()
	mediaID := t.mediaID
	if mediaID == "" || t.restored {
		t.mu.Unlock()
		return
	}
	t.restored = true
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	st, err := t.store.Get(ctx, t.cfg.Profile, mediaID)
	if err != nil {
		t.logger.Warn().Err(err).
			Str(log.FieldEvent, "resume.load_failed").
			Str(log.FieldMediaID, mediaID).
			Msg("failed to load resume position")
		return
	}
	if !t.eligible(st) {
		return
	}

	if t.seeker != nil {
		t.seeker.Seek(st.Position)
	}
	metrics.IncResumeRestore()
	t.logger.Info().
		Str(log.FieldEvent, "resume.restored").
		Str(log.FieldMediaID, mediaID).
		Float64(log.FieldCurrentTime, st.Position).
		Msg("resuming playback")
	t.bus.Emit(eventbus.Resume, Resumed{MediaID: mediaID, Position: st.Position, Duration: st.Duration})
}

func (t *Tracker) eligible(st *State) bool {
	if st == nil || st.Finished || st.Position < t.cfg.MinPosition {
		return false
	}
	if st.Duration > 0 && st.Position > st.Duration-t.cfg.EndGuard {
		return false
	}
	return true
}

func (t *Tracker) onTimeUpdate(ev eventbus.Event) {
	pos, ok := ev.Payload.(playback.Position)
	if !ok {
		return
	}
	mediaID, s := t.current()
	if mediaID == "" {
		return
	}
	s.Do(func() { t.save(mediaID, pos, false) })
}

func (t *Tracker) onPause(ev eventbus.Event) {
	pos, ok := ev.Payload.(playback.Position)
	if !ok {
		return
	}
	if mediaID, _ := t.current(); mediaID != "" {
		t.save(mediaID, pos, false)
	}
}

func (t *Tracker) onEnded(ev eventbus.Event) {
	pos, _ := ev.Payload.(playback.Position)
	if mediaID, _ := t.current(); mediaID != "" {
		t.save(mediaID, pos, true)
	}
}

func (t *Tracker) save(mediaID string, pos playback.Position, finished bool) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	err := t.store.Put(ctx, t.cfg.Profile, mediaID, &State{
		Position:  pos.CurrentTime,
		Duration:  pos.Duration,
		Finished:  finished,
		UpdatedAt: time.Now().UTC(),
	})
	metrics.IncResumeSave(err == nil)
	if err != nil {
		t.logger.Warn().Err(err).
			Str(log.FieldEvent, "resume.save_failed").
			Str(log.FieldMediaID, mediaID).
			Msg("failed to save resume position")
	}
}
