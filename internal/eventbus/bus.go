// SPDX-License-Identifier: MIT

// Package eventbus is the per-player registry of named event listeners.
//
// Dispatch is synchronous and runs listeners in subscription order. The
// listener list is snapshotted before dispatch, so listeners may subscribe or
// unsubscribe (themselves included) while an event is being delivered.
// Listeners added during a dispatch are first called on the next Emit. A
// listener removed during a dispatch is not called for the rest of it.
//
//	bus := eventbus.New()
//	sub := bus.On(eventbus.Play, func(ev eventbus.Event) { ... })
//	defer bus.Off(sub)
//	bus.Emit(eventbus.Play, nil)
package eventbus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MohamedMahfouzzzzz/lion-player/internal/log"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/metrics"
	"github.com/rs/zerolog"
)

// ErrUnknownEvent is returned by Validate for names outside the vocabulary.
var ErrUnknownEvent = errors.New("unknown event name")

// Handler receives a dispatched event.
type Handler func(Event)

// Subscription identifies a registered listener; pass it to Off.
type Subscription struct {
	name Name
	id   uint64
}

// Name returns the event the subscription listens to.
func (s Subscription) Name() Name { return s.name }

type listener struct {
	id   uint64
	fn   Handler
	once bool
}

// Bus fans events out to listeners.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Name][]*listener
	closed bool
	logger zerolog.Logger
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{
		subs:   make(map[Name][]*listener),
		logger: log.WithComponent("eventbus"),
	}
}

// WithLogger replaces the bus logger.
func (b *Bus) WithLogger(l zerolog.Logger) *Bus {
	b.mu.Lock()
	b.logger = l
	b.mu.Unlock()
	return b
}

// On registers fn for every future emission of name.
func (b *Bus) On(name Name, fn Handler) Subscription {
	return b.add(name, fn, false)
}

// One registers fn for the next emission of name only.
func (b *Bus) One(name Name, fn Handler) Subscription {
	return b.add(name, fn, true)
}

func (b *Bus) add(name Name, fn Handler, once bool) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || fn == nil {
		return Subscription{name: name}
	}
	b.nextID++
	l := &listener{id: b.nextID, fn: fn, once: once}
	b.subs[name] = append(b.subs[name], l)
	return Subscription{name: name, id: l.id}
}

// Off removes a single subscription. Unknown or zero subscriptions are ignored.
func (b *Bus) Off(sub Subscription) {
	if sub.id == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub.name, sub.id)
}

// OffAll removes every listener of name.
func (b *Bus) OffAll(name Name) {
	b.mu.Lock()
	delete(b.subs, name)
	b.mu.Unlock()
}

func (b *Bus) removeLocked(name Name, id uint64) bool {
	lst := b.subs[name]
	for i, l := range lst {
		if l.id != id {
			continue
		}
		out := make([]*listener, 0, len(lst)-1)
		out = append(out, lst[:i]...)
		out = append(out, lst[i+1:]...)
		if len(out) == 0 {
			delete(b.subs, name)
		} else {
			b.subs[name] = out
		}
		return true
	}
	return false
}

// Emit delivers payload to every listener of name and returns the number of
// listeners invoked. A panicking listener is logged and skipped.
func (b *Bus) Emit(name Name, payload any) int {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0
	}
	snapshot := append([]*listener(nil), b.subs[name]...)
	// One-shot listeners are detached before dispatch so a nested Emit of the
	// same name cannot fire them twice.
	var deliver []*listener
	for _, l := range snapshot {
		if l.once && !b.removeLocked(name, l.id) {
			continue
		}
		deliver = append(deliver, l)
	}
	logger := b.logger
	b.mu.Unlock()

	metrics.IncEventEmitted(string(name))

	ev := Event{Name: name, Payload: payload}
	n := 0
	for _, l := range deliver {
		if !l.once && !b.active(name, l.id) {
			continue
		}
		b.invoke(logger, l, ev)
		n++
	}
	return n
}

// active reports whether a persistent listener is still subscribed; listeners
// removed by an earlier listener in the same dispatch are skipped.
func (b *Bus) active(name Name, id uint64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false
	}
	for _, l := range b.subs[name] {
		if l.id == id {
			return true
		}
	}
	return false
}

func (b *Bus) invoke(logger zerolog.Logger, l *listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncListenerPanic(string(ev.Name))
			logger.Error().
				Str(log.FieldEvent, "eventbus.listener_panic").
				Str("name", string(ev.Name)).
				Str("panic", fmt.Sprint(r)).
				Msg("event listener panicked")
		}
	}()
	l.fn(ev)
}

// Count returns the number of listeners registered for name.
func (b *Bus) Count(name Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

// Close drops every listener; later On/One/Emit calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.subs = make(map[Name][]*listener)
	b.mu.Unlock()
}

// Validate returns ErrUnknownEvent for names outside the vocabulary.
func Validate(name Name) error {
	if !Known(name) {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	return nil
}
