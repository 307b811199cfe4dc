// SPDX-License-Identifier: MIT

// Package resume persists playback positions so a player can continue where
// the viewer left off.
package resume

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnknownBackend is returned by NewStore for unsupported backends.
var ErrUnknownBackend = errors.New("unknown resume store backend")

// State is the saved position of one media item.
type State struct {
	Position  float64   `json:"position"`
	Duration  float64   `json:"duration"`
	Finished  bool      `json:"finished"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists resume states keyed by profile and media id.
// Get returns (nil, nil) when nothing is stored.
type Store interface {
	Put(ctx context.Context, profile, mediaID string, state *State) error
	Get(ctx context.Context, profile, mediaID string) (*State, error)
	Delete(ctx context.Context, profile, mediaID string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	// Backend is "sqlite" (default), "memory" or "redis".
	Backend string
	// Dir holds the SQLite file. An empty Dir with the sqlite backend falls
	// back to memory.
	Dir   string
	Redis RedisConfig
}

// NewStore creates a resume store for the configured backend.
func NewStore(opts Options, logger zerolog.Logger) (Store, error) {
	backend := opts.Backend
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "sqlite":
		if opts.Dir == "" {
			return NewMemoryStore(), nil
		}
		return NewSqliteStore(filepath.Join(opts.Dir, "resume.sqlite"))
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(opts.Redis, logger)
	default:
		return nil, fmt.Errorf("%w: %s (supported: sqlite, memory, redis)", ErrUnknownBackend, backend)
	}
}

// MemoryStore implements Store using a map (thread-safe).
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*State
}

// NewMemoryStore creates an in-memory resume store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*State),
	}
}

func (s *MemoryStore) Put(_ context.Context, profile, mediaID string, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return errClosed
	}
	clone := *state
	s.data[compositeKey(profile, mediaID)] = &clone
	return nil
}

func (s *MemoryStore) Get(_ context.Context, profile, mediaID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if val, ok := s.data[compositeKey(profile, mediaID)]; ok {
		clone := *val
		return &clone, nil
	}
	return nil, nil
}

func (s *MemoryStore) Delete(_ context.Context, profile, mediaID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, compositeKey(profile, mediaID))
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
	return nil
}

var errClosed = errors.New("resume store closed")

func compositeKey(profile, mediaID string) string {
	return profile + "\x00" + mediaID
}
