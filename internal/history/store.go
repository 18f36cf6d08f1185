// Package history keeps the persisted, time-windowed reading history.
package history

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/storm-watch-service/internal/domain"
)

// Store is the single owner of the reading history. The history is loaded
// lazily on first access, cached for the process lifetime, and written through
// to storage on every Add.
type Store struct {
	storage   Storage
	retention time.Duration
	logger    *slog.Logger

	mu       sync.RWMutex
	readings []domain.Reading
	loaded   bool

	subMu       sync.Mutex
	subscribers map[int]func(domain.Reading)
	nextSubID   int
}

// NewStore creates a Store over storage with the standard 48h retention.
func NewStore(storage Storage, logger *slog.Logger) *Store {
	return &Store{
		storage:     storage,
		retention:   domain.RetentionWindow,
		logger:      logger,
		subscribers: make(map[int]func(domain.Reading)),
	}
}

// GetAll returns the history in ascending time order. The slice is a copy.
func (s *Store) GetAll() []domain.Reading {
	s.ensureLoaded()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.readings)
}

// Len returns the number of cached readings.
func (s *Store) Len() int {
	s.ensureLoaded()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings)
}

// Add appends r, evicts readings older than the retention window and persists
// the remaining history. The time is truncated to the stored millisecond
// precision in UTC, so the cache always equals what a reload returns. On a
// storage failure the cache is left unchanged. Subscribers are notified after a
// successful write.
func (s *Store) Add(_ context.Context, r domain.Reading) (domain.Reading, error) {
	s.ensureLoaded()
	r.Time = storedTime(r.Time)

	s.mu.Lock()
	next := make([]domain.Reading, 0, len(s.readings)+1)
	next = append(next, s.readings...)
	next = insertSorted(next, r)
	next = prune(next, domain.Now(), s.retention)

	if err := s.storage.WriteAll(Encode(next)); err != nil {
		s.mu.Unlock()
		return domain.Reading{}, fmt.Errorf("persist history: %w", err)
	}
	s.readings = next
	s.mu.Unlock()

	s.notify(r)
	return r, nil
}

// Subscribe registers fn to be called after each recorded reading. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func(domain.Reading)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Store) notify(r domain.Reading) {
	s.subMu.Lock()
	fns := make([]func(domain.Reading), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(r)
	}
}

func (s *Store) ensureLoaded() {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return
	}
	s.readings = s.load()
	s.loaded = true
}

// load reads the durable history. Missing or corrupt data is an empty history.
func (s *Store) load() []domain.Reading {
	lines, err := s.storage.ReadLines()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("no reading history on disk yet")
		} else {
			s.logger.Warn("reading history unreadable, starting empty", "error", err)
		}
		return nil
	}

	readings, err := Decode(lines)
	if err != nil {
		s.logger.Warn("reading history corrupt, starting empty", "error", err)
		return nil
	}

	slices.SortStableFunc(readings, func(a, b domain.Reading) int {
		return a.Time.Compare(b.Time)
	})
	readings = prune(readings, domain.Now(), s.retention)
	s.logger.Debug("reading history loaded", "readings", len(readings))
	return readings
}

// insertSorted appends r keeping ascending time order. Readings normally
// arrive in order, so this is an append.
func insertSorted(readings []domain.Reading, r domain.Reading) []domain.Reading {
	i := len(readings)
	for i > 0 && readings[i-1].Time.After(r.Time) {
		i--
	}
	return slices.Insert(readings, i, r)
}

// prune drops readings with now - time > retention.
func prune(readings []domain.Reading, now time.Time, retention time.Duration) []domain.Reading {
	return slices.DeleteFunc(readings, func(r domain.Reading) bool {
		return now.Sub(r.Time) > retention
	})
}
