package view

import (
	"sync"
	"time"

	"marketpulse-dash/internal/domain"
)

// Store keeps the most recent derived state and tick error.
type Store struct {
	layout Layout

	mu        sync.RWMutex
	state     *State
	lastErr   error
	lastErrAt time.Time
	ticks     int
}

func NewStore(layout Layout) *Store {
	return &Store{layout: layout}
}

func (s *Store) OnSnapshot(snap *domain.Snapshot, window []domain.Candle) {
	st := Derive(snap, window, s.layout)
	s.mu.Lock()
	s.state = &st
	s.lastErr = nil
	s.ticks++
	s.mu.Unlock()
}

func (s *Store) OnTickError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.lastErrAt = time.Now()
	s.mu.Unlock()
}

// Latest returns a copy of the last derived state. ok is false before the
// first successful tick.
func (s *Store) Latest() (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return State{}, false
	}
	return *s.state, true
}

// LastError is the error of the most recent failed tick, cleared by the
// next successful one.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Store) LastErrorAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErrAt
}

func (s *Store) Ticks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticks
}

func (s *Store) Reset() {
	s.mu.Lock()
	s.state = nil
	s.lastErr = nil
	s.lastErrAt = time.Time{}
	s.ticks = 0
	s.mu.Unlock()
}
