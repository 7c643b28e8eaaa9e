package view

import (
	"sync"

	"marketpulse-dash/internal/domain"
)

// Sink consumes one successful poll. window is a copy of the history,
// oldest first, and may be retained.
type Sink interface {
	OnSnapshot(snap *domain.Snapshot, window []domain.Candle)
}

// ErrorSink consumes tick failures.
type ErrorSink interface {
	OnTickError(err error)
}

// Resetter is implemented by sinks that hold per-session state.
type Resetter interface {
	Reset()
}

// Multi fans every event out to its members in registration order.
// OnTickError and Reset reach only members implementing ErrorSink and
// Resetter.
type Multi struct {
	mu    sync.RWMutex
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		m.Add(s)
	}
	return m
}

func (m *Multi) Add(s Sink) {
	if s == nil {
		return
	}
	m.mu.Lock()
	m.sinks = append(m.sinks, s)
	m.mu.Unlock()
}

func (m *Multi) members() []Sink {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Sink(nil), m.sinks...)
}

func (m *Multi) OnSnapshot(snap *domain.Snapshot, window []domain.Candle) {
	for _, s := range m.members() {
		s.OnSnapshot(snap, window)
	}
}

func (m *Multi) OnTickError(err error) {
	for _, s := range m.members() {
		if es, ok := s.(ErrorSink); ok {
			es.OnTickError(err)
		}
	}
}

func (m *Multi) Reset() {
	for _, s := range m.members() {
		if r, ok := s.(Resetter); ok {
			r.Reset()
		}
	}
}
