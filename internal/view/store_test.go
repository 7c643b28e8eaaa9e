package view

import (
	"errors"
	"testing"

	"marketpulse-dash/internal/domain"
)

func TestStoreLatest(t *testing.T) {
	s := NewStore(DefaultLayout)
	if _, ok := s.Latest(); ok {
		t.Fatal("expected no state before first snapshot")
	}

	s.OnTickError(errors.New("rate limited"))
	if s.LastError() == nil || s.LastErrorAt().IsZero() {
		t.Fatal("expected tick error recorded")
	}

	s.OnSnapshot(baseSnapshot(), candles(1, 3))
	st, ok := s.Latest()
	if !ok || st.Symbol != "nvda" || st.CachedCount != 3 {
		t.Fatalf("unexpected state %+v", st)
	}
	if s.LastError() != nil {
		t.Fatal("success should clear the last error")
	}
	if s.Ticks() != 1 {
		t.Fatalf("expected one tick, got %d", s.Ticks())
	}

	s.Reset()
	if _, ok := s.Latest(); ok || s.Ticks() != 0 {
		t.Fatal("reset should drop state")
	}
}

type countingSink struct {
	snaps  int
	errs   int
	resets int
}

func (c *countingSink) OnSnapshot(snap *domain.Snapshot, window []domain.Candle) { c.snaps++ }

type fullSink struct{ countingSink }

func (f *fullSink) OnTickError(err error) { f.errs++ }
func (f *fullSink) Reset()                { f.resets++ }

func TestMultiFansOut(t *testing.T) {
	plain := &countingSink{}
	full := &fullSink{}
	m := NewMulti(plain, nil)
	m.Add(full)

	m.OnSnapshot(baseSnapshot(), nil)
	m.OnTickError(errors.New("x"))
	m.Reset()

	if plain.snaps != 1 || full.snaps != 1 {
		t.Fatalf("expected both sinks to see the snapshot: %d %d", plain.snaps, full.snaps)
	}
	if full.errs != 1 || full.resets != 1 {
		t.Fatalf("expected error and reset forwarded: %+v", full)
	}
}
