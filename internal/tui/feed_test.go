package tui

import (
	"errors"
	"testing"

	"marketpulse-dash/internal/domain"
	"marketpulse-dash/internal/view"
)

func TestFeedDeliversDerivedState(t *testing.T) {
	f := NewFeed(view.DefaultLayout, 2, nil)
	f.OnSnapshot(&domain.Snapshot{Symbol: "NVDA", RSI: 50, Thresholds: domain.Thresholds{Low: 30, High: 70}}, nil)
	f.OnTickError(errors.New("boom"))

	msg := f.Next()()
	st, ok := msg.(StateMsg)
	if !ok || st.State.Symbol != "NVDA" || st.State.Zone != view.ZoneNeutral {
		t.Fatalf("unexpected message %#v", msg)
	}
	if _, ok := f.Next()().(TickErrorMsg); !ok {
		t.Fatal("expected tick error message")
	}
}

func TestFeedDropsWhenFull(t *testing.T) {
	f := NewFeed(view.DefaultLayout, 1, nil)
	f.OnTickError(errors.New("kept"))
	f.OnTickError(errors.New("dropped"))

	if len(f.ch) != 1 {
		t.Fatalf("expected one buffered event, got %d", len(f.ch))
	}
	msg, ok := f.Next()().(TickErrorMsg)
	if !ok || msg.Err.Error() != "kept" {
		t.Fatalf("expected the first error, got %#v", msg)
	}
}

func TestFeedResetGetsThroughFullBuffer(t *testing.T) {
	f := NewFeed(view.DefaultLayout, 2, nil)
	snap := &domain.Snapshot{Symbol: "NVDA", RSI: 50, Thresholds: domain.Thresholds{Low: 30, High: 70}}
	f.OnSnapshot(snap, nil)
	f.OnSnapshot(snap, nil)
	f.Reset()

	if len(f.ch) != 1 {
		t.Fatalf("reset should replace queued events, got %d buffered", len(f.ch))
	}
	if _, ok := f.Next()().(ResetMsg); !ok {
		t.Fatal("expected reset message")
	}
}

func TestFeedClose(t *testing.T) {
	f := NewFeed(view.DefaultLayout, 1, nil)
	f.Close()
	f.Close()
	f.Reset()
	if msg := f.Next()(); msg != nil {
		t.Fatalf("closed feed should yield nil, got %#v", msg)
	}
}
