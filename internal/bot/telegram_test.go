package bot

import (
	"context"
	"strings"
	"testing"

	"marketpulse-dash/internal/view"
)

func TestStartTelegramBotSkipsWithoutToken(t *testing.T) {
	n, err := StartTelegramBot(context.Background(), "", 42, nil, nil)
	if err != nil || n != nil {
		t.Fatalf("expected disabled bot, got %v %v", n, err)
	}
	n, err = StartTelegramBot(context.Background(), "token", 0, nil, nil)
	if err != nil || n != nil {
		t.Fatalf("expected disabled bot without chat id, got %v %v", n, err)
	}
}

type staticStatus struct {
	state view.State
	ok    bool
}

func (s staticStatus) Latest() (view.State, bool) { return s.state, s.ok }

func TestStatusText(t *testing.T) {
	if got := StatusText(nil); got != "No data yet" {
		t.Fatalf("unexpected text %q", got)
	}
	if got := StatusText(staticStatus{}); got != "No data yet" {
		t.Fatalf("unexpected text %q", got)
	}

	st := staticStatus{ok: true, state: view.State{
		Symbol:      "nvda",
		RSIText:     "72.10",
		Zone:        view.ZoneOverbought,
		ChangeText:  "1.20%",
		WarmupBadge: "STABLE",
		RSICount:    60,
		ValidText:   "YES",
		Alert:       "NVDA: overbought",
	}}
	got := StatusText(st)
	for _, want := range []string{"NVDA\n", "RSI: 72.10 (OVERBOUGHT)", "Warmup: STABLE (60 samples)", "Alert: NVDA: overbought"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
}
