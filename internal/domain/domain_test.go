package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCandleUnmarshalMillis(t *testing.T) {
	var c Candle
	if err := json.Unmarshal([]byte(`{"ts":1700000000000,"o":1,"h":2,"l":0.5,"c":1.5,"v":1200}`), &c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.TS != 1700000000000 || c.Open != 1 || c.High != 2 || c.Low != 0.5 || c.Close != 1.5 || c.Volume != 1200 {
		t.Fatalf("unexpected candle: %+v", c)
	}
}

func TestCandleUnmarshalRFC3339(t *testing.T) {
	var c Candle
	if err := json.Unmarshal([]byte(`{"ts":"2025-01-02T15:04:00Z","o":1,"h":1,"l":1,"c":1,"v":3.0}`), &c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 1, 2, 15, 4, 0, 0, time.UTC).UnixMilli()
	if c.TS != want {
		t.Fatalf("expected ts %d, got %d", want, c.TS)
	}
	if c.Volume != 3 {
		t.Fatalf("expected volume 3, got %d", c.Volume)
	}
}

func TestCandleUnmarshalNumericString(t *testing.T) {
	var c Candle
	if err := json.Unmarshal([]byte(`{"ts":"1640995200000","v":1}`), &c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.TS != 1640995200000 {
		t.Fatalf("unexpected ts: %d", c.TS)
	}
}

func TestCandleUnmarshalBadFieldsAreInvalid(t *testing.T) {
	bodies := []string{
		`{"ts":"yesterday","v":1}`,
		`{"ts":"2024-01-01 10:00:00","v":1}`,
		`{"ts":1,"c":"n/a","v":1}`,
		`{"ts":1,"v":true}`,
		`[1,2,3]`,
	}
	for _, body := range bodies {
		var c Candle
		if err := json.Unmarshal([]byte(body), &c); err != nil {
			t.Fatalf("%s: bad candle must not fail decoding: %v", body, err)
		}
		if c.Valid() {
			t.Fatalf("%s: expected invalid candle, got %+v", body, c)
		}
	}
}

func TestCandleUnmarshalNumericStrings(t *testing.T) {
	var c Candle
	if err := json.Unmarshal([]byte(`{"ts":5,"o":"1.5","c":"2","v":"10"}`), &c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Open != 1.5 || c.Close != 2 || c.Volume != 10 || !c.Valid() {
		t.Fatalf("unexpected candle: %+v", c)
	}
}

func TestCandleValid(t *testing.T) {
	tests := []struct {
		candle Candle
		valid  bool
	}{
		{Candle{TS: 1, Volume: 0}, true},
		{Candle{TS: 0, Volume: 1}, false},
		{Candle{TS: 5, Volume: -1}, false},
	}
	for _, tt := range tests {
		if got := tt.candle.Valid(); got != tt.valid {
			t.Errorf("%+v: expected valid=%v, got %v", tt.candle, tt.valid, got)
		}
	}
}

func TestParseWarmupStatus(t *testing.T) {
	tests := map[string]WarmupStatus{
		"stable":  WarmupStable,
		"WARMING": WarmupWarming,
		"":        WarmupUnknown,
		"cold":    WarmupUnknown,
	}
	for in, want := range tests {
		if got := ParseWarmupStatus(in); got != want {
			t.Errorf("%q: expected %s, got %s", in, want, got)
		}
	}
}

func TestSnapshotUnmarshal(t *testing.T) {
	body := `{
		"symbol": "NVDA",
		"rsi": 71.5,
		"rsi_count": 40,
		"warmup_status": "warming",
		"seeded_candles": 390,
		"change_pct": -0.42,
		"is_valid_rsi": true,
		"alert": "overbought",
		"last_fetch": "2025-01-02T15:04:05Z",
		"candles": [{"ts": 1, "o": 1, "h": 1, "l": 1, "c": 1, "v": 1}]
	}`

	var s Snapshot
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Symbol != "NVDA" || s.RSI != 71.5 || s.RSICount != 40 || s.SeededCandles != 390 {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
	if s.WarmupStatus != WarmupWarming {
		t.Fatalf("expected warming, got %s", s.WarmupStatus)
	}
	if !s.LastFetch.Equal(time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected last_fetch: %v", s.LastFetch)
	}
	if len(s.Candles) != 1 || s.Candles[0].TS != 1 {
		t.Fatalf("unexpected candles: %+v", s.Candles)
	}
}

func TestSnapshotLastFetchEpoch(t *testing.T) {
	var s Snapshot
	if err := json.Unmarshal([]byte(`{"last_fetch": 1700000000}`), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.LastFetch.Unix() != 1700000000 {
		t.Fatalf("expected epoch seconds, got %v", s.LastFetch)
	}

	if err := json.Unmarshal([]byte(`{"last_fetch": 1700000000123}`), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.LastFetch.UnixMilli() != 1700000000123 {
		t.Fatalf("expected epoch millis, got %v", s.LastFetch)
	}
	if s.WarmupStatus != WarmupUnknown {
		t.Fatalf("missing warmup_status should be unknown, got %s", s.WarmupStatus)
	}
}

func TestPollConfigNormalize(t *testing.T) {
	cfg := PollConfig{Symbol: "  aapl ", IntervalMS: 0}.Normalize("NVDA")
	if cfg.Symbol != "aapl" {
		t.Fatalf("expected trimmed symbol, got %q", cfg.Symbol)
	}
	if cfg.IntervalMS != DefaultIntervalMS {
		t.Fatalf("expected default interval, got %d", cfg.IntervalMS)
	}

	cfg = PollConfig{Symbol: "   ", IntervalMS: 500}.Normalize("TSLA")
	if cfg.Symbol != "TSLA" || cfg.IntervalMS != 500 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Interval() != 500*time.Millisecond {
		t.Fatalf("unexpected interval: %v", cfg.Interval())
	}
}

func TestSnapshotToleratesBadFields(t *testing.T) {
	body := `{
		"symbol": "NVDA",
		"rsi": 28.5,
		"rsi_count": "15",
		"seeded_candles": "3",
		"warmup_status": 7,
		"last_fetch": "sometime",
		"candles": [
			{"ts": "2024-01-01 10:00:00", "c": 1, "v": 1},
			{"ts": 1700000000000, "c": 2, "v": 1}
		]
	}`

	var s Snapshot
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		t.Fatalf("bad fields must not fail the snapshot: %v", err)
	}
	if s.RSI != 28.5 || s.RSICount != 15 || s.SeededCandles != 3 {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
	if s.WarmupStatus != WarmupUnknown || !s.LastFetch.IsZero() {
		t.Fatalf("unreadable fields should be zero: %+v", s)
	}
	if len(s.Candles) != 2 || s.Candles[0].Valid() || !s.Candles[1].Valid() {
		t.Fatalf("expected bad candle kept as invalid: %+v", s.Candles)
	}
}

func TestSnapshotRejectsNonObject(t *testing.T) {
	var s Snapshot
	if err := json.Unmarshal([]byte(`["NVDA"]`), &s); err == nil {
		t.Fatal("expected error for non-object body")
	}
}
