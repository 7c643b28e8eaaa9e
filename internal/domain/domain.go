package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

type WarmupStatus string

const (
	WarmupUnknown WarmupStatus = "unknown"
	WarmupWarming WarmupStatus = "warming"
	WarmupStable  WarmupStatus = "stable"
)

// ParseWarmupStatus maps the server's warmup string onto the known states.
// Anything unrecognised is unknown.
func ParseWarmupStatus(s string) WarmupStatus {
	switch WarmupStatus(strings.ToLower(strings.TrimSpace(s))) {
	case WarmupWarming:
		return WarmupWarming
	case WarmupStable:
		return WarmupStable
	default:
		return WarmupUnknown
	}
}

const (
	DefaultSymbol     = "NVDA"
	DefaultRSILow     = 30.0
	DefaultRSIHigh    = 70.0
	DefaultIntervalMS = 2000
)

// Thresholds are the RSI bounds a snapshot was requested with.
type Thresholds struct {
	Low  float64 `json:"rsi_low"`
	High float64 `json:"rsi_high"`
}

// PollConfig holds the query parameters and cadence of one poll.
type PollConfig struct {
	Symbol     string  `json:"symbol" yaml:"symbol"`
	RSILow     float64 `json:"rsi_low" yaml:"rsi_low"`
	RSIHigh    float64 `json:"rsi_high" yaml:"rsi_high"`
	IntervalMS int     `json:"interval_ms" yaml:"interval_ms"`
}

// Normalize trims the symbol, falls back to defaultSymbol when it is empty
// and replaces a non-positive interval with the default.
func (c PollConfig) Normalize(defaultSymbol string) PollConfig {
	c.Symbol = strings.TrimSpace(c.Symbol)
	if c.Symbol == "" {
		c.Symbol = strings.TrimSpace(defaultSymbol)
	}
	if c.Symbol == "" {
		c.Symbol = DefaultSymbol
	}
	if c.IntervalMS <= 0 {
		c.IntervalMS = DefaultIntervalMS
	}
	return c
}

func (c PollConfig) Interval() time.Duration {
	if c.IntervalMS <= 0 {
		return DefaultIntervalMS * time.Millisecond
	}
	return time.Duration(c.IntervalMS) * time.Millisecond
}

func (c PollConfig) Thresholds() Thresholds {
	return Thresholds{Low: c.RSILow, High: c.RSIHigh}
}

// Snapshot is the decoded response of one market poll.
type Snapshot struct {
	Symbol        string       `json:"symbol"`
	RSI           float64      `json:"rsi"`
	RSICount      int          `json:"rsi_count"`
	WarmupStatus  WarmupStatus `json:"warmup_status"`
	SeededCandles int          `json:"seeded_candles"`
	ChangePct     float64      `json:"change_pct"`
	IsValidRSI    bool         `json:"is_valid_rsi"`
	Alert         string       `json:"alert,omitempty"`
	LastFetch     time.Time    `json:"last_fetch"`
	Candles       []Candle     `json:"candles"`

	// Thresholds is stamped by the client from the request, it is not
	// part of the wire format.
	Thresholds Thresholds `json:"-"`
}

// UnmarshalJSON reads each field leniently: numbers may arrive as numeric
// strings, warmup_status is normalised and last_fetch may be RFC 3339 or an
// epoch number. A field of the wrong type reads as its zero value and bad
// candles are kept as invalid ones. Only a body that is not a JSON object
// is an error.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	if !r.IsObject() {
		return errors.New("snapshot is not a JSON object")
	}

	rsi, _ := number(r.Get("rsi"))
	count, _ := number(r.Get("rsi_count"))
	seeded, _ := number(r.Get("seeded_candles"))
	change, _ := number(r.Get("change_pct"))
	lastFetch, _ := parseTime(json.RawMessage(r.Get("last_fetch").Raw))

	*s = Snapshot{
		Symbol:        str(r.Get("symbol")),
		RSI:           rsi,
		RSICount:      int(count),
		WarmupStatus:  ParseWarmupStatus(str(r.Get("warmup_status"))),
		SeededCandles: int(seeded),
		ChangePct:     change,
		IsValidRSI:    r.Get("is_valid_rsi").Bool(),
		Alert:         str(r.Get("alert")),
		LastFetch:     lastFetch,
	}

	if candles := r.Get("candles"); candles.IsArray() {
		for _, el := range candles.Array() {
			var c Candle
			_ = c.UnmarshalJSON([]byte(el.Raw))
			s.Candles = append(s.Candles, c)
		}
	}
	return nil
}

// epochMillisCutoff separates epoch seconds from epoch milliseconds.
const epochMillisCutoff = 1e12

func parseTime(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}

	if raw[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return time.Time{}, err
		}
		if str == "" {
			return time.Time{}, nil
		}
		if t, err := time.Parse(time.RFC3339Nano, str); err == nil {
			return t, nil
		}
	}

	var n float64
	if raw[0] == '"' {
		ms, err := parseMillis(raw)
		if err != nil {
			return time.Time{}, err
		}
		n = float64(ms)
	} else if err := json.Unmarshal(raw, &n); err != nil {
		return time.Time{}, err
	}

	if n == 0 {
		return time.Time{}, nil
	}
	if n > epochMillisCutoff {
		return time.UnixMilli(int64(n)), nil
	}
	return time.Unix(int64(n), 0), nil
}
