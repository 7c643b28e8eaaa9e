package view

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"marketpulse-dash/internal/domain"
)

type Zone string

const (
	ZoneOverbought Zone = "OVERBOUGHT"
	ZoneOversold   Zone = "OVERSOLD"
	ZoneNeutral    Zone = "NEUTRAL"
)

const (
	// WarmupTarget is the sample count at which warmup progress is full.
	WarmupTarget = 50
	// ProgressMinCount is the first sample count that shows progress.
	ProgressMinCount = 14
)

// Layout bounds the table and chart series.
type Layout struct {
	TableRows   int
	ChartPoints int
}

var DefaultLayout = Layout{TableRows: 20, ChartPoints: 50}

type RSIPoint struct {
	TS    int64   `json:"ts"`
	Value float64 `json:"value"`
}

// State is everything a renderer needs for one frame.
type State struct {
	Symbol     string            `json:"symbol"`
	RSI        float64           `json:"rsi"`
	RSIText    string            `json:"rsi_text"`
	Gauge      float64           `json:"gauge"`
	Zone       Zone              `json:"zone"`
	Thresholds domain.Thresholds `json:"thresholds"`

	Warmup       domain.WarmupStatus `json:"warmup_status"`
	WarmupBadge  string              `json:"warmup_badge"`
	SeededBadge  string              `json:"seeded_badge,omitempty"`
	RSICount     int                 `json:"rsi_count"`
	ShowProgress bool                `json:"show_progress"`
	Progress     float64             `json:"progress"`

	ChangePct  float64 `json:"change_pct"`
	ChangeText string  `json:"change_text"`
	ChangeUp   bool    `json:"change_up"`
	Valid      bool    `json:"is_valid_rsi"`
	ValidText  string  `json:"valid_text"`
	Alert      string  `json:"alert,omitempty"`

	LastFetch time.Time `json:"last_fetch"`

	Table       []domain.Candle `json:"table"`
	Chart       []domain.Candle `json:"chart"`
	RSILine     []RSIPoint      `json:"rsi_line,omitempty"`
	CachedCount int             `json:"cached_count"`
	CachedText  string          `json:"cached_text"`
}

// Derive maps a snapshot and the history window onto display state. The
// zone uses the thresholds the snapshot was requested with.
func Derive(snap *domain.Snapshot, window []domain.Candle, layout Layout) State {
	if layout.TableRows <= 0 {
		layout.TableRows = DefaultLayout.TableRows
	}
	if layout.ChartPoints <= 0 {
		layout.ChartPoints = DefaultLayout.ChartPoints
	}

	st := State{
		Symbol:     snap.Symbol,
		RSI:        snap.RSI,
		RSIText:    fmt.Sprintf("%.2f", snap.RSI),
		Gauge:      clamp01(snap.RSI / 100),
		Zone:       ZoneFor(snap.RSI, snap.Thresholds),
		Thresholds: snap.Thresholds,
		Warmup:     snap.WarmupStatus,
		RSICount:   snap.RSICount,
		ChangePct:  snap.ChangePct,
		ChangeText: fmt.Sprintf("%.2f%%", snap.ChangePct),
		ChangeUp:   snap.ChangePct >= 0,
		Valid:      snap.IsValidRSI,
		ValidText:  "NO",
		LastFetch:  snap.LastFetch,
	}

	warmup := snap.WarmupStatus
	if warmup == "" {
		warmup = domain.WarmupUnknown
	}
	st.WarmupBadge = strings.ToUpper(string(warmup))
	if snap.SeededCandles > 0 {
		st.SeededBadge = fmt.Sprintf("Seeded: %d", snap.SeededCandles)
	}
	if snap.RSICount >= ProgressMinCount {
		st.ShowProgress = true
		st.Progress = math.Min(float64(snap.RSICount)/WarmupTarget, 1)
	}
	if snap.IsValidRSI {
		st.ValidText = "YES"
	}
	if snap.Alert != "" {
		st.Alert = fmt.Sprintf("%s: %s", strings.ToUpper(snap.Symbol), snap.Alert)
	}

	st.Table = newestFirst(window, layout.TableRows)
	st.Chart = tail(window, layout.ChartPoints)
	if snap.IsValidRSI {
		st.RSILine = make([]RSIPoint, len(st.Chart))
		for i, c := range st.Chart {
			st.RSILine[i] = RSIPoint{TS: c.TS, Value: snap.RSI}
		}
	}
	st.CachedCount = len(window)
	st.CachedText = fmt.Sprintf("%d candles cached", len(window))
	return st
}

// ZoneFor classifies rsi. Overbought wins when the thresholds overlap.
func ZoneFor(rsi float64, t domain.Thresholds) Zone {
	switch {
	case rsi >= t.High:
		return ZoneOverbought
	case rsi <= t.Low:
		return ZoneOversold
	default:
		return ZoneNeutral
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func tail(window []domain.Candle, n int) []domain.Candle {
	if len(window) > n {
		window = window[len(window)-n:]
	}
	return append([]domain.Candle{}, window...)
}

func newestFirst(window []domain.Candle, n int) []domain.Candle {
	out := tail(window, n)
	slices.Reverse(out)
	return out
}
