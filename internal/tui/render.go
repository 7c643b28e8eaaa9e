package tui

import (
	"fmt"
	"math"
	"strings"

	"marketpulse-dash/internal/domain"
	"marketpulse-dash/internal/view"

	"github.com/charmbracelet/lipgloss"
)

const (
	gaugeWidth    = 30
	progressWidth = 20
)

var (
	colorOverbought = lipgloss.Color("#ff1b1b")
	colorOversold   = lipgloss.Color("#17a122")
	colorNeutral    = lipgloss.Color("#3b82f6")
	colorMuted      = lipgloss.Color("#64748b")
	colorAmber      = lipgloss.Color("#f59e0b")
	colorEmerald    = lipgloss.Color("#34d399")
	colorRose       = lipgloss.Color("#fb7185")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f8fafc"))
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle = lipgloss.NewStyle().Foreground(colorRose)
	alertStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffffff")).Background(colorOverbought).Padding(0, 1)
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorMuted).Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Foreground(colorMuted).Width(10)
	badgeStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
)

func zoneColor(z view.Zone) lipgloss.Color {
	switch z {
	case view.ZoneOverbought:
		return colorOverbought
	case view.ZoneOversold:
		return colorOversold
	default:
		return colorNeutral
	}
}

func warmupColor(w domain.WarmupStatus) lipgloss.Color {
	switch w {
	case domain.WarmupStable:
		return colorEmerald
	case domain.WarmupWarming:
		return colorAmber
	default:
		return colorMuted
	}
}

// bar renders fraction of width as filled cells.
func bar(fraction float64, width int) (filled, empty string) {
	if math.IsNaN(fraction) || fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	n := int(math.Round(fraction * float64(width)))
	return strings.Repeat("█", n), strings.Repeat("░", width-n)
}

func renderGauge(st view.State) string {
	filled, empty := bar(st.Gauge, gaugeWidth)
	color := zoneColor(st.Zone)
	return lipgloss.NewStyle().Foreground(color).Render(filled) +
		mutedStyle.Render(empty) + " " +
		lipgloss.NewStyle().Bold(true).Foreground(color).Render(fmt.Sprintf("%s %s", st.RSIText, st.Zone))
}

func renderProgress(st view.State) string {
	if !st.ShowProgress {
		return mutedStyle.Render(fmt.Sprintf("%d samples", st.RSICount))
	}
	filled, empty := bar(st.Progress, progressWidth)
	color := colorAmber
	if st.Progress >= 1 {
		color = colorEmerald
	}
	return lipgloss.NewStyle().Foreground(color).Render(filled) + mutedStyle.Render(empty) +
		fmt.Sprintf(" %d samples", st.RSICount)
}

var sparkTicks = []rune("▁▂▃▄▅▆▇█")

// sparkline draws the last width values scaled between their min and max.
func sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	var b strings.Builder
	for _, v := range values {
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparkTicks)-1))
		}
		b.WriteRune(sparkTicks[idx])
	}
	return b.String()
}

func closes(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
