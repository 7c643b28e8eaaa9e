package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"marketpulse-dash/internal/domain"
	"marketpulse-dash/internal/poller"
	"marketpulse-dash/internal/view"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Controller is the dashboard session driven by the model.
type Controller interface {
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	Authenticated() bool
	TogglePolling() (poller.Status, error)
	PollStatus() poller.Status
	UpdateConfig(cfg domain.PollConfig) domain.PollConfig
	Config() domain.PollConfig
}

type screen int

const (
	screenLogin screen = iota
	screenDashboard
)

const (
	fieldSymbol = iota
	fieldLow
	fieldHigh
	fieldInterval
	fieldCount
)

var fieldLabels = [fieldCount]string{"Symbol", "RSI low", "RSI high", "Interval"}

type loginResultMsg struct{ err error }

type toggleResultMsg struct {
	status poller.Status
	err    error
}

type logoutResultMsg struct{ err error }

type Model struct {
	ctx   context.Context
	ctrl  Controller
	feed  *Feed
	title string

	screen   screen
	username textinput.Model
	password textinput.Model
	busy     bool
	loginErr string

	state   *view.State
	pollErr string
	candles table.Model

	editing   bool
	edit      [fieldCount]textinput.Model
	editFocus int
	editErr   string

	width  int
	height int
}

// NewModel builds the dashboard program model. title is shown in the
// header, e.g. the SSH user name.
func NewModel(ctx context.Context, ctrl Controller, feed *Feed, title string) *Model {
	user := textinput.New()
	user.Placeholder = "username"
	user.CharLimit = 64
	user.Focus()

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.CharLimit = 128
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'

	m := &Model{
		ctx:      ctx,
		ctrl:     ctrl,
		feed:     feed,
		title:    title,
		username: user,
		password: pass,
		candles:  newCandleTable(),
	}
	for i := range m.edit {
		m.edit[i] = textinput.New()
		m.edit[i].Prompt = ""
		m.edit[i].CharLimit = 16
	}
	if ctrl.Authenticated() {
		m.screen = screenDashboard
	}
	return m
}

func newCandleTable() table.Model {
	cols := []table.Column{
		{Title: "Time", Width: 8},
		{Title: "Open", Width: 10},
		{Title: "High", Width: 10},
		{Title: "Low", Width: 10},
		{Title: "Close", Width: 10},
		{Title: "Volume", Width: 10},
	}
	return table.New(table.WithColumns(cols), table.WithHeight(view.DefaultLayout.TableRows), table.WithFocused(false))
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.feed.Next())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case StateMsg:
		st := msg.State
		m.state = &st
		m.pollErr = ""
		m.candles.SetRows(candleRows(st.Table))
		return m, m.feed.Next()

	case TickErrorMsg:
		m.pollErr = "Poll error: " + msg.Err.Error()
		return m, m.feed.Next()

	case ResetMsg:
		m.state = nil
		m.pollErr = ""
		m.candles.SetRows(nil)
		return m, m.feed.Next()

	case loginResultMsg:
		m.busy = false
		if msg.err != nil {
			m.loginErr = msg.err.Error()
			return m, nil
		}
		m.loginErr = ""
		m.password.SetValue("")
		m.screen = screenDashboard
		return m, nil

	case toggleResultMsg:
		if msg.err != nil {
			m.pollErr = msg.err.Error()
		}
		return m, nil

	case logoutResultMsg:
		m.toLogin()
		if msg.err != nil {
			m.loginErr = "Logout: " + msg.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.screen == screenLogin {
			return m.updateLogin(msg)
		}
		if m.editing {
			return m.updateEdit(msg)
		}
		return m.updateDashboard(msg)
	}
	return m, nil
}

func (m *Model) toLogin() {
	m.screen = screenLogin
	m.state = nil
	m.editing = false
	m.pollErr = ""
	m.loginErr = ""
	m.candles.SetRows(nil)
	m.password.SetValue("")
	m.password.Blur()
	m.username.Focus()
}

func (m *Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	switch msg.String() {
	case "tab", "shift+tab", "up", "down":
		m.swapLoginFocus()
		return m, nil
	case "enter":
		if m.username.Focused() {
			m.swapLoginFocus()
			return m, nil
		}
		m.busy = true
		m.loginErr = ""
		return m, m.loginCmd(m.username.Value(), m.password.Value())
	}

	var cmd tea.Cmd
	if m.username.Focused() {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m *Model) swapLoginFocus() {
	if m.username.Focused() {
		m.username.Blur()
		m.password.Focus()
		return
	}
	m.password.Blur()
	m.username.Focus()
}

func (m *Model) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "s":
		return m, m.toggleCmd()
	case "e":
		m.startEdit()
		return m, nil
	case "L":
		return m, m.logoutCmd()
	}
	return m, nil
}

func (m *Model) startEdit() {
	cfg := m.ctrl.Config()
	values := [fieldCount]string{
		cfg.Symbol,
		strconv.FormatFloat(cfg.RSILow, 'f', -1, 64),
		strconv.FormatFloat(cfg.RSIHigh, 'f', -1, 64),
		strconv.Itoa(cfg.IntervalMS),
	}
	for i := range m.edit {
		m.edit[i].SetValue(values[i])
		m.edit[i].Blur()
	}
	m.editFocus = fieldSymbol
	m.edit[fieldSymbol].Focus()
	m.editErr = ""
	m.editing = true
}

func (m *Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		m.editErr = ""
		return m, nil
	case "tab", "down":
		m.focusField((m.editFocus + 1) % fieldCount)
		return m, nil
	case "shift+tab", "up":
		m.focusField((m.editFocus + fieldCount - 1) % fieldCount)
		return m, nil
	case "enter":
		cfg, err := m.parseEdit()
		if err != nil {
			m.editErr = err.Error()
			return m, nil
		}
		m.ctrl.UpdateConfig(cfg)
		m.editing = false
		m.editErr = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.edit[m.editFocus], cmd = m.edit[m.editFocus].Update(msg)
	return m, cmd
}

func (m *Model) focusField(i int) {
	m.edit[m.editFocus].Blur()
	m.editFocus = i
	m.edit[i].Focus()
}

func (m *Model) parseEdit() (domain.PollConfig, error) {
	cfg := m.ctrl.Config()
	cfg.Symbol = strings.ToUpper(strings.TrimSpace(m.edit[fieldSymbol].Value()))

	low, err := strconv.ParseFloat(strings.TrimSpace(m.edit[fieldLow].Value()), 64)
	if err != nil || low < 0 || low > 100 {
		return cfg, fmt.Errorf("RSI low must be a number between 0 and 100")
	}
	high, err := strconv.ParseFloat(strings.TrimSpace(m.edit[fieldHigh].Value()), 64)
	if err != nil || high < 0 || high > 100 {
		return cfg, fmt.Errorf("RSI high must be a number between 0 and 100")
	}
	interval, err := strconv.Atoi(strings.TrimSpace(m.edit[fieldInterval].Value()))
	if err != nil || interval <= 0 {
		return cfg, fmt.Errorf("interval must be a positive number of milliseconds")
	}

	cfg.RSILow, cfg.RSIHigh, cfg.IntervalMS = low, high, interval
	return cfg, nil
}

func (m *Model) loginCmd(username, password string) tea.Cmd {
	return func() tea.Msg {
		return loginResultMsg{err: m.ctrl.Login(m.ctx, username, password)}
	}
}

func (m *Model) toggleCmd() tea.Cmd {
	return func() tea.Msg {
		status, err := m.ctrl.TogglePolling()
		return toggleResultMsg{status: status, err: err}
	}
}

func (m *Model) logoutCmd() tea.Cmd {
	return func() tea.Msg {
		return logoutResultMsg{err: m.ctrl.Logout(m.ctx)}
	}
}

func candleRows(candles []domain.Candle) []table.Row {
	rows := make([]table.Row, len(candles))
	for i, c := range candles {
		rows[i] = table.Row{
			c.Time().Local().Format("15:04:05"),
			fmt.Sprintf("%.2f", c.Open),
			fmt.Sprintf("%.2f", c.High),
			fmt.Sprintf("%.2f", c.Low),
			fmt.Sprintf("%.2f", c.Close),
			strconv.FormatInt(c.Volume, 10),
		}
	}
	return rows
}

func (m *Model) View() string {
	if m.screen == screenLogin {
		return m.viewLogin()
	}
	return m.viewDashboard()
}

func (m *Model) header() string {
	title := "MarketPulse RSI"
	if m.title != "" {
		title += " · " + m.title
	}
	return titleStyle.Render(title)
}

func (m *Model) viewLogin() string {
	var b strings.Builder
	b.WriteString(m.header() + "\n\n")
	b.WriteString(m.username.View() + "\n")
	b.WriteString(m.password.View() + "\n\n")
	switch {
	case m.busy:
		b.WriteString(mutedStyle.Render("Signing in...") + "\n")
	case m.loginErr != "":
		b.WriteString(errorStyle.Render(capitalize(m.loginErr)) + "\n")
	}
	b.WriteString(mutedStyle.Render("tab switch field · enter submit · ctrl+c quit"))
	return b.String()
}

func (m *Model) viewDashboard() string {
	cfg := m.ctrl.Config()
	status := m.ctrl.PollStatus()

	var b strings.Builder
	statusColor := colorMuted
	if status == poller.Running {
		statusColor = colorEmerald
	}
	b.WriteString(m.header() + "  " +
		lipgloss.NewStyle().Foreground(statusColor).Render("● "+status.String()) + "  " +
		mutedStyle.Render(fmt.Sprintf("%s · low %g · high %g · every %dms", cfg.Symbol, cfg.RSILow, cfg.RSIHigh, cfg.IntervalMS)) +
		"\n\n")

	if m.editing {
		b.WriteString(m.viewEdit() + "\n\n")
	}

	if m.state == nil {
		b.WriteString(mutedStyle.Render("Waiting for data...") + "\n")
	} else {
		b.WriteString(m.viewState(*m.state))
	}

	if m.pollErr != "" {
		b.WriteString("\n" + errorStyle.Render(m.pollErr) + "\n")
	}
	b.WriteString("\n" + mutedStyle.Render("s start/stop · e edit · L logout · q quit"))
	return b.String()
}

func (m *Model) viewEdit() string {
	var lines []string
	for i := range m.edit {
		label := labelStyle.Render(fieldLabels[i])
		if i == m.editFocus {
			label = labelStyle.Foreground(colorNeutral).Render(fieldLabels[i])
		}
		lines = append(lines, label+m.edit[i].View())
	}
	if m.editErr != "" {
		lines = append(lines, errorStyle.Render(m.editErr))
	}
	lines = append(lines, mutedStyle.Render("tab next · enter apply · esc cancel"))
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) viewState(st view.State) string {
	var b strings.Builder

	if st.Alert != "" {
		b.WriteString(alertStyle.Render(st.Alert) + "\n\n")
	}

	b.WriteString(labelStyle.Render("RSI") + renderGauge(st) + "\n")

	warmup := badgeStyle.Foreground(warmupColor(st.Warmup)).Render(st.WarmupBadge)
	if st.SeededBadge != "" {
		warmup += " " + mutedStyle.Render(st.SeededBadge)
	}
	b.WriteString(labelStyle.Render("Warmup") + warmup + "\n")
	b.WriteString(labelStyle.Render("Count") + renderProgress(st) + "\n")

	changeColor := colorRose
	if st.ChangeUp {
		changeColor = colorEmerald
	}
	b.WriteString(labelStyle.Render("Change") + lipgloss.NewStyle().Foreground(changeColor).Render(st.ChangeText) + "\n")

	validColor := colorAmber
	if st.Valid {
		validColor = colorEmerald
	}
	b.WriteString(labelStyle.Render("Valid") + lipgloss.NewStyle().Foreground(validColor).Render(st.ValidText) + "\n")

	last := "-"
	if !st.LastFetch.IsZero() {
		last = st.LastFetch.Local().Format(time.TimeOnly)
	}
	b.WriteString(labelStyle.Render("Last") + last + "\n\n")

	chartWidth := view.DefaultLayout.ChartPoints
	if m.width > 0 && m.width-12 < chartWidth {
		chartWidth = max(m.width-12, 1)
	}
	chart := sparkline(closes(st.Chart), chartWidth)
	if chart != "" {
		b.WriteString(labelStyle.Render("Close") + lipgloss.NewStyle().Foreground(colorNeutral).Render(chart) + "\n")
		if len(st.RSILine) > 0 {
			b.WriteString(labelStyle.Render("") + mutedStyle.Render(fmt.Sprintf("RSI line %s", st.RSIText)) + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(m.candles.View() + "\n")
	b.WriteString(mutedStyle.Render(st.CachedText) + "\n")
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
