package tui

import (
	"sync"

	"marketpulse-dash/internal/domain"
	"marketpulse-dash/internal/view"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

const DefaultFeedSize = 8

type StateMsg struct {
	State view.State
}

type TickErrorMsg struct {
	Err error
}

// ResetMsg tells the model its session state was dropped.
type ResetMsg struct{}

// Feed carries dashboard events from the poll loop into a bubbletea
// program. It never blocks the loop: events are dropped when the buffer is
// full.
type Feed struct {
	layout view.Layout
	logger *zap.Logger
	ch     chan tea.Msg

	closeOnce sync.Once
	done      chan struct{}
}

func NewFeed(layout view.Layout, size int, logger *zap.Logger) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		layout: layout,
		logger: logger,
		ch:     make(chan tea.Msg, size),
		done:   make(chan struct{}),
	}
}

func (f *Feed) OnSnapshot(snap *domain.Snapshot, window []domain.Candle) {
	f.send(StateMsg{State: view.Derive(snap, window, f.layout)})
}

func (f *Feed) OnTickError(err error) {
	f.send(TickErrorMsg{Err: err})
}

// Reset always gets through: queued events describe the dropped state, so
// they are discarded to make room.
func (f *Feed) Reset() {
	for {
		select {
		case <-f.done:
			return
		case f.ch <- ResetMsg{}:
			return
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

func (f *Feed) send(msg tea.Msg) {
	select {
	case <-f.done:
		return
	default:
	}
	select {
	case f.ch <- msg:
	default:
		f.logger.Debug("tui feed full, dropping event")
	}
}

// Next waits for the next event. It returns nil once the feed is closed.
func (f *Feed) Next() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-f.ch:
			return msg
		case <-f.done:
			return nil
		}
	}
}

func (f *Feed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
