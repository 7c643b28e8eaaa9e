package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"marketpulse-dash/internal/domain"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

const DefaultQueueSize = 16

// Sender is the part of *tele.Bot used to deliver alerts.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier forwards RSI alerts to one chat. It sends when the alert text
// appears or changes, never for a repeated alert.
type Notifier struct {
	sender Sender
	chat   tele.Recipient
	logger *zap.Logger
	queue  chan string

	mu   sync.Mutex
	last string
}

func NewNotifier(sender Sender, chatID int64, logger *zap.Logger, queueSize int) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Notifier{
		sender: sender,
		chat:   tele.ChatID(chatID),
		logger: logger,
		queue:  make(chan string, queueSize),
	}
}

func (n *Notifier) OnSnapshot(snap *domain.Snapshot, window []domain.Candle) {
	text := ""
	if snap.Alert != "" {
		text = fmt.Sprintf("%s: %s", strings.ToUpper(snap.Symbol), snap.Alert)
	}

	n.mu.Lock()
	changed := text != n.last
	n.last = text
	n.mu.Unlock()

	if !changed || text == "" {
		return
	}
	select {
	case n.queue <- text:
	default:
		n.logger.Warn("telegram queue full, dropping alert", zap.String("alert", text))
	}
}

// Reset forgets the last alert so the next one is sent again.
func (n *Notifier) Reset() {
	n.mu.Lock()
	n.last = ""
	n.mu.Unlock()
}

// Run delivers queued alerts until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-n.queue:
			if _, err := n.sender.Send(n.chat, text); err != nil {
				n.logger.Warn("telegram send failed", zap.String("alert", text), zap.Error(err))
			}
		}
	}
}
