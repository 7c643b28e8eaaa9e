package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketpulse-dash/internal/view"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// StatusProvider exposes the latest derived dashboard state.
type StatusProvider interface {
	Latest() (view.State, bool)
}

var newTeleBot = func(token string) (*tele.Bot, error) {
	return tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
}

// StartTelegramBot connects the bot, registers /ping and /status and starts
// the alert worker. It returns a nil notifier when token or chatID is unset.
// Everything stops when ctx is done.
func StartTelegramBot(ctx context.Context, token string, chatID int64, status StatusProvider, logger *zap.Logger) (*Notifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if token == "" || chatID == 0 {
		logger.Info("telegram token or chat id not set, skipping telegram alerts")
		return nil, nil
	}

	b, err := newTeleBot(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})
	b.Handle("/status", func(c tele.Context) error {
		return c.Send(StatusText(status))
	})

	n := NewNotifier(b, chatID, logger, DefaultQueueSize)
	go n.Run(ctx)
	go b.Start()
	go func() {
		<-ctx.Done()
		b.Stop()
	}()

	logger.Info("telegram bot started", zap.Int64("chat_id", chatID))
	return n, nil
}

// StatusText renders the /status reply.
func StatusText(status StatusProvider) string {
	if status == nil {
		return "No data yet"
	}
	st, ok := status.Latest()
	if !ok {
		return "No data yet"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\nRSI: %s (%s)\n", strings.ToUpper(st.Symbol), st.RSIText, st.Zone)
	fmt.Fprintf(&b, "Change: %s\nWarmup: %s (%d samples)\nValid: %s", st.ChangeText, st.WarmupBadge, st.RSICount, st.ValidText)
	if st.Alert != "" {
		fmt.Fprintf(&b, "\nAlert: %s", st.Alert)
	}
	return b.String()
}
