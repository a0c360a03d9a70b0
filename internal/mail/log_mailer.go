package mail

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// LogMailer writes messages to the log instead of sending them. It keeps
// every message so tests can inspect them.
type LogMailer struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Message
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (l *LogMailer) Send(_ context.Context, msg *Message) error {
	if !msg.HasRecipients() || !msg.HasContent() {
		return nil
	}

	to := make([]string, 0, len(msg.To))
	for _, a := range msg.To {
		to = append(to, a.String())
	}
	l.logger.Info("Email (not sent)",
		"to", strings.Join(to, ", "),
		"subject", msg.Subject,
		"body", msg.TextContent)

	l.mu.Lock()
	l.sent = append(l.sent, *msg)
	l.mu.Unlock()
	return nil
}

func (l *LogMailer) Sent() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.sent))
	copy(out, l.sent)
	return out
}
