package mail

import (
	"context"
	"net/mail"
)

// Message is a plain text email with an optional HTML alternative.
type Message struct {
	To          []mail.Address
	Subject     string
	TextContent string
	HTMLContent string
}

func (m *Message) HasRecipients() bool {
	return len(m.To) > 0
}

func (m *Message) HasContent() bool {
	return m.TextContent != "" || m.HTMLContent != ""
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}
