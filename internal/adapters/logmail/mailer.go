// Package logmail is the development mailer: messages are written to the log.
package logmail

import (
	"context"
	"log/slog"
	"sync"

	"github.com/target/studentdash/internal/ports"
)

// Mailer logs each message and keeps the most recent ones for inspection.
type Mailer struct {
	log  *slog.Logger
	keep int

	mu   sync.Mutex
	sent []ports.MailMessage
}

var _ ports.Mailer = (*Mailer)(nil)

// New returns a mailer that retains up to 50 messages.
func New(logger *slog.Logger) *Mailer {
	return &Mailer{log: logger, keep: 50}
}

func (m *Mailer) logger() *slog.Logger {
	if m.log != nil {
		return m.log
	}
	return slog.Default()
}

func (m *Mailer) Send(ctx context.Context, msg ports.MailMessage) error {
	m.logger().InfoContext(ctx, "mail (not sent)",
		"to", msg.To,
		"subject", msg.Subject,
		"text", msg.Text,
	)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	if len(m.sent) > m.keep {
		m.sent = m.sent[len(m.sent)-m.keep:]
	}
	return nil
}

// Sent returns a copy of the retained messages, oldest first.
func (m *Mailer) Sent() []ports.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.MailMessage(nil), m.sent...)
}
