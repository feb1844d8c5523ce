package config

import (
	"fmt"
	"strings"
)

// MailProvider selects how outgoing mail is delivered.
type MailProvider string

const (
	// MailLog writes messages to the structured log instead of sending them.
	MailLog MailProvider = "log"
	// MailSendGrid delivers through the SendGrid v3 API.
	MailSendGrid MailProvider = "sendgrid"
)

// UnmarshalText implements encoding.TextUnmarshaler for MailProvider.
func (p *MailProvider) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "log", "sendgrid":
		*p = MailProvider(v)
		return nil
	default:
		return fmt.Errorf("invalid MailProvider: %q (valid options: log, sendgrid)", v)
	}
}

// MailConfig controls verification and notification mail.
type MailConfig struct {
	Provider       MailProvider `env:"MAIL_PROVIDER"    envDefault:"log"`
	From           string       `env:"MAIL_FROM"        envDefault:"no-reply@studentdash.local"`
	FromName       string       `env:"MAIL_FROM_NAME"   envDefault:"Student Dashboard"`
	SendGridAPIKey string       `env:"SENDGRID_API_KEY"`
}

// Sanitize falls back to logged mail when SendGrid has no key in dev.
func (m *MailConfig) Sanitize(isDev bool) {
	m.From = strings.TrimSpace(m.From)
	m.SendGridAPIKey = strings.TrimSpace(m.SendGridAPIKey)
	if m.Provider == "" {
		m.Provider = MailLog
	}
	if isDev && m.Provider == MailSendGrid && m.SendGridAPIKey == "" {
		m.Provider = MailLog
	}
}

// EventsConfig selects the transport for student change events.
type EventsConfig struct {
	// Backend is gochannel (in process) or kafka.
	Backend       string   `env:"BACKEND"        envDefault:"gochannel"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS"`
	Topic         string   `env:"TOPIC"          envDefault:"students.changed"`
	ConsumerGroup string   `env:"CONSUMER_GROUP" envDefault:"studentdash-notifications"`
}

// Sanitize normalises the backend name and broker list.
func (e *EventsConfig) Sanitize() {
	e.Backend = strings.ToLower(strings.TrimSpace(e.Backend))
	if e.Backend == "" {
		e.Backend = "gochannel"
	}
	brokers := e.KafkaBrokers[:0]
	for _, b := range e.KafkaBrokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	e.KafkaBrokers = brokers
}

// RollbarConfig controls error reporting. An empty token disables it.
type RollbarConfig struct {
	Token       string `env:"TOKEN"`
	Environment string `env:"ENVIRONMENT"`
	CodeVersion string `env:"CODE_VERSION"`
}

// Sanitize picks an environment name when none is set.
func (r *RollbarConfig) Sanitize(isDev bool) {
	r.Token = strings.TrimSpace(r.Token)
	if r.Environment != "" {
		return
	}
	if isDev {
		r.Environment = "development"
		return
	}
	r.Environment = "production"
}

// Enabled reports whether a token is configured.
func (r *RollbarConfig) Enabled() bool { return r.Token != "" }
