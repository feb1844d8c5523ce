// Package sendgrid delivers mail through the SendGrid v3 API.
package sendgrid

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/target/studentdash/internal/ports"
)

const (
	defaultHost = "https://api.sendgrid.com"
	endpoint    = "/v3/mail/send"
)

// Config holds the API key and sender identity.
type Config struct {
	APIKey   string
	From     string
	FromName string
	// SubjectPrefix is prepended to every subject, e.g. "[StudentDash] ".
	SubjectPrefix string
	// Host overrides the API host; tests point it at httptest.
	Host string
}

// Mailer implements ports.Mailer.
type Mailer struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
}

var _ ports.Mailer = (*Mailer)(nil)

// New validates cfg and returns a mailer.
func New(cfg Config) (*Mailer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("sendgrid: API key is required")
	}
	if cfg.From == "" {
		return nil, errors.New("sendgrid: from address is required")
	}
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}
	return &Mailer{
		key:        cfg.APIKey,
		host:       host,
		from:       sgmail.NewEmail(cfg.FromName, cfg.From),
		subjPrefix: cfg.SubjectPrefix,
	}, nil
}

func (m *Mailer) prepare(msg ports.MailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.To))

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)
	if msg.Text != "" {
		v3.AddContent(sgmail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		v3.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return v3
}

// Send posts msg to SendGrid. Any 4xx or 5xx response is an error.
func (m *Mailer) Send(ctx context.Context, msg ports.MailMessage) error {
	if msg.To == "" {
		return errors.New("sendgrid: message has no recipient")
	}
	if msg.Text == "" && msg.HTML == "" {
		return errors.New("sendgrid: message has no content")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(m.key, endpoint, m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid responded %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
