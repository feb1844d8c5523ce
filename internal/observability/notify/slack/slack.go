// Package slack posts roster changes to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/target/studentdash/internal/observability/notify"
)

// Config holds the webhook settings.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// StudentURLPrefix links student names, e.g. "https://dash.example.com/student".
	StudentURLPrefix string
}

// Client delivers roster changes to one webhook.
type Client struct {
	webhookURL string
	channel    string
	username   string
	retryLimit int
	studentURL *url.URL
	client     *http.Client
}

var _ notify.Sink = (*Client)(nil)

// NewClient builds a webhook client.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = "studentdash"
	}
	return &Client{
		webhookURL: webhookURL,
		channel:    strings.TrimSpace(cfg.Channel),
		username:   username,
		retryLimit: max(cfg.RetryLimit, 0),
		studentURL: parseLinkPrefix(cfg.StudentURLPrefix),
		client:     hc,
	}, nil
}

// parseLinkPrefix returns nil unless prefix is an absolute URL.
func parseLinkPrefix(prefix string) *url.URL {
	u, err := url.Parse(strings.TrimSpace(prefix))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return u
}

// SendRosterChange posts change, retrying with a linear backoff.
func (c *Client) SendRosterChange(ctx context.Context, change notify.RosterChange) error {
	body, err := json.Marshal(c.message(change))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryLimit; attempt++ {
		if attempt > 0 {
			if waitErr := sleep(ctx, time.Duration(attempt)*200*time.Millisecond); waitErr != nil {
				return waitErr
			}
		}
		if lastErr = c.post(ctx, body); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type webhookMessage struct {
	Text     string `json:"text"`
	Username string `json:"username"`
	Channel  string `json:"channel,omitempty"`
}

func (c *Client) message(change notify.RosterChange) webhookMessage {
	at := change.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	summary := change.Summary
	if summary == "" {
		summary = "Roster changed"
	}

	var text strings.Builder
	text.WriteString("*Roster update*: ")
	text.WriteString(escape(summary))
	text.WriteByte('\n')
	writeField(&text, "Student", c.studentValue(change))
	writeField(&text, "Changed by", escape(change.ActorEmail))
	writeField(&text, "Time", at.UTC().Format(time.RFC3339))

	return webhookMessage{
		Text:     strings.TrimSuffix(text.String(), "\n"),
		Username: c.username,
		Channel:  c.channel,
	}
}

// studentValue links the student's page unless the student was removed.
func (c *Client) studentValue(change notify.RosterChange) string {
	name := escape(strings.TrimSpace(change.StudentName))
	id := strings.TrimSpace(change.StudentID)
	if name == "" {
		name = escape(id)
	}
	if c.studentURL == nil || id == "" || change.Kind == "deleted" {
		return name
	}
	return "<" + c.studentURL.JoinPath(id).String() + "|" + name + ">"
}

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(s string) string { return slackEscaper.Replace(s) }

func writeField(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	b.WriteString("• ")
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteByte('\n')
}

func (c *Client) post(ctx context.Context, body []byte) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close response body: %w", closeErr))
		}
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
			return fmt.Errorf("drain slack response body: %w", drainErr)
		}
		return nil
	}
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if readErr != nil {
		return fmt.Errorf("read slack error response: %w", readErr)
	}
	return fmt.Errorf("slack webhook %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
}
