package config

import (
	"strings"
	"time"
)

const defaultObservabilityName = "studentdash"

// ObservabilityConfig groups metrics emission and roster change fan-out.
type ObservabilityConfig struct {
	Metrics MetricsConfig `envPrefix:"STATSD_"`
	Slack   SlackConfig   `envPrefix:"SLACK_"`
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
	c.Slack.Sanitize()
}

// MetricsConfig controls StatsD emission.
type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"false"`
	Address string `env:"ADDRESS" envDefault:"127.0.0.1:8125"`
	Prefix  string `env:"PREFIX"  envDefault:"studentdash"`
}

// Sanitize disables emission when no address is left after trimming.
func (c *MetricsConfig) Sanitize() {
	c.Address = strings.TrimSpace(c.Address)
	c.Prefix = strings.Trim(strings.TrimSpace(c.Prefix), ".")
	if c.Address == "" {
		c.Enabled = false
	}
}

// IsEnabled returns true when metrics emission is active after sanitisation.
func (c *MetricsConfig) IsEnabled() bool {
	return c.Enabled && c.Address != ""
}

// SlackConfig posts every roster change to a team channel.
type SlackConfig struct {
	WebhookURL string        `env:"WEBHOOK_URL"`
	Channel    string        `env:"CHANNEL"`
	Username   string        `env:"USERNAME"    envDefault:"studentdash"`
	Timeout    time.Duration `env:"TIMEOUT"     envDefault:"5s"`
	RetryLimit int           `env:"RETRY_LIMIT" envDefault:"3"`
}

// Sanitize normalises webhook settings.
func (c *SlackConfig) Sanitize() {
	c.WebhookURL = strings.TrimSpace(c.WebhookURL)
	c.Channel = strings.TrimSpace(c.Channel)
	if c.Username = strings.TrimSpace(c.Username); c.Username == "" {
		c.Username = defaultObservabilityName
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RetryLimit < 0 {
		c.RetryLimit = 0
	}
}

// Enabled reports whether a webhook is configured.
func (c SlackConfig) Enabled() bool { return c.WebhookURL != "" }
