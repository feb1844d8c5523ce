package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Authentication and federated login configuration
//   - database.go: Storage backend, Postgres and Redis configuration
//   - http.go: HTTP server configuration
//   - integrations.go: Mail, student events and error reporting
//   - observability.go: StatsD metrics and Slack roster updates
//   - services.go: Service modes
type AppConfig struct {
	// IsDev controls development mode behavior (templates from disk, no asset caching).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Authentication configuration
	Auth AuthConfig

	// Storage configuration
	Storage  StorageConfig
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Outbound integrations
	Mail    MailConfig
	Events  EventsConfig  `envPrefix:"EVENTS_"`
	Rollbar RollbarConfig `envPrefix:"ROLLBAR_"`

	// Metrics and roster change fan-out
	Observability ObservabilityConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http,notifier"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	// Check NODE_ENV for dev mode first; other sections default differently in dev.
	c.detectDevMode()

	c.HTTP.Sanitize()
	c.Auth.Sanitize()
	c.Storage.Sanitize()
	c.Postgres.Sanitize()
	c.Mail.Sanitize(c.IsDev)
	c.Events.Sanitize()
	c.Rollbar.Sanitize(c.IsDev)
	c.Observability.Sanitize()

	if c.Auth.Federated != FederatedNone && c.Auth.OAuth.RedirectURL == "" {
		c.Auth.OAuth.RedirectURL = c.HTTP.BaseURL + "/auth/callback"
	}
	if c.Auth.Federated == FederatedCasdoor && c.Auth.Casdoor.RedirectURL == "" {
		c.Auth.Casdoor.RedirectURL = c.HTTP.BaseURL + "/auth/callback"
	}
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsNotifierEnabled returns true if the student change notifier is enabled.
func (c *AppConfig) IsNotifierEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeNotifier]
}
