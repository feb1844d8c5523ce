package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - http",
			input:    "http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:     "single service - notifier",
			input:    "notifier",
			expected: map[ServiceMode]bool{ServiceModeNotifier: true},
		},
		{
			name:  "services with spaces and duplicates",
			input: " http , notifier , http ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:     true,
				ServiceModeNotifier: true,
			},
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
		},
		{
			name:        "only commas",
			input:       " , ,",
			expectError: true,
		},
		{
			name:        "unknown service",
			input:       "http,scheduler",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	tests := []struct {
		services     string
		wantHTTP     bool
		wantNotifier bool
	}{
		{services: "http", wantHTTP: true},
		{services: "notifier", wantNotifier: true},
		{services: "http,notifier", wantHTTP: true, wantNotifier: true},
		{services: "bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.services, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services}
			if got := cfg.IsHTTPServerEnabled(); got != tt.wantHTTP {
				t.Errorf("IsHTTPServerEnabled() = %v, want %v", got, tt.wantHTTP)
			}
			if got := cfg.IsNotifierEnabled(); got != tt.wantNotifier {
				t.Errorf("IsNotifierEnabled() = %v, want %v", got, tt.wantNotifier)
			}
		})
	}
}

func TestValidServiceModes(t *testing.T) {
	modes := ValidServiceModes()
	if len(modes) != 2 {
		t.Fatalf("expected 2 service modes, got %d", len(modes))
	}
	for _, m := range modes {
		if _, err := ParseServices(string(m)); err != nil {
			t.Errorf("mode %q does not parse: %v", m, err)
		}
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Auth.Federated != FederatedNone {
		t.Errorf("federated = %q, want none", cfg.Auth.Federated)
	}
	if cfg.Auth.LoadingWait != 1500*time.Millisecond {
		t.Errorf("loading wait = %v", cfg.Auth.LoadingWait)
	}
	if cfg.Auth.MinPasswordLength != 6 {
		t.Errorf("min password length = %d", cfg.Auth.MinPasswordLength)
	}
	if cfg.Storage.Backend != StorageMemory || !cfg.Storage.Seed {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Mail.Provider != MailLog {
		t.Errorf("mail provider = %q", cfg.Mail.Provider)
	}
	if cfg.Events.Backend != "gochannel" || cfg.Events.Topic != "students.changed" {
		t.Errorf("events = %+v", cfg.Events)
	}
	if cfg.Rollbar.Enabled() {
		t.Errorf("rollbar enabled without a token")
	}
	if !cfg.IsHTTPServerEnabled() || !cfg.IsNotifierEnabled() {
		t.Errorf("default services = %q", cfg.Services)
	}
}

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_FEDERATED", "OIDC")
	t.Setenv("HTTP_BASE_URL", "https://students.example.com/")
	t.Setenv("OAUTH_CLIENT_ID", "app-client")
	t.Setenv("OAUTH_CLIENT_SECRET", "super-secret")
	t.Setenv("OAUTH_DISCOVERY_URL", " https://login.example.com/.well-known/openid-configuration ")
	t.Setenv("OAUTH_DISPLAY_NAME_CLAIM", "join(' ', [given_name, family_name])")
	t.Setenv("AUTH_SESSION_TTL", "24h")
	t.Setenv("AUTH_LOADING_WAIT", "2s")
	t.Setenv("AUTH_MIN_PASSWORD_LENGTH", "10")
	t.Setenv("AUTH_VERIFICATION_SECRET", "shh")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	expected := AuthConfig{
		Federated: FederatedOIDC,
		OAuth: OAuthConfig{
			ClientID:         "app-client",
			ClientSecret:     "super-secret",
			RedirectURL:      "https://students.example.com/auth/callback",
			Scope:            "openid profile email",
			DiscoveryURL:     "https://login.example.com/.well-known/openid-configuration",
			DisplayNameClaim: "join(' ', [given_name, family_name])",
			AvatarClaim:      "picture",
			Label:            "Continue with SSO",
		},
		Casdoor: CasdoorConfig{Organization: "built-in"},
		DevAuth: DevAuthConfig{
			Subject:     "dev-user",
			Email:       "dev@example.com",
			DisplayName: "Dev User",
		},
		SessionTTL:         24 * time.Hour,
		ClientIdleTTL:      30 * time.Minute,
		LoadingWait:        2 * time.Second,
		RecentLoginWindow:  5 * time.Minute,
		MinPasswordLength:  10,
		VerificationSecret: "shh",
	}

	if !reflect.DeepEqual(cfg.Auth, expected) {
		t.Fatalf("unexpected auth configuration:\nexpected: %#v\ngot:      %#v", expected, cfg.Auth)
	}
	if got := cfg.Auth.FederatedLabel(); got != "Continue with SSO" {
		t.Errorf("label = %q", got)
	}
}

func TestAppConfig_RejectsUnknownEnums(t *testing.T) {
	for key, value := range map[string]string{
		"AUTH_FEDERATED":  "saml",
		"STORAGE_BACKEND": "sqlite",
		"MAIL_PROVIDER":   "smtp",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			var cfg AppConfig
			if err := env.Parse(&cfg); err == nil {
				t.Fatalf("expected %s=%s to be rejected", key, value)
			}
		})
	}
}

func TestAuthConfig_Sanitize(t *testing.T) {
	cfg := AuthConfig{
		LoadingWait:       time.Hour,
		MinPasswordLength: 2,
		Casdoor:           CasdoorConfig{Endpoint: " https://door.example.com/ "},
	}
	cfg.Sanitize()

	if cfg.Federated != FederatedNone {
		t.Errorf("federated = %q", cfg.Federated)
	}
	if cfg.LoadingWait != 30*time.Second {
		t.Errorf("loading wait not clamped: %v", cfg.LoadingWait)
	}
	if cfg.MinPasswordLength != 6 {
		t.Errorf("min password length not raised: %d", cfg.MinPasswordLength)
	}
	if cfg.SessionTTL != time.Minute || cfg.ClientIdleTTL != time.Minute {
		t.Errorf("ttl floors not applied: %v %v", cfg.SessionTTL, cfg.ClientIdleTTL)
	}
	if cfg.Casdoor.Endpoint != "https://door.example.com" {
		t.Errorf("endpoint = %q", cfg.Casdoor.Endpoint)
	}
}

func TestAppConfig_CasdoorRedirectDefaultsToBaseURL(t *testing.T) {
	cfg := AppConfig{
		HTTP: HTTPConfig{BaseURL: "https://students.example.com"},
		Auth: AuthConfig{Federated: FederatedCasdoor},
	}
	cfg.Sanitize()
	if cfg.Auth.Casdoor.RedirectURL != "https://students.example.com/auth/callback" {
		t.Errorf("casdoor redirect = %q", cfg.Auth.Casdoor.RedirectURL)
	}
	if cfg.Auth.FederatedLabel() != "Continue with Casdoor" {
		t.Errorf("label = %q", cfg.Auth.FederatedLabel())
	}
}

func TestHTTPConfig_Sanitize(t *testing.T) {
	h := HTTPConfig{CompressionLevel: 42, BaseURL: " http://localhost:8080/ "}
	h.Sanitize()
	if h.CompressionLevel != 9 {
		t.Errorf("level = %d", h.CompressionLevel)
	}
	if h.BaseURL != "http://localhost:8080" {
		t.Errorf("base url = %q", h.BaseURL)
	}

	h = HTTPConfig{CompressionLevel: 0}
	h.Sanitize()
	if h.CompressionLevel != 1 {
		t.Errorf("level = %d", h.CompressionLevel)
	}
	if h.Addr != ":8080" || h.WriteTimeout != 60*time.Second || h.ShutdownTimeout != 10*time.Second {
		t.Errorf("server defaults = %q %v %v", h.Addr, h.WriteTimeout, h.ShutdownTimeout)
	}
}

func TestMailConfig_DevFallsBackToLog(t *testing.T) {
	m := MailConfig{Provider: MailSendGrid}
	m.Sanitize(true)
	if m.Provider != MailLog {
		t.Errorf("dev without key should log mail, got %q", m.Provider)
	}

	m = MailConfig{Provider: MailSendGrid}
	m.Sanitize(false)
	if m.Provider != MailSendGrid {
		t.Errorf("production keeps sendgrid so validation can fail loudly, got %q", m.Provider)
	}
}

func TestEventsConfig_Sanitize(t *testing.T) {
	e := EventsConfig{Backend: " Kafka ", KafkaBrokers: []string{" a:9092", "", "b:9092 "}}
	e.Sanitize()
	if e.Backend != "kafka" {
		t.Errorf("backend = %q", e.Backend)
	}
	if !reflect.DeepEqual(e.KafkaBrokers, []string{"a:9092", "b:9092"}) {
		t.Errorf("brokers = %v", e.KafkaBrokers)
	}
}

func TestRollbarConfig_Sanitize(t *testing.T) {
	r := RollbarConfig{Token: " tok "}
	r.Sanitize(false)
	if !r.Enabled() || r.Environment != "production" {
		t.Errorf("rollbar = %+v", r)
	}
	r = RollbarConfig{}
	r.Sanitize(true)
	if r.Enabled() || r.Environment != "development" {
		t.Errorf("rollbar = %+v", r)
	}
}

func TestAppConfig_DetectDevModeFromNodeEnv(t *testing.T) {
	t.Setenv("NODE_ENV", "Development")
	cfg := AppConfig{}
	cfg.Sanitize()
	if !cfg.IsDev {
		t.Fatal("expected NODE_ENV=development to enable dev mode")
	}
}

func TestObservabilityConfig_Sanitize(t *testing.T) {
	o := ObservabilityConfig{
		Metrics: MetricsConfig{Enabled: true, Address: "  ", Prefix: ".studentdash."},
		Slack:   SlackConfig{WebhookURL: " https://hooks.example.com/x ", Username: " ", Timeout: -1, RetryLimit: -2},
	}
	o.Sanitize()
	if o.Metrics.IsEnabled() || o.Metrics.Prefix != "studentdash" {
		t.Errorf("metrics = %+v", o.Metrics)
	}
	if !o.Slack.Enabled() || o.Slack.WebhookURL != "https://hooks.example.com/x" {
		t.Errorf("slack webhook = %q", o.Slack.WebhookURL)
	}
	if o.Slack.Username != "studentdash" || o.Slack.Timeout != 5*time.Second || o.Slack.RetryLimit != 0 {
		t.Errorf("slack = %+v", o.Slack)
	}
}

func TestDBConfig_DSNEscapesCredentials(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss/word", Name: "roster", SSLMode: "require"}
	want := "postgres://app:p%40ss%2Fword@db:5432/roster?sslmode=require"
	if got := c.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestDBConfig_Sanitize(t *testing.T) {
	c := DBConfig{MaxOpenConns: 2, MaxIdleConns: 10}
	c.Sanitize()
	if c.MaxIdleConns != 2 {
		t.Errorf("MaxIdleConns = %d, want clamp to 2", c.MaxIdleConns)
	}
	if c.ConnMaxLifetime != 5*time.Minute || c.ConnectTimeout != 5*time.Second {
		t.Errorf("durations = %v, %v", c.ConnMaxLifetime, c.ConnectTimeout)
	}
}
