package config

import (
	"fmt"
	"strings"
	"time"
)

// FederatedMode selects the external identity provider offered next to password login.
type FederatedMode string

const (
	// FederatedNone disables federated login; the button is hidden and /auth/federated is 404.
	FederatedNone FederatedMode = "none"
	// FederatedOIDC uses any OpenID Connect provider via discovery.
	FederatedOIDC FederatedMode = "oidc"
	// FederatedCasdoor uses a Casdoor application.
	FederatedCasdoor FederatedMode = "casdoor"
	// FederatedDev signs in a fixed identity without leaving the app (development only).
	FederatedDev FederatedMode = "dev"
)

// UnmarshalText implements encoding.TextUnmarshaler for FederatedMode.
func (m *FederatedMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "", "none":
		*m = FederatedNone
		return nil
	case "oidc", "casdoor", "dev":
		*m = FederatedMode(v)
		return nil
	default:
		return fmt.Errorf("invalid FederatedMode: %q (valid options: none, oidc, casdoor, dev)", v)
	}
}

// OAuthConfig contains OIDC configuration.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	// RedirectURL defaults to HTTP_BASE_URL + "/auth/callback".
	RedirectURL  string `env:"REDIRECT_URL"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	// DisplayNameClaim and AvatarClaim are JMESPath expressions over the ID token claims.
	DisplayNameClaim string `env:"DISPLAY_NAME_CLAIM" envDefault:"name"`
	AvatarClaim      string `env:"AVATAR_CLAIM"       envDefault:"picture"`
	// Label is the text on the login button.
	Label string `env:"LABEL" envDefault:"Continue with SSO"`
}

// CasdoorConfig mirrors the Casdoor application settings.
type CasdoorConfig struct {
	Endpoint     string `env:"ENDPOINT"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Certificate  string `env:"CERTIFICATE"`
	Organization string `env:"ORGANIZATION" envDefault:"built-in"`
	Application  string `env:"APPLICATION"`
	RedirectURL  string `env:"REDIRECT_URL"`
}

// DevAuthConfig controls the dev federated identity.
// Used when AUTH_FEDERATED=dev for development and testing.
type DevAuthConfig struct {
	Subject     string `env:"SUBJECT"      envDefault:"dev-user"`
	Email       string `env:"EMAIL"        envDefault:"dev@example.com"`
	DisplayName string `env:"DISPLAY_NAME" envDefault:"Dev User"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Federated determines which external provider, if any, backs "Continue with ...".
	Federated FederatedMode `env:"AUTH_FEDERATED" envDefault:"none"`

	// OAuth configuration (used when Federated=oidc).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// Casdoor configuration (used when Federated=casdoor).
	Casdoor CasdoorConfig `envPrefix:"CASDOOR_"`

	// DevAuth configuration (used when Federated=dev).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// SessionTTL is how long a persisted browser session survives without activity.
	SessionTTL time.Duration `env:"AUTH_SESSION_TTL" envDefault:"168h"`

	// ClientIdleTTL is how long an unused in-process auth client is kept in memory.
	ClientIdleTTL time.Duration `env:"AUTH_CLIENT_IDLE_TTL" envDefault:"30m"`

	// LoadingWait bounds how long a request waits for a restoring session
	// before the loading placeholder is served.
	LoadingWait time.Duration `env:"AUTH_LOADING_WAIT" envDefault:"1500ms"`

	// RecentLoginWindow is how fresh a federated sign-in must be to delete the account.
	RecentLoginWindow time.Duration `env:"AUTH_RECENT_LOGIN_WINDOW" envDefault:"5m"`

	MinPasswordLength int `env:"AUTH_MIN_PASSWORD_LENGTH" envDefault:"6"`

	// VerificationSecret signs email verification links. Required outside dev.
	VerificationSecret string `env:"AUTH_VERIFICATION_SECRET"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	if a.Federated == "" {
		a.Federated = FederatedNone
	}
	if a.SessionTTL < time.Minute {
		a.SessionTTL = time.Minute
	}
	if a.ClientIdleTTL < time.Minute {
		a.ClientIdleTTL = time.Minute
	}
	if a.LoadingWait < 0 {
		a.LoadingWait = 0
	}
	if a.LoadingWait > 30*time.Second {
		a.LoadingWait = 30 * time.Second
	}
	if a.MinPasswordLength < 6 {
		a.MinPasswordLength = 6
	}
	if a.RecentLoginWindow <= 0 {
		a.RecentLoginWindow = 5 * time.Minute
	}
	a.OAuth.DiscoveryURL = strings.TrimSpace(a.OAuth.DiscoveryURL)
	a.Casdoor.Endpoint = strings.TrimSuffix(strings.TrimSpace(a.Casdoor.Endpoint), "/")
}

// FederatedLabel is the login button text for the configured provider.
func (a *AuthConfig) FederatedLabel() string {
	switch a.Federated {
	case FederatedOIDC:
		return a.OAuth.Label
	case FederatedCasdoor:
		return "Continue with Casdoor"
	case FederatedDev:
		return "Continue as " + a.DevAuth.Email
	default:
		return ""
	}
}
