package devauth

// Package devauth provides a config-driven federated authenticator for local development.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"

	domainauth "github.com/target/studentdash/internal/domain/auth"
	"github.com/target/studentdash/internal/ports"
)

// Config controls the dev authenticator. Subject and Email are required.
type Config struct {
	Subject       string
	Email         string
	DisplayName   string
	AvatarURL     string
	EmailVerified bool
	// CallbackPath is where Begin sends the browser; defaults to /auth/callback.
	CallbackPath string
}

// Provider implements ports.FederatedAuthenticator for local development.
// It short-circuits the redirect by sending the browser straight back to our own
// callback with a locally generated state. Exchange ignores the code and returns
// the configured identity.
type Provider struct {
	identity     domainauth.FederatedIdentity
	callbackPath string
}

var _ ports.FederatedAuthenticator = (*Provider)(nil)

// NewProvider constructs a dev authenticator from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Subject == "" {
		return nil, errors.New("dev auth: Subject is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	cb := cfg.CallbackPath
	if cb == "" {
		cb = "/auth/callback"
	}
	return &Provider{
		identity: domainauth.FederatedIdentity{
			Provider:      domainauth.ProviderDev,
			Subject:       cfg.Subject,
			Email:         cfg.Email,
			EmailVerified: cfg.EmailVerified,
			DisplayName:   cfg.DisplayName,
			AvatarURL:     cfg.AvatarURL,
		},
		callbackPath: cb,
	}, nil
}

// Begin returns a local callback URL and cryptographically secure state and nonce.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	q := url.Values{"code": {"dev"}, "state": {state}}
	return p.callbackPath + "?" + q.Encode(), state, nonce, nil
}

// Exchange returns the dev identity. State validation happens in the identity provider.
func (p *Provider) Exchange(_ context.Context, in ports.ExchangeInput) (domainauth.FederatedIdentity, error) {
	if in.Code == "" {
		return domainauth.FederatedIdentity{}, ports.NewProviderError(ports.CodeCancelledPopupRequest, errors.New("missing code"))
	}
	return p.identity, nil
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
