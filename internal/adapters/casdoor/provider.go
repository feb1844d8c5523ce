// Package casdoor provides a federated authenticator backed by a Casdoor server.
package casdoor

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"golang.org/x/oauth2"

	domainauth "github.com/target/studentdash/internal/domain/auth"
	"github.com/target/studentdash/internal/ports"
)

// Config mirrors the Casdoor application settings.
type Config struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Certificate  string
	Organization string
	Application  string
	RedirectURL  string
}

// tokenClient is the subset of *casdoorsdk.Client used by the provider.
type tokenClient interface {
	GetOAuthToken(code, state string) (*oauth2.Token, error)
	ParseJwtToken(token string) (*casdoorsdk.Claims, error)
}

// Provider implements ports.FederatedAuthenticator against Casdoor's OAuth endpoints.
type Provider struct {
	client tokenClient
	oauth  *oauth2.Config
}

var _ ports.FederatedAuthenticator = (*Provider)(nil)

// NewProvider builds a Casdoor SDK client and the matching authorize URL config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Endpoint == "" || cfg.ClientID == "" {
		return nil, errors.New("casdoor: endpoint and client ID are required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("casdoor: redirect URL is required")
	}
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Certificate,
		cfg.Organization,
		cfg.Application,
	)
	return newProvider(cfg, client), nil
}

func newProvider(cfg Config, client tokenClient) *Provider {
	base := strings.TrimSuffix(cfg.Endpoint, "/")
	return &Provider{
		client: client,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + "/login/oauth/authorize",
				TokenURL: base + "/api/login/oauth/access_token",
			},
		},
	}
}

func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := randomToken()
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomToken()
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	return p.oauth.AuthCodeURL(state), state, nonce, nil
}

func (p *Provider) Exchange(_ context.Context, in ports.ExchangeInput) (domainauth.FederatedIdentity, error) {
	if in.Code == "" {
		return domainauth.FederatedIdentity{}, ports.NewProviderError(
			ports.CodeCancelledPopupRequest, errors.New("authorization code is required"))
	}

	token, err := p.client.GetOAuthToken(in.Code, in.State)
	if err != nil {
		return domainauth.FederatedIdentity{}, fmt.Errorf("casdoor token exchange: %w", err)
	}
	claims, err := p.client.ParseJwtToken(token.AccessToken)
	if err != nil {
		return domainauth.FederatedIdentity{}, fmt.Errorf("casdoor parse token: %w", err)
	}

	subject := claims.Id
	if subject == "" {
		subject = claims.Owner + "/" + claims.Name
	}
	if strings.Trim(subject, "/") == "" {
		return domainauth.FederatedIdentity{}, errors.New("casdoor: token carries no user id")
	}

	return domainauth.FederatedIdentity{
		Provider:      domainauth.ProviderCasdoor,
		Subject:       subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		DisplayName:   claims.DisplayName,
		AvatarURL:     claims.Avatar,
	}, nil
}

func randomToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
