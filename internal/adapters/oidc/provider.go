package oidc

// Package oidc provides the OpenID Connect federated authenticator.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/oauth2"

	domainauth "github.com/target/studentdash/internal/domain/auth"
	"github.com/target/studentdash/internal/ports"
)

// Provider implements ports.FederatedAuthenticator using OIDC/OAuth2.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier

	displayNameExpr claimExpr
	avatarExpr      claimExpr
}

// claimExpr is a compiled JMESPath expression.
type claimExpr interface {
	Search(data any) (any, error)
}

var _ ports.FederatedAuthenticator = (*Provider)(nil)

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	// DisplayNameClaim and AvatarClaim are optional JMESPath expressions evaluated
	// against the ID token claims, e.g. "join(' ', [given_name, family_name])".
	DisplayNameClaim string
	AvatarClaim      string
	HTTPClient       *http.Client // Optional, defaults to a 30s client
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewProvider creates a new OIDC provider, fetching the discovery document once.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	p := &Provider{httpClient: config.HTTPClient}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	var err error
	if p.displayNameExpr, err = compileClaim(config.DisplayNameClaim); err != nil {
		return nil, fmt.Errorf("display name claim: %w", err)
	}
	if p.avatarExpr, err = compileClaim(config.AvatarClaim); err != nil {
		return nil, fmt.Errorf("avatar claim: %w", err)
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, p.httpClient)
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID})

	scope := config.Scope
	if scope == "" {
		scope = "openid profile email"
	}
	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Scopes:       strings.Fields(scope),
		Endpoint:     op.Endpoint(),
	}
	return p, nil
}

func compileClaim(expr string) (claimExpr, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil //nolint:nilnil // absent expression means use the standard claim
	}
	compiled, err := jmespath.Compile(expr)
	if err != nil {
		return nil, err
	}
	return compiled, nil
}

func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	// redirect_uri must match the configured RedirectURL exactly, so it is not overridden here.
	authURL := p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
	return authURL, state, nonce, nil
}

func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.FederatedIdentity, error) {
	if in.Code == "" {
		return domainauth.FederatedIdentity{}, ports.NewProviderError(
			ports.CodeCancelledPopupRequest, errors.New("authorization code is required"))
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.config.Exchange(ctx, in.Code)
	if err != nil {
		// *oauth2.RetrieveError is kept in the chain so access_denied can be recognized upstream.
		return domainauth.FederatedIdentity{}, fmt.Errorf("exchange code for token: %w", err)
	}

	claims, err := p.verifiedClaims(ctx, token, in.Nonce)
	if err != nil {
		return domainauth.FederatedIdentity{}, err
	}
	if claimString(claims, "email") == "" || claimString(claims, "sub") == "" {
		if fillErr := p.fillFromUserInfo(ctx, token, claims); fillErr != nil {
			return domainauth.FederatedIdentity{}, fmt.Errorf("get user info: %w", fillErr)
		}
	}

	fi := p.mapClaims(claims)
	if fi.Subject == "" {
		return domainauth.FederatedIdentity{}, errors.New("identity provider returned no subject")
	}
	return fi, nil
}

func (p *Provider) verifiedClaims(ctx context.Context, tok *oauth2.Token, expectedNonce string) (map[string]any, error) {
	claims := map[string]any{}
	if !slices.Contains(p.config.Scopes, "openid") {
		return claims, nil
	}
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return nil, err
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return nil, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	if expectedNonce != "" && idTok.Nonce != expectedNonce {
		return nil, ports.NewProviderError(ports.CodeCancelledPopupRequest, errors.New("invalid nonce"))
	}
	return claims, nil
}

func (p *Provider) fillFromUserInfo(ctx context.Context, tok *oauth2.Token, claims map[string]any) error {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return fmt.Errorf("fetch user info: %w", err)
	}
	extra := map[string]any{}
	if claimsErr := ui.Claims(&extra); claimsErr != nil {
		return fmt.Errorf("decode user info: %w", claimsErr)
	}
	for k, v := range extra {
		if _, ok := claims[k]; !ok {
			claims[k] = v
		}
	}
	return nil
}

// mapClaims maps standard OIDC claims, letting the configured expressions override name and picture.
func (p *Provider) mapClaims(claims map[string]any) domainauth.FederatedIdentity {
	fi := domainauth.FederatedIdentity{
		Provider:    domainauth.ProviderOIDC,
		Subject:     claimString(claims, "sub"),
		Email:       claimString(claims, "email"),
		DisplayName: firstNonEmpty(claimString(claims, "name"), claimString(claims, "preferred_username")),
		AvatarURL:   claimString(claims, "picture"),
	}
	if v, ok := claims["email_verified"].(bool); ok {
		fi.EmailVerified = v
	}
	if s := evalClaim(p.displayNameExpr, claims); s != "" {
		fi.DisplayName = s
	}
	if s := evalClaim(p.avatarExpr, claims); s != "" {
		fi.AvatarURL = s
	}
	return fi
}

func evalClaim(expr claimExpr, claims map[string]any) string {
	if expr == nil {
		return ""
	}
	v, err := expr.Search(claims)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func claimString(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// generateRandomString generates a cryptographically secure URL-safe random string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length], nil
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	s, ok := tok.Extra("id_token").(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
