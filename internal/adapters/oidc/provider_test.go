package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	domainauth "github.com/target/studentdash/internal/domain/auth"
	"github.com/target/studentdash/internal/ports"
)

func TestNewProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		config ProviderConfig
		errMsg string
	}{
		{
			name:   "missing client ID",
			config: ProviderConfig{ClientSecret: "secret", RedirectURL: "http://localhost/cb", DiscoveryURL: "http://x"},
			errMsg: "client ID is required",
		},
		{
			name:   "missing client secret",
			config: ProviderConfig{ClientID: "client", RedirectURL: "http://localhost/cb", DiscoveryURL: "http://x"},
			errMsg: "client secret is required",
		},
		{
			name:   "missing redirect URL",
			config: ProviderConfig{ClientID: "client", ClientSecret: "secret", DiscoveryURL: "http://x"},
			errMsg: "redirect URL is required",
		},
		{
			name:   "missing discovery URL",
			config: ProviderConfig{ClientID: "client", ClientSecret: "secret", RedirectURL: "http://localhost/cb"},
			errMsg: "discovery URL is required",
		},
		{
			name: "bad claim expression",
			config: ProviderConfig{
				ClientID: "client", ClientSecret: "secret", RedirectURL: "http://localhost/cb",
				DiscoveryURL: "http://x", DisplayNameClaim: "join(",
			},
			errMsg: "display name claim",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_Begin(t *testing.T) {
	provider := createTestProvider(t, ProviderConfig{})

	authURL, state, nonce, err := provider.Begin(context.Background(), ports.BeginInput{RedirectURL: "/students"})
	require.NoError(t, err)
	assert.Contains(t, authURL, "https://example.com/auth")
	assert.Contains(t, authURL, "client_id=test-client")
	assert.Contains(t, authURL, "state="+state)
	assert.Contains(t, authURL, "nonce="+nonce)
	assert.Len(t, state, 32)
}

func TestProvider_Exchange_MissingCode(t *testing.T) {
	provider := createTestProvider(t, ProviderConfig{})

	_, err := provider.Exchange(context.Background(), ports.ExchangeInput{State: "s"})
	var pe *ports.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ports.CodeCancelledPopupRequest, pe.Code)
}

func TestProvider_Exchange_TokenEndpointDenied(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"access_denied","error_description":"user cancelled"}`))
	}))
	t.Cleanup(tokenSrv.Close)

	provider := createTestProvider(t, ProviderConfig{})
	provider.config.Endpoint.TokenURL = tokenSrv.URL

	_, err := provider.Exchange(context.Background(), ports.ExchangeInput{Code: "c", State: "s", Nonce: "n"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange code for token")

	var re *oauth2.RetrieveError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "access_denied", re.ErrorCode)
}

func TestProvider_MapClaims(t *testing.T) {
	claims := map[string]any{
		"sub":            "sub-123",
		"email":          "ada@example.com",
		"email_verified": true,
		"name":           "Ada L.",
		"given_name":     "Ada",
		"family_name":    "Lovelace",
		"picture":        "https://img/std.png",
		"custom":         map[string]any{"avatar": "https://img/custom.png"},
	}

	t.Run("standard claims", func(t *testing.T) {
		p := createTestProvider(t, ProviderConfig{})
		fi := p.mapClaims(claims)
		assert.Equal(t, domainauth.FederatedIdentity{
			Provider:      domainauth.ProviderOIDC,
			Subject:       "sub-123",
			Email:         "ada@example.com",
			EmailVerified: true,
			DisplayName:   "Ada L.",
			AvatarURL:     "https://img/std.png",
		}, fi)
	})

	t.Run("jmespath overrides", func(t *testing.T) {
		p := createTestProvider(t, ProviderConfig{
			DisplayNameClaim: "join(' ', [given_name, family_name])",
			AvatarClaim:      "custom.avatar",
		})
		fi := p.mapClaims(claims)
		assert.Equal(t, "Ada Lovelace", fi.DisplayName)
		assert.Equal(t, "https://img/custom.png", fi.AvatarURL)
	})

	t.Run("expression miss keeps standard claim", func(t *testing.T) {
		p := createTestProvider(t, ProviderConfig{AvatarClaim: "nope.avatar"})
		assert.Equal(t, "https://img/std.png", p.mapClaims(claims).AvatarURL)
	})
}

func TestGenerateRandomString(t *testing.T) {
	str1, err := generateRandomString(16)
	require.NoError(t, err)
	assert.Len(t, str1, 16)

	str2, err := generateRandomString(16)
	require.NoError(t, err)
	assert.NotEqual(t, str1, str2)
}

func TestGetIDTokenFromToken(t *testing.T) {
	tok := (&oauth2.Token{}).WithExtra(map[string]any{"id_token": "abc.def.ghi"})
	idTok, err := getIDTokenFromToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", idTok)

	_, err = getIDTokenFromToken((&oauth2.Token{}).WithExtra(map[string]any{"not_id": "x"}))
	assert.ErrorContains(t, err, "missing id_token")

	_, err = getIDTokenFromToken(nil)
	assert.ErrorContains(t, err, "nil token")
}

// createTestProvider creates a provider against a stub discovery endpoint.
// Fields set on overrides are merged into the base config.
func createTestProvider(t *testing.T, overrides ProviderConfig) *Provider {
	t.Helper()

	issuer := ""
	discoveryServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(DiscoveryDocument{
			Issuer:                issuer,
			AuthorizationEndpoint: "https://example.com/auth",
			TokenEndpoint:         "https://example.com/token",
			UserinfoEndpoint:      "https://example.com/userinfo",
			JwksURI:               "https://example.com/jwks",
		})
	}))
	t.Cleanup(discoveryServer.Close)
	issuer = discoveryServer.URL

	cfg := ProviderConfig{
		ClientID:         "test-client",
		ClientSecret:     "test-secret",
		RedirectURL:      "http://localhost:8080/auth/callback",
		Scope:            "openid profile email",
		DiscoveryURL:     discoveryServer.URL,
		DisplayNameClaim: overrides.DisplayNameClaim,
		AvatarClaim:      overrides.AvatarClaim,
	}

	provider, err := NewProvider(cfg)
	require.NoError(t, err)
	return provider
}
