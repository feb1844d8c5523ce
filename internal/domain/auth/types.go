package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"slices"
	"time"
)

// ProviderID names a credential source linked to an identity.
// Keep string form for easy persistence.
type ProviderID string

const (
	ProviderPassword ProviderID = "password"
	ProviderOIDC     ProviderID = "oidc"
	ProviderCasdoor  ProviderID = "casdoor"
	ProviderDev      ProviderID = "dev"
)

// Identity represents the authenticated principal as reported by the identity provider.
// Only DisplayName and AvatarURL are mutable, and only through a profile update.
type Identity struct {
	UserID        string
	Email         string // may be empty for some federated accounts
	EmailVerified bool
	DisplayName   string
	AvatarURL     string
	CreatedAt     time.Time
	LastLoginAt   time.Time
	Providers     []ProviderID
}

// HasProvider reports whether p is linked to the identity.
func (i Identity) HasProvider(p ProviderID) bool {
	return slices.Contains(i.Providers, p)
}

// HasPassword reports whether the identity can re-authenticate with a password.
func (i Identity) HasPassword() bool { return i.HasProvider(ProviderPassword) }

// Clone returns a deep copy so observers never share the Providers slice.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	cp := *i
	cp.Providers = slices.Clone(i.Providers)
	return &cp
}

// Session is the server-side record we persist for a signed-in browser.
// ID is the browser session identifier carried in the session cookie.
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// FederatedIdentity is what a federated authenticator returns after a successful exchange.
// Adapters map provider-specific claims into this shape.
type FederatedIdentity struct {
	Provider      ProviderID
	Subject       string
	Email         string
	EmailVerified bool
	DisplayName   string
	AvatarURL     string
}

// ProfileUpdate carries the mutable profile fields. A nil field is left unchanged.
type ProfileUpdate struct {
	DisplayName *string
	AvatarURL   *string
}
