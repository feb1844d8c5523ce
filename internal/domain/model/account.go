//revive:disable-next-line:var-naming // legacy package name used across the project
package model

import (
	"maps"
	"slices"
	"time"

	domainauth "github.com/target/studentdash/internal/domain/auth"
)

// Account is the directory record behind an identity.
type Account struct {
	ID                string                           `json:"id"                 db:"id"`
	Email             string                           `json:"email"              db:"email"`
	EmailVerified     bool                             `json:"email_verified"     db:"email_verified"`
	DisplayName       string                           `json:"display_name"       db:"display_name"`
	AvatarURL         string                           `json:"avatar_url"         db:"avatar_url"`
	PasswordHash      string                           `json:"-"                  db:"password_hash"`
	FederatedSubjects map[domainauth.ProviderID]string `json:"federated_subjects" db:"federated_subjects"`
	CreatedAt         time.Time                        `json:"created_at"         db:"created_at"`
	LastLoginAt       time.Time                        `json:"last_login_at"      db:"last_login_at"`
}

// HasPassword reports whether the account can sign in with a password.
func (a Account) HasPassword() bool { return a.PasswordHash != "" }

// Clone returns a copy that shares no map with a.
func (a Account) Clone() Account {
	cp := a
	cp.FederatedSubjects = maps.Clone(a.FederatedSubjects)
	return cp
}

// Identity projects the account into the identity observers see.
func (a Account) Identity() *domainauth.Identity {
	var providers []domainauth.ProviderID
	if a.HasPassword() {
		providers = append(providers, domainauth.ProviderPassword)
	}
	fed := slices.Sorted(maps.Keys(a.FederatedSubjects))
	providers = append(providers, fed...)

	return &domainauth.Identity{
		UserID:        a.ID,
		Email:         a.Email,
		EmailVerified: a.EmailVerified,
		DisplayName:   a.DisplayName,
		AvatarURL:     a.AvatarURL,
		CreatedAt:     a.CreatedAt,
		LastLoginAt:   a.LastLoginAt,
		Providers:     providers,
	}
}
