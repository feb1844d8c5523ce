// Package session holds the per-browser authentication state machine.
package session

import (
	domainauth "github.com/target/studentdash/internal/domain/auth"
)

// State is the current authentication state of one browser.
// While Loading is true nothing may assume the presence or absence of an identity.
type State struct {
	Identity *domainauth.Identity
	Loading  bool
}

// Initial is the state before the identity provider has reported anything.
func Initial() State { return State{Loading: true} }

// Observe applies a provider observation. It is the only transition.
func (s State) Observe(ident *domainauth.Identity) State {
	return State{Identity: ident.Clone(), Loading: false}
}

// SignedIn reports whether the state is settled with an identity.
func (s State) SignedIn() bool { return !s.Loading && s.Identity != nil }

// UserID returns the signed-in user's id, or "".
func (s State) UserID() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.UserID
}

func (s State) clone() State {
	s.Identity = s.Identity.Clone()
	return s
}
