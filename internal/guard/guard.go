// Package guard decides, per request, whether a page may render for the current
// session state.
package guard

import (
	"strings"

	"github.com/target/studentdash/internal/session"
)

// Kind enumerates guard outcomes.
type Kind int

const (
	Render Kind = iota
	RedirectToLogin
	ShowLoadingPlaceholder
)

func (k Kind) String() string {
	switch k {
	case Render:
		return "render"
	case RedirectToLogin:
		return "redirect_to_login"
	case ShowLoadingPlaceholder:
		return "loading"
	default:
		return "unknown"
	}
}

// Decision is the guard's verdict. ReturnTo is set for RedirectToLogin.
type Decision struct {
	Kind     Kind
	ReturnTo string
}

// Access classifies a route.
type Access int

const (
	Unmatched Access = iota
	Public
	Protected
)

type route struct {
	prefix string // exact path, or a prefix when it ends in "/"
	access Access
}

// routes is the routing table. Matching is first hit wins.
var routes = []route{ //nolint:gochecknoglobals // static table
	{"/", Public},
	{"/students", Public},
	{"/login", Public},
	{"/signup", Public},
	{"/auth/", Public},
	{"/logout", Public},
	{"/api/students", Public},
	{"/api/courses", Public},
	{"/api/session", Public},
	{"/static/", Public},
	{"/healthz", Public},

	{"/students/export.xlsx", Protected},
	{"/student/", Protected},
	{"/add-student", Protected},
	{"/profile", Protected},
	{"/profile/", Protected},
	{"/settings", Protected},
	{"/settings/", Protected},
	{"/api/students/", Protected},
}

// Classify returns the access class for path.
func Classify(path string) Access {
	// exact matches take priority over prefixes
	for _, r := range routes {
		if !strings.HasSuffix(r.prefix, "/") || r.prefix == "/" {
			if path == r.prefix {
				return r.access
			}
		}
	}
	for _, r := range routes {
		if r.prefix != "/" && strings.HasSuffix(r.prefix, "/") && strings.HasPrefix(path, r.prefix) {
			return r.access
		}
	}
	return Unmatched
}

// IsProtected reports whether path requires a signed-in identity.
func IsProtected(path string) bool { return Classify(path) == Protected }

// Decide applies the guard rules: loading shows the placeholder everywhere, a protected
// path without an identity redirects to login, and everything else renders.
func Decide(state session.State, path string) Decision {
	if state.Loading {
		return Decision{Kind: ShowLoadingPlaceholder}
	}
	if IsProtected(path) && state.Identity == nil {
		return Decision{Kind: RedirectToLogin, ReturnTo: path}
	}
	return Decision{Kind: Render}
}

// DecideRequest is Decide with one method-aware rule: writes to the public student
// collection endpoint need an identity.
func DecideRequest(state session.State, method, path string) Decision {
	d := Decide(state, path)
	if d.Kind == Render && path == "/api/students" && method != "GET" && method != "HEAD" && state.Identity == nil {
		return Decision{Kind: RedirectToLogin, ReturnTo: path}
	}
	return d
}
