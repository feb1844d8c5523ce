package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/target/studentdash/internal/errors"
	"github.com/target/studentdash/internal/guard"
	"github.com/target/studentdash/internal/service"
)

// AuthClients hands out the per-browser auth client.
type AuthClients interface {
	Client(ctx context.Context, sid string) (*service.AuthClient, error)
	NewSessionID() string
}

// SessionResolverConfig configures SessionResolver.
type SessionResolverConfig struct {
	Clients      AuthClients
	CookieDomain string
	// CookieMaxAge is the browser lifetime of the session cookie.
	CookieMaxAge time.Duration
	Logger       *slog.Logger
}

// skipsSession reports paths served without a browser session.
func skipsSession(path string) bool {
	return strings.HasPrefix(path, "/static/") || path == "/healthz"
}

// SessionResolver binds every request to its browser's auth client, issuing a
// session cookie to browsers that have none.
func SessionResolver(cfg SessionResolverConfig) func(http.Handler) http.Handler {
	if cfg.Clients == nil {
		panic("SessionResolver requires Clients")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cookies := cookieWriter{Domain: cfg.CookieDomain}
	maxAge := int(cfg.CookieMaxAge.Seconds())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipsSession(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			sid := ""
			if c, err := r.Cookie(SessionCookieName); err == nil {
				sid = c.Value
			}
			if sid == "" {
				sid = cfg.Clients.NewSessionID()
				cookies.set(w, r, SessionCookieName, sid, maxAge)
			}

			client, err := cfg.Clients.Client(r.Context(), sid)
			if err != nil {
				logger.ErrorContext(r.Context(), "resolve auth client failed", "error", err)
				http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r.WithContext(withClient(r.Context(), client)))
		})
	}
}

// RouteGuardConfig configures RouteGuard.
type RouteGuardConfig struct {
	// LoadingWait bounds how long a request waits for a restoring session to settle.
	LoadingWait time.Duration
	// Loading renders the placeholder page for browsers.
	Loading      http.Handler
	CookieDomain string
	Logger       *slog.Logger
}

const loadingRetrySeconds = 1

// RouteGuard enforces guard decisions for every routed request and records the
// signed-in user as the actor of any roster write.
func RouteGuard(cfg RouteGuardConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cookies := cookieWriter{Domain: cfg.CookieDomain}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client, ok := ClientFromContext(r.Context())
			if !ok || skipsSession(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			if cfg.LoadingWait > 0 && client.Session.Snapshot().Loading {
				ctx, cancel := context.WithTimeout(r.Context(), cfg.LoadingWait)
				_ = client.Session.AwaitSettled(ctx)
				cancel()
			}

			state := client.Session.Snapshot()
			decision := guard.DecideRequest(state, r.Method, r.URL.Path)
			logger.DebugContext(r.Context(), "route guard", "path", r.URL.Path, "decision", decision.Kind.String())

			switch decision.Kind {
			case guard.ShowLoadingPlaceholder:
				w.Header().Set("Retry-After", strconv.Itoa(loadingRetrySeconds))
				if !isBrowserRequest(r) || cfg.Loading == nil {
					WriteError(w, ErrorParams{
						Code:    http.StatusServiceUnavailable,
						ErrCode: "session_loading",
						Message: "Session is still loading. Retry shortly.",
					})
					return
				}
				if !IsHTMX(r) {
					w.Header().Set("Refresh", strconv.Itoa(loadingRetrySeconds))
				}
				cfg.Loading.ServeHTTP(w, r)
			case guard.RedirectToLogin:
				if !isBrowserRequest(r) {
					WriteAppError(w, apperrors.NotAuthenticated())
					return
				}
				returnTo := r.URL.RequestURI()
				if IsHTMX(r) {
					if current := safeRedirectFromURL(r.Header.Get("Hx-Current-Url")); current != "" {
						returnTo = current
					}
				}
				cookies.rememberReturnTo(w, r, returnTo)
				seeOther(w, r, loginURL(returnTo))
			default:
				ctx := r.Context()
				if ident := state.Identity; ident != nil {
					ctx = service.WithActor(ctx, service.Actor{UserID: ident.UserID, Email: ident.Email})
				}
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}
