package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mockauth "github.com/target/studentdash/internal/mocks/auth"
	"github.com/target/studentdash/internal/ports"
	"github.com/target/studentdash/internal/service"
)

// unsettledClients hands out identity clients that never report a user.
type unsettledClients struct{}

func (unsettledClients) NewIdentityClient(context.Context, string) ports.IdentityClient {
	return mockauth.NewFakeIdentityClient()
}

func withUnsettledSessions(t *testing.T) appOption {
	return func(s *RouterServices) {
		auth := service.NewAuthService(service.AuthServiceOptions{
			Clients:  unsettledClients{},
			Sessions: mockauth.NewMemorySessionStore(),
		})
		t.Cleanup(auth.Close)
		s.Auth = auth
		s.LoadingWait = 20 * time.Millisecond
	}
}

func TestRouteGuard_LoadingPlaceholder(t *testing.T) {
	app := newTestApp(t, withUnsettledSessions(t))
	b := app.browser(t)

	for _, path := range []string{"/", "/students", "/profile"} {
		p := b.get(path)
		assert.Equal(t, http.StatusOK, p.status, path)
		assert.Equal(t, "1", p.header.Get("Refresh"), path)
		assert.Equal(t, "1", p.header.Get("Retry-After"), path)
		assert.Contains(t, p.body, "Loading...", path)
		assert.Contains(t, p.body, "<title>Loading - Student Dashboard</title>", path)
	}

	p := b.htmx(http.MethodGet, "/students", "main-content", nil)
	assert.Equal(t, http.StatusOK, p.status)
	assert.Empty(t, p.header.Get("Refresh"), "htmx retries on its own")
	assert.Contains(t, p.body, "Loading...")
}

func TestRouteGuard_LoadingAPIIs503(t *testing.T) {
	app := newTestApp(t, withUnsettledSessions(t))
	b := app.browser(t)

	p := b.api(http.MethodGet, "/api/session", "")
	assert.Equal(t, http.StatusServiceUnavailable, p.status)
	assert.Equal(t, "1", p.header.Get("Retry-After"))
	var e apiError
	p.decode(t, &e)
	assert.Equal(t, "session_loading", e.Error)
}

func TestRouteGuard_HTMXRedirectReturnsToCurrentPage(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)

	p := b.do(http.MethodGet, "/student/abc/edit", nil, http.Header{
		"Hx-Request":     {"true"},
		"Hx-Current-Url": {app.server.URL + "/students?course=Physics"},
	})
	assert.Equal(t, http.StatusNoContent, p.status)
	assert.Equal(t, "/login?redirect_uri=%2Fstudents%3Fcourse%3DPhysics", p.header.Get("Hx-Redirect"))
	assert.Equal(t, "/students?course=Physics", b.cookie(PostLoginRedirectCookieName))
}

func TestRouteGuard_APIWithoutSessionIs401(t *testing.T) {
	app := newTestApp(t)
	p := app.browser(t).api(http.MethodGet, "/api/students/abc", "")
	assert.Equal(t, http.StatusUnauthorized, p.status)
	assert.Empty(t, p.location())
}

func TestSessionResolver_IssuesOneCookie(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)

	p := b.get("/students")
	require.Equal(t, http.StatusOK, p.status)
	sid := b.cookie(SessionCookieName)
	require.NotEmpty(t, sid)

	b.get("/")
	assert.Equal(t, sid, b.cookie(SessionCookieName))
	assert.Equal(t, 1, app.auth.ClientCount())
}

func TestSessionResolver_SkipsHealthAndStatic(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)

	p := b.get("/healthz")
	assert.Equal(t, http.StatusOK, p.status)
	p = b.get("/static/css/app.css")
	assert.Equal(t, http.StatusOK, p.status)
	assert.Empty(t, b.cookie(SessionCookieName))
	assert.Zero(t, app.auth.ClientCount())
}

type failingClients struct{}

func (failingClients) Client(context.Context, string) (*service.AuthClient, error) {
	return nil, errors.New("redis unavailable")
}

func (failingClients) NewSessionID() string { return "sid-1" }

func TestSessionResolver_ClientFailureIs503(t *testing.T) {
	called := false
	h := SessionResolver(SessionResolverConfig{Clients: failingClients{}, Logger: discardLogger()})(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, called)
}

func TestSessionResolver_RequiresClients(t *testing.T) {
	assert.Panics(t, func() { SessionResolver(SessionResolverConfig{}) })
}
