package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/net/publicsuffix"

	"github.com/target/studentdash/internal/adapters/localidp"
	"github.com/target/studentdash/internal/adapters/memory"
	"github.com/target/studentdash/internal/devseed"
	mockauth "github.com/target/studentdash/internal/mocks/auth"
	"github.com/target/studentdash/internal/service"
	"github.com/target/studentdash/internal/viewsync"
)

const testPassword = "secret123"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRenderer parses the real templates from the source tree.
func newTestRenderer(t *testing.T) *TemplateRenderer {
	t.Helper()
	tr, err := NewTemplateRenderer(TemplateRendererConfig{TemplateFS: os.DirFS(TemplatePathFromTest), Logger: discardLogger()})
	require.NoError(t, err)
	return tr
}

// testApp is the full router over in-memory adapters seeded with the demo roster.
type testApp struct {
	server   *httptest.Server
	students *service.StudentService
	auth     *service.AuthService
	dir      *localidp.Directory
	prefs    *service.PreferenceService
	mailer   *mockauth.RecordingMailer
	tracker  *viewsync.Tracker
}

type appOption func(*RouterServices)

func newTestApp(t *testing.T, opts ...appOption) *testApp {
	t.Helper()
	ctx := context.Background()

	repo := memory.NewStudentRepo()
	require.NoError(t, devseed.Run(ctx, repo, nil))
	students := service.NewStudentService(service.StudentServiceOptions{Repo: repo, Logger: discardLogger()})

	mailer := &mockauth.RecordingMailer{}
	dir, err := localidp.NewDirectory(localidp.DirectoryOptions{
		Accounts: memory.NewAccountRepo(),
		Mailer:   mailer,
		Logger:   discardLogger(),
		Config: localidp.Config{
			BcryptCost:         bcrypt.MinCost,
			VerificationSecret: "test-verification-secret",
			BaseURL:            "http://dashboard.test",
		},
	})
	require.NoError(t, err)

	tracker := viewsync.NewTracker()
	auth := service.NewAuthService(service.AuthServiceOptions{
		Clients:  dir,
		Sessions: mockauth.NewMemorySessionStore(),
		Config:   service.AuthServiceConfig{OnEvict: tracker.Forget, Logger: discardLogger()},
	})
	t.Cleanup(auth.Close)
	prefs := service.NewPreferenceService(service.PreferenceServiceOptions{Repo: memory.NewPreferenceRepo()})

	services := RouterServices{
		Students:    students,
		Auth:        auth,
		Prefs:       prefs,
		Export:      service.NewExportService(students),
		Verifier:    dir,
		Tracker:     tracker,
		LoadingWait: 2 * time.Second,
		Logger:      discardLogger(),
	}
	for _, opt := range opts {
		opt(&services)
	}
	handler, err := NewRouter(services)
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testApp{
		server:   srv,
		students: students,
		auth:     auth,
		dir:      dir,
		prefs:    prefs,
		mailer:   mailer,
		tracker:  tracker,
	}
}

// page is a fully read response.
type page struct {
	status int
	header http.Header
	body   string
}

func (p page) location() string { return p.header.Get("Location") }

func (p page) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(p.body), v), p.body)
}

// browser is a cookie-keeping client that does not follow redirects.
type browser struct {
	t      *testing.T
	base   *url.URL
	client *http.Client
}

func (a *testApp) browser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	require.NoError(t, err)
	base, err := url.Parse(a.server.URL)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: base,
		client: &http.Client{
			Jar:     jar,
			Timeout: 5 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) cookie(name string) string {
	for _, c := range b.client.Jar.Cookies(b.base) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (b *browser) do(method, path string, body io.Reader, header http.Header) page {
	b.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, b.base.String()+path, body)
	require.NoError(b.t, err)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" && !strings.HasPrefix(path, "/api/") {
		req.Header.Set("Accept", "text/html")
	}
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return page{status: resp.StatusCode, header: resp.Header, body: string(raw)}
}

func (b *browser) get(path string) page {
	b.t.Helper()
	return b.do(http.MethodGet, path, nil, nil)
}

// ensureCSRF makes sure the jar holds a CSRF token by visiting a public page.
func (b *browser) ensureCSRF() string {
	b.t.Helper()
	if tok := b.cookie(DefaultCSRFCookieName); tok != "" {
		return tok
	}
	b.get("/login")
	tok := b.cookie(DefaultCSRFCookieName)
	require.NotEmpty(b.t, tok)
	return tok
}

// post submits a form the way the rendered pages do, with the CSRF form field.
func (b *browser) post(path string, form url.Values) page {
	b.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf_token", b.ensureCSRF())
	return b.do(http.MethodPost, path, strings.NewReader(form.Encode()),
		http.Header{"Content-Type": {"application/x-www-form-urlencoded"}})
}

// htmx sends an htmx request with the CSRF header htmx is configured with.
func (b *browser) htmx(method, path, target string, form url.Values) page {
	b.t.Helper()
	h := http.Header{
		"Hx-Request":          {"true"},
		DefaultCSRFHeaderName: {b.ensureCSRF()},
	}
	if target != "" {
		h.Set("Hx-Target", target)
	}
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
		h.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return b.do(method, path, body, h)
}

// api sends a JSON request with the CSRF header.
func (b *browser) api(method, path, body string) page {
	b.t.Helper()
	h := http.Header{"Accept": {"application/json"}}
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
		h.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		h.Set(DefaultCSRFHeaderName, b.ensureCSRF())
	}
	return b.do(method, path, r, h)
}

// signUp creates a password account and leaves the browser signed in.
func (b *browser) signUp(email string) {
	b.t.Helper()
	p := b.post("/signup", url.Values{
		"email":           {email},
		"password":        {testPassword},
		"confirmPassword": {testPassword},
	})
	require.Equal(b.t, http.StatusSeeOther, p.status, p.body)
}
