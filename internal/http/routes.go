package httpx

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"time"

	studentdash "github.com/target/studentdash"
	"github.com/target/studentdash/internal/observability/statsd"
	"github.com/target/studentdash/internal/viewsync"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Students StudentGateway
	Auth     AuthClients
	Prefs    PreferenceStore   // Optional
	Export   RosterExporter    // Optional
	Verifier EmailVerifier     // Optional
	Tracker  *viewsync.Tracker // Optional
	Reporter ErrorReporter     // Optional
	Metrics  statsd.Sink       // Optional
	Health   []HealthCheck

	CookieDomain string
	BaseURL      string
	// SessionCookieMaxAge is the browser lifetime of the session cookie.
	SessionCookieMaxAge time.Duration
	// LoadingWait bounds how long a request waits for a restoring session.
	LoadingWait       time.Duration
	MinPasswordLength int
	FederatedEnabled  bool
	FederatedLabel    string
	Compression       *CompressionConfig // nil disables gzip

	IsDev  bool         // Templates and static files are read from disk
	Logger *slog.Logger // Logger for template and HTTP errors (optional)
}

// NewRouter creates the HTTP handler: routes plus the middleware chain.
func NewRouter(services RouterServices) (http.Handler, error) {
	if services.Students == nil {
		return nil, errors.New("router requires a student gateway")
	}
	if services.Auth == nil {
		return nil, errors.New("router requires auth clients")
	}
	tr, err := NewTemplateRenderer(TemplateRendererConfig{TemplateFS: templateFS(services.IsDev), Logger: services.Logger})
	if err != nil {
		return nil, err
	}

	ui := &UIHandlers{
		T:                 tr,
		Students:          services.Students,
		Prefs:             services.Prefs,
		Export:            services.Export,
		Verifier:          services.Verifier,
		Tracker:           services.Tracker,
		FederatedEnabled:  services.FederatedEnabled,
		FederatedLabel:    services.FederatedLabel,
		BaseURL:           services.BaseURL,
		CookieDomain:      services.CookieDomain,
		MinPasswordLength: services.MinPasswordLength,
		Reporter:          services.Reporter,
		IsDev:             services.IsDev,
		Logger:            services.Logger,
	}
	api := &APIHandlers{Students: services.Students, Reporter: services.Reporter, Logger: services.Logger}

	mux := http.NewServeMux()
	mux.Handle("GET /static/", staticHandler(services.IsDev))
	health := healthHandler(services.Health...)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)
	registerUIRoutes(mux, ui)
	registerAuthRoutes(mux, ui)
	registerAPIRoutes(mux, api)

	var handler http.Handler = mux
	handler = RouteGuard(RouteGuardConfig{
		LoadingWait:  services.LoadingWait,
		Loading:      http.HandlerFunc(ui.Loading),
		CookieDomain: services.CookieDomain,
		Logger:       services.Logger,
	})(handler)
	handler = SessionResolver(SessionResolverConfig{
		Clients:      services.Auth,
		CookieDomain: services.CookieDomain,
		CookieMaxAge: services.SessionCookieMaxAge,
		Logger:       services.Logger,
	})(handler)
	handler = CSRFProtection(CSRFConfig{CookieDomain: services.CookieDomain})(handler)
	handler = Recover(services.Logger, services.Reporter)(handler)
	handler = Logging(services.Logger)(handler)
	handler = Metrics(services.Metrics)(handler)
	if services.Compression != nil {
		handler = Compression(*services.Compression)(handler)
	}
	return handler, nil
}

// registerUIRoutes wires the pages. Access control lives in RouteGuard.
func registerUIRoutes(mux *http.ServeMux, h *UIHandlers) {
	page := func(fn http.HandlerFunc) http.Handler { return h.withPreferences(fn) }

	mux.Handle("GET /{$}", page(h.Home))
	mux.Handle("GET /students", page(h.Roster))
	mux.Handle("GET /students/export.xlsx", http.HandlerFunc(h.ExportRoster))
	mux.Handle("GET /student/{id}", page(h.StudentDetail))
	mux.Handle("GET /student/{id}/edit", page(h.EditStudentForm))
	mux.Handle("POST /student/{id}", page(h.UpdateStudent))
	mux.Handle("POST /student/{id}/delete", page(h.DeleteStudent))
	mux.Handle("GET /add-student", page(h.NewStudentForm))
	mux.Handle("POST /add-student", page(h.CreateStudent))

	mux.Handle("GET /profile", page(h.Profile))
	mux.Handle("POST /profile", page(h.UpdateProfile))
	mux.Handle("POST /profile/verify", page(h.SendVerification))
	mux.Handle("GET /settings", page(h.Settings))
	mux.Handle("POST /settings/password", page(h.ChangePassword))
	mux.Handle("POST /settings/delete", page(h.DeleteAccount))
	mux.Handle("POST /settings/preferences", page(h.SetPreference))

	// Anything else goes home.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
}

func registerAuthRoutes(mux *http.ServeMux, h *UIHandlers) {
	mux.HandleFunc("GET /login", h.LoginPage)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("GET /signup", h.SignupPage)
	mux.HandleFunc("POST /signup", h.Signup)
	mux.HandleFunc("POST /logout", h.Logout)
	mux.HandleFunc("GET /auth/federated", h.FederatedBegin)
	mux.HandleFunc("GET /auth/callback", h.FederatedCallback)
	mux.HandleFunc("GET /auth/verify-email", h.VerifyEmail)
}

func registerAPIRoutes(mux *http.ServeMux, h *APIHandlers) {
	mux.HandleFunc("GET /api/students", h.ListStudents)
	mux.HandleFunc("POST /api/students", h.CreateStudent)
	mux.HandleFunc("GET /api/students/{id}", h.GetStudent)
	mux.HandleFunc("PATCH /api/students/{id}", h.UpdateStudent)
	mux.HandleFunc("DELETE /api/students/{id}", h.DeleteStudent)
	mux.HandleFunc("GET /api/courses", h.ListCourses)
	mux.HandleFunc("GET /api/session", h.Session)
	mux.HandleFunc("/api/", func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Message: "Unknown API route."})
	})
}

// Loading renders the placeholder shown while a browser's session is restoring.
func (h *UIHandlers) Loading(w http.ResponseWriter, r *http.Request) {
	data := NewTemplateData(r, PageMeta{Title: "Loading - Student Dashboard", PageTitle: "Loading", CurrentPage: PageLoading}).Build()
	h.renderPage(w, r, data)
}

// templateFS reads templates from disk in dev mode for hot reloading.
func templateFS(isDev bool) fs.FS {
	if isDev {
		return os.DirFS(TemplatePathFromRoot)
	}
	sub, err := studentdash.Sub(TemplatePathFromRoot)
	if err != nil {
		slog.Default().Warn("embedded templates unavailable; reading from disk", "error", err)
		return os.DirFS(TemplatePathFromRoot)
	}
	return sub
}

// staticHandler serves /static/* from disk in dev mode, from the embedded FS otherwise.
func staticHandler(isDev bool) http.Handler {
	if isDev {
		return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir("frontend/static"))))
	}
	sub, err := studentdash.Sub("frontend/static")
	if err != nil {
		slog.Default().Warn("embedded static assets unavailable; reading from disk", "error", err)
		return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir("frontend/static"))))
	}
	return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.FS(sub))))
}

// hashedFilePattern matches content-hashed filenames such as app.abc12345.js.
var hashedFilePattern = regexp.MustCompile(`\.[a-f0-9]{8}\.(?:js|css)(?:\.map)?$`)

// staticWithCacheHeaders caches hashed assets for a year and revalidates the rest.
func staticWithCacheHeaders(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hashedFilePattern.MatchString(r.URL.Path) {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}
		handler.ServeHTTP(w, r)
	})
}
