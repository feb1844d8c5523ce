package httpx

import (
	"context"
	"html"
	"io"
	"log/slog"
	"net/http"

	"github.com/target/studentdash/internal/domain/model"
	"github.com/target/studentdash/internal/http/ui/viewmodel"
	"github.com/target/studentdash/internal/service"
	"github.com/target/studentdash/internal/viewsync"
)

// StudentGateway is the slice of the student service the views use.
type StudentGateway interface {
	List(ctx context.Context) ([]model.Student, error)
	GetByID(ctx context.Context, id string) (model.Student, error)
	Create(ctx context.Context, req model.CreateStudentRequest) (model.Student, error)
	Update(ctx context.Context, id string, req model.UpdateStudentRequest) (model.Student, error)
	Delete(ctx context.Context, id string) (bool, error)
	ListCourses(ctx context.Context) ([]string, error)
	Search(ctx context.Context, course, query string) ([]model.Student, error)
}

// PreferenceStore reads and toggles per-user preferences.
type PreferenceStore interface {
	Get(ctx context.Context, userID string) (model.Preferences, error)
	Set(ctx context.Context, userID, name string, value bool) (model.Preferences, error)
	Clear(ctx context.Context, userID string) error
}

// RosterExporter streams the roster as a spreadsheet.
type RosterExporter interface {
	WriteRoster(ctx context.Context, w io.Writer, course, query string) error
}

// EmailVerifier consumes email verification tokens.
type EmailVerifier interface {
	VerifyEmail(ctx context.Context, token string) error
}

var (
	_ StudentGateway  = (*service.StudentService)(nil)
	_ PreferenceStore = (*service.PreferenceService)(nil)
	_ RosterExporter  = (*service.ExportService)(nil)
)

// UIHandlers serves browser-facing routes.
type UIHandlers struct {
	T        *TemplateRenderer
	Students StudentGateway
	Prefs    PreferenceStore  // Optional: defaults apply when nil
	Export   RosterExporter   // Optional: export route answers 404 when nil
	Verifier EmailVerifier    // Optional: verification links answer 404 when nil
	Tracker  *viewsync.Tracker // Optional: stale roster responses are not discarded when nil

	// FederatedEnabled shows the federated sign-in button.
	FederatedEnabled bool
	// FederatedLabel is the button text, e.g. "Continue with Casdoor".
	FederatedLabel string
	// BaseURL is the externally visible origin used for the federated callback.
	BaseURL      string
	CookieDomain string
	// MinPasswordLength mirrors the identity provider's rule for local checks.
	MinPasswordLength int

	Reporter ErrorReporter
	IsDev    bool // Development mode flag for enhanced error reporting
	Logger   *slog.Logger
}

// logger returns the configured logger or falls back to slog.Default().
func (h *UIHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *UIHandlers) cookies() cookieWriter { return cookieWriter{Domain: h.CookieDomain} }

// PageMeta contains metadata for page rendering.
type PageMeta struct {
	Title       string
	PageTitle   string
	CurrentPage string
}

type prefsKey struct{}

// withPreferences loads the signed-in user's preferences into the request context
// so every page can honor them.
func (h *UIHandlers) withPreferences(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := currentUserID(r)
		if h.Prefs == nil || uid == "" {
			next(w, r)
			return
		}
		prefs, err := h.Prefs.Get(r.Context(), uid)
		if err != nil {
			h.logger().WarnContext(r.Context(), "load preferences failed; using defaults", "error", err)
			prefs = model.DefaultPreferences()
		}
		next(w, r.WithContext(context.WithValue(r.Context(), prefsKey{}, prefs)))
	}
}

func preferencesFrom(ctx context.Context) model.Preferences {
	if p, ok := ctx.Value(prefsKey{}).(model.Preferences); ok {
		return p
	}
	return model.DefaultPreferences()
}

// buildLayout constructs shared layout metadata from the request/session context.
func buildLayout(r *http.Request, meta PageMeta) viewmodel.Layout {
	layout := viewmodel.Layout{
		Title:       meta.Title,
		PageTitle:   meta.PageTitle,
		CurrentPage: meta.CurrentPage,
		CSRFToken:   GetCSRFToken(r),
		CompactView: preferencesFrom(r.Context()).CompactView,
	}

	client, ok := ClientFromContext(r.Context())
	if !ok {
		return layout
	}
	if ident := client.Session.Snapshot().Identity; ident != nil {
		p := client.Profile.Snapshot()
		avatar := p.AvatarURL
		if avatar == "" {
			avatar = client.Profile.DefaultAvatarURL()
		}
		layout.IsAuthenticated = true
		layout.User = &viewmodel.User{
			UserID:      ident.UserID,
			Email:       ident.Email,
			DisplayName: p.DisplayName,
			AvatarURL:   avatar,
			Initials:    client.Profile.Initials(),
		}
	}
	return layout
}

// basePageData constructs the common page data map with user context.
func basePageData(r *http.Request, meta PageMeta) map[string]any {
	layout := buildLayout(r, meta)
	data := map[string]any{
		"Title":           layout.Title,
		"PageTitle":       layout.PageTitle,
		"CurrentPage":     layout.CurrentPage,
		"IsAuthenticated": layout.IsAuthenticated,
		"CompactView":     layout.CompactView,
		"CSRFToken":       layout.CSRFToken,
		"Errors":          map[string]string{},
	}
	if layout.User != nil {
		data["User"] = layout.User
	}
	return data
}

// renderPage renders a full page, or for HTMX navigation the content plus
// out-of-band title updates.
func (h *UIHandlers) renderPage(w http.ResponseWriter, r *http.Request, data map[string]any) {
	if !WantsPartial(r) {
		if err := h.T.RenderFull(w, r, data); err != nil {
			h.logAndRenderTemplateError(w, r, err, "full page render")
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	SetHXTrigger(w, "nav:activate", map[string]string{"path": r.URL.Path})

	title, _ := data["Title"].(string)
	pageTitle, _ := data["PageTitle"].(string)
	page, _ := data["CurrentPage"].(string)

	head := `<title>` + html.EscapeString(title) + `</title>` +
		`<h1 id="header-title" class="header-title" hx-swap-oob="outerHTML">` + html.EscapeString(pageTitle) + `</h1>`
	pw := &prefixWriter{ResponseWriter: w, prefix: []byte(head)}
	if err := h.T.RenderNamed(pw, ContentTemplateFor(page), data); err != nil {
		h.logAndRenderTemplateError(w, r, err, "partial content render")
	}
}

// prefixWriter emits prefix before the first body write, so a failed render
// leaves the response untouched.
type prefixWriter struct {
	http.ResponseWriter
	prefix []byte
}

func (p *prefixWriter) Write(b []byte) (int, error) {
	if p.prefix != nil {
		pre := p.prefix
		p.prefix = nil
		if _, err := p.ResponseWriter.Write(pre); err != nil {
			return 0, err
		}
	}
	return p.ResponseWriter.Write(b)
}

// renderForm renders data as a page; used as the ErrorRenderer for form pages.
func (h *UIHandlers) renderForm(w http.ResponseWriter, r *http.Request, data map[string]any) {
	h.renderPage(w, r, data)
}

// renderMessage renders a simple titled message page with status.
func (h *UIHandlers) renderMessage(w http.ResponseWriter, r *http.Request, status int, title, message string) {
	data := NewTemplateData(r, PageMeta{Title: title + " - Student Dashboard", PageTitle: title, CurrentPage: PageMessage}).
		With("Message", message).
		Build()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	h.renderPage(w, r, data)
}

// serverError logs and reports err, then shows a generic failure page.
func (h *UIHandlers) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	reportError(r.Context(), h.logger(), h.Reporter, msg, err)
	h.renderMessage(w, r, http.StatusInternalServerError, "Something went wrong",
		"An error occurred. Please try again.")
}

// logAndRenderTemplateError logs template errors and renders them in dev mode.
func (h *UIHandlers) logAndRenderTemplateError(w http.ResponseWriter, r *http.Request, err error, context string) {
	h.logger().ErrorContext(r.Context(), "template rendering failed",
		"error", err,
		"context", context,
		"path", r.URL.Path,
		"method", r.Method,
	)

	if h.IsDev {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `<div class="template-error"><h2>Template Rendering Error</h2><p><strong>Context:</strong> `+
			html.EscapeString(context)+`</p><pre>`+html.EscapeString(err.Error())+`</pre></div>`)
		return
	}
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
