package httpx

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/target/studentdash/internal/http/uiutil"
)

// TemplateRenderer renders HTML templates for UI responses.
type TemplateRenderer struct {
	t      *template.Template
	logger *slog.Logger
}

// TemplateRendererConfig holds configuration for creating a TemplateRenderer.
type TemplateRendererConfig struct {
	TemplateFS fs.FS        // Filesystem containing templates (required)
	Logger     *slog.Logger // Logger for template errors (optional)
}

// NewTemplateRenderer constructs a renderer by parsing templates from the provided config.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	if cfg.TemplateFS == nil {
		return nil, errors.New("TemplateFS is required")
	}
	renderer := &TemplateRenderer{logger: cfg.Logger}

	var t *template.Template
	var err error
	t, err = template.New("root").Funcs(templateFuncs(&t)).ParseFS(cfg.TemplateFS,
		"*.tmpl",
		"pages/*.tmpl",
		"partials/*.tmpl",
	)
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Error("template parsing failed", slog.Any("error", err), slog.String("phase", "initialization"))
		}
		return nil, err
	}
	renderer.t = t
	return renderer, nil
}

func (r *TemplateRenderer) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

// RenderFull renders the full page (layout + page content).
func (r *TemplateRenderer) RenderFull(w http.ResponseWriter, _ *http.Request, data any) error {
	return r.renderTemplate(w, "layout", data)
}

// RenderNamed renders a single named template, used for HTMX fragments.
func (r *TemplateRenderer) RenderNamed(w http.ResponseWriter, name string, data any) error {
	return r.renderTemplate(w, name, data)
}

// renderTemplate buffers so a failed execution never leaves a half-written page.
func (r *TemplateRenderer) renderTemplate(w http.ResponseWriter, templateName string, data any) error {
	var buf bytes.Buffer
	if err := r.t.ExecuteTemplate(&buf, templateName, data); err != nil {
		r.log().Error("template execution failed", slog.String("template", templateName), slog.Any("error", err))
		return err
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	if _, err := buf.WriteTo(w); err != nil {
		r.log().Debug("failed to write rendered template", slog.String("template", templateName), slog.Any("error", err))
		return err
	}
	return nil
}

func templateFuncs(t **template.Template) template.FuncMap {
	return template.FuncMap{
		"sectionTmpl": ContentTemplateFor,
		"renderSection": func(page string, data any) (template.HTML, error) {
			if t == nil || *t == nil {
				return "", errors.New("template not initialized")
			}
			var buf bytes.Buffer
			if err := (*t).ExecuteTemplate(&buf, ContentTemplateFor(page), data); err != nil {
				return "", err
			}
			// #nosec G203 - output of our own html/template execution, already escaped
			return template.HTML(buf.String()), nil
		},
		"timeTag":    timeTag,
		"fieldError": fieldError,
		"gpa": func(v *float64) string {
			if v == nil {
				return "N/A"
			}
			return strconv.FormatFloat(*v, 'f', 2, 64)
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"add":          func(a, b int) int { return a + b },
		"is":           isString,
		"initial":      initial,
		"friendlyDate": uiutil.FormatFriendlyDate,
		"relativeTime": func(t time.Time) string { return uiutil.FriendlyRelativeTime(t, time.Now()) },
		"truncate":     uiutil.TruncateWithEllipsis,
	}
}

func timeTag(t0 time.Time) template.HTML {
	if t0.IsZero() {
		return "Never"
	}
	// #nosec G203 - built from escaped values only
	return template.HTML(fmt.Sprintf(`<time datetime="%s" title="%s">%s</time>`,
		t0.UTC().Format(time.RFC3339),
		template.HTMLEscapeString(t0.UTC().Format(time.RFC1123)),
		template.HTMLEscapeString(uiutil.FormatFriendlyDateTime(t0))))
}

// fieldError reads one message from an Errors value that may be absent.
func fieldError(errs any, field string) string {
	m, ok := errs.(map[string]string)
	if !ok {
		return ""
	}
	return m[field]
}

// isString compares a possibly absent template value with s.
func isString(v any, s string) bool {
	str, ok := v.(string)
	return ok && str == s
}

// initial is the upper-cased first letter of name, used for avatar placeholders.
func initial(name string) string {
	for _, r := range strings.TrimSpace(name) {
		return strings.ToUpper(string(r))
	}
	return "?"
}
