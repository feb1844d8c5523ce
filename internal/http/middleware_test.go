package httpx

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/studentdash/internal/domain/model"
)

type recordingReporter struct {
	mu     sync.Mutex
	errs   []error
	panics []any
}

func (r *recordingReporter) Report(_ context.Context, err error, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recordingReporter) ReportPanic(_ context.Context, recovered any, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panics = append(r.panics, recovered)
}

func TestLogging_RecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/students", nil)
	req.Header.Set("Hx-Request", "true")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"path":"/students"`)
	assert.Contains(t, buf.String(), `"htmx":true`)

	buf.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil))
	assert.Empty(t, buf.String(), "static assets are not logged")
}

type countingSink struct {
	mu     sync.Mutex
	counts map[string]map[string]string
	timed  int
}

func (s *countingSink) Count(name string, _ int64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts == nil {
		s.counts = map[string]map[string]string{}
	}
	s.counts[name] = tags
}

func (s *countingSink) Gauge(string, float64, map[string]string) {}

func (s *countingSink) Timing(string, time.Duration, map[string]string) {
	s.mu.Lock()
	s.timed++
	s.mu.Unlock()
}

func TestMetrics_TagsRouteAndStatusClass(t *testing.T) {
	sink := &countingSink{}
	h := Metrics(sink)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/students/abc", nil))
	assert.Equal(t, map[string]string{"method": "GET", "route": "students", "status_class": "4xx"},
		sink.counts["http.requests"])
	assert.Equal(t, 1, sink.timed)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/static/js/app.js", nil))
	assert.Equal(t, 1, sink.timed, "static assets are not measured")
}

func TestRecover_ReportsPanic(t *testing.T) {
	rep := &recordingReporter{}
	h := Recover(discardLogger(), rep)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Len(t, rep.panics, 1)
	assert.Equal(t, "boom", rep.panics[0])
}

func TestRecover_ReraisesAbortHandler(t *testing.T) {
	h := Recover(discardLogger(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestReportError_WrapsMessage(t *testing.T) {
	rep := &recordingReporter{}
	cause := errors.New("connection reset")
	reportError(context.Background(), discardLogger(), rep, "load roster failed", cause)
	require.Len(t, rep.errs, 1)
	assert.ErrorIs(t, rep.errs[0], cause)
	assert.EqualError(t, rep.errs[0], "load roster failed: connection reset")

	assert.NotPanics(t, func() { reportError(context.Background(), nil, nil, "x", cause) })
}

func TestIsBrowserRequest(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		accept string
		htmx   bool
		want   bool
	}{
		{"page with html accept", "/students", "text/html,application/xhtml+xml", false, true},
		{"page without accept", "/students", "", false, true},
		{"curl default", "/students", "*/*", false, true},
		{"json client on a page", "/students", "application/json", false, false},
		{"htmx", "/students", "application/json", true, true},
		{"api", "/api/students", "text/html", false, false},
		{"api via htmx", "/api/students", "", true, false},
		{"static", "/static/app.css", "text/html", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if tt.htmx {
				req.Header.Set("Hx-Request", "true")
			}
			assert.Equal(t, tt.want, isBrowserRequest(req))
		})
	}
}

func TestGatewayFailuresAreReported(t *testing.T) {
	rep := &recordingReporter{}
	app := newTestApp(t, func(s *RouterServices) {
		s.Reporter = rep
		s.Students = failingStudents{StudentGateway: s.Students}
	})

	p := app.browser(t).get("/students")
	assert.Equal(t, http.StatusInternalServerError, p.status)
	assert.Contains(t, p.body, "Failed to filter students.")
	assert.NotContains(t, p.body, "database is on fire")

	p = app.browser(t).api(http.MethodGet, "/api/students", "")
	assert.Equal(t, http.StatusInternalServerError, p.status)
	assert.NotContains(t, p.body, "database is on fire")

	rep.mu.Lock()
	defer rep.mu.Unlock()
	assert.Len(t, rep.errs, 2)
}

type failingStudents struct{ StudentGateway }

func (failingStudents) Search(context.Context, string, string) ([]model.Student, error) {
	return nil, errors.New("database is on fire")
}
