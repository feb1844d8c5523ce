package httpx

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/target/studentdash/internal/observability/metrics"
	"github.com/target/studentdash/internal/observability/statsd"
)

// ErrorReporter forwards unexpected failures to an external error tracker.
type ErrorReporter interface {
	Report(ctx context.Context, err error, extras map[string]any)
	ReportPanic(ctx context.Context, recovered any, extras map[string]any)
}

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			if strings.HasPrefix(r.URL.Path, "/static/") {
				return
			}
			logger.InfoContext(r.Context(), "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Bool("htmx", IsHTMX(r)),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// Metrics counts and times every non-static request.
func Metrics(sink statsd.Sink) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if sink == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			if strings.HasPrefix(r.URL.Path, "/static/") {
				return
			}
			metrics.EmitHTTPRequest(sink, metrics.HTTPRequest{
				Method:   r.Method,
				Path:     r.URL.Path,
				Status:   ww.status,
				Duration: time.Since(start),
			})
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *respWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Recover returns a middleware that recovers from panics, logs them and hands them
// to reporter when one is configured.
func Recover(logger *slog.Logger, reporter ErrorReporter) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
					panic(rec)
				}
				logger.ErrorContext(r.Context(), "panic",
					slog.Any("error", rec),
					slog.String("path", r.URL.Path),
					slog.String("method", r.Method),
					slog.String("stack", string(debug.Stack())))
				if reporter != nil {
					reporter.ReportPanic(r.Context(), rec, map[string]any{
						"method": r.Method,
						"path":   r.URL.Path,
					})
				}
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// reportError logs err and forwards it to reporter. Safe with a nil reporter.
func reportError(ctx context.Context, logger *slog.Logger, reporter ErrorReporter, msg string, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(ctx, msg, "error", err)
	if reporter != nil {
		reporter.Report(ctx, fmt.Errorf("%s: %w", msg, err), nil)
	}
}

// isBrowserRequest reports whether the response should be HTML:
// anything outside /api/ that accepts text/html, or an HTMX request.
func isBrowserRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/static/") {
		return false
	}
	if IsHTMX(r) {
		return true
	}
	accept := r.Header.Get("Accept")
	return accept == "" || strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*")
}

// CompressionConfig holds configuration for the compression middleware.
type CompressionConfig struct {
	Level   int // gzip level 1-9; 0 uses gzip.DefaultCompression
	MinSize int // responses shorter than this are sent uncompressed
	Logger  *slog.Logger
}

var compressibleTypes = map[string]bool{ //nolint:gochecknoglobals // read-only lookup table
	"text/html":              true,
	"text/css":               true,
	"text/plain":             true,
	"text/javascript":        true,
	"application/javascript": true,
	"application/json":       true,
	"image/svg+xml":          true,
}

func isCompressibleContentType(contentType string) bool {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return compressibleTypes[strings.TrimSpace(strings.ToLower(contentType))]
}

// acceptsGzip checks if the client accepts gzip encoding, respecting q=0.
func acceptsGzip(acceptEncoding string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(name), "gzip") {
			continue
		}
		q := strings.ReplaceAll(params, " ", "")
		return q != "q=0" && q != "q=0.0" && q != "q=0.00" && q != "q=0.000"
	}
	return false
}

// Compression returns a middleware that gzips compressible responses for clients
// that accept it. HEAD requests and 204/304 responses pass through untouched.
func Compression(cfg CompressionConfig) func(http.Handler) http.Handler {
	if cfg.Level == 0 {
		cfg.Level = gzip.DefaultCompression
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	pool := &sync.Pool{New: func() any {
		zw, err := gzip.NewWriterLevel(io.Discard, cfg.Level)
		if err != nil {
			return gzip.NewWriter(io.Discard)
		}
		return zw
	}}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead || !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Accept-Encoding")

			gzw := &gzipResponseWriter{ResponseWriter: w, pool: pool, minSize: cfg.MinSize}
			next.ServeHTTP(gzw, r)
			if err := gzw.finish(); err != nil {
				cfg.Logger.DebugContext(r.Context(), "finishing gzip response failed", "error", err)
			}
		})
	}
}

// gzipResponseWriter buffers up to minSize bytes before deciding whether to compress.
type gzipResponseWriter struct {
	http.ResponseWriter
	pool    *sync.Pool
	minSize int

	status     int
	decided    bool
	passthru   bool
	buf        []byte
	gzipWriter *gzip.Writer
}

func (w *gzipResponseWriter) WriteHeader(status int) {
	if w.status != 0 {
		return
	}
	w.status = status
	if status < http.StatusOK || status == http.StatusNoContent || status == http.StatusNotModified ||
		w.Header().Get("Content-Encoding") != "" {
		w.passthrough()
	}
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if w.passthru {
		return w.ResponseWriter.Write(b)
	}
	if w.gzipWriter != nil {
		return w.gzipWriter.Write(b)
	}
	w.buf = append(w.buf, b...)
	if len(w.buf) >= w.minSize {
		if err := w.decide(); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

// decide picks compression once the content type is known and flushes the buffer.
func (w *gzipResponseWriter) decide() error {
	if w.decided {
		return nil
	}
	w.decided = true
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", http.DetectContentType(w.buf))
	}
	buf := w.buf
	w.buf = nil
	if !isCompressibleContentType(w.Header().Get("Content-Type")) {
		w.passthrough()
		_, err := w.ResponseWriter.Write(buf)
		return err
	}

	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(w.status)
	zw, _ := w.pool.Get().(*gzip.Writer)
	zw.Reset(w.ResponseWriter)
	w.gzipWriter = zw
	_, err := zw.Write(buf)
	return err
}

func (w *gzipResponseWriter) passthrough() {
	if w.passthru {
		return
	}
	w.passthru = true
	w.decided = true
	w.ResponseWriter.WriteHeader(w.status)
}

// finish writes anything still buffered and returns the gzip writer to the pool.
func (w *gzipResponseWriter) finish() error {
	if w.status == 0 {
		return nil
	}
	if !w.decided {
		if len(w.buf) < w.minSize || len(w.buf) == 0 {
			// Too small to be worth compressing.
			w.passthrough()
			_, err := w.ResponseWriter.Write(w.buf)
			w.buf = nil
			return err
		}
		if err := w.decide(); err != nil {
			return err
		}
	}
	if w.gzipWriter == nil {
		return nil
	}
	err := w.gzipWriter.Close()
	w.gzipWriter.Reset(io.Discard)
	w.pool.Put(w.gzipWriter)
	w.gzipWriter = nil
	return err
}

// Flush implements http.Flusher for streaming support.
func (w *gzipResponseWriter) Flush() {
	if !w.decided && w.status != 0 {
		_ = w.decide()
	}
	if w.gzipWriter != nil {
		_ = w.gzipWriter.Flush()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *gzipResponseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
