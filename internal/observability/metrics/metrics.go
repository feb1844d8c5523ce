// Package metrics names the metrics studentdash emits and shapes their tags.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/target/studentdash/internal/domain/model"
	obserrors "github.com/target/studentdash/internal/observability/errors"
	"github.com/target/studentdash/internal/observability/statsd"
)

// Metric names, before the client prefix.
const (
	HTTPRequests      = "http.requests"
	HTTPDuration      = "http.duration"
	StudentChanges    = "students.changes"
	NotificationsSent = "notifications.sent"
	AuthClients       = "auth.clients"
)

// HTTPRequest is one served request.
type HTTPRequest struct {
	Method   string
	Path     string
	Status   int
	Duration time.Duration
}

// EmitHTTPRequest counts and times a request, tagged by route section and status class.
func EmitHTTPRequest(sink statsd.Sink, in HTTPRequest) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"method":       in.Method,
		"route":        RouteSection(in.Path),
		"status_class": strconv.Itoa(in.Status/100) + "xx",
	}
	sink.Count(HTTPRequests, 1, tags)
	sink.Timing(HTTPDuration, in.Duration, tags)
}

// RouteSection reduces a path to its first segment so ids never become tags.
func RouteSection(path string) string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return "root"
	}
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}

// EmitStudentChange counts a roster write.
func EmitStudentChange(sink statsd.Sink, kind model.StudentEventKind) {
	if sink == nil {
		return
	}
	sink.Count(StudentChanges, 1, map[string]string{"kind": string(kind)})
}

// EmitNotification counts a delivery attempt on channel ("email", "team").
func EmitNotification(sink statsd.Sink, channel string, err error) {
	if sink == nil {
		return
	}
	tags := map[string]string{"channel": channel, "result": "success"}
	if err != nil {
		tags["result"] = "failure"
		tags["error_class"] = obserrors.Classify(err)
	}
	sink.Count(NotificationsSent, 1, tags)
}

// EmitAuthClients reports how many browser clients are live.
func EmitAuthClients(sink statsd.Sink, n int) {
	if sink == nil {
		return
	}
	sink.Gauge(AuthClients, float64(n), nil)
}
