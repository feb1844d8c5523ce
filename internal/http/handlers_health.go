package httpx

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck pings one backing dependency, such as postgres or redis.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthHandler answers readiness and liveness checks. Any failing check turns the
// response into 503 with the failing dependency named.
func healthHandler(checks ...HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := healthBody{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			body.Checks = make(map[string]string, len(checks))
			for _, c := range checks {
				if err := c.Check(ctx); err != nil {
					body.Checks[c.Name] = "unavailable"
					body.Status = "degraded"
					status = http.StatusServiceUnavailable
					continue
				}
				body.Checks[c.Name] = "ok"
			}
		}

		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			return
		}
		WriteJSON(w, status, body)
	}
}
