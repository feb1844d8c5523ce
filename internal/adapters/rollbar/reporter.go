// Package rollbar reports unexpected errors and panics to Rollbar.
package rollbar

import (
	"context"
	"errors"

	"github.com/rollbar/rollbar-go"
)

// Config identifies the project and deployment.
type Config struct {
	Token       string
	Environment string
	CodeVersion string
	ServerHost  string
}

// Reporter sends errors to Rollbar.
type Reporter struct {
	client *rollbar.Client
}

// New creates a reporter. The token is required.
func New(cfg Config) (*Reporter, error) {
	if cfg.Token == "" {
		return nil, errors.New("rollbar: token is required")
	}
	env := cfg.Environment
	if env == "" {
		env = "development"
	}
	return &Reporter{client: rollbar.New(cfg.Token, env, cfg.CodeVersion, cfg.ServerHost, "")}, nil
}

// SetEnabled toggles delivery; disabled reporters drop everything.
func (r *Reporter) SetEnabled(enabled bool) { r.client.SetEnabled(enabled) }

// Report sends err at error level with extras attached.
func (r *Reporter) Report(_ context.Context, err error, extras map[string]any) {
	if err == nil {
		return
	}
	r.client.ErrorWithExtras(rollbar.ERR, err, extras)
}

// ReportPanic sends a recovered panic value at critical level.
func (r *Reporter) ReportPanic(_ context.Context, recovered any, extras map[string]any) {
	err, ok := recovered.(error)
	if !ok {
		err = &panicError{value: recovered}
	}
	r.client.ErrorWithExtras(rollbar.CRIT, err, extras)
}

// Close flushes queued items.
func (r *Reporter) Close() {
	r.client.Close()
}

type panicError struct{ value any }

func (p *panicError) Error() string {
	if s, ok := p.value.(string); ok {
		return "panic: " + s
	}
	return "panic"
}
