package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/studentdash/config"
	httpx "github.com/target/studentdash/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) (*http.Server, error) {
	if cfg == nil {
		return nil, errors.New("http server config is required")
	}
	logger := loggerOrDefault(cfg.Logger)

	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler, err := httpx.NewRouter(routerServices(appCfg, cfg.Services, logger))
	if err != nil {
		return nil, err
	}

	return startServer(logger, handler, appCfg.HTTP), nil
}

func routerServices(appCfg *config.AppConfig, svcs ServiceContainer, logger *slog.Logger) httpx.RouterServices {
	rs := httpx.RouterServices{
		Students:            svcs.Students,
		Prefs:               svcs.Preferences,
		Export:              svcs.Export,
		Tracker:             svcs.Tracker,
		Reporter:            svcs.Reporter,
		Metrics:             svcs.Metrics,
		Health:              svcs.Health,
		CookieDomain:        appCfg.HTTP.CookieDomain,
		BaseURL:             appCfg.HTTP.BaseURL,
		SessionCookieMaxAge: appCfg.Auth.SessionTTL,
		LoadingWait:         appCfg.Auth.LoadingWait,
		MinPasswordLength:   appCfg.Auth.MinPasswordLength,
		IsDev:               appCfg.IsDev,
		Logger:              logger,
	}
	if svcs.Auth != nil {
		rs.Auth = svcs.Auth.Service
		rs.Verifier = svcs.Auth.Directory
		rs.FederatedEnabled = svcs.Auth.Federated != nil
		rs.FederatedLabel = appCfg.Auth.FederatedLabel()
	}
	if appCfg.HTTP.CompressionEnabled {
		logger.Info("HTTP compression enabled", "level", appCfg.HTTP.CompressionLevel)
		rs.Compression = &httpx.CompressionConfig{Level: appCfg.HTTP.CompressionLevel, Logger: logger}
	}
	return rs
}

func startServer(logger *slog.Logger, handler http.Handler, cfg config.HTTPConfig) *http.Server {
	cfg.Sanitize()
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Logger  *slog.Logger
	Timeout time.Duration // defaults to 10s
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(cfg.Context, timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
