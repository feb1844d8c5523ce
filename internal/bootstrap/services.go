package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/target/studentdash/config"
	"github.com/target/studentdash/internal/events"
	httpx "github.com/target/studentdash/internal/http"
	"github.com/target/studentdash/internal/observability/metrics"
	"github.com/target/studentdash/internal/observability/statsd"
	"github.com/target/studentdash/internal/service"
	"github.com/target/studentdash/internal/viewsync"
)

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
	// janitorInterval is how often idle auth clients and view tickets are swept.
	janitorInterval = time.Minute
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Students      *service.StudentService
	Auth          *AuthStack
	Preferences   *service.PreferenceService
	Export        *service.ExportService
	Notifications *service.NotificationService
	Tracker       *viewsync.Tracker
	Events        *events.Bus
	Reporter      httpx.ErrorReporter // nil when error reporting is off
	Metrics       statsd.Sink         // nil when metrics are off
	Health        []httpx.HealthCheck

	closeReporter func() // set only when NewServices built the reporter
	closeMetrics  func() error
}

// Close releases the in-process clients, the event bus and the metrics socket.
func (c ServiceContainer) Close() error {
	if c.Auth != nil {
		c.Auth.Service.Close()
	}
	var errs []error
	if c.Events != nil {
		if err := c.Events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}
	if c.closeReporter != nil {
		c.closeReporter()
	}
	if c.closeMetrics != nil {
		if err := c.closeMetrics(); err != nil {
			errs = append(errs, fmt.Errorf("close statsd: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB               // nil for the memory backend
	RedisClient redis.UniversalClient // nil for the memory backend
	// Reporter is optional; when nil one is built from the Rollbar config.
	Reporter httpx.ErrorReporter
	Logger   *slog.Logger
}

// NewServices builds every service from the configured adapters.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	cfg := deps.Config
	logger := loggerOrDefault(deps.Logger)

	repos, err := BuildRepositories(ctx, RepositoryConfig{
		Storage:     cfg.Storage,
		DB:          deps.DB,
		RedisClient: deps.RedisClient,
		Logger:      logger,
	})
	if err != nil {
		return ServiceContainer{}, err
	}

	mailer, err := BuildMailer(cfg.Mail, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	teamSinks, err := BuildTeamSinks(cfg.Observability.Slack, cfg.HTTP.BaseURL)
	if err != nil {
		return ServiceContainer{}, err
	}

	statsClient, err := BuildMetrics(cfg.Observability.Metrics, cfg.IsDev, logger)
	if err != nil {
		return ServiceContainer{}, err
	}
	var sink statsd.Sink
	if statsClient != nil {
		sink = statsClient
	}

	bus, err := BuildEventBus(cfg.Events, logger)
	if err != nil {
		_ = statsClient.Close()
		return ServiceContainer{}, err
	}

	tracker := viewsync.NewTracker()
	auth, err := BuildAuthService(AuthConfig{
		Auth:        cfg.Auth,
		BaseURL:     cfg.HTTP.BaseURL,
		IsDev:       cfg.IsDev,
		Accounts:    repos.Accounts,
		Mailer:      mailer,
		RedisClient: deps.RedisClient,
		RedisPrefix: cfg.Redis.SessionPrefix,
		OnEvict:     tracker.Forget,
		Logger:      logger,
	})
	if err != nil {
		_ = bus.Close()
		_ = statsClient.Close()
		return ServiceContainer{}, err
	}

	students := service.NewStudentService(service.StudentServiceOptions{
		Repo:    repos.Students,
		Events:  bus,
		Metrics: sink,
		Logger:  logger.With("component", "students"),
	})

	container := ServiceContainer{
		Students:    students,
		Auth:        auth,
		Preferences: service.NewPreferenceService(service.PreferenceServiceOptions{Repo: repos.Preferences}),
		Export:      service.NewExportService(students),
		Notifications: service.NewNotificationService(service.NotificationServiceOptions{
			Source:      bus,
			Preferences: repos.Preferences,
			Mailer:      mailer,
			Sinks:       teamSinks,
			Metrics:     sink,
			Logger:      logger.With("component", "notifications"),
		}),
		Tracker: tracker,
		Events:  bus,
		Metrics: sink,
		Health:  healthChecks(deps.DB, deps.RedisClient),
	}
	if statsClient != nil {
		container.closeMetrics = statsClient.Close
	}
	switch {
	case deps.Reporter != nil:
		container.Reporter = deps.Reporter
	default:
		if reporter := BuildErrorReporter(cfg.Rollbar, logger); reporter != nil {
			container.Reporter = reporter
			container.closeReporter = reporter.Close
		}
	}
	return container, nil
}

func healthChecks(db *sql.DB, rdb redis.UniversalClient) []httpx.HealthCheck {
	var checks []httpx.HealthCheck
	if db != nil {
		checks = append(checks, httpx.HealthCheck{Name: "postgres", Check: db.PingContext})
	}
	if rdb != nil {
		checks = append(checks, httpx.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}
	return checks
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

func buildBackgroundServices(cfg *ServiceOrchestrationConfig, logger *slog.Logger) []backgroundService {
	svcs := cfg.Services
	var out []backgroundService
	if svcs.Auth != nil {
		out = append(out, backgroundService{
			mode: config.ServiceModeHTTP,
			name: "auth janitor",
			start: func(ctx context.Context) error {
				svcs.Auth.Service.RunJanitor(ctx, janitorInterval)
				return nil
			},
		})
	}
	if svcs.Tracker != nil {
		idle := cfg.Config.Auth.ClientIdleTTL
		out = append(out, backgroundService{
			mode: config.ServiceModeHTTP,
			name: "view tracker sweeper",
			start: func(ctx context.Context) error {
				sweepTracker(ctx, svcs, idle, logger)
				return nil
			},
		})
	}
	if svcs.Notifications != nil {
		out = append(out, backgroundService{
			mode:  config.ServiceModeNotifier,
			name:  "notifier",
			start: svcs.Notifications.Run,
		})
	}
	return out
}

// sweepTracker drops view tickets for regions nobody has touched within idle
// and reports the live client count.
func sweepTracker(ctx context.Context, svcs ServiceContainer, idle time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := svcs.Tracker.Sweep(now.Add(-idle)); n > 0 {
				logger.DebugContext(ctx, "swept idle view tickets", "count", n)
			}
			if svcs.Auth != nil {
				metrics.EmitAuthClients(svcs.Metrics, svcs.Auth.Service.ClientCount())
			}
		}
	}
}

// startBackgroundServices runs every enabled service in g. The first failure
// cancels the group context.
func startBackgroundServices(
	ctx context.Context,
	g *errgroup.Group,
	enabled map[config.ServiceMode]bool,
	services []backgroundService,
	logger *slog.Logger,
) int {
	started := 0
	for _, svc := range services {
		if !enabled[svc.mode] {
			continue
		}
		g.Go(func() error {
			if err := svc.start(ctx); err != nil {
				return fmt.Errorf("%s failed: %w", svc.name, err)
			}
			return nil
		})
		logger.InfoContext(ctx, "background service started", "service", svc.name, "mode", svc.mode)
		started++
	}
	return started
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	logger := loggerOrDefault(cfg.Logger)

	// Determine which services are enabled
	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, groupCtx := errgroup.WithContext(serviceCtx)

	var server *http.Server
	if enabled[config.ServiceModeHTTP] {
		server, err = StartHTTPServer(&HTTPServerConfig{Config: cfg.Config, Services: cfg.Services, Logger: logger})
		if err != nil {
			return fmt.Errorf("start http server: %w", err)
		}
	}
	startBackgroundServices(groupCtx, g, enabled, buildBackgroundServices(cfg, logger), logger)

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		groupCtx:   groupCtx,
		cancel:     cancel,
		group:      g,
		httpServer: server,
		httpGrace:  cfg.Config.HTTP.ShutdownTimeout,
		logger:     logger,
	})
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	groupCtx   context.Context
	cancel     context.CancelFunc
	group      *errgroup.Group
	httpServer *http.Server
	httpGrace  time.Duration
	logger     *slog.Logger
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case <-cfg.groupCtx.Done():
		cfg.cancel()
		stopErr := gracefulStop(cfg)
		if stopErr != nil {
			cfg.logger.Error("service error", "error", stopErr)
		}
		return stopErr
	}
}

// gracefulStop stops the HTTP server and then waits for the background group.
func gracefulStop(cfg shutdownConfig) error {
	var httpErr error
	if cfg.httpServer != nil {
		httpErr = ShutdownHTTPServer(ShutdownConfig{
			Context: context.Background(),
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
			Timeout: cfg.httpGrace,
		})
	}
	return errors.Join(httpErr, waitForGroup(cfg.group, cfg.logger))
}

// waitForGroup waits for the background group to finish with timeout.
func waitForGroup(g *errgroup.Group, logger *slog.Logger) error {
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		logger.Info("background services stopped")
		return err
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for background services to stop")
		return nil
	}
}
