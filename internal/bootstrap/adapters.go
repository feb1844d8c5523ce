package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/studentdash/config"
	"github.com/target/studentdash/internal/adapters/logmail"
	"github.com/target/studentdash/internal/adapters/memory"
	redisadapter "github.com/target/studentdash/internal/adapters/redis"
	"github.com/target/studentdash/internal/adapters/rollbar"
	"github.com/target/studentdash/internal/adapters/sendgrid"
	"github.com/target/studentdash/internal/core"
	"github.com/target/studentdash/internal/data"
	"github.com/target/studentdash/internal/devseed"
	"github.com/target/studentdash/internal/events"
	"github.com/target/studentdash/internal/observability/notify"
	"github.com/target/studentdash/internal/observability/notify/slack"
	"github.com/target/studentdash/internal/observability/statsd"
	"github.com/target/studentdash/internal/ports"
)

// Repositories groups the storage adapters selected by STORAGE_BACKEND.
type Repositories struct {
	Students    core.StudentRepository
	Accounts    core.AccountRepository
	Preferences core.PreferenceRepository
}

// RepositoryConfig contains the connections a storage backend may need.
type RepositoryConfig struct {
	Storage     config.StorageConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// BuildRepositories builds repositories backing service ports; no business rules here.
func BuildRepositories(ctx context.Context, cfg RepositoryConfig) (Repositories, error) {
	var repos Repositories
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		if cfg.DB == nil {
			return repos, errors.New("postgres storage requires a database connection")
		}
		if cfg.RedisClient == nil {
			return repos, errors.New("postgres storage requires a redis connection for preferences")
		}
		repos = Repositories{
			Students:    data.NewStudentRepo(cfg.DB),
			Accounts:    data.NewAccountRepo(cfg.DB),
			Preferences: redisadapter.NewPreferenceStore(cfg.RedisClient),
		}
	default:
		repos = Repositories{
			Students:    memory.NewStudentRepo(),
			Accounts:    memory.NewAccountRepo(),
			Preferences: memory.NewPreferenceRepo(),
		}
	}

	if cfg.Storage.Seed {
		if err := devseed.Run(ctx, repos.Students, cfg.Logger); err != nil {
			return repos, fmt.Errorf("seed students: %w", err)
		}
	}
	return repos, nil
}

// BuildMailer returns the mailer selected by MAIL_PROVIDER.
//
//nolint:ireturn // the mailer is picked at runtime.
func BuildMailer(cfg config.MailConfig, logger *slog.Logger) (ports.Mailer, error) {
	switch cfg.Provider {
	case config.MailSendGrid:
		m, err := sendgrid.New(sendgrid.Config{
			APIKey:        cfg.SendGridAPIKey,
			From:          cfg.From,
			FromName:      cfg.FromName,
			SubjectPrefix: "[" + cfg.FromName + "] ",
		})
		if err != nil {
			return nil, fmt.Errorf("build sendgrid mailer: %w", err)
		}
		return m, nil
	default:
		return logmail.New(loggerOrDefault(logger).With("component", "mail")), nil
	}
}

// BuildEventBus returns the student events bus selected by EVENTS_BACKEND.
func BuildEventBus(cfg config.EventsConfig, logger *slog.Logger) (*events.Bus, error) {
	bus, err := events.NewBus(events.Config{
		Backend:       events.Backend(cfg.Backend),
		Topic:         cfg.Topic,
		KafkaBrokers:  cfg.KafkaBrokers,
		ConsumerGroup: cfg.ConsumerGroup,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build event bus: %w", err)
	}
	return bus, nil
}

// BuildErrorReporter returns a Rollbar reporter, or nil when no token is configured.
func BuildErrorReporter(cfg config.RollbarConfig, logger *slog.Logger) *rollbar.Reporter {
	logger = loggerOrDefault(logger)
	if !cfg.Enabled() {
		return nil
	}
	r, err := rollbar.New(rollbar.Config{
		Token:       cfg.Token,
		Environment: cfg.Environment,
		CodeVersion: cfg.CodeVersion,
	})
	if err != nil {
		logger.Warn("error reporting disabled", "error", err)
		return nil
	}
	logger.Info("error reporting enabled", "environment", cfg.Environment)
	return r
}

// BuildMetrics dials StatsD, or returns nil when metrics are disabled.
func BuildMetrics(cfg config.MetricsConfig, isDev bool, logger *slog.Logger) (*statsd.Client, error) {
	if !cfg.IsEnabled() {
		return nil, nil
	}
	env := "production"
	if isDev {
		env = "development"
	}
	client, err := statsd.NewClient(statsd.Config{
		Address: cfg.Address,
		Prefix:  cfg.Prefix,
		Tags:    map[string]string{"env": env},
		Logger:  loggerOrDefault(logger).With("component", "statsd"),
	})
	if err != nil {
		return nil, fmt.Errorf("build statsd client: %w", err)
	}
	return client, nil
}

// BuildTeamSinks returns the channels that see every roster change.
func BuildTeamSinks(cfg config.SlackConfig, baseURL string) ([]notify.Sink, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	client, err := slack.NewClient(slack.Config{
		WebhookURL:       cfg.WebhookURL,
		Channel:          cfg.Channel,
		Username:         cfg.Username,
		Timeout:          cfg.Timeout,
		RetryLimit:       cfg.RetryLimit,
		StudentURLPrefix: baseURL + "/student",
	})
	if err != nil {
		return nil, fmt.Errorf("build slack sink: %w", err)
	}
	return []notify.Sink{client}, nil
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
