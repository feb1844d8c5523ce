package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/target/studentdash/config"
)

// InitLogger initializes the structured logger.
func InitLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig validates that at least one service is enabled and that the
// selected backends have what they need.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}

	if len(services) == 0 {
		return errors.New("no services enabled")
	}

	var errs []error
	if services[config.ServiceModeNotifier] && !services[config.ServiceModeHTTP] {
		// A standalone notifier only sees events and preferences another process wrote.
		if cfg.Events.Backend != "kafka" {
			errs = append(errs, errors.New("notifier without http requires EVENTS_BACKEND=kafka"))
		}
		if !cfg.Storage.UsesPostgres() {
			errs = append(errs, errors.New("notifier without http requires STORAGE_BACKEND=postgres"))
		}
	}
	if cfg.Events.Backend == "kafka" && len(cfg.Events.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("EVENTS_KAFKA_BROKERS is required for the kafka backend"))
	}
	if cfg.Mail.Provider == config.MailSendGrid && cfg.Mail.SendGridAPIKey == "" {
		errs = append(errs, errors.New("SENDGRID_API_KEY is required when MAIL_PROVIDER=sendgrid"))
	}
	if cfg.Auth.VerificationSecret == "" && !cfg.IsDev {
		errs = append(errs, errors.New("AUTH_VERIFICATION_SECRET is required outside development"))
	}
	errs = append(errs, validateFederated(cfg)...)

	return errors.Join(errs...)
}

func validateFederated(cfg *config.AppConfig) []error {
	a := cfg.Auth
	switch a.Federated {
	case config.FederatedOIDC:
		if a.OAuth.ClientID == "" || a.OAuth.DiscoveryURL == "" {
			return []error{errors.New("AUTH_FEDERATED=oidc requires OAUTH_CLIENT_ID and OAUTH_DISCOVERY_URL")}
		}
	case config.FederatedCasdoor:
		if a.Casdoor.Endpoint == "" || a.Casdoor.ClientID == "" {
			return []error{errors.New("AUTH_FEDERATED=casdoor requires CASDOOR_ENDPOINT and CASDOOR_CLIENT_ID")}
		}
	case config.FederatedDev:
		if !cfg.IsDev {
			return []error{errors.New("AUTH_FEDERATED=dev is only allowed in development")}
		}
	case config.FederatedNone:
	}
	return nil
}

// GetEnabledServices returns a list of enabled service names.
func GetEnabledServices(cfg *config.AppConfig) []string {
	if cfg == nil {
		return []string{}
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		// Return empty list on error - validation will catch this
		return []string{}
	}

	enabledServices := make([]string, 0, len(services))
	for _, mode := range config.ValidServiceModes() {
		if services[mode] {
			enabledServices = append(enabledServices, string(mode))
		}
	}

	return enabledServices
}
