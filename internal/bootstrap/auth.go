package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/target/studentdash/config"
	"github.com/target/studentdash/internal/adapters/casdoor"
	"github.com/target/studentdash/internal/adapters/devauth"
	"github.com/target/studentdash/internal/adapters/localidp"
	"github.com/target/studentdash/internal/adapters/memory"
	"github.com/target/studentdash/internal/adapters/oidc"
	redisadapter "github.com/target/studentdash/internal/adapters/redis"
	"github.com/target/studentdash/internal/core"
	"github.com/target/studentdash/internal/ports"
	"github.com/target/studentdash/internal/service"
)

// AuthConfig contains configuration for the auth stack.
type AuthConfig struct {
	Auth    config.AuthConfig
	BaseURL string
	IsDev   bool

	Accounts    core.AccountRepository
	Mailer      ports.Mailer
	RedisClient redis.UniversalClient // nil keeps sessions in memory
	RedisPrefix string
	OnEvict     func(id string)
	Logger      *slog.Logger
}

// AuthStack is the identity directory and the per-browser client registry built on it.
type AuthStack struct {
	Directory *localidp.Directory
	Service   *service.AuthService
	// Federated is nil when federated login is disabled.
	Federated ports.FederatedAuthenticator
}

// BuildAuthService wires the configured federated provider, the account directory
// and the session store into an AuthService.
func BuildAuthService(cfg AuthConfig) (*AuthStack, error) {
	logger := loggerOrDefault(cfg.Logger)

	federated, err := BuildFederatedAuthenticator(cfg.Auth)
	if err != nil {
		return nil, err
	}
	if federated != nil {
		logger.Info("federated login enabled", "provider", cfg.Auth.Federated)
	}

	secret := cfg.Auth.VerificationSecret
	if secret == "" && cfg.IsDev {
		// Links stop working across restarts, which is fine for local development.
		secret = uuid.NewString()
		logger.Warn("AUTH_VERIFICATION_SECRET not set; using an ephemeral secret")
	}

	dir, err := localidp.NewDirectory(localidp.DirectoryOptions{
		Accounts:  cfg.Accounts,
		Federated: federated,
		Mailer:    cfg.Mailer,
		Config: localidp.Config{
			MinPasswordLength:  cfg.Auth.MinPasswordLength,
			RecentLoginWindow:  cfg.Auth.RecentLoginWindow,
			VerificationSecret: secret,
			BaseURL:            cfg.BaseURL,
		},
		Logger: logger.With("component", "localidp"),
	})
	if err != nil {
		return nil, fmt.Errorf("build account directory: %w", err)
	}

	svc := service.NewAuthService(service.AuthServiceOptions{
		Clients:  dir,
		Sessions: newSessionStore(cfg.RedisClient, cfg.RedisPrefix),
		Config: service.AuthServiceConfig{
			SessionTTL: cfg.Auth.SessionTTL,
			IdleTTL:    cfg.Auth.ClientIdleTTL,
			OnEvict:    cfg.OnEvict,
			Logger:     logger.With("component", "auth"),
		},
	})
	return &AuthStack{Directory: dir, Service: svc, Federated: federated}, nil
}

//nolint:ireturn // the store is picked at runtime.
func newSessionStore(client redis.UniversalClient, prefix string) ports.SessionStore {
	if client == nil {
		return memory.NewSessionStore(time.Now)
	}
	if prefix == "" {
		return redisadapter.NewSessionStore(client)
	}
	return redisadapter.NewSessionStoreWithPrefix(client, prefix)
}

// BuildFederatedAuthenticator returns the provider selected by AUTH_FEDERATED,
// or nil when federated login is disabled.
//
//nolint:ireturn // callers only need the port.
func BuildFederatedAuthenticator(cfg config.AuthConfig) (ports.FederatedAuthenticator, error) {
	switch cfg.Federated {
	case config.FederatedOIDC:
		prov, err := oidc.NewProvider(oidc.ProviderConfig{
			ClientID:         cfg.OAuth.ClientID,
			ClientSecret:     cfg.OAuth.ClientSecret,
			RedirectURL:      cfg.OAuth.RedirectURL,
			Scope:            cfg.OAuth.Scope,
			DiscoveryURL:     cfg.OAuth.DiscoveryURL,
			DisplayNameClaim: cfg.OAuth.DisplayNameClaim,
			AvatarClaim:      cfg.OAuth.AvatarClaim,
		})
		if err != nil {
			return nil, fmt.Errorf("build oidc provider: %w", err)
		}
		return prov, nil

	case config.FederatedCasdoor:
		prov, err := casdoor.NewProvider(casdoor.Config{
			Endpoint:     cfg.Casdoor.Endpoint,
			ClientID:     cfg.Casdoor.ClientID,
			ClientSecret: cfg.Casdoor.ClientSecret,
			Certificate:  cfg.Casdoor.Certificate,
			Organization: cfg.Casdoor.Organization,
			Application:  cfg.Casdoor.Application,
			RedirectURL:  cfg.Casdoor.RedirectURL,
		})
		if err != nil {
			return nil, fmt.Errorf("build casdoor provider: %w", err)
		}
		return prov, nil

	case config.FederatedDev:
		prov, err := devauth.NewProvider(devauth.Config{
			Subject:       cfg.DevAuth.Subject,
			Email:         cfg.DevAuth.Email,
			DisplayName:   cfg.DevAuth.DisplayName,
			EmailVerified: true,
		})
		if err != nil {
			return nil, fmt.Errorf("build dev auth provider: %w", err)
		}
		return prov, nil

	default:
		return nil, nil //nolint:nilnil // disabled is not an error
	}
}
