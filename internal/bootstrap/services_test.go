package bootstrap

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/target/studentdash/config"
	"github.com/target/studentdash/internal/adapters/logmail"
	"github.com/target/studentdash/internal/domain/model"
	"github.com/target/studentdash/internal/observability/notify"
)

func memoryConfig() *config.AppConfig {
	return &config.AppConfig{
		IsDev:    true,
		Services: "http,notifier",
		Storage:  config.StorageConfig{Backend: config.StorageMemory, Seed: true},
		HTTP:     config.HTTPConfig{BaseURL: "http://localhost:8080"},
		Mail:     config.MailConfig{Provider: config.MailLog},
		Events:   config.EventsConfig{Backend: "gochannel", Topic: "students.changed"},
		Auth: config.AuthConfig{
			Federated:         config.FederatedNone,
			SessionTTL:        time.Hour,
			ClientIdleTTL:     time.Minute,
			RecentLoginWindow: 5 * time.Minute,
			MinPasswordLength: 6,
		},
		Redis: config.RedisConfig{SessionPrefix: "studentdash:session:"},
	}
}

func quietLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestGetEnabledServices(t *testing.T) {
	cfg := memoryConfig()
	assert.Equal(t, []string{"http", "notifier"}, GetEnabledServices(cfg))

	cfg.Services = "notifier"
	assert.Equal(t, []string{"notifier"}, GetEnabledServices(cfg))

	cfg.Services = "bogus"
	assert.Empty(t, GetEnabledServices(cfg))
	assert.Empty(t, GetEnabledServices(nil))
}

func TestValidateServiceConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.AppConfig)
		wantErr string
	}{
		{name: "memory defaults", mutate: func(*config.AppConfig) {}},
		{
			name:    "no services",
			mutate:  func(c *config.AppConfig) { c.Services = "" },
			wantErr: "no services enabled",
		},
		{
			name:    "standalone notifier on gochannel",
			mutate:  func(c *config.AppConfig) { c.Services = "notifier" },
			wantErr: "EVENTS_BACKEND=kafka",
		},
		{
			name: "kafka without brokers",
			mutate: func(c *config.AppConfig) {
				c.Events.Backend = "kafka"
			},
			wantErr: "EVENTS_KAFKA_BROKERS",
		},
		{
			name:    "sendgrid without key",
			mutate:  func(c *config.AppConfig) { c.Mail.Provider = config.MailSendGrid },
			wantErr: "SENDGRID_API_KEY",
		},
		{
			name:    "production without verification secret",
			mutate:  func(c *config.AppConfig) { c.IsDev = false },
			wantErr: "AUTH_VERIFICATION_SECRET",
		},
		{
			name:    "oidc without discovery",
			mutate:  func(c *config.AppConfig) { c.Auth.Federated = config.FederatedOIDC; c.Auth.OAuth.ClientID = "id" },
			wantErr: "OAUTH_DISCOVERY_URL",
		},
		{
			name: "dev login outside development",
			mutate: func(c *config.AppConfig) {
				c.IsDev = false
				c.Auth.VerificationSecret = "s3cret"
				c.Auth.Federated = config.FederatedDev
			},
			wantErr: "only allowed in development",
		},
		{
			name: "standalone notifier on kafka and postgres",
			mutate: func(c *config.AppConfig) {
				c.Services = "notifier"
				c.Events.Backend = "kafka"
				c.Events.KafkaBrokers = []string{"localhost:9092"}
				c.Storage.Backend = config.StoragePostgres
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig()
			tt.mutate(cfg)
			err := ValidateServiceConfig(cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
	assert.Error(t, ValidateServiceConfig(nil))
}

func TestBuildFederatedAuthenticator(t *testing.T) {
	fed, err := BuildFederatedAuthenticator(config.AuthConfig{Federated: config.FederatedNone})
	require.NoError(t, err)
	assert.Nil(t, fed)

	fed, err = BuildFederatedAuthenticator(config.AuthConfig{
		Federated: config.FederatedDev,
		DevAuth:   config.DevAuthConfig{Subject: "dev-user", Email: "dev@example.com", DisplayName: "Dev User"},
	})
	require.NoError(t, err)
	assert.NotNil(t, fed)
}

func TestBuildRepositories(t *testing.T) {
	ctx := context.Background()

	repos, err := BuildRepositories(ctx, RepositoryConfig{
		Storage: config.StorageConfig{Backend: config.StorageMemory, Seed: true},
		Logger:  quietLogger(),
	})
	require.NoError(t, err)
	students, err := repos.Students.List(ctx)
	require.NoError(t, err)
	assert.Len(t, students, 8)

	repos, err = BuildRepositories(ctx, RepositoryConfig{Storage: config.StorageConfig{Backend: config.StorageMemory}})
	require.NoError(t, err)
	students, err = repos.Students.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, students)

	_, err = BuildRepositories(ctx, RepositoryConfig{Storage: config.StorageConfig{Backend: config.StoragePostgres}})
	assert.ErrorContains(t, err, "database connection")
}

func TestBuildMailerDefaultsToLog(t *testing.T) {
	m, err := BuildMailer(config.MailConfig{Provider: config.MailLog}, nil)
	require.NoError(t, err)
	assert.IsType(t, &logmail.Mailer{}, m)

	_, err = BuildMailer(config.MailConfig{Provider: config.MailSendGrid}, nil)
	assert.Error(t, err)
}

func TestBuildErrorReporterDisabledWithoutToken(t *testing.T) {
	assert.Nil(t, BuildErrorReporter(config.RollbarConfig{}, quietLogger()))
}

func TestNewSessionStorePicksBackend(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	memStore := newSessionStore(nil, "")
	redisStore := newSessionStore(client, "sd:")
	for _, s := range []struct {
		name  string
		store interface {
			Delete(context.Context, string) error
		}
	}{{"memory", memStore}, {"redis", redisStore}} {
		t.Run(s.name, func(t *testing.T) {
			require.NoError(t, s.store.Delete(ctx, "missing"))
		})
	}
}

func TestNewServicesMemoryWiring(t *testing.T) {
	ctx := context.Background()
	container, err := NewServices(ctx, &ServiceDeps{Config: memoryConfig(), Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	require.NotNil(t, container.Auth)
	assert.Nil(t, container.Auth.Federated)
	assert.Nil(t, container.Reporter)
	assert.Empty(t, container.Health)

	courses, err := container.Students.ListCourses(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.CourseAll, courses[0])

	svcs := buildBackgroundServices(&ServiceOrchestrationConfig{
		Config:   memoryConfig(),
		Services: container,
	}, quietLogger())
	names := make([]string, 0, len(svcs))
	for _, s := range svcs {
		names = append(names, s.name)
	}
	assert.Equal(t, []string{"auth janitor", "view tracker sweeper", "notifier"}, names)
}

func TestNewServicesRequiresConfig(t *testing.T) {
	_, err := NewServices(context.Background(), &ServiceDeps{})
	assert.Error(t, err)
}

func TestStartBackgroundServicesHonoursModes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ran := make(chan string, 2)
	services := []backgroundService{
		{mode: config.ServiceModeHTTP, name: "web", start: func(context.Context) error { ran <- "web"; return nil }},
		{mode: config.ServiceModeNotifier, name: "mail", start: func(context.Context) error { ran <- "mail"; return nil }},
	}

	var g errgroup.Group
	started := startBackgroundServices(ctx, &g, map[config.ServiceMode]bool{config.ServiceModeNotifier: true}, services, quietLogger())
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, started)
	assert.Equal(t, "mail", <-ran)
	assert.Empty(t, ran)
}

func TestBuildObservability(t *testing.T) {
	client, err := BuildMetrics(config.MetricsConfig{Enabled: false, Address: "127.0.0.1:8125"}, true, nil)
	require.NoError(t, err)
	assert.Nil(t, client)

	client, err = BuildMetrics(config.MetricsConfig{Enabled: true, Address: "127.0.0.1:8125", Prefix: "sd"}, true, nil)
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.NoError(t, client.Close())

	sinks, err := BuildTeamSinks(config.SlackConfig{}, "http://localhost:8080")
	require.NoError(t, err)
	assert.Empty(t, sinks)

	sinks, err = BuildTeamSinks(config.SlackConfig{WebhookURL: "https://hooks.example.com/x"}, "http://localhost:8080")
	require.NoError(t, err)
	assert.Len(t, sinks, 1)
}

func TestBuildTeamSinksLinksStudentDetailPage(t *testing.T) {
	texts := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		texts <- body.Text
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	sinks, err := BuildTeamSinks(config.SlackConfig{WebhookURL: srv.URL}, "https://dash.example.com")
	require.NoError(t, err)
	require.Len(t, sinks, 1)

	err = sinks[0].SendRosterChange(context.Background(), notify.RosterChange{
		Kind:        "updated",
		StudentID:   "s-9",
		StudentName: "Grace",
		Summary:     "Student Grace was updated",
	})
	require.NoError(t, err)
	// the detail page is /student/{id}; /students is the roster
	assert.Contains(t, <-texts, "<https://dash.example.com/student/s-9|Grace>")
}
