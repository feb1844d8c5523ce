package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/target/studentdash/internal/domain/auth"
	"github.com/target/studentdash/internal/ports"
	"github.com/target/studentdash/internal/profile"
	"github.com/target/studentdash/internal/session"
)

const persistTimeout = 5 * time.Second

// AuthServiceConfig tunes session lifetimes.
type AuthServiceConfig struct {
	// SessionTTL is how long a persisted session outlives its last save.
	SessionTTL time.Duration
	// IdleTTL is how long an unused in-process client is kept before Sweep evicts it.
	IdleTTL time.Duration
	// OnEvict is called with the client id after Sweep or Close drops a client.
	OnEvict func(id string)
	Logger  *slog.Logger
	Now     func() time.Time
}

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Clients  ports.IdentityClientFactory
	Sessions ports.SessionStore
	Config   AuthServiceConfig
}

// AuthClient is everything the views hold for one browser.
type AuthClient struct {
	ID      string
	Session *session.Store
	Profile *profile.Store

	lastSeen time.Time
}

func (c *AuthClient) close() {
	c.Profile.Close()
	c.Session.Close()
}

// AuthService keeps one AuthClient per browser session id and mirrors each
// client's signed-in identity into the persisted session store.
type AuthService struct {
	factory  ports.IdentityClientFactory
	sessions ports.SessionStore
	cfg      AuthServiceConfig

	mu      sync.Mutex
	clients map[string]*AuthClient
	closed  bool
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	if opts.Clients == nil {
		panic("IdentityClientFactory is required")
	}
	if opts.Sessions == nil {
		panic("SessionStore is required")
	}
	cfg := opts.Config
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AuthService{
		factory:  opts.Clients,
		sessions: opts.Sessions,
		cfg:      cfg,
		clients:  make(map[string]*AuthClient),
	}
}

func (s *AuthService) logger() *slog.Logger {
	if s.cfg.Logger != nil {
		return s.cfg.Logger
	}
	return slog.Default()
}

// NewSessionID returns a fresh browser session id.
func (s *AuthService) NewSessionID() string {
	return uuid.NewString()
}

var errServiceClosed = errors.New("auth service closed")

// Client returns the client for sid, creating it when needed. A persisted session
// for sid makes the new client restore that user in the background.
func (s *AuthService) Client(ctx context.Context, sid string) (*AuthClient, error) {
	if sid == "" {
		return nil, errors.New("session ID is required")
	}
	if c := s.lookup(sid); c != nil {
		return c, nil
	}

	restoreUserID, err := s.persistedUser(ctx, sid)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errServiceClosed
	}
	if c, ok := s.clients[sid]; ok {
		c.lastSeen = s.cfg.Now()
		return c, nil
	}

	ic := s.factory.NewIdentityClient(ctx, restoreUserID)
	st := session.New(ic, s.cfg.Logger)
	st.Start()
	c := &AuthClient{
		ID:       sid,
		Session:  st,
		Profile:  profile.New(st, ic),
		lastSeen: s.cfg.Now(),
	}
	p := &persister{svc: s, sid: sid, saved: restoreUserID != ""}
	st.Subscribe(p.onState)
	s.clients[sid] = c

	s.logger().DebugContext(ctx, "auth client created", "restoring", restoreUserID != "")
	return c, nil
}

func (s *AuthService) lookup(sid string) *AuthClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[sid]
	if !ok {
		return nil
	}
	c.lastSeen = s.cfg.Now()
	return c
}

// persistedUser returns the user id of an unexpired persisted session, or "".
// A store failure degrades to a signed-out client rather than failing the request.
func (s *AuthService) persistedUser(ctx context.Context, sid string) (string, error) {
	sess, err := s.sessions.Get(ctx, sid)
	switch {
	case errors.Is(err, ports.ErrSessionNotFound):
		return "", nil
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("get session: %w", ctxErr)
		}
		s.logger().WarnContext(ctx, "session lookup failed; starting signed out", "error", err)
		return "", nil
	case sess.Expired(s.cfg.Now()):
		return "", nil
	default:
		return sess.UserID, nil
	}
}

// ClientCount reports how many browser clients are live.
func (s *AuthService) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Sweep closes clients idle since before now-IdleTTL and returns how many it dropped.
// Their persisted sessions survive, so the next request restores them.
func (s *AuthService) Sweep(now time.Time) int {
	cutoff := now.Add(-s.cfg.IdleTTL)
	var evicted []*AuthClient

	s.mu.Lock()
	for id, c := range s.clients {
		if c.lastSeen.Before(cutoff) {
			evicted = append(evicted, c)
			delete(s.clients, id)
		}
	}
	s.mu.Unlock()

	for _, c := range evicted {
		s.drop(c)
	}
	return len(evicted)
}

// RunJanitor sweeps idle clients every interval until ctx is done.
func (s *AuthService) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(s.cfg.Now()); n > 0 {
				s.logger().InfoContext(ctx, "evicted idle auth clients", "count", n)
			}
		}
	}
}

// Close drops every client. Later calls to Client fail.
func (s *AuthService) Close() {
	s.mu.Lock()
	s.closed = true
	all := make([]*AuthClient, 0, len(s.clients))
	for id, c := range s.clients {
		all = append(all, c)
		delete(s.clients, id)
	}
	s.mu.Unlock()

	for _, c := range all {
		s.drop(c)
	}
}

func (s *AuthService) drop(c *AuthClient) {
	c.close()
	if s.cfg.OnEvict != nil {
		s.cfg.OnEvict(c.ID)
	}
}

// persister mirrors one client's identity into the session store. The session
// store serializes its deliveries, so saved needs no lock.
type persister struct {
	svc   *AuthService
	sid   string
	saved bool
}

func (p *persister) onState(st session.State) {
	if st.Loading {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if st.Identity == nil {
		if !p.saved {
			return
		}
		if err := p.svc.sessions.Delete(ctx, p.sid); err != nil {
			p.svc.logger().WarnContext(ctx, "failed to delete persisted session", "error", err)
			return
		}
		p.saved = false
		return
	}

	sess := domainauth.Session{
		ID:          p.sid,
		UserID:      st.Identity.UserID,
		Email:       st.Identity.Email,
		DisplayName: st.Identity.DisplayName,
		ExpiresAt:   p.svc.cfg.Now().Add(p.svc.cfg.SessionTTL),
	}
	if err := p.svc.sessions.Save(ctx, sess); err != nil {
		p.svc.logger().WarnContext(ctx, "failed to persist session", "error", err, "user_id", sess.UserID)
		return
	}
	p.saved = true
}
