package session

import (
	"context"
	"log/slog"
	"sync"

	domainauth "github.com/target/studentdash/internal/domain/auth"
	apperrors "github.com/target/studentdash/internal/errors"
	"github.com/target/studentdash/internal/ports"
)

// Store owns one browser's session state. The identity changes only through
// observations from the bound identity client.
type Store struct {
	client ports.IdentityClient
	log    *slog.Logger

	// dispatchMu orders observations and initial subscriber deliveries.
	dispatchMu sync.Mutex

	mu      sync.Mutex
	state   State
	subs    map[int]func(State)
	nextSub int
	lastErr *apperrors.AppError

	ready     chan struct{}
	readyOnce sync.Once

	startOnce   sync.Once
	closeOnce   sync.Once
	unsubscribe func()
}

// New returns a store in the loading state. Call Start to begin observing.
func New(client ports.IdentityClient, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		log:    logger,
		state:  Initial(),
		subs:   make(map[int]func(State)),
		ready:  make(chan struct{}),
	}
}

func (s *Store) logger() *slog.Logger {
	if s.log != nil {
		return s.log
	}
	return slog.Default()
}

// Start registers the store as the client's auth-state observer. Repeated calls are no-ops.
func (s *Store) Start() {
	s.startOnce.Do(func() {
		unsub := s.client.OnAuthStateChanged(s.observe)
		s.mu.Lock()
		s.unsubscribe = unsub
		s.mu.Unlock()
	})
}

// Close stops observing and closes the client.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		unsub := s.unsubscribe
		s.unsubscribe = nil
		s.mu.Unlock()
		if unsub != nil {
			unsub()
		}
		s.client.Close()
	})
}

func (s *Store) observe(ident *domainauth.Identity) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	s.state = s.state.Observe(ident)
	next := s.state.clone()
	fns := s.subscribersLocked()
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
	for _, fn := range fns {
		fn(next.clone())
	}
}

func (s *Store) subscribersLocked() []func(State) {
	fns := make([]func(State), 0, len(s.subs))
	for id := 0; id < s.nextSub; id++ {
		if fn, ok := s.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	return fns
}

// Subscribe delivers the current state once, then every later change in order.
// fn must not call Subscribe itself.
func (s *Store) Subscribe(fn func(State)) func() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	cur := s.state.clone()
	s.mu.Unlock()

	fn(cur)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Ready is closed once the first observation has been applied.
func (s *Store) Ready() <-chan struct{} { return s.ready }

// AwaitSettled blocks until the store has left the loading state or ctx ends.
func (s *Store) AwaitSettled(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastError returns the normalized error of the most recent failed operation, or nil
// if the latest operation succeeded.
func (s *Store) LastError() *apperrors.AppError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) setLastError(err *apperrors.AppError) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// run executes op and normalizes its failure.
func (s *Store) run(ctx context.Context, op string, fn func() error) error {
	if err := fn(); err != nil {
		appErr := Normalize(err)
		s.setLastError(appErr)
		level := slog.LevelInfo
		if appErr.Code == apperrors.ErrCodeUnknown {
			level = slog.LevelWarn
		}
		s.logger().Log(ctx, level, "auth operation failed", "op", op, "code", appErr.Code, "error", err)
		return appErr
	}
	s.setLastError(nil)
	return nil
}

// withUser runs a sensitive operation for the signed-in user.
func (s *Store) withUser(ctx context.Context, op string, fn func(userID string) error) error {
	return s.run(ctx, op, func() error {
		uid := s.Snapshot().UserID()
		if uid == "" {
			return apperrors.NotAuthenticated()
		}
		return fn(uid)
	})
}

func (s *Store) SignUp(ctx context.Context, email, password string) error {
	return s.run(ctx, "sign_up", func() error { return s.client.CreateAccount(ctx, email, password) })
}

func (s *Store) SignIn(ctx context.Context, email, password string) error {
	return s.run(ctx, "sign_in", func() error { return s.client.SignInWithPassword(ctx, email, password) })
}

func (s *Store) BeginFederated(ctx context.Context, redirectURL string) (*ports.FederatedRedirect, error) {
	var redirect *ports.FederatedRedirect
	err := s.run(ctx, "begin_federated", func() error {
		var beginErr error
		redirect, beginErr = s.client.BeginFederated(ctx, redirectURL)
		return beginErr
	})
	if err != nil {
		return nil, err
	}
	return redirect, nil
}

func (s *Store) CompleteFederated(ctx context.Context, in ports.ExchangeInput) error {
	return s.run(ctx, "complete_federated", func() error { return s.client.CompleteFederated(ctx, in) })
}

func (s *Store) SignOut(ctx context.Context) error {
	return s.run(ctx, "sign_out", func() error { return s.client.SignOut(ctx) })
}

func (s *Store) SendVerificationEmail(ctx context.Context) error {
	return s.withUser(ctx, "send_verification", func(uid string) error {
		return s.client.SendVerificationEmail(ctx, uid)
	})
}

func (s *Store) ChangePassword(ctx context.Context, current, next string) error {
	return s.withUser(ctx, "change_password", func(uid string) error {
		return s.client.ChangePassword(ctx, uid, current, next)
	})
}

// DeleteAccount deletes the signed-in account. On success the store is signed out
// even if the provider has not yet reported the change.
func (s *Store) DeleteAccount(ctx context.Context, current string) error {
	return s.withUser(ctx, "delete_account", func(uid string) error {
		if err := s.client.DeleteAccount(ctx, uid, current); err != nil {
			return err
		}
		if s.Snapshot().UserID() == uid {
			s.observe(nil)
		}
		return nil
	})
}
