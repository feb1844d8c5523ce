package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domainauth "github.com/target/studentdash/internal/domain/auth"
	"github.com/target/studentdash/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.FederatedAuthenticator = (*MockFederatedAuthenticator)(nil)
	_ ports.SessionStore           = (*MemorySessionStore)(nil)
	_ ports.Mailer                 = (*RecordingMailer)(nil)
	_ ports.IdentityClient         = (*FakeIdentityClient)(nil)
)

// MockFederatedAuthenticator simulates an IdP with deterministic state/nonce handling.
type MockFederatedAuthenticator struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.FederatedIdentity, error)

	AuthURL     string
	StatePrefix string
	NoncePrefix string
	DefaultUser domainauth.FederatedIdentity

	mu        sync.Mutex
	callCount int
}

// NewMockFederatedAuthenticator creates a MockFederatedAuthenticator with sensible defaults.
func NewMockFederatedAuthenticator() *MockFederatedAuthenticator {
	return &MockFederatedAuthenticator{
		AuthURL:     "https://mock-idp/auth",
		StatePrefix: "state",
		NoncePrefix: "nonce",
		DefaultUser: domainauth.FederatedIdentity{
			Provider:      domainauth.ProviderDev,
			Subject:       "mock-subject-1",
			Email:         "mock.user@example.com",
			EmailVerified: true,
			DisplayName:   "Mock User",
		},
	}
}

func (m *MockFederatedAuthenticator) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}

	m.mu.Lock()
	m.callCount++
	n := m.callCount
	m.mu.Unlock()

	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	statePrefix := m.StatePrefix
	if statePrefix == "" {
		statePrefix = "state"
	}
	noncePrefix := m.NoncePrefix
	if noncePrefix == "" {
		noncePrefix = "nonce"
	}
	return authURL, fmt.Sprintf("%s-%d", statePrefix, n), fmt.Sprintf("%s-%d", noncePrefix, n), nil
}

func (m *MockFederatedAuthenticator) Exchange(
	ctx context.Context,
	in ports.ExchangeInput,
) (domainauth.FederatedIdentity, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	user := m.DefaultUser
	if user.Subject == "" {
		user = domainauth.FederatedIdentity{
			Provider: domainauth.ProviderDev,
			Subject:  "mock-subject-1",
			Email:    "mock.user@example.com",
		}
	}
	return user, nil
}

// MemorySessionStore is an in-memory session store for unit tests. It ignores expiry.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domainauth.Session)}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return domainauth.Session{}, ports.ErrSessionNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len reports how many sessions are stored.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// RecordingMailer captures messages instead of sending them.
type RecordingMailer struct {
	SendErr error

	mu   sync.Mutex
	sent []ports.MailMessage
}

func (m *RecordingMailer) Send(_ context.Context, msg ports.MailMessage) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the captured messages.
func (m *RecordingMailer) Sent() []ports.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.MailMessage(nil), m.sent...)
}

// FakeIdentityClient is a scriptable ports.IdentityClient. Identity changes are pushed
// with Emit; each operation returns the matching *Err field, and on success the
// sign-in operations emit SignInIdentity.
type FakeIdentityClient struct {
	SignInIdentity *domainauth.Identity

	CreateErr, SignInErr, FederatedErr, SignOutErr error
	UpdateProfileErr, VerifyErr, ChangePasswordErr  error
	DeleteErr                                       error

	mu         sync.Mutex
	observers  map[int]func(*domainauth.Identity)
	nextID     int
	current    *domainauth.Identity
	resolved   bool
	closed     bool
	Calls      []string
	LastUpdate domainauth.ProfileUpdate
}

// NewFakeIdentityClient returns an unresolved client: observers get nothing until Emit.
func NewFakeIdentityClient() *FakeIdentityClient {
	return &FakeIdentityClient{observers: make(map[int]func(*domainauth.Identity))}
}

// Emit sets the current identity and delivers it to every observer in registration order.
func (f *FakeIdentityClient) Emit(ident *domainauth.Identity) {
	f.mu.Lock()
	f.current = ident.Clone()
	f.resolved = true
	var fns []func(*domainauth.Identity)
	for id := 0; id < f.nextID; id++ {
		if fn, ok := f.observers[id]; ok {
			fns = append(fns, fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ident.Clone())
	}
}

func (f *FakeIdentityClient) record(call string) {
	f.mu.Lock()
	f.Calls = append(f.Calls, call)
	f.mu.Unlock()
}

// CallLog returns a copy of the recorded operation names.
func (f *FakeIdentityClient) CallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

// ObserverCount reports the registered observers.
func (f *FakeIdentityClient) ObserverCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.observers)
}

// Closed reports whether Close was called.
func (f *FakeIdentityClient) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeIdentityClient) OnAuthStateChanged(fn func(*domainauth.Identity)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.observers[id] = fn
	resolved, cur := f.resolved, f.current.Clone()
	f.mu.Unlock()
	if resolved {
		fn(cur)
	}
	return func() {
		f.mu.Lock()
		delete(f.observers, id)
		f.mu.Unlock()
	}
}

func (f *FakeIdentityClient) signIn(err error) error {
	if err != nil {
		return err
	}
	f.Emit(f.SignInIdentity)
	return nil
}

func (f *FakeIdentityClient) CreateAccount(_ context.Context, _, _ string) error {
	f.record("CreateAccount")
	return f.signIn(f.CreateErr)
}

func (f *FakeIdentityClient) SignInWithPassword(_ context.Context, _, _ string) error {
	f.record("SignInWithPassword")
	return f.signIn(f.SignInErr)
}

func (f *FakeIdentityClient) BeginFederated(_ context.Context, _ string) (*ports.FederatedRedirect, error) {
	f.record("BeginFederated")
	if f.FederatedErr != nil {
		return nil, f.FederatedErr
	}
	return &ports.FederatedRedirect{AuthURL: "https://mock-idp/auth", State: "state-1", Nonce: "nonce-1"}, nil
}

func (f *FakeIdentityClient) CompleteFederated(_ context.Context, _ ports.ExchangeInput) error {
	f.record("CompleteFederated")
	return f.signIn(f.FederatedErr)
}

func (f *FakeIdentityClient) SignOut(_ context.Context) error {
	f.record("SignOut")
	if f.SignOutErr != nil {
		return f.SignOutErr
	}
	f.Emit(nil)
	return nil
}

func (f *FakeIdentityClient) UpdateProfile(_ context.Context, _ string, upd domainauth.ProfileUpdate) error {
	f.record("UpdateProfile")
	f.mu.Lock()
	f.LastUpdate = upd
	f.mu.Unlock()
	return f.UpdateProfileErr
}

func (f *FakeIdentityClient) SendVerificationEmail(_ context.Context, _ string) error {
	f.record("SendVerificationEmail")
	return f.VerifyErr
}

func (f *FakeIdentityClient) ChangePassword(_ context.Context, _, _, _ string) error {
	f.record("ChangePassword")
	return f.ChangePasswordErr
}

func (f *FakeIdentityClient) DeleteAccount(_ context.Context, _, _ string) error {
	f.record("DeleteAccount")
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.Emit(nil)
	return nil
}

func (f *FakeIdentityClient) Close() {
	f.mu.Lock()
	f.closed = true
	clear(f.observers)
	f.mu.Unlock()
}
