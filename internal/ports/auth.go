package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"
	"fmt"

	domainauth "github.com/target/studentdash/internal/domain/auth"
)

// BeginInput carries inputs for initiating a federated auth flow.
type BeginInput struct {
	RedirectURL string
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
	// ExpectedState is the state issued by Begin (from the state cookie).
	ExpectedState string
	// ProviderError is the IdP-reported error parameter on the callback, if any.
	ProviderError string
}

// FederatedAuthenticator initiates and completes a login flow against an external IdP.
type FederatedAuthenticator interface {
	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the login flow, verifying state and nonce, and returns the federated identity.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.FederatedIdentity, error)
}

// FederatedRedirect is what the browser needs to continue a federated login.
type FederatedRedirect struct {
	AuthURL string
	State   string
	Nonce   string
}

// IdentityClient is one browser's connection to the identity provider.
// Observations registered with OnAuthStateChanged are delivered in order, and the
// current state is delivered once on registration.
type IdentityClient interface {
	CreateAccount(ctx context.Context, email, password string) error
	SignInWithPassword(ctx context.Context, email, password string) error
	BeginFederated(ctx context.Context, redirectURL string) (*FederatedRedirect, error)
	CompleteFederated(ctx context.Context, in ExchangeInput) error
	SignOut(ctx context.Context) error
	OnAuthStateChanged(fn func(*domainauth.Identity)) (unsubscribe func())
	UpdateProfile(ctx context.Context, userID string, upd domainauth.ProfileUpdate) error
	SendVerificationEmail(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, current, next string) error
	DeleteAccount(ctx context.Context, userID, current string) error
	Close()
}

// IdentityClientFactory hands out one IdentityClient per browser. A non-empty
// restoreUserID starts the client restoring that user's signed-in state.
type IdentityClientFactory interface {
	NewIdentityClient(ctx context.Context, restoreUserID string) IdentityClient
}

// ErrSessionNotFound is returned by SessionStore.Get for absent or expired sessions.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists and retrieves browser sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// MailMessage is a single outbound email.
type MailMessage struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers outbound email.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// Provider error codes, modelled on common hosted identity providers.
const (
	CodeUserNotFound          = "auth/user-not-found"
	CodeWrongPassword         = "auth/wrong-password"
	CodeEmailAlreadyInUse     = "auth/email-already-in-use"
	CodeWeakPassword          = "auth/weak-password"
	CodeInvalidEmail          = "auth/invalid-email"
	CodePopupClosedByUser     = "auth/popup-closed-by-user"
	CodeCancelledPopupRequest = "auth/cancelled-popup-request"
	CodePopupBlocked          = "auth/popup-blocked"
	CodeRequiresRecentLogin   = "auth/requires-recent-login"
	CodeNoPasswordProvider    = "auth/no-password-provider"
	CodeTooManyRequests       = "auth/too-many-requests"
	CodeNoCurrentUser         = "auth/no-current-user"
	CodeInvalidActionCode     = "auth/invalid-action-code"
)

// ProviderError is a raw identity provider failure. Views never show it directly.
type ProviderError struct {
	Code    string
	Message string
	Cause   error
}

// NewProviderError returns a ProviderError with code and an optional cause.
func NewProviderError(code string, cause error) *ProviderError {
	return &ProviderError{Code: code, Cause: cause}
}

func (e *ProviderError) Error() string {
	msg := e.Code
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Cause }
