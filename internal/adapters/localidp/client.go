package localidp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	domainauth "github.com/target/studentdash/internal/domain/auth"
	"github.com/target/studentdash/internal/ports"
)

var (
	_ ports.IdentityClient        = (*Client)(nil)
	_ ports.IdentityClientFactory = (*Directory)(nil)
)

const restoreTimeout = 10 * time.Second

// Client is one browser's connection to the directory. Observations are delivered
// synchronously, in order, while holding the client's dispatch lock.
type Client struct {
	dir *Directory

	dispatchMu sync.Mutex
	current    *domainauth.Identity
	resolved   bool
	closed     bool
	observers  map[int]func(*domainauth.Identity)
	nextID     int
}

func newClient(d *Directory) *Client {
	return &Client{dir: d, observers: make(map[int]func(*domainauth.Identity))}
}

// OnAuthStateChanged registers fn. Once the client has resolved its initial state, fn
// receives the current identity exactly once on registration and then every change.
func (c *Client) OnAuthStateChanged(fn func(*domainauth.Identity)) func() {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	id := c.nextID
	c.nextID++
	c.observers[id] = fn
	if c.resolved {
		fn(c.current.Clone())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.dispatchMu.Lock()
			delete(c.observers, id)
			c.dispatchMu.Unlock()
		})
	}
}

// emit replaces the current identity and notifies every observer.
func (c *Client) emit(ident *domainauth.Identity) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()
	if c.closed {
		return
	}
	c.current = ident.Clone()
	c.resolved = true

	for _, id := range slices.Sorted(maps.Keys(c.observers)) {
		c.observers[id](c.current.Clone())
	}
}

func (c *Client) currentUserID() string {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.UserID
}

// requireUser returns an error unless the client is signed in as userID.
func (c *Client) requireUser(userID string) error {
	if uid := c.currentUserID(); uid == "" || uid != userID {
		return ports.NewProviderError(ports.CodeNoCurrentUser, nil)
	}
	return nil
}

func (c *Client) restore(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(ctx, restoreTimeout)
	defer cancel()

	acct, err := c.dir.accounts.GetByID(ctx, userID)
	if err != nil {
		c.dir.logger().InfoContext(ctx, "session restore found no account", "user_id", userID, "error", err)
		c.emit(nil)
		return
	}
	c.emit(acct.Identity())
}

func (c *Client) CreateAccount(ctx context.Context, email, password string) error {
	acct, err := c.dir.createPasswordAccount(ctx, email, password)
	if err != nil {
		return err
	}
	c.emit(acct.Identity())
	return nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) error {
	acct, err := c.dir.passwordSignIn(ctx, email, password)
	if err != nil {
		return err
	}
	c.emit(acct.Identity())
	return nil
}

func (c *Client) BeginFederated(ctx context.Context, redirectURL string) (*ports.FederatedRedirect, error) {
	if c.dir.federated == nil {
		return nil, ports.NewProviderError(ports.CodePopupBlocked, errors.New("federated login is not configured"))
	}
	authURL, state, nonce, err := c.dir.federated.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return nil, fmt.Errorf("begin federated login: %w", err)
	}
	return &ports.FederatedRedirect{AuthURL: authURL, State: state, Nonce: nonce}, nil
}

func (c *Client) CompleteFederated(ctx context.Context, in ports.ExchangeInput) error {
	if c.dir.federated == nil {
		return ports.NewProviderError(ports.CodePopupBlocked, errors.New("federated login is not configured"))
	}
	switch in.ProviderError {
	case "":
	case "access_denied":
		return ports.NewProviderError(ports.CodePopupClosedByUser, nil)
	default:
		return &ports.ProviderError{Code: ports.CodeCancelledPopupRequest, Message: in.ProviderError}
	}
	if in.State == "" || in.ExpectedState == "" ||
		subtle.ConstantTimeCompare([]byte(in.State), []byte(in.ExpectedState)) != 1 {
		return ports.NewProviderError(ports.CodeCancelledPopupRequest, errors.New("state mismatch"))
	}

	fi, err := c.dir.federated.Exchange(ctx, in)
	if err != nil {
		return err
	}
	if fi.Subject == "" {
		return errors.New("federated identity has no subject")
	}
	acct, err := c.dir.linkFederated(ctx, fi)
	if err != nil {
		return err
	}
	c.emit(acct.Identity())
	return nil
}

// SignOut clears the identity. Signing out while signed out is a no-op.
func (c *Client) SignOut(_ context.Context) error {
	if c.currentUserID() == "" {
		return nil
	}
	c.emit(nil)
	return nil
}

// UpdateProfile writes the non-nil fields. Observers are not notified; the client's
// current identity is refreshed so later observations carry the new values.
func (c *Client) UpdateProfile(ctx context.Context, userID string, upd domainauth.ProfileUpdate) error {
	if err := c.requireUser(userID); err != nil {
		return err
	}
	acct, err := c.dir.updateProfile(ctx, userID, upd)
	if err != nil {
		return err
	}
	c.dispatchMu.Lock()
	if c.current != nil && c.current.UserID == acct.ID {
		c.current.DisplayName = acct.DisplayName
		c.current.AvatarURL = acct.AvatarURL
	}
	c.dispatchMu.Unlock()
	return nil
}

func (c *Client) SendVerificationEmail(ctx context.Context, userID string) error {
	if err := c.requireUser(userID); err != nil {
		return err
	}
	return c.dir.sendVerification(ctx, userID)
}

func (c *Client) ChangePassword(ctx context.Context, userID, current, next string) error {
	if err := c.requireUser(userID); err != nil {
		return err
	}
	return c.dir.changePassword(ctx, userID, current, next)
}

// DeleteAccount removes the account. Every client of that user, this one included,
// observes nil before it returns.
func (c *Client) DeleteAccount(ctx context.Context, userID, current string) error {
	if err := c.requireUser(userID); err != nil {
		return err
	}
	return c.dir.deleteAccount(ctx, userID, current)
}

// Close detaches the client from the directory and drops its observers.
func (c *Client) Close() {
	c.dir.removeClient(c)
	c.dispatchMu.Lock()
	c.closed = true
	clear(c.observers)
	c.dispatchMu.Unlock()
}
