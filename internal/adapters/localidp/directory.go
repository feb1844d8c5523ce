// Package localidp is the built-in identity provider. A Directory owns the accounts;
// each browser talks to it through its own Client.
package localidp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/target/studentdash/internal/core"
	domainauth "github.com/target/studentdash/internal/domain/auth"
	"github.com/target/studentdash/internal/domain/model"
	apperrors "github.com/target/studentdash/internal/errors"
	"github.com/target/studentdash/internal/ports"
)

// Config tunes the directory's credential rules.
type Config struct {
	MinPasswordLength int
	// RecentLoginWindow bounds how old a federated-only sign-in may be for DeleteAccount.
	RecentLoginWindow time.Duration
	// MaxFailedAttempts is the number of consecutive wrong passwords on a sensitive
	// operation before further attempts are refused.
	MaxFailedAttempts int
	FailureCooldown   time.Duration

	VerificationSecret string
	VerificationTTL    time.Duration
	// BaseURL prefixes the link mailed for email verification.
	BaseURL string

	BcryptCost int
}

func (c *Config) sanitize() {
	if c.MinPasswordLength <= 0 {
		c.MinPasswordLength = 6
	}
	if c.RecentLoginWindow <= 0 {
		c.RecentLoginWindow = 5 * time.Minute
	}
	if c.MaxFailedAttempts <= 0 {
		c.MaxFailedAttempts = 5
	}
	if c.FailureCooldown <= 0 {
		c.FailureCooldown = 15 * time.Minute
	}
	if c.VerificationTTL <= 0 {
		c.VerificationTTL = 24 * time.Hour
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
}

// DirectoryOptions groups dependencies for NewDirectory.
type DirectoryOptions struct {
	Accounts  core.AccountRepository
	Federated ports.FederatedAuthenticator // optional; federated login is refused without it
	Mailer    ports.Mailer                 // optional; verification mail is refused without it
	Config    Config
	Logger    *slog.Logger
	Now       func() time.Time
}

type failureState struct {
	count int
	last  time.Time
}

// Directory owns accounts and fans identity changes out to every client signed in as
// the affected user.
type Directory struct {
	accounts  core.AccountRepository
	federated ports.FederatedAuthenticator
	mailer    ports.Mailer
	cfg       Config
	log       *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	clients  map[*Client]struct{}
	failures map[string]failureState
}

// NewDirectory creates a directory over opts.Accounts.
func NewDirectory(opts DirectoryOptions) (*Directory, error) {
	if opts.Accounts == nil {
		return nil, errors.New("localidp: account repository is required")
	}
	cfg := opts.Config
	cfg.sanitize()
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Directory{
		accounts:  opts.Accounts,
		federated: opts.Federated,
		mailer:    opts.Mailer,
		cfg:       cfg,
		log:       opts.Logger,
		now:       now,
		clients:   make(map[*Client]struct{}),
		failures:  make(map[string]failureState),
	}, nil
}

func (d *Directory) logger() *slog.Logger {
	if d.log != nil {
		return d.log
	}
	return slog.Default()
}

// NewClient returns a client for one browser. With a non-empty restoreUserID the client
// looks the account up in the background and stays unresolved until it does, so observers
// receive no initial observation before then.
func (d *Directory) NewClient(ctx context.Context, restoreUserID string) *Client {
	c := newClient(d)
	d.mu.Lock()
	d.clients[c] = struct{}{}
	d.mu.Unlock()

	if restoreUserID == "" {
		c.emit(nil)
		return c
	}
	go c.restore(context.WithoutCancel(ctx), restoreUserID)
	return c
}

// NewIdentityClient implements ports.IdentityClientFactory.
func (d *Directory) NewIdentityClient(ctx context.Context, restoreUserID string) ports.IdentityClient {
	return d.NewClient(ctx, restoreUserID)
}

func (d *Directory) removeClient(c *Client) {
	d.mu.Lock()
	delete(d.clients, c)
	d.mu.Unlock()
}

// broadcast emits ident (or nil) to every client currently signed in as userID.
func (d *Directory) broadcast(userID string, ident *domainauth.Identity) {
	d.mu.Lock()
	targets := make([]*Client, 0, len(d.clients))
	for c := range d.clients {
		if c.currentUserID() == userID {
			targets = append(targets, c)
		}
	}
	d.mu.Unlock()

	for _, c := range targets {
		c.emit(ident)
	}
}

// ClientCount reports how many clients are open.
func (d *Directory) ClientCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}

func (d *Directory) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cfg.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (d *Directory) checkPasswordRules(email, password string) error {
	if !model.ValidEmail(strings.TrimSpace(email)) {
		return ports.NewProviderError(ports.CodeInvalidEmail, nil)
	}
	if len(password) < d.cfg.MinPasswordLength {
		return ports.NewProviderError(ports.CodeWeakPassword, nil)
	}
	return nil
}

func (d *Directory) createPasswordAccount(ctx context.Context, email, password string) (model.Account, error) {
	if err := d.checkPasswordRules(email, password); err != nil {
		return model.Account{}, err
	}
	hash, err := d.hashPassword(password)
	if err != nil {
		return model.Account{}, err
	}
	now := d.now().UTC()
	acct, err := d.accounts.Create(ctx, model.Account{
		ID:           uuid.NewString(),
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		CreatedAt:    now,
		LastLoginAt:  now,
	})
	if err != nil {
		if apperrors.IsAccountAlreadyExists(err) {
			return model.Account{}, ports.NewProviderError(ports.CodeEmailAlreadyInUse, err)
		}
		return model.Account{}, fmt.Errorf("create account: %w", err)
	}
	return acct, nil
}

func (d *Directory) passwordSignIn(ctx context.Context, email, password string) (model.Account, error) {
	email = strings.TrimSpace(email)
	if !model.ValidEmail(email) {
		return model.Account{}, ports.NewProviderError(ports.CodeInvalidEmail, nil)
	}
	acct, err := d.accounts.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return model.Account{}, ports.NewProviderError(ports.CodeUserNotFound, nil)
		}
		return model.Account{}, fmt.Errorf("lookup account: %w", err)
	}
	if !acct.HasPassword() ||
		bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return model.Account{}, ports.NewProviderError(ports.CodeWrongPassword, nil)
	}
	return d.touchLogin(ctx, acct)
}

func (d *Directory) touchLogin(ctx context.Context, acct model.Account) (model.Account, error) {
	acct.LastLoginAt = d.now().UTC()
	updated, err := d.accounts.Update(ctx, acct)
	if err != nil {
		return model.Account{}, fmt.Errorf("record login: %w", err)
	}
	return updated, nil
}

// linkFederated finds the account for fi by subject, then by email, and creates one
// when neither matches.
func (d *Directory) linkFederated(ctx context.Context, fi domainauth.FederatedIdentity) (model.Account, error) {
	acct, err := d.accounts.GetByFederatedSubject(ctx, fi.Provider, fi.Subject)
	if err == nil {
		return d.touchLogin(ctx, acct)
	}
	if !apperrors.IsNotFound(err) {
		return model.Account{}, fmt.Errorf("lookup federated subject: %w", err)
	}

	if fi.Email != "" {
		acct, err = d.accounts.GetByEmail(ctx, fi.Email)
		switch {
		case err == nil:
			if acct.FederatedSubjects == nil {
				acct.FederatedSubjects = map[domainauth.ProviderID]string{}
			}
			acct.FederatedSubjects[fi.Provider] = fi.Subject
			acct.EmailVerified = acct.EmailVerified || fi.EmailVerified
			if acct.DisplayName == "" {
				acct.DisplayName = fi.DisplayName
			}
			if acct.AvatarURL == "" {
				acct.AvatarURL = fi.AvatarURL
			}
			d.logger().InfoContext(ctx, "linked federated identity to existing account",
				"provider", fi.Provider, "user_id", acct.ID)
			return d.touchLogin(ctx, acct)
		case !apperrors.IsNotFound(err):
			return model.Account{}, fmt.Errorf("lookup account by email: %w", err)
		}
	}

	now := d.now().UTC()
	created, err := d.accounts.Create(ctx, model.Account{
		ID:                uuid.NewString(),
		Email:             fi.Email,
		EmailVerified:     fi.EmailVerified,
		DisplayName:       fi.DisplayName,
		AvatarURL:         fi.AvatarURL,
		FederatedSubjects: map[domainauth.ProviderID]string{fi.Provider: fi.Subject},
		CreatedAt:         now,
		LastLoginAt:       now,
	})
	if err != nil {
		if apperrors.IsAccountAlreadyExists(err) {
			return model.Account{}, ports.NewProviderError(ports.CodeEmailAlreadyInUse, err)
		}
		return model.Account{}, fmt.Errorf("create federated account: %w", err)
	}
	return created, nil
}

// checkCurrentPassword verifies password for a sensitive operation, refusing further
// attempts once MaxFailedAttempts consecutive failures are recorded within the cooldown.
func (d *Directory) checkCurrentPassword(acct model.Account, password string) error {
	now := d.now()
	d.mu.Lock()
	st := d.failures[acct.ID]
	if st.count >= d.cfg.MaxFailedAttempts && now.Sub(st.last) < d.cfg.FailureCooldown {
		d.mu.Unlock()
		return ports.NewProviderError(ports.CodeTooManyRequests, nil)
	}
	d.mu.Unlock()

	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		d.mu.Lock()
		st = d.failures[acct.ID]
		if now.Sub(st.last) >= d.cfg.FailureCooldown {
			st.count = 0
		}
		st.count++
		st.last = now
		d.failures[acct.ID] = st
		d.mu.Unlock()
		return ports.NewProviderError(ports.CodeWrongPassword, nil)
	}

	d.mu.Lock()
	delete(d.failures, acct.ID)
	d.mu.Unlock()
	return nil
}

func (d *Directory) changePassword(ctx context.Context, userID, current, next string) error {
	acct, err := d.account(ctx, userID)
	if err != nil {
		return err
	}
	if !acct.HasPassword() {
		return ports.NewProviderError(ports.CodeNoPasswordProvider, nil)
	}
	if checkErr := d.checkCurrentPassword(acct, current); checkErr != nil {
		return checkErr
	}
	if len(next) < d.cfg.MinPasswordLength {
		return ports.NewProviderError(ports.CodeWeakPassword, nil)
	}
	hash, err := d.hashPassword(next)
	if err != nil {
		return err
	}
	acct.PasswordHash = hash
	if _, updErr := d.accounts.Update(ctx, acct); updErr != nil {
		return fmt.Errorf("update password: %w", updErr)
	}
	return nil
}

func (d *Directory) deleteAccount(ctx context.Context, userID, current string) error {
	acct, err := d.account(ctx, userID)
	if err != nil {
		return err
	}
	if acct.HasPassword() {
		if checkErr := d.checkCurrentPassword(acct, current); checkErr != nil {
			return checkErr
		}
	} else if d.now().Sub(acct.LastLoginAt) > d.cfg.RecentLoginWindow {
		return ports.NewProviderError(ports.CodeRequiresRecentLogin, nil)
	}

	if _, delErr := d.accounts.Delete(ctx, userID); delErr != nil {
		return fmt.Errorf("delete account: %w", delErr)
	}
	d.mu.Lock()
	delete(d.failures, userID)
	d.mu.Unlock()

	d.logger().InfoContext(ctx, "account deleted", "user_id", userID)
	d.broadcast(userID, nil)
	return nil
}

func (d *Directory) updateProfile(ctx context.Context, userID string, upd domainauth.ProfileUpdate) (model.Account, error) {
	acct, err := d.account(ctx, userID)
	if err != nil {
		return model.Account{}, err
	}
	if upd.DisplayName != nil {
		acct.DisplayName = strings.TrimSpace(*upd.DisplayName)
	}
	if upd.AvatarURL != nil {
		acct.AvatarURL = strings.TrimSpace(*upd.AvatarURL)
	}
	updated, err := d.accounts.Update(ctx, acct)
	if err != nil {
		return model.Account{}, fmt.Errorf("update profile: %w", err)
	}
	return updated, nil
}

// account loads userID, mapping a missing account to auth/user-not-found.
func (d *Directory) account(ctx context.Context, userID string) (model.Account, error) {
	acct, err := d.accounts.GetByID(ctx, userID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return model.Account{}, ports.NewProviderError(ports.CodeUserNotFound, nil)
		}
		return model.Account{}, fmt.Errorf("lookup account: %w", err)
	}
	return acct, nil
}
