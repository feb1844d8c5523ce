package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/target/studentdash/internal/core"
	domainauth "github.com/target/studentdash/internal/domain/auth"
	"github.com/target/studentdash/internal/domain/model"
	apperrors "github.com/target/studentdash/internal/errors"
)

var _ core.AccountRepository = (*AccountRepo)(nil)

// AccountRepo is an in-memory account directory. Emails are unique case-insensitively.
type AccountRepo struct {
	mu       sync.RWMutex
	accounts map[string]model.Account
}

// NewAccountRepo returns an empty directory.
func NewAccountRepo() *AccountRepo {
	return &AccountRepo{accounts: make(map[string]model.Account)}
}

func (r *AccountRepo) Create(_ context.Context, acct model.Account) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[acct.ID]; ok {
		return model.Account{}, apperrors.ValidationField("id", "account id already in use")
	}
	if acct.Email != "" {
		if _, ok := r.findByEmail(acct.Email); ok {
			return model.Account{}, apperrors.New(apperrors.ErrCodeAccountAlreadyExists)
		}
	}
	r.accounts[acct.ID] = acct.Clone()
	return acct.Clone(), nil
}

func (r *AccountRepo) GetByID(_ context.Context, id string) (model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.accounts[id]
	if !ok {
		return model.Account{}, apperrors.NotFound("account not found")
	}
	return acct.Clone(), nil
}

func (r *AccountRepo) GetByEmail(_ context.Context, email string) (model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.findByEmail(email)
	if !ok {
		return model.Account{}, apperrors.NotFound("account not found")
	}
	return acct.Clone(), nil
}

func (r *AccountRepo) GetByFederatedSubject(
	_ context.Context,
	provider domainauth.ProviderID,
	subject string,
) (model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, acct := range r.accounts {
		if sub, ok := acct.FederatedSubjects[provider]; ok && sub == subject {
			return acct.Clone(), nil
		}
	}
	return model.Account{}, apperrors.NotFound("account not found")
}

func (r *AccountRepo) Update(_ context.Context, acct model.Account) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[acct.ID]; !ok {
		return model.Account{}, apperrors.NotFound("account not found")
	}
	if other, ok := r.findByEmail(acct.Email); ok && other.ID != acct.ID {
		return model.Account{}, apperrors.New(apperrors.ErrCodeAccountAlreadyExists)
	}
	r.accounts[acct.ID] = acct.Clone()
	return acct.Clone(), nil
}

func (r *AccountRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return false, nil
	}
	delete(r.accounts, id)
	return true, nil
}

func (r *AccountRepo) findByEmail(email string) (model.Account, bool) {
	if email == "" {
		return model.Account{}, false
	}
	for _, acct := range r.accounts {
		if strings.EqualFold(acct.Email, email) {
			return acct, true
		}
	}
	return model.Account{}, false
}
