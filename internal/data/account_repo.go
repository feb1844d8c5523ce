package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/target/studentdash/internal/core"
	"github.com/target/studentdash/internal/data/pgxutil"
	domainauth "github.com/target/studentdash/internal/domain/auth"
	"github.com/target/studentdash/internal/domain/model"
	apperrors "github.com/target/studentdash/internal/errors"
)

var _ core.AccountRepository = (*AccountRepo)(nil)

const accountColumns = `id::text AS id, email, email_verified, display_name, avatar_url, password_hash,
	federated_subjects, created_at, last_login_at`

const (
	accountInsertQuery = `
		INSERT INTO accounts (id, email, email_verified, display_name, avatar_url, password_hash,
			federated_subjects, created_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + accountColumns

	accountUpdateQuery = `
		UPDATE accounts SET
			email              = $2,
			email_verified     = $3,
			display_name       = $4,
			avatar_url         = $5,
			password_hash      = $6,
			federated_subjects = $7,
			last_login_at      = $8
		WHERE id = $1
		RETURNING ` + accountColumns

	accountGetByIDQuery      = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	accountGetByEmailQuery   = `SELECT ` + accountColumns + ` FROM accounts WHERE email <> '' AND lower(email) = lower($1)`
	accountGetBySubjectQuery = `SELECT ` + accountColumns + ` FROM accounts WHERE federated_subjects ->> $1 = $2 LIMIT 1`
	accountDeleteQuery       = `DELETE FROM accounts WHERE id = $1`
)

// AccountRepo is the postgres account directory. Federated subjects live in a JSONB object.
type AccountRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewAccountRepo creates a new AccountRepo with real time provider.
func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{DB: db, timeProvider: RealTimeProvider{}}
}

// NewAccountRepoWithTimeProvider creates a new AccountRepo with a custom time provider (useful for tests).
func NewAccountRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *AccountRepo {
	return &AccountRepo{DB: db, timeProvider: tp}
}

func (r *AccountRepo) Create(ctx context.Context, acct model.Account) (model.Account, error) {
	if !validID(acct.ID) {
		return model.Account{}, apperrors.ValidationField("id", "account id must be a UUID")
	}
	now := r.timeProvider.Now()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	if acct.LastLoginAt.IsZero() {
		acct.LastLoginAt = now
	}
	out, err := pgxutil.QueryStruct[model.Account](ctx, r.DB, accountInsertQuery,
		acct.ID,
		strings.TrimSpace(acct.Email),
		acct.EmailVerified,
		acct.DisplayName,
		acct.AvatarURL,
		acct.PasswordHash,
		subjectsParam(acct.FederatedSubjects),
		acct.CreatedAt,
		acct.LastLoginAt,
	)
	if err != nil {
		return model.Account{}, apperrors.MapDBError(err)
	}
	return normalizeAccount(out), nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id string) (model.Account, error) {
	if !validID(id) {
		return model.Account{}, accountNotFound()
	}
	return r.getOne(ctx, accountGetByIDQuery, id)
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return model.Account{}, accountNotFound()
	}
	return r.getOne(ctx, accountGetByEmailQuery, email)
}

func (r *AccountRepo) GetByFederatedSubject(
	ctx context.Context,
	provider domainauth.ProviderID,
	subject string,
) (model.Account, error) {
	if provider == "" || subject == "" {
		return model.Account{}, accountNotFound()
	}
	return r.getOne(ctx, accountGetBySubjectQuery, string(provider), subject)
}

func (r *AccountRepo) Update(ctx context.Context, acct model.Account) (model.Account, error) {
	if !validID(acct.ID) {
		return model.Account{}, accountNotFound()
	}
	out, err := pgxutil.QueryStruct[model.Account](ctx, r.DB, accountUpdateQuery,
		acct.ID,
		strings.TrimSpace(acct.Email),
		acct.EmailVerified,
		acct.DisplayName,
		acct.AvatarURL,
		acct.PasswordHash,
		subjectsParam(acct.FederatedSubjects),
		acct.LastLoginAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, accountNotFound()
	}
	if err != nil {
		return model.Account{}, apperrors.MapDBError(err)
	}
	return normalizeAccount(out), nil
}

func (r *AccountRepo) Delete(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	res, err := r.DB.ExecContext(ctx, accountDeleteQuery, id)
	if err != nil {
		return false, fmt.Errorf("delete account: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete account rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *AccountRepo) getOne(ctx context.Context, query string, args ...any) (model.Account, error) {
	acct, err := pgxutil.QueryStruct[model.Account](ctx, r.DB, query, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, accountNotFound()
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("get account: %w", apperrors.MapDBError(err))
	}
	return normalizeAccount(acct), nil
}

// subjectsParam never binds a nil map, which would encode as JSON null.
func subjectsParam(m map[domainauth.ProviderID]string) map[domainauth.ProviderID]string {
	if m == nil {
		return map[domainauth.ProviderID]string{}
	}
	return m
}

// normalizeAccount makes an empty subject set nil, matching accounts built in memory.
func normalizeAccount(a model.Account) model.Account {
	if len(a.FederatedSubjects) == 0 {
		a.FederatedSubjects = nil
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.LastLoginAt = a.LastLoginAt.UTC()
	return a
}
