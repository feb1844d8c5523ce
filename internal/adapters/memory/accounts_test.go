package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/studentdash/internal/domain/auth"
	"github.com/target/studentdash/internal/domain/model"
	apperrors "github.com/target/studentdash/internal/errors"
	"github.com/target/studentdash/internal/ports"
)

func TestAccountRepo_EmailUniqueCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo()

	_, err := repo.Create(ctx, model.Account{ID: "a1", Email: "Ada@Example.com"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, model.Account{ID: "a2", Email: "ada@example.com"})
	assert.True(t, apperrors.IsAccountAlreadyExists(err))

	got, err := repo.GetByEmail(ctx, "ADA@example.COM")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
}

func TestAccountRepo_FederatedLookupAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo()

	acct := model.Account{
		ID:                "a1",
		FederatedSubjects: map[domainauth.ProviderID]string{domainauth.ProviderOIDC: "sub-1"},
		CreatedAt:         time.Now(),
	}
	_, err := repo.Create(ctx, acct)
	require.NoError(t, err)

	got, err := repo.GetByFederatedSubject(ctx, domainauth.ProviderOIDC, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)

	_, err = repo.GetByFederatedSubject(ctx, domainauth.ProviderCasdoor, "sub-1")
	assert.True(t, apperrors.IsNotFound(err))

	got.DisplayName = "Ada"
	_, err = repo.Update(ctx, got)
	require.NoError(t, err)
	again, _ := repo.GetByID(ctx, "a1")
	assert.Equal(t, "Ada", again.DisplayName)

	ok, err := repo.Delete(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = repo.Delete(ctx, "a1")
	assert.False(t, ok)

	_, err = repo.Update(ctx, got)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSessionStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewSessionStore(func() time.Time { return now })

	require.NoError(t, store.Save(ctx, domainauth.Session{ID: "s1", UserID: "u1", ExpiresAt: now.Add(time.Minute)}))
	require.Error(t, store.Save(ctx, domainauth.Session{ID: "s2", ExpiresAt: now}))
	require.Error(t, store.Save(ctx, domainauth.Session{ExpiresAt: now.Add(time.Hour)}))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)

	require.NoError(t, store.Delete(ctx, "nope"))
}

func TestPreferenceRepo_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewPreferenceRepo()

	stored, err := repo.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, stored)

	require.NoError(t, repo.Store(ctx, "u1", model.PrefCompactView, true))
	stored, _ = repo.Load(ctx, "u1")
	stored[model.PrefMarketingEmails] = true

	again, _ := repo.Load(ctx, "u1")
	assert.Equal(t, map[model.PreferenceName]bool{model.PrefCompactView: true}, again)

	require.NoError(t, repo.Clear(ctx, "u1"))
	again, _ = repo.Load(ctx, "u1")
	assert.Empty(t, again)
}
