package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/studentdash/internal/domain/auth"
	"github.com/target/studentdash/internal/ports"
	"github.com/target/studentdash/internal/testutil"
)

func TestSessionStore_SaveAndGet(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	sess := domainauth.Session{
		ID:          "sid-1",
		UserID:      "user-123",
		Email:       "user@example.com",
		DisplayName: "Ada",
		ExpiresAt:   time.Now().Add(30 * time.Minute),
	}
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, got.UserID)
	assert.Equal(t, sess.Email, got.Email)
	assert.Equal(t, sess.DisplayName, got.DisplayName)
	assert.WithinDuration(t, sess.ExpiresAt, got.ExpiresAt, time.Second)
}

func TestSessionStore_KeyAndTTL(t *testing.T) {
	client, mr := testutil.SetupMiniredis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domainauth.Session{
		ID:        "sid-ttl",
		UserID:    "u",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}))

	assert.True(t, mr.Exists("session:sid-ttl"))
	ttl := mr.TTL("session:sid-ttl")
	assert.Greater(t, ttl, 9*time.Minute)
	assert.LessOrEqual(t, ttl, 10*time.Minute)

	mr.FastForward(11 * time.Minute)
	_, err := store.Get(ctx, "sid-ttl")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
}

func TestSessionStore_GetNonExistent(t *testing.T) {
	store := NewSessionStore(testutil.SetupTestRedis(t))

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)

	_, err = store.Get(context.Background(), "")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
}

func TestSessionStore_Delete(t *testing.T) {
	store := NewSessionStore(testutil.SetupTestRedis(t))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domainauth.Session{
		ID: "sid-del", UserID: "u", ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, store.Delete(ctx, "sid-del"))
	require.NoError(t, store.Delete(ctx, ""))

	_, err := store.Get(ctx, "sid-del")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
}

func TestSessionStore_SaveRejectsInvalid(t *testing.T) {
	store := NewSessionStore(testutil.SetupTestRedis(t))
	ctx := context.Background()

	tests := []struct {
		name string
		sess domainauth.Session
	}{
		{"empty id", domainauth.Session{ExpiresAt: time.Now().Add(time.Hour)}},
		{"expired", domainauth.Session{ID: "old", ExpiresAt: time.Now().Add(-time.Minute)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, store.Save(ctx, tt.sess))
		})
	}
}

func TestSessionStore_ExpiredByClockIsRemoved(t *testing.T) {
	client, mr := testutil.SetupMiniredis(t)
	now := time.Now()
	store := NewSessionStore(client).WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domainauth.Session{
		ID: "sid-skew", UserID: "u", ExpiresAt: now.Add(time.Minute),
	}))

	// Redis still holds the key, but our clock says the session is over.
	now = now.Add(2 * time.Minute)
	_, err := store.Get(ctx, "sid-skew")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
	assert.False(t, mr.Exists("session:sid-skew"))
}

func TestSessionStore_CustomPrefix(t *testing.T) {
	client, mr := testutil.SetupMiniredis(t)
	store := NewSessionStoreWithPrefix(client, "sd:sess:")

	require.NoError(t, store.Save(context.Background(), domainauth.Session{
		ID: "x", UserID: "u", ExpiresAt: time.Now().Add(time.Hour),
	}))
	assert.True(t, mr.Exists("sd:sess:x"))
}
