package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/studentdash/internal/domain/auth"
	"github.com/target/studentdash/internal/ports"
)

func TestMockFederatedAuthenticator_Begin_Defaults(t *testing.T) {
	provider := NewMockFederatedAuthenticator()
	ctx := context.Background()
	input := ports.BeginInput{RedirectURL: "http://localhost:8080/auth/callback"}

	authURL, state, nonce, err := provider.Begin(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "https://mock-idp/auth", authURL)
	assert.Equal(t, "state-1", state)
	assert.Equal(t, "nonce-1", nonce)

	_, state2, nonce2, err := provider.Begin(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "state-2", state2)
	assert.Equal(t, "nonce-2", nonce2)
}

func TestMockFederatedAuthenticator_ExchangeFunc(t *testing.T) {
	provider := &MockFederatedAuthenticator{
		ExchangeFunc: func(_ context.Context, _ ports.ExchangeInput) (domainauth.FederatedIdentity, error) {
			return domainauth.FederatedIdentity{}, errors.New("exchange failed")
		},
	}
	_, err := provider.Exchange(context.Background(), ports.ExchangeInput{Code: "c"})
	require.EqualError(t, err, "exchange failed")

	fi, err := (&MockFederatedAuthenticator{}).Exchange(context.Background(), ports.ExchangeInput{})
	require.NoError(t, err)
	assert.Equal(t, "mock-subject-1", fi.Subject)
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	require.Error(t, store.Save(ctx, domainauth.Session{}))
	require.NoError(t, store.Save(ctx, domainauth.Session{ID: "s1", UserID: "u1"}))
	assert.Equal(t, 1, store.Len())

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
}

func TestRecordingMailer(t *testing.T) {
	m := &RecordingMailer{}
	require.NoError(t, m.Send(context.Background(), ports.MailMessage{To: "a@b.co"}))
	assert.Len(t, m.Sent(), 1)

	m.SendErr = errors.New("smtp down")
	assert.Error(t, m.Send(context.Background(), ports.MailMessage{}))
	assert.Len(t, m.Sent(), 1)
}

func TestFakeIdentityClient_DeliveryOrder(t *testing.T) {
	f := NewFakeIdentityClient()
	var got []string
	f.OnAuthStateChanged(func(i *domainauth.Identity) {
		if i == nil {
			got = append(got, "nil")
			return
		}
		got = append(got, i.UserID)
	})
	assert.Empty(t, got, "unresolved client delivers nothing on registration")

	f.SignInIdentity = &domainauth.Identity{UserID: "u1"}
	require.NoError(t, f.SignInWithPassword(context.Background(), "a@b.co", "secret"))
	require.NoError(t, f.SignOut(context.Background()))
	assert.Equal(t, []string{"u1", "nil"}, got)
	assert.Equal(t, []string{"SignInWithPassword", "SignOut"}, f.CallLog())
}
