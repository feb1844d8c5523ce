package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/studentdash/internal/domain/auth"
	apperrors "github.com/target/studentdash/internal/errors"
	mockauth "github.com/target/studentdash/internal/mocks/auth"
	"github.com/target/studentdash/internal/ports"
	"github.com/target/studentdash/internal/session"
)

func strPtr(s string) *string { return &s }

func newStores(t *testing.T) (*mockauth.FakeIdentityClient, *session.Store, *Store) {
	t.Helper()
	client := mockauth.NewFakeIdentityClient()
	sessions := session.New(client, nil)
	sessions.Start()
	p := New(sessions, client)
	t.Cleanup(func() {
		p.Close()
		sessions.Close()
	})
	return client, sessions, p
}

func TestStore_FollowsIdentity(t *testing.T) {
	client, _, p := newStores(t)

	client.Emit(&domainauth.Identity{
		UserID: "u1", Email: "ada@example.com", DisplayName: "Ada Lovelace", AvatarURL: "https://img/ada.png",
	})
	assert.Equal(t, Profile{DisplayName: "Ada Lovelace", AvatarURL: "https://img/ada.png"}, p.Snapshot())

	client.Emit(nil)
	assert.Equal(t, Profile{}, p.Snapshot())
}

func TestStore_UpdateProfileWithoutIdentity(t *testing.T) {
	client, _, p := newStores(t)
	client.Emit(nil)

	var seen []Profile
	p.Subscribe(func(pr Profile) { seen = append(seen, pr) })

	err := p.UpdateProfile(context.Background(), strPtr("Ada"), nil)
	assert.True(t, apperrors.IsNotAuthenticated(err))
	assert.Equal(t, Profile{}, p.Snapshot())
	assert.Len(t, seen, 1)
	assert.Empty(t, client.CallLog())
}

func TestStore_UpdateProfileTwoPhase(t *testing.T) {
	client, _, p := newStores(t)
	client.Emit(&domainauth.Identity{UserID: "u1", DisplayName: "Old", AvatarURL: "https://img/old.png"})

	client.UpdateProfileErr = ports.NewProviderError(ports.CodeRequiresRecentLogin, nil)
	err := p.UpdateProfile(context.Background(), strPtr("New"), strPtr("https://img/new.png"))
	assert.Equal(t, apperrors.ErrCodeRequiresRecentLogin, apperrors.GetCode(err))
	assert.Equal(t, Profile{DisplayName: "Old", AvatarURL: "https://img/old.png"}, p.Snapshot(),
		"nothing changes locally before the provider accepts")

	client.UpdateProfileErr = nil
	require.NoError(t, p.UpdateProfile(context.Background(), strPtr("New"), nil))
	assert.Equal(t, Profile{DisplayName: "New", AvatarURL: "https://img/old.png"}, p.Snapshot())
	assert.Equal(t, "New", *client.LastUpdate.DisplayName)
	assert.Nil(t, client.LastUpdate.AvatarURL)

	require.NoError(t, p.UpdateProfile(context.Background(), strPtr("New"), strPtr("")))
	assert.Empty(t, p.Snapshot().AvatarURL)
}

func TestStore_SubscribeAndUnsubscribe(t *testing.T) {
	client, _, p := newStores(t)
	var seen []Profile
	unsub := p.Subscribe(func(pr Profile) { seen = append(seen, pr) })

	client.Emit(&domainauth.Identity{UserID: "u1", DisplayName: "Ada"})
	unsub()
	client.Emit(nil)

	require.Len(t, seen, 2)
	assert.Equal(t, "Ada", seen[1].DisplayName)
}

func TestInitials(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, display, email, want string
	}{
		{"two words", "Ada Lovelace", "ada@example.com", "AL"},
		{"extra spaces", "  grace   hopper ", "", "GH"},
		{"email fallback", "", "ada@example.com", "A"},
		{"nothing", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Initials(tt.display, tt.email))
		})
	}
}

func TestStore_Fallbacks(t *testing.T) {
	client, _, p := newStores(t)
	client.Emit(&domainauth.Identity{UserID: "u1", Email: "ada@example.com"})

	assert.Equal(t, "A", p.Initials())
	assert.Equal(t, "https://ui-avatars.com/api/?name=ada%40example.com&background=0D8ABC&color=fff",
		p.DefaultAvatarURL())
}
