// Package profile keeps the display name and avatar shown for the signed-in user.
package profile

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	domainauth "github.com/target/studentdash/internal/domain/auth"
	apperrors "github.com/target/studentdash/internal/errors"
	"github.com/target/studentdash/internal/session"
)

// Profile is the mutable part of an identity.
type Profile struct {
	DisplayName string
	AvatarURL   string
}

// ProfileUpdater is the provider call behind UpdateProfile.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, userID string, upd domainauth.ProfileUpdate) error
}

// Store follows a session.Store and derives the profile from its identity.
// Updates are committed to the provider first and applied locally only on success.
type Store struct {
	sessions *session.Store
	client   ProfileUpdater

	mu      sync.Mutex
	profile Profile
	email   string
	subs    map[int]func(Profile)
	nextSub int

	unsubscribe func()
}

// New subscribes to sessions and returns the store.
func New(sessions *session.Store, client ProfileUpdater) *Store {
	p := &Store{sessions: sessions, client: client, subs: make(map[int]func(Profile))}
	p.unsubscribe = sessions.Subscribe(p.onSession)
	return p
}

// Close stops following the session store.
func (p *Store) Close() {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
}

func (p *Store) onSession(st session.State) {
	next := Profile{}
	email := ""
	if st.Identity != nil {
		next = Profile{DisplayName: st.Identity.DisplayName, AvatarURL: st.Identity.AvatarURL}
		email = st.Identity.Email
	}
	p.set(next, email)
}

func (p *Store) set(next Profile, email string) {
	p.mu.Lock()
	p.profile = next
	p.email = email
	fns := make([]func(Profile), 0, len(p.subs))
	for id := 0; id < p.nextSub; id++ {
		if fn, ok := p.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(next)
	}
}

// Snapshot returns the current profile.
func (p *Store) Snapshot() Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profile
}

// Subscribe delivers the current profile once and then every change.
func (p *Store) Subscribe(fn func(Profile)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	cur := p.profile
	p.mu.Unlock()
	fn(cur)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

// UpdateProfile sends the new values to the provider and, only once it succeeds, sets
// the local profile to exactly those values. A nil avatarURL leaves the avatar as is.
func (p *Store) UpdateProfile(ctx context.Context, displayName, avatarURL *string) error {
	ident := p.sessions.Snapshot().Identity
	if ident == nil {
		return apperrors.NotAuthenticated()
	}

	upd := domainauth.ProfileUpdate{DisplayName: displayName, AvatarURL: avatarURL}
	if err := p.client.UpdateProfile(ctx, ident.UserID, upd); err != nil {
		return session.Normalize(err)
	}

	p.mu.Lock()
	next := p.profile
	email := p.email
	p.mu.Unlock()
	if displayName != nil {
		next.DisplayName = *displayName
	}
	if avatarURL != nil {
		next.AvatarURL = *avatarURL
	}
	p.set(next, email)
	return nil
}

// Initials returns the first letter of each word of the display name, falling back to
// the first letter of the email.
func (p *Store) Initials() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Initials(p.profile.DisplayName, p.email)
}

// DefaultAvatarURL returns the generated avatar used when no avatar URL is set.
func (p *Store) DefaultAvatarURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return DefaultAvatarURL(p.profile.DisplayName, p.email)
}

// Initials computes profile initials from a display name or email.
func Initials(displayName, email string) string {
	var b strings.Builder
	for _, word := range strings.Fields(displayName) {
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
	}
	if b.Len() > 0 {
		return b.String()
	}
	if r, _ := utf8.DecodeRuneInString(email); r != utf8.RuneError {
		return string(unicode.ToUpper(r))
	}
	return ""
}

// DefaultAvatarURL builds the ui-avatars.com fallback for a name or email.
func DefaultAvatarURL(displayName, email string) string {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = email
	}
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=0D8ABC&color=fff"
}
