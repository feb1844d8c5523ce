package httpx

import (
	"context"
	"net/http"

	"github.com/target/studentdash/internal/service"
	"github.com/target/studentdash/internal/session"
)

type clientKey struct{}

// withClient returns a child context that carries the browser's auth client.
func withClient(ctx context.Context, c *service.AuthClient) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, clientKey{}, c)
}

// ClientFromContext returns the auth client resolved for this browser.
func ClientFromContext(ctx context.Context) (*service.AuthClient, bool) {
	c, ok := ctx.Value(clientKey{}).(*service.AuthClient)
	return c, ok && c != nil
}

// sessionState is the request's session snapshot. Requests without a client read as
// signed out rather than loading.
func sessionState(r *http.Request) session.State {
	if c, ok := ClientFromContext(r.Context()); ok {
		return c.Session.Snapshot()
	}
	return session.State{}
}

// currentUserID returns the signed-in user's id, or "".
func currentUserID(r *http.Request) string {
	return sessionState(r).UserID()
}
