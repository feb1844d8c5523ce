package ports_test

import (
	"testing"

	mocks "github.com/target/studentdash/internal/mocks/auth"
	"github.com/target/studentdash/internal/ports"
)

// Compile-time check that the hand-written fakes still satisfy the ports.
func TestFakesImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.FederatedAuthenticator = (*mocks.MockFederatedAuthenticator)(nil)
	var _ ports.SessionStore = (*mocks.MemorySessionStore)(nil)
	var _ ports.Mailer = (*mocks.RecordingMailer)(nil)
	var _ ports.IdentityClient = (*mocks.FakeIdentityClient)(nil)
}
