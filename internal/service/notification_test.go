package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/target/studentdash/internal/adapters/memory"
	"github.com/target/studentdash/internal/domain/model"
	"github.com/target/studentdash/internal/events"
	mockauth "github.com/target/studentdash/internal/mocks/auth"
	"github.com/target/studentdash/internal/observability/notify"
	"github.com/target/studentdash/internal/ports"
)

// readySource closes ready once the subscription exists; gochannel drops
// messages published before that.
type readySource struct {
	*events.Bus
	ready chan struct{}
}

func (s readySource) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	ch, err := s.Bus.Subscribe(ctx)
	close(s.ready)
	return ch, err
}

// flakyMailer fails the first n sends.
type flakyMailer struct {
	failures atomic.Int32
	next     ports.Mailer
}

func (m *flakyMailer) Send(ctx context.Context, msg ports.MailMessage) error {
	if m.failures.Add(-1) >= 0 {
		return errors.New("smtp down")
	}
	return m.next.Send(ctx, msg)
}

type notifyFixture struct {
	bus    *events.Bus
	prefs  *memory.PreferenceRepo
	mailer *mockauth.RecordingMailer
	done   chan error
	cancel context.CancelFunc
}

func startNotifications(t *testing.T, failFirst int32, sinks ...notify.Sink) *notifyFixture {
	t.Helper()
	bus, err := events.NewBus(events.Config{})
	require.NoError(t, err)

	f := &notifyFixture{
		bus:    bus,
		prefs:  memory.NewPreferenceRepo(),
		mailer: &mockauth.RecordingMailer{},
		done:   make(chan error, 1),
	}
	mailer := &flakyMailer{next: f.mailer}
	mailer.failures.Store(failFirst)
	src := readySource{Bus: bus, ready: make(chan struct{})}
	svc := NewNotificationService(NotificationServiceOptions{
		Source:      src,
		Preferences: f.prefs,
		Mailer:      mailer,
		Sinks:       sinks,
	})

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() { f.done <- svc.Run(ctx) }()

	select {
	case <-src.ready:
	case <-time.After(time.Second):
		t.Fatal("notification service never subscribed")
	}

	t.Cleanup(func() {
		cancel()
		<-f.done
		_ = bus.Close()
	})
	return f
}

func (f *notifyFixture) publish(t *testing.T, ev model.StudentEvent) {
	t.Helper()
	require.NoError(t, f.bus.PublishStudentEvent(context.Background(), ev))
}

func TestNotificationService_MailsActor(t *testing.T) {
	f := startNotifications(t, 0)

	f.publish(t, model.StudentEvent{
		Kind: model.StudentCreated, StudentID: "s-1", StudentName: "Ada",
		ActorUserID: "u-1", ActorEmail: "u1@example.com", OccurredAt: time.Now(),
	})

	require.Eventually(t, func() bool { return len(f.mailer.Sent()) == 1 }, time.Second, 10*time.Millisecond)
	msg := f.mailer.Sent()[0]
	assert.Equal(t, "u1@example.com", msg.To)
	assert.Equal(t, "Student Ada was added", msg.Subject)
}

func TestNotificationService_HonorsPreferences(t *testing.T) {
	f := startNotifications(t, 0)
	ctx := context.Background()
	require.NoError(t, f.prefs.Store(ctx, "quiet", model.PrefStudentUpdates, false))
	require.NoError(t, f.prefs.Store(ctx, "muted", model.PrefEmailNotifications, false))

	f.publish(t, model.StudentEvent{Kind: model.StudentUpdated, StudentID: "s-1", ActorUserID: "quiet", ActorEmail: "q@example.com"})
	f.publish(t, model.StudentEvent{Kind: model.StudentUpdated, StudentID: "s-1", ActorUserID: "muted", ActorEmail: "m@example.com"})
	f.publish(t, model.StudentEvent{Kind: model.StudentDeleted, StudentID: "s-1"})
	f.publish(t, model.StudentEvent{Kind: model.StudentDeleted, StudentID: "s-2", ActorUserID: "loud", ActorEmail: "l@example.com"})

	require.Eventually(t, func() bool { return len(f.mailer.Sent()) == 1 }, time.Second, 10*time.Millisecond)
	sent := f.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "l@example.com", sent[0].To)
	assert.Equal(t, "Student s-2 was removed", sent[0].Subject)
}

func TestNotificationService_DeliveryFailureKeepsConsuming(t *testing.T) {
	f := startNotifications(t, 1)

	f.publish(t, model.StudentEvent{Kind: model.StudentCreated, StudentID: "s-1", ActorUserID: "u-1", ActorEmail: "u@example.com"})
	f.publish(t, model.StudentEvent{Kind: model.StudentCreated, StudentID: "s-2", ActorUserID: "u-1", ActorEmail: "u@example.com"})

	require.Eventually(t, func() bool { return len(f.mailer.Sent()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "Student s-2 was added", f.mailer.Sent()[0].Subject)
}

func TestNotificationService_StopsWithContext(t *testing.T) {
	f := startNotifications(t, 0)
	f.cancel()
	select {
	case err := <-f.done:
		assert.NoError(t, err)
		f.done <- err
	case <-time.After(time.Second):
		t.Fatal("notification service did not stop")
	}
}

func TestNotificationService_FansOutEveryChange(t *testing.T) {
	var (
		mu      sync.Mutex
		changes []notify.RosterChange
	)
	team := notify.SinkFunc(func(_ context.Context, c notify.RosterChange) error {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
		return nil
	})
	broken := notify.SinkFunc(func(context.Context, notify.RosterChange) error {
		return errors.New("webhook down")
	})
	f := startNotifications(t, 0, broken, team)

	f.publish(t, model.StudentEvent{Kind: model.StudentDeleted, StudentID: "s-9", StudentName: "Kim"})
	f.publish(t, model.StudentEvent{
		Kind: model.StudentCreated, StudentID: "s-1", StudentName: "Ada",
		ActorUserID: "u-1", ActorEmail: "u1@example.com",
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) == 2
	}, time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, "Student Kim was removed", changes[0].Summary)
	assert.Empty(t, changes[0].ActorEmail)
	assert.Equal(t, "u1@example.com", changes[1].ActorEmail)
	mu.Unlock()

	// a failing team sink never blocks the actor's own email
	require.Eventually(t, func() bool { return len(f.mailer.Sent()) == 1 }, time.Second, 10*time.Millisecond)
}
