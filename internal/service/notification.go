package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/target/studentdash/internal/core"
	"github.com/target/studentdash/internal/domain/model"
	"github.com/target/studentdash/internal/events"
	"github.com/target/studentdash/internal/observability/metrics"
	"github.com/target/studentdash/internal/observability/notify"
	"github.com/target/studentdash/internal/observability/statsd"
	"github.com/target/studentdash/internal/ports"
)

// StudentEventSource is the consuming side of the student events topic.
type StudentEventSource interface {
	Subscribe(ctx context.Context) (<-chan *message.Message, error)
}

// NotificationServiceOptions groups dependencies for NotificationService.
type NotificationServiceOptions struct {
	Source      StudentEventSource
	Preferences core.PreferenceRepository
	Mailer      ports.Mailer
	Sinks       []notify.Sink // Optional: team channels that see every change
	Metrics     statsd.Sink   // Optional
	Logger      *slog.Logger
}

// NotificationService mails users about roster changes they made, when their
// preferences ask for it, and copies every change to the team sinks.
type NotificationService struct {
	source  StudentEventSource
	prefs   *PreferenceService
	mailer  ports.Mailer
	sinks   []notify.Sink
	metrics statsd.Sink
	logger  *slog.Logger
}

// NewNotificationService constructs a new NotificationService.
func NewNotificationService(opts NotificationServiceOptions) *NotificationService {
	if opts.Source == nil {
		panic("StudentEventSource is required")
	}
	if opts.Preferences == nil {
		panic("PreferenceRepository is required")
	}
	if opts.Mailer == nil {
		panic("Mailer is required")
	}
	return &NotificationService{
		source:  opts.Source,
		prefs:   NewPreferenceService(PreferenceServiceOptions{Repo: opts.Preferences}),
		mailer:  opts.Mailer,
		sinks:   opts.Sinks,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

func (s *NotificationService) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// Run consumes student events until ctx is done or the stream closes.
// Every message is acked, including ones that fail to decode or deliver.
func (s *NotificationService) Run(ctx context.Context) error {
	msgs, err := s.source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to student events: %w", err)
	}
	s.log().InfoContext(ctx, "notification service started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if handleErr := s.handle(ctx, msg); handleErr != nil && !errors.Is(handleErr, context.Canceled) {
				s.log().WarnContext(ctx, "student event notification failed",
					"message_id", msg.UUID, "error", handleErr)
			}
			msg.Ack()
		}
	}
}

func (s *NotificationService) handle(ctx context.Context, msg *message.Message) error {
	ev, err := events.DecodeStudentEvent(msg)
	if err != nil {
		return err
	}
	sinkErr := s.fanOut(ctx, ev)
	if mailErr := s.mailActor(ctx, ev); mailErr != nil {
		return errors.Join(sinkErr, mailErr)
	}
	return sinkErr
}

// fanOut copies ev to every team sink. One failing sink does not stop the others.
func (s *NotificationService) fanOut(ctx context.Context, ev model.StudentEvent) error {
	if len(s.sinks) == 0 {
		return nil
	}
	change := notify.RosterChange{
		Kind:        string(ev.Kind),
		StudentID:   ev.StudentID,
		StudentName: ev.StudentName,
		ActorEmail:  ev.ActorEmail,
		Summary:     ev.Summary(),
		OccurredAt:  ev.OccurredAt,
	}
	var errs []error
	for _, sink := range s.sinks {
		err := sink.SendRosterChange(ctx, change)
		metrics.EmitNotification(s.metrics, "team", err)
		if err != nil {
			errs = append(errs, fmt.Errorf("send roster change: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *NotificationService) mailActor(ctx context.Context, ev model.StudentEvent) error {
	if ev.ActorUserID == "" || ev.ActorEmail == "" {
		return nil
	}
	prefs, err := s.prefs.Get(ctx, ev.ActorUserID)
	if err != nil {
		return err
	}
	if !prefs.WantsStudentUpdates() {
		return nil
	}
	summary := ev.Summary()
	sendErr := s.mailer.Send(ctx, ports.MailMessage{
		To:      ev.ActorEmail,
		Subject: summary,
		Text:    summary + " on " + ev.OccurredAt.Format("Jan 2, 2006 at 15:04 MST") + ".",
	})
	metrics.EmitNotification(s.metrics, "email", sendErr)
	if sendErr != nil {
		return fmt.Errorf("send notification: %w", sendErr)
	}
	s.log().DebugContext(ctx, "student event notification sent", "kind", ev.Kind, "student_id", ev.StudentID)
	return nil
}
