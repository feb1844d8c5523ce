package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/target/studentdash/internal/core"
	"github.com/target/studentdash/internal/domain/model"
	apperrors "github.com/target/studentdash/internal/errors"
	"github.com/target/studentdash/internal/observability/metrics"
	"github.com/target/studentdash/internal/observability/statsd"
)

// createAttempts bounds id regeneration when a fresh UUID is already taken.
const createAttempts = 3

// Actor identifies the signed-in user behind a roster write.
type Actor struct {
	UserID string
	Email  string
}

type actorKey struct{}

// WithActor records who is issuing writes made with ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// StudentServiceOptions groups dependencies for StudentService.
type StudentServiceOptions struct {
	Repo    core.StudentRepository
	Events  core.StudentEventPublisher // Optional: roster change events
	Metrics statsd.Sink                // Optional
	Logger  *slog.Logger
}

// StudentService is the student data gateway. It does not validate input;
// views validate forms before calling it.
type StudentService struct {
	repo    core.StudentRepository
	events  core.StudentEventPublisher
	metrics statsd.Sink
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// NewStudentService constructs a new StudentService.
func NewStudentService(opts StudentServiceOptions) *StudentService {
	if opts.Repo == nil {
		panic("StudentRepository is required")
	}
	return &StudentService{
		repo:    opts.Repo,
		events:  opts.Events,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

func (s *StudentService) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// List returns every student in insertion order.
func (s *StudentService) List(ctx context.Context) ([]model.Student, error) {
	return s.repo.List(ctx)
}

// GetByID returns the student or an apperrors NotFound error.
func (s *StudentService) GetByID(ctx context.Context, id string) (model.Student, error) {
	return s.repo.GetByID(ctx, id)
}

// Create assigns a new id and appends the student.
func (s *StudentService) Create(ctx context.Context, req model.CreateStudentRequest) (model.Student, error) {
	var lastErr error
	for range createAttempts {
		created, err := s.repo.Create(ctx, s.newID(), req)
		if err == nil {
			s.publish(ctx, model.StudentCreated, created)
			return created, nil
		}
		if !isIDCollision(err) {
			return model.Student{}, fmt.Errorf("create student: %w", err)
		}
		lastErr = err
	}
	return model.Student{}, fmt.Errorf("create student: %w", lastErr)
}

func isIDCollision(err error) bool {
	appErr, ok := apperrors.As(err)
	return ok && appErr.Code == apperrors.ErrCodeValidationFailed && appErr.Field == "id"
}

// Update merges the non-nil fields of req. An empty update returns the current record.
func (s *StudentService) Update(ctx context.Context, id string, req model.UpdateStudentRequest) (model.Student, error) {
	if req.IsEmpty() {
		return s.repo.GetByID(ctx, id)
	}
	updated, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return model.Student{}, err
	}
	s.publish(ctx, model.StudentUpdated, updated)
	return updated, nil
}

// Delete reports whether a student was removed; deleting an absent id is (false, nil).
func (s *StudentService) Delete(ctx context.Context, id string) (bool, error) {
	existing, getErr := s.repo.GetByID(ctx, id)
	if getErr != nil && !apperrors.IsNotFound(getErr) {
		return false, getErr
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	if existing.ID == "" {
		existing.ID = id
	}
	s.publish(ctx, model.StudentDeleted, existing)
	return true, nil
}

// FilterByCourse returns the students in course; model.CourseAll returns everyone.
func (s *StudentService) FilterByCourse(ctx context.Context, course string) ([]model.Student, error) {
	if course == model.CourseAll {
		return s.repo.List(ctx)
	}
	return s.repo.ListByCourse(ctx, course)
}

// ListCourses returns "All" followed by the current distinct courses in first-seen order.
func (s *StudentService) ListCourses(ctx context.Context) ([]string, error) {
	courses, err := s.repo.Courses(ctx)
	if err != nil {
		return nil, err
	}
	return append([]string{model.CourseAll}, courses...), nil
}

// Search narrows by course and by a case-insensitive substring of name or email.
func (s *StudentService) Search(ctx context.Context, course, query string) ([]model.Student, error) {
	f := model.StudentFilter{Course: course, Query: query}.Normalized()
	if f.Query == "" {
		if f.Course == "" {
			return s.repo.List(ctx)
		}
		return s.repo.ListByCourse(ctx, f.Course)
	}
	return s.repo.Search(ctx, f)
}

// publish announces a write. Failures are logged and never fail the write.
func (s *StudentService) publish(ctx context.Context, kind model.StudentEventKind, st model.Student) {
	metrics.EmitStudentChange(s.metrics, kind)
	if s.events == nil {
		return
	}
	actor, _ := ActorFromContext(ctx)
	ev := model.StudentEvent{
		Kind:        kind,
		StudentID:   st.ID,
		StudentName: st.Name,
		ActorUserID: actor.UserID,
		ActorEmail:  actor.Email,
		OccurredAt:  s.now(),
	}
	if err := s.events.PublishStudentEvent(ctx, ev); err != nil {
		s.log().WarnContext(ctx, "failed to publish student event",
			"kind", kind, "student_id", st.ID, "error", err)
	}
}
