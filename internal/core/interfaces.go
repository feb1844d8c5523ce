package core

import (
	"context"

	domainauth "github.com/target/studentdash/internal/domain/auth"
	"github.com/target/studentdash/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// StudentRepository defines the backing store behind the student data gateway.
// Implementations never validate; callers validate forms first.
type StudentRepository interface {
	// List returns every student in insertion order. The slice and its records are copies.
	List(ctx context.Context) ([]model.Student, error)
	// GetByID returns an apperrors NotFound error when no student has id.
	GetByID(ctx context.Context, id string) (model.Student, error)
	// Create stores a new record under id and returns it.
	Create(ctx context.Context, id string, req model.CreateStudentRequest) (model.Student, error)
	// Update merges the non-nil fields of req. It returns NotFound when id is absent.
	Update(ctx context.Context, id string, req model.UpdateStudentRequest) (model.Student, error)
	// Delete reports whether a record was removed. An absent id is (false, nil).
	Delete(ctx context.Context, id string) (bool, error)
	// ListByCourse returns the students whose course equals course exactly.
	ListByCourse(ctx context.Context, course string) ([]model.Student, error)
	// Search applies a normalized filter: exact course plus a case-insensitive
	// substring match on name or email. Results keep insertion order.
	Search(ctx context.Context, filter model.StudentFilter) ([]model.Student, error)
	// Courses returns the distinct courses in first-seen order, without the "All" sentinel.
	Courses(ctx context.Context) ([]string, error)
}

// AccountRepository defines the account directory's backing store.
type AccountRepository interface {
	Create(ctx context.Context, acct model.Account) (model.Account, error)
	GetByID(ctx context.Context, id string) (model.Account, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	GetByFederatedSubject(ctx context.Context, provider domainauth.ProviderID, subject string) (model.Account, error)
	// Update replaces the stored record with acct.
	Update(ctx context.Context, acct model.Account) (model.Account, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// PreferenceRepository stores per-user preference toggles.
type PreferenceRepository interface {
	// Load returns the stored values; absent names are missing from the map.
	Load(ctx context.Context, userID string) (map[model.PreferenceName]bool, error)
	Store(ctx context.Context, userID string, name model.PreferenceName, value bool) error
	Clear(ctx context.Context, userID string) error
}

// StudentEventPublisher announces roster writes.
type StudentEventPublisher interface {
	PublishStudentEvent(ctx context.Context, ev model.StudentEvent) error
}
