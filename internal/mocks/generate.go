// Package mocks provides gomock implementations of the repository ports in internal/core.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockStudentRepository(ctrl)
//	repo.EXPECT().GetByID(gomock.Any(), "s-1").Return(student, nil)
package mocks

// StudentRepository: List, GetByID, Create, Update, Delete, ListByCourse, Search, Courses
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=student_repository_mock.go github.com/target/studentdash/internal/core StudentRepository

// StudentEventPublisher: PublishStudentEvent
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=student_event_publisher_mock.go github.com/target/studentdash/internal/core StudentEventPublisher

// PreferenceRepository: Load, Store, Clear
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=preference_repository_mock.go github.com/target/studentdash/internal/core PreferenceRepository
