package devseed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/target/studentdash/internal/core"
	"github.com/target/studentdash/internal/domain/model"
)

func gpa(v float64) *float64 { return &v }

func avatar(n int) *string {
	s := fmt.Sprintf("https://i.pravatar.cc/150?img=%d", n)
	return &s
}

// Students returns the demo roster: 8 students across 6 courses.
func Students() []model.CreateStudentRequest {
	const enrolled = "2023-09-01"
	return []model.CreateStudentRequest{
		{Name: "John Doe", Email: "john.doe@example.com", Course: "Computer Science",
			EnrollmentDate: enrolled, GPA: gpa(9.2), AvatarURL: avatar(1)},
		{Name: "Jane Smith", Email: "jane.smith@example.com", Course: "Business Administration",
			EnrollmentDate: enrolled, GPA: gpa(8.5), AvatarURL: avatar(2)},
		{Name: "Michael Johnson", Email: "michael.johnson@example.com", Course: "Electrical Engineering",
			EnrollmentDate: enrolled, GPA: gpa(8.2), AvatarURL: avatar(3)},
		{Name: "Emily Davis", Email: "emily.davis@example.com", Course: "Psychology",
			EnrollmentDate: enrolled, GPA: gpa(7.9), AvatarURL: avatar(4)},
		{Name: "Robert Wilson", Email: "robert.wilson@example.com", Course: "Computer Science",
			EnrollmentDate: enrolled, GPA: gpa(7.7), AvatarURL: avatar(5)},
		{Name: "Sarah Thompson", Email: "sarah.thompson@example.com", Course: "Mathematics",
			EnrollmentDate: enrolled, GPA: gpa(7.0), AvatarURL: avatar(6)},
		{Name: "David Martinez", Email: "david.martinez@example.com", Course: "Physics",
			EnrollmentDate: enrolled, GPA: gpa(6.6), AvatarURL: avatar(7)},
		{Name: "Lisa Anderson", Email: "lisa.anderson@example.com", Course: "Business Administration",
			EnrollmentDate: enrolled, GPA: gpa(6.4), AvatarURL: avatar(8)},
	}
}

// Run seeds the demo roster into repo. A repo that already holds students is left alone.
func Run(ctx context.Context, repo core.StudentRepository, logger *slog.Logger) error {
	existing, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list students: %w", err)
	}
	if len(existing) > 0 {
		if logger != nil {
			logger.InfoContext(ctx, "roster already populated; skipping seed", "count", len(existing))
		}
		return nil
	}

	failures := 0
	for _, req := range Students() {
		if _, createErr := repo.Create(ctx, uuid.NewString(), req); createErr != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed student", "name", req.Name, "error", createErr)
			}
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	if logger != nil {
		logger.InfoContext(ctx, "seeded demo roster", "count", len(Students()))
	}
	return nil
}
