package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/studentdash/internal/devseed"
	"github.com/target/studentdash/internal/domain/model"
	apperrors "github.com/target/studentdash/internal/errors"
)

func seeded(t *testing.T) *StudentRepo {
	t.Helper()
	repo := NewStudentRepo()
	require.NoError(t, devseed.Run(context.Background(), repo, nil))
	return repo
}

func TestStudentRepo_SeededRoster(t *testing.T) {
	ctx := context.Background()
	repo := seeded(t)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 8)

	courses, err := repo.Courses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Computer Science", "Business Administration", "Electrical Engineering",
		"Psychology", "Mathematics", "Physics",
	}, courses)

	cs, err := repo.ListByCourse(ctx, "Computer Science")
	require.NoError(t, err)
	assert.Len(t, cs, 2)

	// seeding twice is a no-op
	require.NoError(t, devseed.Run(ctx, repo, nil))
	all, _ = repo.List(ctx)
	assert.Len(t, all, 8)
}

func TestStudentRepo_ListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := seeded(t)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	all[0].Name = "Mutated"
	*all[0].GPA = 0

	again, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 8)
	assert.Equal(t, "John Doe", again[0].Name)
	assert.InDelta(t, 9.2, *again[0].GPA, 0.0001)
}

func TestStudentRepo_CreateGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewStudentRepo()

	created, err := repo.Create(ctx, "id-1", model.CreateStudentRequest{
		Name: "Ada Lovelace", Email: "ada@example.com", Course: "Mathematics", EnrollmentDate: "2024-01-15",
	})
	require.NoError(t, err)
	assert.Nil(t, created.GPA)

	got, err := repo.GetByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = repo.Create(ctx, "id-1", model.CreateStudentRequest{Name: "dup"})
	require.Error(t, err)

	gpa := 9.5
	updated, err := repo.Update(ctx, "id-1", model.UpdateStudentRequest{GPA: &gpa})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated.Name)
	require.NotNil(t, updated.GPA)
	assert.InDelta(t, 9.5, *updated.GPA, 0.0001)

	updated, err = repo.Update(ctx, "id-1", model.UpdateStudentRequest{ClearGPA: true})
	require.NoError(t, err)
	assert.Nil(t, updated.GPA)
	got, err = repo.GetByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Nil(t, got.GPA)

	_, err = repo.Update(ctx, "missing", model.UpdateStudentRequest{GPA: &gpa})
	assert.True(t, apperrors.IsNotFound(err))

	ok, err := repo.Delete(ctx, "id-1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Delete(ctx, "id-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.GetByID(ctx, "id-1")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStudentRepo_CoursesTrackDeletes(t *testing.T) {
	ctx := context.Background()
	repo := seeded(t)

	physics, err := repo.ListByCourse(ctx, "Physics")
	require.NoError(t, err)
	require.Len(t, physics, 1)

	_, err = repo.Delete(ctx, physics[0].ID)
	require.NoError(t, err)

	courses, err := repo.Courses(ctx)
	require.NoError(t, err)
	assert.NotContains(t, courses, "Physics")
	assert.Len(t, courses, 5)
}

func TestStudentRepo_Search(t *testing.T) {
	ctx := context.Background()
	repo := seeded(t)

	got, err := repo.Search(ctx, model.StudentFilter{Course: "Business Administration", Query: "LISA"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Lisa Anderson", got[0].Name)

	got, err = repo.Search(ctx, model.StudentFilter{Course: model.CourseAll, Query: "example.com"})
	require.NoError(t, err)
	assert.Len(t, got, 8)
	assert.Equal(t, "John Doe", got[0].Name)

	got, err = repo.Search(ctx, model.StudentFilter{Query: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
