package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/studentdash/internal/devseed"
	"github.com/target/studentdash/internal/domain/model"
	apperrors "github.com/target/studentdash/internal/errors"
	"github.com/target/studentdash/internal/testutil"
)

func TestBuildStudentSearch(t *testing.T) {
	t.Parallel()

	q, args := buildStudentSearch(model.StudentFilter{Course: "Physics", Query: "50%_off"}.Normalized())
	assert.Equal(t,
		`SELECT `+studentColumns+` FROM "students" WHERE "course" = $1 AND (name ILIKE $2 OR email ILIKE $2) ORDER BY "seq" ASC`,
		q)
	assert.Equal(t, []any{"Physics", `%50\%\_off%`}, args)

	q, args = buildStudentSearch(model.StudentFilter{Course: model.CourseAll}.Normalized())
	assert.Equal(t, `SELECT `+studentColumns+` FROM "students" ORDER BY "seq" ASC`, q)
	assert.Empty(t, args)
}

func TestStudentRepo_CreateGetUpdateDelete(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		tp := NewFixedTimeProvider(testutil.TestTime())
		repo := NewStudentRepoWithTimeProvider(db, tp)

		id := uuid.NewString()
		created, err := repo.Create(ctx, id, model.CreateStudentRequest{
			Name:           "Ada Lovelace",
			Email:          "ada@example.com",
			Course:         "Mathematics",
			EnrollmentDate: "2024-09-01",
		})
		require.NoError(t, err)
		assert.Equal(t, id, created.ID)
		assert.Nil(t, created.GPA)
		assert.Nil(t, created.AvatarURL)

		got, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, created, got)

		tp.AddTime(time.Hour)
		updated, err := repo.Update(ctx, id, model.UpdateStudentRequest{GPA: testutil.Float64Ptr(9.1)})
		require.NoError(t, err)
		require.NotNil(t, updated.GPA)
		assert.InDelta(t, 9.1, *updated.GPA, 1e-9)
		assert.Equal(t, "Ada Lovelace", updated.Name)
		assert.Equal(t, "Mathematics", updated.Course)

		updated, err = repo.Update(ctx, id, model.UpdateStudentRequest{
			AvatarURL: testutil.StringPtr("https://example.com/a.png"),
		})
		require.NoError(t, err)
		require.NotNil(t, updated.GPA, "an update without a gpa keeps it")
		require.NotNil(t, updated.AvatarURL)

		updated, err = repo.Update(ctx, id, model.UpdateStudentRequest{ClearGPA: true, ClearAvatarURL: true})
		require.NoError(t, err)
		assert.Nil(t, updated.GPA)
		assert.Nil(t, updated.AvatarURL)
		assert.Equal(t, "Ada Lovelace", updated.Name)

		ok, err := repo.Delete(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = repo.Delete(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = repo.GetByID(ctx, id)
		assert.True(t, apperrors.IsNotFound(err))
		_, err = repo.Update(ctx, id, model.UpdateStudentRequest{Name: testutil.StringPtr("x")})
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestStudentRepo_MalformedIDs(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewStudentRepo(db)

		_, err := repo.GetByID(ctx, "not-a-uuid")
		assert.True(t, apperrors.IsNotFound(err))
		ok, err := repo.Delete(ctx, "not-a-uuid")
		require.NoError(t, err)
		assert.False(t, ok)
		_, err = repo.Create(ctx, "nope", model.CreateStudentRequest{Name: "x"})
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestStudentRepo_GPACheckConstraint(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		_, err := NewStudentRepo(db).Create(context.Background(), uuid.NewString(), model.CreateStudentRequest{
			Name: "x", Email: "x@example.com", Course: "Physics", EnrollmentDate: "2024-01-01",
			GPA: testutil.Float64Ptr(11),
		})
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestStudentRepo_SeededOrderAndSearch(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewStudentRepo(db)
		require.NoError(t, devseed.Run(ctx, repo, nil))

		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 8)
		assert.Equal(t, "John Doe", all[0].Name)
		assert.Equal(t, "Lisa Anderson", all[7].Name)

		courses, err := repo.Courses(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"Computer Science", "Business Administration", "Electrical Engineering",
			"Psychology", "Mathematics", "Physics",
		}, courses)

		ba, err := repo.ListByCourse(ctx, "Business Administration")
		require.NoError(t, err)
		require.Len(t, ba, 2)
		assert.Equal(t, "Jane Smith", ba[0].Name)

		found, err := repo.Search(ctx, model.StudentFilter{Course: "Computer Science", Query: "WILSON"})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "robert.wilson@example.com", found[0].Email)

		none, err := repo.Search(ctx, model.StudentFilter{Query: "%"})
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
