// Package data holds the postgres-backed repositories.
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/target/studentdash/internal/core"
	"github.com/target/studentdash/internal/data/database"
	"github.com/target/studentdash/internal/data/pgxutil"
	"github.com/target/studentdash/internal/domain/model"
	apperrors "github.com/target/studentdash/internal/errors"
)

var _ core.StudentRepository = (*StudentRepo)(nil)

// studentColumns are the columns model.Student maps by name. id is cast so it scans into a string.
const studentColumns = `id::text AS id, name, email, course, enrollment_date, gpa, avatar_url`

const (
	studentInsertQuery = `
		INSERT INTO students (id, name, email, course, enrollment_date, gpa, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING ` + studentColumns

	studentGetByIDQuery = `SELECT ` + studentColumns + ` FROM students WHERE id = $1`

	studentListQuery = `SELECT ` + studentColumns + ` FROM students ORDER BY seq`

	studentListByCourseQuery = `SELECT ` + studentColumns + ` FROM students WHERE course = $1 ORDER BY seq`

	// Each column keeps its value unless the matching parameter is non-null.
	studentUpdateQuery = `
		UPDATE students SET
			name            = COALESCE($2, name),
			email           = COALESCE($3, email),
			course          = COALESCE($4, course),
			enrollment_date = COALESCE($5, enrollment_date),
			gpa             = CASE WHEN $9 THEN NULL ELSE COALESCE($6, gpa) END,
			avatar_url      = CASE WHEN $10 THEN NULL ELSE COALESCE($7, avatar_url) END,
			updated_at      = $8
		WHERE id = $1
		RETURNING ` + studentColumns

	studentDeleteQuery = `DELETE FROM students WHERE id = $1`

	studentCoursesQuery = `SELECT course FROM students GROUP BY course ORDER BY MIN(seq)`
)

// StudentRepo stores the roster in postgres. Insertion order is the seq column.
type StudentRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewStudentRepo creates a new StudentRepo with real time provider.
func NewStudentRepo(db *sql.DB) *StudentRepo {
	return &StudentRepo{DB: db, timeProvider: RealTimeProvider{}}
}

// NewStudentRepoWithTimeProvider creates a new StudentRepo with a custom time provider (useful for tests).
func NewStudentRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *StudentRepo {
	return &StudentRepo{DB: db, timeProvider: tp}
}

func (r *StudentRepo) List(ctx context.Context) ([]model.Student, error) {
	out, err := pgxutil.QueryStructs[model.Student](ctx, r.DB, studentListQuery)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

func (r *StudentRepo) GetByID(ctx context.Context, id string) (model.Student, error) {
	if !validID(id) {
		return model.Student{}, studentNotFound(id)
	}
	s, err := pgxutil.QueryStruct[model.Student](ctx, r.DB, studentGetByIDQuery, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Student{}, studentNotFound(id)
	}
	if err != nil {
		return model.Student{}, fmt.Errorf("get student: %w", apperrors.MapDBError(err))
	}
	return s, nil
}

func (r *StudentRepo) Create(ctx context.Context, id string, req model.CreateStudentRequest) (model.Student, error) {
	if !validID(id) {
		return model.Student{}, apperrors.ValidationField("id", "student id must be a UUID")
	}
	s, err := pgxutil.QueryStruct[model.Student](ctx, r.DB, studentInsertQuery,
		id,
		req.Name,
		req.Email,
		req.Course,
		req.EnrollmentDate,
		req.GPA,
		req.AvatarURL,
		r.timeProvider.Now(),
	)
	if err != nil {
		return model.Student{}, apperrors.MapDBError(err)
	}
	return s, nil
}

func (r *StudentRepo) Update(ctx context.Context, id string, req model.UpdateStudentRequest) (model.Student, error) {
	if !validID(id) {
		return model.Student{}, studentNotFound(id)
	}
	s, err := pgxutil.QueryStruct[model.Student](ctx, r.DB, studentUpdateQuery,
		id,
		req.Name,
		req.Email,
		req.Course,
		req.EnrollmentDate,
		req.GPA,
		req.AvatarURL,
		r.timeProvider.Now(),
		req.ClearGPA,
		req.ClearAvatarURL,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Student{}, studentNotFound(id)
	}
	if err != nil {
		return model.Student{}, apperrors.MapDBError(err)
	}
	return s, nil
}

func (r *StudentRepo) Delete(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	res, err := r.DB.ExecContext(ctx, studentDeleteQuery, id)
	if err != nil {
		return false, fmt.Errorf("delete student: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete student rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *StudentRepo) ListByCourse(ctx context.Context, course string) ([]model.Student, error) {
	out, err := pgxutil.QueryStructs[model.Student](ctx, r.DB, studentListByCourseQuery, course)
	if err != nil {
		return nil, fmt.Errorf("list students by course: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// Search builds the roster query from a normalized filter.
func (r *StudentRepo) Search(ctx context.Context, filter model.StudentFilter) ([]model.Student, error) {
	query, args := buildStudentSearch(filter.Normalized())
	out, err := pgxutil.QueryStructs[model.Student](ctx, r.DB, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search students: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

func buildStudentSearch(f model.StudentFilter) (string, []any) {
	opts := []database.ListQueryOption{database.WithOrderBy("seq", "ASC")}
	if f.Course != "" {
		opts = append(opts, database.WithCondition(database.WhereCond("course", database.Equal, f.Course)))
	}
	if f.Query != "" {
		pattern := "%" + escapeLike(f.Query) + "%"
		opts = append(opts, database.WithCondition(
			database.WhereRawCond(`name ILIKE $1 OR email ILIKE $1`, pattern)))
	}
	query, args := database.BuildListQuery(database.NewListQueryOptions("students", opts...))
	// id needs its text cast, which the builder's identifier quoting cannot express.
	return strings.Replace(query, "SELECT *", "SELECT "+studentColumns, 1), args
}

// escapeLike makes % and _ in user input match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *StudentRepo) Courses(ctx context.Context) ([]string, error) {
	out, err := pgxutil.QueryScalars[string](ctx, r.DB, studentCoursesQuery)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", apperrors.MapDBError(err))
	}
	return out, nil
}
