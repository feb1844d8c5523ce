// Package memory provides in-process adapters used when no external store is configured.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/target/studentdash/internal/core"
	"github.com/target/studentdash/internal/domain/model"
	apperrors "github.com/target/studentdash/internal/errors"
)

var _ core.StudentRepository = (*StudentRepo)(nil)

// StudentRepo keeps the roster in an insertion-ordered slice.
// Reads and writes are serialized by an RWMutex and every result is a copy.
type StudentRepo struct {
	mu       sync.RWMutex
	students []model.Student
}

// NewStudentRepo returns an empty roster.
func NewStudentRepo() *StudentRepo {
	return &StudentRepo{}
}

func (r *StudentRepo) List(_ context.Context) ([]model.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAll(r.students), nil
}

func (r *StudentRepo) GetByID(_ context.Context, id string) (model.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.students[i].Clone(), nil
	}
	return model.Student{}, apperrors.NotFoundf("student %s not found", id)
}

func (r *StudentRepo) Create(_ context.Context, id string, req model.CreateStudentRequest) (model.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOf(id) >= 0 {
		return model.Student{}, apperrors.ValidationField("id", "student id already in use")
	}
	s := req.Build(id)
	r.students = append(r.students, s)
	return s.Clone(), nil
}

func (r *StudentRepo) Update(_ context.Context, id string, req model.UpdateStudentRequest) (model.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return model.Student{}, apperrors.NotFoundf("student %s not found", id)
	}
	r.students[i] = req.Apply(r.students[i])
	return r.students[i].Clone(), nil
}

func (r *StudentRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return false, nil
	}
	r.students = slices.Delete(r.students, i, i+1)
	return true, nil
}

func (r *StudentRepo) ListByCourse(_ context.Context, course string) ([]model.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Student, 0)
	for _, s := range r.students {
		if s.Course == course {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (r *StudentRepo) Search(_ context.Context, filter model.StudentFilter) ([]model.Student, error) {
	f := filter.Normalized()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Student, 0)
	for _, s := range r.students {
		if f.Match(s) {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (r *StudentRepo) Courses(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return model.DistinctCourses(r.students)[1:], nil
}

func (r *StudentRepo) indexOf(id string) int {
	return slices.IndexFunc(r.students, func(s model.Student) bool { return s.ID == id })
}

func cloneAll(in []model.Student) []model.Student {
	out := make([]model.Student, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}
