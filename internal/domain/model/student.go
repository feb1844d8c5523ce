//revive:disable-next-line:var-naming // legacy package name used across the project
package model

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// CourseAll is the synthetic course that matches every student.
const CourseAll = "All"

// EnrollmentDateLayout is the calendar-date format used for enrollment dates.
const EnrollmentDateLayout = "2006-01-02"

// Student is a roster record. Optional fields are pointers: nil means "not provided".
type Student struct {
	ID             string   `json:"id"                   db:"id"`
	Name           string   `json:"name"                 db:"name"`
	Email          string   `json:"email"                db:"email"`
	Course         string   `json:"course"               db:"course"`
	EnrollmentDate string   `json:"enrollmentDate"       db:"enrollment_date"`
	GPA            *float64 `json:"gpa,omitempty"        db:"gpa"`
	AvatarURL      *string  `json:"avatarUrl,omitempty"  db:"avatar_url"`
}

// Clone returns a copy that shares no pointers with s.
func (s Student) Clone() Student {
	cp := s
	if s.GPA != nil {
		v := *s.GPA
		cp.GPA = &v
	}
	if s.AvatarURL != nil {
		v := *s.AvatarURL
		cp.AvatarURL = &v
	}
	return cp
}

// GPAString formats the GPA for display, or "" when absent.
func (s Student) GPAString() string {
	if s.GPA == nil {
		return ""
	}
	return strconv.FormatFloat(*s.GPA, 'f', -1, 64)
}

// EnrolledOn parses EnrollmentDate, returning the zero time when it is malformed.
func (s Student) EnrolledOn() time.Time {
	t, err := time.Parse(EnrollmentDateLayout, s.EnrollmentDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Matches reports whether the student matches a lowercase query on name or email.
func (s Student) Matches(query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.Name), query) ||
		strings.Contains(strings.ToLower(s.Email), query)
}

// CreateStudentRequest contains the fields for a new student. The gateway assigns the ID.
type CreateStudentRequest struct {
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Course         string   `json:"course"`
	EnrollmentDate string   `json:"enrollmentDate"`
	GPA            *float64 `json:"gpa,omitempty"`
	AvatarURL      *string  `json:"avatarUrl,omitempty"`
}

// UpdateStudentRequest is a partial update. Only non-nil fields are merged.
// ClearGPA and ClearAvatarURL remove the stored value and win over GPA and AvatarURL.
type UpdateStudentRequest struct {
	Name           *string  `json:"name,omitempty"`
	Email          *string  `json:"email,omitempty"`
	Course         *string  `json:"course,omitempty"`
	EnrollmentDate *string  `json:"enrollmentDate,omitempty"`
	GPA            *float64 `json:"gpa,omitempty"`
	AvatarURL      *string  `json:"avatarUrl,omitempty"`
	ClearGPA       bool     `json:"-"`
	ClearAvatarURL bool     `json:"-"`
}

// IsEmpty reports whether the update carries no fields.
func (u UpdateStudentRequest) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.Course == nil &&
		u.EnrollmentDate == nil && u.GPA == nil && u.AvatarURL == nil &&
		!u.ClearGPA && !u.ClearAvatarURL
}

// Apply merges the non-nil fields of u into s and returns the result.
func (u UpdateStudentRequest) Apply(s Student) Student {
	out := s.Clone()
	if u.Name != nil {
		out.Name = *u.Name
	}
	if u.Email != nil {
		out.Email = *u.Email
	}
	if u.Course != nil {
		out.Course = *u.Course
	}
	if u.EnrollmentDate != nil {
		out.EnrollmentDate = *u.EnrollmentDate
	}
	switch {
	case u.ClearGPA:
		out.GPA = nil
	case u.GPA != nil:
		v := *u.GPA
		out.GPA = &v
	}
	switch {
	case u.ClearAvatarURL:
		out.AvatarURL = nil
	case u.AvatarURL != nil:
		v := *u.AvatarURL
		out.AvatarURL = &v
	}
	return out
}

// Build returns the Student this request creates under id.
func (r CreateStudentRequest) Build(id string) Student {
	return Student{
		ID:             id,
		Name:           r.Name,
		Email:          r.Email,
		Course:         r.Course,
		EnrollmentDate: r.EnrollmentDate,
		GPA:            r.GPA,
		AvatarURL:      r.AvatarURL,
	}.Clone()
}

// DistinctCourses returns "All" followed by the distinct courses in first-seen order.
func DistinctCourses(students []Student) []string {
	out := []string{CourseAll}
	for _, s := range students {
		if !slices.Contains(out[1:], s.Course) {
			out = append(out, s.Course)
		}
	}
	return out
}

// FilterByCourse returns the students in course; CourseAll returns them all.
func FilterByCourse(students []Student, course string) []Student {
	if course == CourseAll {
		return students
	}
	out := make([]Student, 0, len(students))
	for _, s := range students {
		if s.Course == course {
			out = append(out, s)
		}
	}
	return out
}

// StudentFilter narrows a roster listing. Empty fields match everything.
type StudentFilter struct {
	Course string
	Query  string
}

// Normalized trims both fields, lowercases the query and maps CourseAll to "".
func (f StudentFilter) Normalized() StudentFilter {
	out := StudentFilter{
		Course: strings.TrimSpace(f.Course),
		Query:  strings.ToLower(strings.TrimSpace(f.Query)),
	}
	if out.Course == CourseAll {
		out.Course = ""
	}
	return out
}

// Match reports whether s passes a normalized filter.
func (f StudentFilter) Match(s Student) bool {
	if f.Course != "" && s.Course != f.Course {
		return false
	}
	return s.Matches(f.Query)
}
