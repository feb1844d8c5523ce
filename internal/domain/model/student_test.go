package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestUpdateStudentRequest_ApplyMergesOnlyProvided(t *testing.T) {
	orig := Student{
		ID:             "s1",
		Name:           "Alan Turing",
		Email:          "alan@example.com",
		Course:         "Mathematics",
		EnrollmentDate: "2022-09-01",
		GPA:            ptr(8.1),
	}

	got := UpdateStudentRequest{GPA: ptr(9.9)}.Apply(orig)

	require.NotNil(t, got.GPA)
	assert.InDelta(t, 9.9, *got.GPA, 0.0001)
	assert.Equal(t, orig.Name, got.Name)
	assert.Equal(t, orig.Email, got.Email)
	assert.Equal(t, orig.Course, got.Course)
	assert.Equal(t, orig.EnrollmentDate, got.EnrollmentDate)
	assert.InDelta(t, 8.1, *orig.GPA, 0.0001, "original must not change")
}

func TestUpdateStudentRequest_ApplyClears(t *testing.T) {
	orig := Student{ID: "s1", Name: "Alan Turing", GPA: ptr(8.1), AvatarURL: ptr("a.png")}

	got := UpdateStudentRequest{ClearGPA: true, GPA: ptr(9.9), ClearAvatarURL: true}.Apply(orig)
	assert.Nil(t, got.GPA, "clearing wins over a value")
	assert.Nil(t, got.AvatarURL)
	assert.Equal(t, "Alan Turing", got.Name)
	require.NotNil(t, orig.GPA)
	require.NotNil(t, orig.AvatarURL)
}

func TestUpdateStudentRequest_IsEmpty(t *testing.T) {
	assert.True(t, UpdateStudentRequest{}.IsEmpty())
	assert.False(t, UpdateStudentRequest{Course: ptr("Physics")}.IsEmpty())
	assert.False(t, UpdateStudentRequest{ClearGPA: true}.IsEmpty())
	assert.False(t, UpdateStudentRequest{ClearAvatarURL: true}.IsEmpty())
}

func TestStudent_CloneDoesNotShare(t *testing.T) {
	s := Student{GPA: ptr(3.0), AvatarURL: ptr("a.png")}
	cp := s.Clone()
	*cp.GPA = 4
	*cp.AvatarURL = "b.png"
	assert.InDelta(t, 3.0, *s.GPA, 0.0001)
	assert.Equal(t, "a.png", *s.AvatarURL)
}

func TestDistinctCourses_FirstSeenOrder(t *testing.T) {
	students := []Student{
		{Course: "Physics"},
		{Course: "Mathematics"},
		{Course: "Physics"},
		{Course: "Psychology"},
	}
	assert.Equal(t, []string{"All", "Physics", "Mathematics", "Psychology"}, DistinctCourses(students))
	assert.Equal(t, []string{"All"}, DistinctCourses(nil))
}

func TestFilterByCourse(t *testing.T) {
	students := []Student{{ID: "1", Course: "Physics"}, {ID: "2", Course: "physics"}, {ID: "3", Course: "Mathematics"}}

	assert.Len(t, FilterByCourse(students, CourseAll), 3)
	got := FilterByCourse(students, "Physics")
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
	assert.Empty(t, FilterByCourse(students, "History"))
}

func TestStudent_Matches(t *testing.T) {
	s := Student{Name: "Grace Hopper", Email: "grace@navy.mil"}
	assert.True(t, s.Matches(""))
	assert.True(t, s.Matches("hopper"))
	assert.True(t, s.Matches("navy"))
	assert.False(t, s.Matches("turing"))
}

func TestStudent_GPAString(t *testing.T) {
	assert.Equal(t, "", Student{}.GPAString())
	assert.Equal(t, "9.5", Student{GPA: ptr(9.5)}.GPAString())
	assert.Equal(t, "10", Student{GPA: ptr(10.0)}.GPAString())
}

func TestStudentFilter_NormalizedAndMatch(t *testing.T) {
	f := StudentFilter{Course: " All ", Query: "  HOPPER "}.Normalized()
	assert.Equal(t, StudentFilter{Course: "", Query: "hopper"}, f)

	grace := Student{Name: "Grace Hopper", Email: "grace@navy.mil", Course: "Mathematics"}
	assert.True(t, f.Match(grace))
	assert.True(t, StudentFilter{Course: "Mathematics"}.Normalized().Match(grace))
	assert.False(t, StudentFilter{Course: "Physics", Query: "grace"}.Normalized().Match(grace))
}
