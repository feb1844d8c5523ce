package httpx

import (
	"bytes"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/studentdash/internal/domain/model"
	apperrors "github.com/target/studentdash/internal/errors"
)

const (
	msgStudentNotFound      = "Student not found."
	msgStudentLoadFailed    = "Failed to load student data. Please try again later."
	msgStudentDeleteFailed  = "Failed to delete student."
	msgStudentAddFailed     = "Failed to add student. Please try again."
	msgStudentsFilterFailed = "Failed to filter students."
	xlsxContentType         = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Home renders the landing page with roster counts.
func (h *UIHandlers) Home(w http.ResponseWriter, r *http.Request) {
	b := NewTemplateData(r, PageMeta{Title: "Student Dashboard", PageTitle: "Welcome", CurrentPage: PageHome})

	var students []model.Student
	var courses []string
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) { students, err = h.Students.List(ctx); return })
	g.Go(func() (err error) { courses, err = h.Students.ListCourses(ctx); return })
	if err := g.Wait(); err != nil {
		h.logger().WarnContext(r.Context(), "load home counts failed", "error", err)
	} else {
		b.With("StudentCount", len(students)).With("CourseCount", len(courses)-1)
	}
	h.renderPage(w, r, b.Build())
}

// rosterQuery reads the roster filters, defaulting the course to All.
func rosterQuery(r *http.Request) (course, query string) {
	course = strings.TrimSpace(r.URL.Query().Get("course"))
	if course == "" {
		course = model.CourseAll
	}
	return course, strings.TrimSpace(r.URL.Query().Get("q"))
}

// Roster renders the roster. An htmx request targeting the list region gets just
// the list, and is dropped with 204 when a newer request for the region has started.
func (h *UIHandlers) Roster(w http.ResponseWriter, r *http.Request) {
	course, query := rosterQuery(r)
	fragment := IsHTMX(r) && HXTarget(r) == studentListTarget

	current := func() bool { return true }
	if fragment && h.Tracker != nil {
		if client, ok := ClientFromContext(r.Context()); ok {
			ticket := h.Tracker.Begin(client.ID, studentListTarget)
			current = ticket.Current
		}
	}

	var students []model.Student
	var courses []string
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) { students, err = h.Students.Search(ctx, course, query); return })
	g.Go(func() (err error) { courses, err = h.Students.ListCourses(ctx); return })
	err := g.Wait()

	if !current() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	b := NewTemplateData(r, PageMeta{Title: "Students - Student Dashboard", PageTitle: "Students", CurrentPage: PageStudents}).
		With("Students", students).
		With("Courses", courses).
		With("SelectedCourse", course).
		With("Query", query)
	if err != nil {
		reportError(r.Context(), h.logger(), h.Reporter, "load roster failed", err)
		b.WithError(msgStudentsFilterFailed).With("Students", []model.Student(nil))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
	}

	if fragment {
		if rerr := h.T.RenderNamed(w, "student-list", b.Build()); rerr != nil {
			h.logAndRenderTemplateError(w, r, rerr, "student list fragment")
		}
		return
	}
	h.renderPage(w, r, b.Build())
}

// StudentDetail renders one student.
func (h *UIHandlers) StudentDetail(w http.ResponseWriter, r *http.Request) {
	st, err := h.Students.GetByID(r.Context(), r.PathValue("id"))
	switch {
	case apperrors.IsNotFound(err):
		h.renderMessage(w, r, http.StatusNotFound, "Student not found", msgStudentNotFound)
		return
	case err != nil:
		reportError(r.Context(), h.logger(), h.Reporter, "load student failed", err)
		h.renderMessage(w, r, http.StatusInternalServerError, "Student", msgStudentLoadFailed)
		return
	}

	data := NewTemplateData(r, PageMeta{Title: st.Name + " - Student Dashboard", PageTitle: st.Name, CurrentPage: PageStudent}).
		With("Student", st).
		With("EnrolledOn", st.EnrolledOn()).
		Build()
	h.renderPage(w, r, data)
}

// DeleteStudent removes a student and returns to the roster.
func (h *UIHandlers) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.Students.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		reportError(r.Context(), h.logger(), h.Reporter, "delete student failed", err)
		h.renderMessage(w, r, http.StatusInternalServerError, "Delete failed",
			"An error occurred while deleting the student.")
		return
	}
	if !deleted {
		triggerToast(w, msgStudentDeleteFailed, "error")
		h.renderMessage(w, r, http.StatusNotFound, "Delete failed", msgStudentDeleteFailed)
		return
	}
	triggerToast(w, "Student deleted.", "success")
	seeOther(w, r, "/students")
}

// formCourses lists the course choices for the student form: the current courses
// without All, plus the form's own value when it is new.
func (h *UIHandlers) formCourses(r *http.Request, selected string) []string {
	courses, err := h.Students.ListCourses(r.Context())
	if err != nil {
		h.logger().WarnContext(r.Context(), "load courses failed", "error", err)
		courses = nil
	}
	out := slices.DeleteFunc(slices.Clone(courses), func(c string) bool { return c == model.CourseAll })
	if selected != "" && !slices.Contains(out, selected) {
		out = append(out, selected)
	}
	return out
}

func studentFormMeta(mode FormMode) PageMeta {
	if mode == FormModeEdit {
		return PageMeta{Title: "Edit Student - Student Dashboard", PageTitle: "Edit Student", CurrentPage: PageStudentForm}
	}
	return PageMeta{Title: "Add Student - Student Dashboard", PageTitle: "Add New Student", CurrentPage: PageStudentForm}
}

func (h *UIHandlers) studentFormData(r *http.Request, mode FormMode, form model.StudentForm, id string) map[string]any {
	action := "/add-student"
	if mode == FormModeEdit {
		action = "/student/" + id
	}
	return map[string]any{
		"Mode":      string(mode),
		"Form":      form,
		"StudentID": id,
		"Action":    action,
		"Courses":   h.formCourses(r, form.Course),
		"Today":     time.Now().Format(model.EnrollmentDateLayout),
	}
}

func parseStudentForm(r *http.Request) model.StudentForm {
	return model.StudentForm{
		Name:           r.PostFormValue("name"),
		Email:          r.PostFormValue("email"),
		Course:         r.PostFormValue("course"),
		EnrollmentDate: r.PostFormValue("enrollmentDate"),
		GPA:            r.PostFormValue("gpa"),
		AvatarURL:      r.PostFormValue("avatarUrl"),
	}
}

// NewStudentForm renders an empty add-student form.
func (h *UIHandlers) NewStudentForm(w http.ResponseWriter, r *http.Request) {
	form := model.StudentForm{EnrollmentDate: time.Now().Format(model.EnrollmentDateLayout)}
	b := NewTemplateData(r, studentFormMeta(FormModeCreate))
	for k, v := range h.studentFormData(r, FormModeCreate, form, "") {
		b.With(k, v)
	}
	h.renderPage(w, r, b.Build())
}

// CreateStudent validates the form before calling the gateway; invalid input never
// reaches it.
func (h *UIHandlers) CreateStudent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form := parseStudentForm(r)
	fail := func(err error) {
		RenderError(ErrorOpts{
			W: w, R: r, Err: err,
			Renderer: h.renderForm,
			PageMeta: studentFormMeta(FormModeCreate),
			Data:     h.studentFormData(r, FormModeCreate, form, ""),
		})
	}

	req, err := form.Validate()
	if err != nil {
		fail(err)
		return
	}
	created, err := h.Students.Create(r.Context(), req)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "create student failed", "error", err)
		if !apperrors.IsValidation(err) {
			err = apperrors.Wrap(err, apperrors.ErrCodeUnknown, msgStudentAddFailed)
		}
		fail(err)
		return
	}
	triggerToast(w, "Student added.", "success")
	seeOther(w, r, "/student/"+created.ID)
}

// EditStudentForm renders the edit form pre-filled from the stored record.
func (h *UIHandlers) EditStudentForm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, err := h.Students.GetByID(r.Context(), id)
	switch {
	case apperrors.IsNotFound(err):
		h.renderMessage(w, r, http.StatusNotFound, "Student not found", msgStudentNotFound)
		return
	case err != nil:
		h.serverError(w, r, "load student failed", err)
		return
	}
	b := NewTemplateData(r, studentFormMeta(FormModeEdit))
	for k, v := range h.studentFormData(r, FormModeEdit, model.FormFromStudent(st), id) {
		b.With(k, v)
	}
	h.renderPage(w, r, b.Build())
}

// UpdateStudent validates the edit form and merges it into the record.
func (h *UIHandlers) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")
	form := parseStudentForm(r)

	req, err := form.ValidateUpdate()
	if err == nil {
		_, err = h.Students.Update(r.Context(), id, req)
	}
	if apperrors.IsNotFound(err) {
		h.renderMessage(w, r, http.StatusNotFound, "Student not found", msgStudentNotFound)
		return
	}
	if err != nil {
		RenderError(ErrorOpts{
			W: w, R: r, Err: err,
			Renderer: h.renderForm,
			PageMeta: studentFormMeta(FormModeEdit),
			Data:     h.studentFormData(r, FormModeEdit, form, id),
		})
		return
	}
	triggerToast(w, "Student updated.", "success")
	seeOther(w, r, "/student/"+id)
}

// ExportRoster streams the filtered roster as an xlsx download.
func (h *UIHandlers) ExportRoster(w http.ResponseWriter, r *http.Request) {
	if h.Export == nil {
		http.NotFound(w, r)
		return
	}
	course, query := rosterQuery(r)

	var buf bytes.Buffer
	if err := h.Export.WriteRoster(r.Context(), &buf, course, query); err != nil {
		h.serverError(w, r, "export roster failed", err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="students-`+time.Now().Format("20060102")+`.xlsx"`)
	w.Header().Set("Cache-Control", "no-store")
	if _, err := buf.WriteTo(w); err != nil {
		h.logger().DebugContext(r.Context(), "write export failed", "error", err)
	}
}
