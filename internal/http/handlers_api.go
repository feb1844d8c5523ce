package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/target/studentdash/internal/domain/model"
	apperrors "github.com/target/studentdash/internal/errors"
)

// APIHandlers serves the JSON API.
type APIHandlers struct {
	Students StudentGateway
	Reporter ErrorReporter
	Logger   *slog.Logger
}

func (h *APIHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// fail writes err as JSON. Unexpected failures are also reported.
func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if DetermineJSONErrorStatus(err) >= http.StatusInternalServerError {
		reportError(r.Context(), h.logger(), h.Reporter, msg, err)
	}
	WriteAppError(w, err)
}

// ListStudents handles GET /api/students?course=&q=.
func (h *APIHandlers) ListStudents(w http.ResponseWriter, r *http.Request) {
	course, query := rosterQuery(r)
	students, err := h.Students.Search(r.Context(), course, query)
	if err != nil {
		h.fail(w, r, "list students failed", err)
		return
	}
	if students == nil {
		students = []model.Student{}
	}
	WriteJSON(w, http.StatusOK, students)
}

// GetStudent handles GET /api/students/{id}.
func (h *APIHandlers) GetStudent(w http.ResponseWriter, r *http.Request) {
	st, err := h.Students.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "get student failed", err)
		return
	}
	WriteJSON(w, http.StatusOK, st)
}

// CreateStudent handles POST /api/students with the same validation as the add form.
func (h *APIHandlers) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateStudentRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	valid, err := req.Form().Validate()
	if err != nil {
		WriteAppError(w, err)
		return
	}
	created, err := h.Students.Create(r.Context(), valid)
	if err != nil {
		h.fail(w, r, "create student failed", err)
		return
	}
	w.Header().Set("Location", "/api/students/"+created.ID)
	WriteJSON(w, http.StatusCreated, created)
}

// UpdateStudent handles PATCH /api/students/{id}. Only the fields present are checked
// and merged.
func (h *APIHandlers) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateStudentRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	valid, err := req.Validated()
	if err != nil {
		WriteAppError(w, err)
		return
	}
	updated, err := h.Students.Update(r.Context(), r.PathValue("id"), valid)
	if err != nil {
		h.fail(w, r, "update student failed", err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// DeleteStudent handles DELETE /api/students/{id}. A second delete is 404.
func (h *APIHandlers) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.Students.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "delete student failed", err)
		return
	}
	if !deleted {
		WriteAppError(w, apperrors.NotFound("Student not found."))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCourses handles GET /api/courses.
func (h *APIHandlers) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.Students.ListCourses(r.Context())
	if err != nil {
		h.fail(w, r, "list courses failed", err)
		return
	}
	WriteJSON(w, http.StatusOK, courses)
}

type sessionUser struct {
	UserID        string    `json:"userId"`
	Email         string    `json:"email,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	DisplayName   string    `json:"displayName"`
	AvatarURL     string    `json:"avatarUrl"`
	CreatedAt     time.Time `json:"createdAt"`
	LastLoginAt   time.Time `json:"lastLoginAt"`
}

type sessionStatus struct {
	Loading  bool         `json:"loading"`
	SignedIn bool         `json:"signedIn"`
	User     *sessionUser `json:"user,omitempty"`
}

// Session handles GET /api/session.
func (h *APIHandlers) Session(w http.ResponseWriter, r *http.Request) {
	st := sessionState(r)
	out := sessionStatus{Loading: st.Loading, SignedIn: st.SignedIn()}
	if ident := st.Identity; ident != nil {
		out.User = &sessionUser{
			UserID:        ident.UserID,
			Email:         ident.Email,
			EmailVerified: ident.EmailVerified,
			DisplayName:   ident.DisplayName,
			AvatarURL:     ident.AvatarURL,
			CreatedAt:     ident.CreatedAt,
			LastLoginAt:   ident.LastLoginAt,
		}
		if c, ok := ClientFromContext(r.Context()); ok {
			p := c.Profile.Snapshot()
			out.User.DisplayName, out.User.AvatarURL = p.DisplayName, p.AvatarURL
		}
	}
	WriteJSON(w, http.StatusOK, out)
}
