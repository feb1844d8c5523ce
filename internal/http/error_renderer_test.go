package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/target/studentdash/internal/errors"
	"github.com/target/studentdash/internal/ports"
)

// captureRenderer records the data RenderError hands to the page renderer.
type captureRenderer struct {
	called bool
	data   map[string]any
}

func (c *captureRenderer) render(_ http.ResponseWriter, _ *http.Request, data map[string]any) {
	c.called = true
	c.data = data
}

func renderErrorFor(t *testing.T, opts ErrorOpts) (*httptest.ResponseRecorder, *captureRenderer) {
	t.Helper()
	rec := httptest.NewRecorder()
	capture := &captureRenderer{}
	opts.W = rec
	opts.R = httptest.NewRequest(http.MethodPost, "/add-student", nil)
	opts.Renderer = capture.render
	RenderError(opts)
	require.True(t, capture.called)
	return rec, capture
}

func TestRenderError_ValidationFieldsFoldIntoErrors(t *testing.T) {
	rec, c := renderErrorFor(t, ErrorOpts{
		Err: apperrors.ValidationFailed(map[string]string{
			"gpa":   "GPA must be between 0 and 4",
			"email": "Please enter a valid email address",
		}),
		PageMeta: PageMeta{Title: "Add New Student", CurrentPage: PageStudentForm},
		Data:     map[string]any{"Mode": FormModeCreate},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errMsgFixBelow, c.data["ErrorMessage"])
	assert.Equal(t, map[string]string{
		"gpa":   "GPA must be between 0 and 4",
		"email": "Please enter a valid email address",
	}, c.data["Errors"])
	assert.Equal(t, FormModeCreate, c.data["Mode"])
	assert.Equal(t, PageStudentForm, c.data["CurrentPage"])
}

func TestRenderError_ExplicitFieldErrorsWithoutCause(t *testing.T) {
	rec, c := renderErrorFor(t, ErrorOpts{
		FieldErrors: map[string]string{"confirmPassword": "Passwords do not match"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errMsgFixBelow, c.data["ErrorMessage"])
	assert.Equal(t, "Passwords do not match", fieldError(c.data["Errors"], "confirmPassword"))
}

func TestRenderError_ProviderCodesUseFriendlyMessages(t *testing.T) {
	tests := []struct {
		code   string
		status int
		want   string
	}{
		{ports.CodeWrongPassword, http.StatusBadRequest, "Invalid email or password"},
		{ports.CodeEmailAlreadyInUse, http.StatusBadRequest, "This email is already registered"},
		{ports.CodeRequiresRecentLogin, http.StatusForbidden, apperrors.DefaultMessage(apperrors.ErrCodeRequiresRecentLogin)},
		{"provider/exploded", http.StatusInternalServerError, "An error occurred. Please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := fmt.Errorf("sign in: %w", ports.NewProviderError(tt.code, errors.New("raw provider detail")))
			rec, c := renderErrorFor(t, ErrorOpts{Err: err})
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.want, c.data["ErrorMessage"])
			assert.NotContains(t, fmt.Sprint(c.data["ErrorMessage"]), "raw provider detail")
		})
	}
}

func TestRenderError_StatusOverrideAndToast(t *testing.T) {
	rec, c := renderErrorFor(t, ErrorOpts{
		Err:        apperrors.Wrap(errors.New("db down"), apperrors.ErrCodeUnknown, "Failed to delete student."),
		StatusCode: http.StatusNotFound,
		ShowToast:  true,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Failed to delete student.", c.data["ErrorMessage"])
	assert.Contains(t, rec.Header().Get("Hx-Trigger"), "Failed to delete student.")
}

func TestRenderError_ContextErrors(t *testing.T) {
	_, c := renderErrorFor(t, ErrorOpts{Err: fmt.Errorf("list: %w", context.DeadlineExceeded)})
	assert.Equal(t, "Request timed out. Please try again.", c.data["ErrorMessage"])

	_, c = renderErrorFor(t, ErrorOpts{Err: context.Canceled})
	assert.Equal(t, "Request was canceled.", c.data["ErrorMessage"])
}

func TestRenderError_NoRenderer(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderError(ErrorOpts{W: rec, R: httptest.NewRequest(http.MethodGet, "/", nil), Err: errors.New("x")})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDetermineErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", apperrors.NotFound("Student not found."), http.StatusNotFound},
		{"validation", apperrors.ValidationField("name", "Name is required"), http.StatusBadRequest},
		{"weak password", apperrors.New(apperrors.ErrCodeWeakPassword), http.StatusBadRequest},
		{"not authenticated", apperrors.NotAuthenticated(), http.StatusUnauthorized},
		{"recent login", apperrors.New(apperrors.ErrCodeRequiresRecentLogin), http.StatusForbidden},
		{"foreign key", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, http.StatusConflict},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped not found", fmt.Errorf("get: %w", apperrors.NotFound("x")), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineErrorStatus(tt.err))
		})
	}
}

func TestDetermineJSONErrorStatus_InputErrorsAre422(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, DetermineJSONErrorStatus(apperrors.ValidationField("gpa", "bad")))
	assert.Equal(t, http.StatusNotFound, DetermineJSONErrorStatus(apperrors.NotFound("x")))
}
