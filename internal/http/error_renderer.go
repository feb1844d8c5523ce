package httpx

import (
	"context"
	"errors"
	"maps"
	"net/http"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/target/studentdash/internal/errors"
	"github.com/target/studentdash/internal/session"
)

const errMsgFixBelow = "Please fix the errors below."

// ErrorRenderer is a function that renders a page with the given data.
type ErrorRenderer func(w http.ResponseWriter, r *http.Request, data map[string]any)

// ErrorOpts contains all options needed to render an error response.
type ErrorOpts struct {
	W   http.ResponseWriter
	R   *http.Request
	Err error
	// FieldErrors contains field-level validation errors (field name → error message)
	FieldErrors map[string]string
	Renderer    ErrorRenderer
	PageMeta    PageMeta
	// Data carries the rest of the page: submitted form values, dropdown options.
	Data map[string]any
	// StatusCode overrides DetermineErrorStatus when non-zero.
	StatusCode int
	ShowToast  bool
}

// DetermineErrorStatus maps an error onto the HTTP status of an HTML response.
//
//	NotFound                      → 404
//	validation and auth input     → 400
//	NotAuthenticated              → 401
//	RequiresRecentLogin           → 403
//	foreign key violations        → 409
//	everything else               → 500
func DetermineErrorStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
		return http.StatusConflict
	}

	switch session.Normalize(err).Code {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeValidationFailed,
		apperrors.ErrCodeInvalidCredentials,
		apperrors.ErrCodeAccountAlreadyExists,
		apperrors.ErrCodeWeakPassword,
		apperrors.ErrCodeInvalidEmailFormat,
		apperrors.ErrCodePopupCancelled:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotAuthenticated:
		return http.StatusUnauthorized
	case apperrors.ErrCodeRequiresRecentLogin:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// DetermineJSONErrorStatus is DetermineErrorStatus for the JSON API, where input
// errors are 422.
func DetermineJSONErrorStatus(err error) int {
	status := DetermineErrorStatus(err)
	if status == http.StatusBadRequest {
		return http.StatusUnprocessableEntity
	}
	return status
}

// RenderError re-renders a page with the error's user message and any field errors.
// Raw causes never reach the page.
func RenderError(opts ErrorOpts) {
	if opts.Renderer == nil {
		http.Error(opts.W, "misconfigured error renderer", http.StatusInternalServerError)
		return
	}

	builder := NewTemplateData(opts.R, opts.PageMeta)

	fieldErrors := maps.Clone(opts.FieldErrors)
	generalError := processError(opts.Err, &fieldErrors)
	if len(fieldErrors) > 0 {
		builder.WithFieldErrors(fieldErrors)
	}
	switch {
	case generalError != "":
		builder.WithError(generalError)
	case len(fieldErrors) > 0:
		builder.WithError(errMsgFixBelow)
	}
	for k, v := range opts.Data {
		builder.With(k, v)
	}

	if opts.ShowToast && generalError != "" {
		triggerToast(opts.W, generalError, "error")
	}

	status := opts.StatusCode
	if status == 0 && opts.Err != nil {
		status = DetermineErrorStatus(opts.Err)
	}
	if status == 0 && len(fieldErrors) > 0 {
		status = http.StatusBadRequest
	}
	if status != 0 {
		opts.W.Header().Set("Content-Type", "text/html; charset=utf-8")
		opts.W.WriteHeader(status)
	}

	opts.Renderer(opts.W, opts.R, builder.Build())
}

// processError returns the message to show for err, folding field-level messages
// into fieldErrors. Returns empty string if err is nil.
func processError(err error, fieldErrors *map[string]string) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out. Please try again."
	}
	if errors.Is(err, context.Canceled) {
		return "Request was canceled."
	}

	appErr := session.Normalize(err)
	if fe := appErr.FieldErrors(); len(fe) > 0 {
		if *fieldErrors == nil {
			*fieldErrors = make(map[string]string, len(fe))
		}
		maps.Copy(*fieldErrors, fe)
		if appErr.Code == apperrors.ErrCodeValidationFailed && len(appErr.Fields) > 0 {
			return errMsgFixBelow
		}
	}
	return appErr.UserMessage()
}
