package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeNotFound,
				Message: "Student not found.",
			},
			want: "Student not found.",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeUnknown,
				Message: "failed to load",
				Cause:   errors.New("connection reset"),
			},
			want: "failed to load: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Unknown(cause)

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(Unknown(cause), cause) = false, want true")
	}
}

func TestAppError_UserMessageHidesCause(t *testing.T) {
	err := Unknown(errors.New("auth/internal-error: stack trace"))
	if got := err.UserMessage(); got != "An error occurred. Please try again." {
		t.Errorf("UserMessage() = %q", got)
	}

	var nilErr *AppError
	if got := nilErr.UserMessage(); got != "" {
		t.Errorf("nil UserMessage() = %q, want empty", got)
	}
}

func TestDefaultMessage(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrCodeInvalidCredentials, "Invalid email or password"},
		{ErrCodeAccountAlreadyExists, "This email is already registered"},
		{ErrCodeWeakPassword, "Password should be at least 6 characters"},
		{ErrCodeInvalidEmailFormat, "Please enter a valid email address"},
		{ErrCodeUnknown, "An error occurred. Please try again."},
		{ErrorCode("bogus"), "An error occurred. Please try again."},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := DefaultMessage(tt.code); got != tt.want {
				t.Errorf("DefaultMessage(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestNotFoundf(t *testing.T) {
	err := NotFoundf("student %s not found", "abc")
	if err.Code != ErrCodeNotFound {
		t.Errorf("NotFoundf().Code = %v, want %v", err.Code, ErrCodeNotFound)
	}
	if err.Message != "student abc not found" {
		t.Errorf("NotFoundf().Message = %v", err.Message)
	}
}

func TestValidationFailed_CopiesFields(t *testing.T) {
	fields := map[string]string{"gpa": "GPA must be between 0 and 10.0"}
	err := ValidationFailed(fields)
	fields["gpa"] = "mutated"

	if err.Fields["gpa"] != "GPA must be between 0 and 10.0" {
		t.Errorf("ValidationFailed should copy fields, got %q", err.Fields["gpa"])
	}
	if !IsValidation(err) {
		t.Errorf("IsValidation() = false, want true")
	}
}

func TestFieldErrors(t *testing.T) {
	err := ValidationField("password", "New passwords do not match")
	got := err.FieldErrors()
	if got["password"] != "New passwords do not match" {
		t.Errorf("FieldErrors()[password] = %q", got["password"])
	}

	var nilErr *AppError
	if nilErr.FieldErrors() != nil {
		t.Errorf("nil FieldErrors() should be nil")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, ErrCodeUnknown, "x") != nil {
		t.Errorf("Wrap(nil) should return nil")
	}
	if Wrapf(nil, ErrCodeUnknown, "x %d", 1) != nil {
		t.Errorf("Wrapf(nil) should return nil")
	}

	cause := errors.New("boom")
	err := Wrapf(cause, ErrCodeNotFound, "student %d", 7)
	if err.Message != "student 7" || !errors.Is(err, cause) {
		t.Errorf("Wrapf() = %+v", err)
	}
}

func TestPredicatesThroughWrapping(t *testing.T) {
	base := NotAuthenticated()
	wrapped := fmt.Errorf("profile update: %w", base)

	if !IsNotAuthenticated(wrapped) {
		t.Errorf("IsNotAuthenticated(wrapped) = false, want true")
	}
	if IsNotFound(wrapped) {
		t.Errorf("IsNotFound(wrapped) = true, want false")
	}
	if GetCode(wrapped) != ErrCodeNotAuthenticated {
		t.Errorf("GetCode(wrapped) = %v", GetCode(wrapped))
	}
	if GetCode(errors.New("plain")) != "" {
		t.Errorf("GetCode(plain) should be empty")
	}
	if GetField(ValidationField("email", "Email is required")) != "email" {
		t.Errorf("GetField() mismatch")
	}
	if !IsAccountAlreadyExists(New(ErrCodeAccountAlreadyExists)) {
		t.Errorf("IsAccountAlreadyExists() = false, want true")
	}
}
