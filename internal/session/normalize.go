package session

import (
	"errors"

	"golang.org/x/oauth2"

	apperrors "github.com/target/studentdash/internal/errors"
	"github.com/target/studentdash/internal/ports"
)

const (
	msgNoPasswordProvider = "You cannot change password because you signed in with an external provider."
	msgTooManyRequests    = "Too many failed attempts. Please try again later"
	msgInvalidActionCode  = "This verification link is invalid or has expired."
)

// Normalize maps a raw identity provider failure onto the application taxonomy.
// Provider codes win over any AppError further down the chain; other AppErrors pass
// through unchanged. Context errors and anything unrecognized become Unknown.
func Normalize(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}

	var pe *ports.ProviderError
	if errors.As(err, &pe) {
		return fromProviderCode(pe.Code, err)
	}
	if appErr, ok := apperrors.As(err); ok {
		return appErr
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode == "access_denied" {
		return apperrors.Wrap(err, apperrors.ErrCodePopupCancelled, "")
	}
	return apperrors.Unknown(err)
}

func fromProviderCode(code string, err error) *apperrors.AppError {
	switch code {
	case ports.CodeUserNotFound, ports.CodeWrongPassword:
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidCredentials, "")
	case ports.CodeEmailAlreadyInUse:
		return apperrors.Wrap(err, apperrors.ErrCodeAccountAlreadyExists, "")
	case ports.CodeWeakPassword:
		return apperrors.Wrap(err, apperrors.ErrCodeWeakPassword, "")
	case ports.CodeInvalidEmail:
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidEmailFormat, "")
	case ports.CodePopupClosedByUser, ports.CodeCancelledPopupRequest, ports.CodePopupBlocked:
		return apperrors.Wrap(err, apperrors.ErrCodePopupCancelled, "")
	case ports.CodeRequiresRecentLogin:
		return apperrors.Wrap(err, apperrors.ErrCodeRequiresRecentLogin, "")
	case ports.CodeNoCurrentUser:
		return apperrors.Wrap(err, apperrors.ErrCodeNotAuthenticated, "")
	case ports.CodeNoPasswordProvider:
		return apperrors.Wrap(err, apperrors.ErrCodeValidationFailed, msgNoPasswordProvider)
	case ports.CodeInvalidActionCode:
		return apperrors.Wrap(err, apperrors.ErrCodeValidationFailed, msgInvalidActionCode)
	case ports.CodeTooManyRequests:
		return apperrors.Wrap(err, apperrors.ErrCodeUnknown, msgTooManyRequests)
	default:
		return apperrors.Unknown(err)
	}
}
