package warehouse

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

// Text codes surfaced to API clients alongside the HTTP status.
const (
	TextCodeInvalidToken           = "INVALID_TOKEN"
	TextCodeRevokedToken           = "REVOKED_TOKEN"
	TextCodeAccessTokenRequired    = "ACCESS_TOKEN_REQUIRED"
	TextCodeRefreshTokenRequired   = "REFRESH_TOKEN_REQUIRED"
	TextCodeInvalidCreds           = "INVALID_CREDENTIALS"
	TextCodeInsufficientPermission = "INSUFFICIENT_PERMISSION"
	TextCodeAccountNotVerified     = "ACCOUNT_NOT_VERIFIED"
	TextCodeUserAlreadyExists      = "USER_ALREADY_EXISTS"
	TextCodeUserNotFound           = "USER_NOT_FOUND"
	TextCodeItemNotFound           = "ITEM_NOT_FOUND"
	TextCodeNoteNotFound           = "NOTE_NOT_FOUND"
	TextCodeTagNotFound            = "TAG_NOT_FOUND"
	TextCodeTagAlreadyExists       = "TAG_ALREADY_EXISTS"
	TextCodePasswordMismatch       = "PASSWORD_MISMATCH"
	TextCodeInvalidActionToken     = "INVALID_ACTION_TOKEN"
	TextCodeEmptyPassword          = "EMPTY_PASSWORD"
	TextCodeTokenExpired           = "TOKEN_EXPIRED"
)

// Authentication failures: always a 401 rejection, never a server fault.
var (
	ErrInvalidToken = errors.New("invalid authentication token", errors.CategoryAuth).
			WithTextCode(TextCodeInvalidToken).
			WithCode(errors.CodeUnauthorized)

	ErrTokenExpired = errors.New("authentication token has expired", errors.CategoryAuth).
			WithTextCode(TextCodeTokenExpired).
			WithCode(errors.CodeUnauthorized)

	ErrRevokedToken = errors.New("token has been revoked", errors.CategoryAuth).
			WithTextCode(TextCodeRevokedToken).
			WithCode(errors.CodeUnauthorized)

	ErrAccessTokenRequired = errors.New("a valid access token is required", errors.CategoryAuth).
				WithTextCode(TextCodeAccessTokenRequired).
				WithCode(errors.CodeUnauthorized)

	ErrRefreshTokenRequired = errors.New("a valid refresh token is required", errors.CategoryAuth).
				WithTextCode(TextCodeRefreshTokenRequired).
				WithCode(errors.CodeUnauthorized)

	ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
				WithTextCode(TextCodeInvalidCreds).
				WithCode(errors.CodeUnauthorized)
)

// Authorization failures: authenticated but not allowed.
var (
	ErrInsufficientPermission = errors.New("insufficient permissions to perform this action", errors.CategoryAuthz).
					WithTextCode(TextCodeInsufficientPermission).
					WithCode(errors.CodeForbidden)

	ErrAccountNotVerified = errors.New("account email has not been verified", errors.CategoryAuthz).
				WithTextCode(TextCodeAccountNotVerified).
				WithCode(errors.CodeForbidden)
)

// Conflict and not-found failures.
var (
	ErrUserAlreadyExists = errors.New("a user with this email already exists", errors.CategoryConflict).
				WithTextCode(TextCodeUserAlreadyExists)

	ErrTagAlreadyExists = errors.New("a tag with this name already exists", errors.CategoryConflict).
				WithTextCode(TextCodeTagAlreadyExists)

	ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
			WithTextCode(TextCodeUserNotFound).
			WithCode(errors.CodeNotFound)

	ErrItemNotFound = errors.New("item not found", errors.CategoryNotFound).
			WithTextCode(TextCodeItemNotFound).
			WithCode(errors.CodeNotFound)

	ErrNoteNotFound = errors.New("note not found", errors.CategoryNotFound).
			WithTextCode(TextCodeNoteNotFound).
			WithCode(errors.CodeNotFound)

	ErrTagNotFound = errors.New("tag not found", errors.CategoryNotFound).
			WithTextCode(TextCodeTagNotFound).
			WithCode(errors.CodeNotFound)
)

// Validation failures.
var (
	ErrPasswordMismatch = errors.New("passwords do not match", errors.CategoryValidation).
				WithTextCode(TextCodePasswordMismatch)

	// ErrInvalidActionToken is deliberately generic: verify/reset links must
	// not leak whether the token was malformed, expired, or missing claims.
	ErrInvalidActionToken = errors.New("invalid or expired link", errors.CategoryValidation).
				WithTextCode(TextCodeInvalidActionToken)

	ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
				WithTextCode(TextCodeEmptyPassword)

	ErrMismatchedHashAndPassword = errors.New("password does not match", errors.CategoryAuth).
					WithTextCode(TextCodeInvalidCreds).
					WithCode(errors.CodeUnauthorized)
)

// HTTPStatus maps an error to the response status. Rich errors carry an
// explicit code where one was set; otherwise the category decides. Anything
// unrecognized is an infrastructure fault and maps to 500.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	if richErr.Code > 0 {
		return richErr.Code
	}

	switch richErr.Category {
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
