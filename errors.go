package accounts

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials = "auth_invalid_credentials"
	TextCodeTokenMissing       = "auth_token_missing"
	TextCodeTokenEmpty         = "auth_token_empty"
	TextCodeTokenInvalid       = "auth_token_invalid"
	TextCodeTokenExpired       = "auth_token_expired"
	TextCodeActivationInvalid  = "auth_activation_token_invalid"
	TextCodeEmailExists        = "auth_email_exists"
	TextCodeUserNotFound       = "auth_user_not_found"
	TextCodeUpstreamFailure    = "auth_upstream_failure"
)

// ErrInvalidCredentials is returned when the identity provider rejects a login.
var ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMissing is returned when a protected route gets no Authorization header.
var ErrTokenMissing = errors.New("authorization header missing", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMissing).
	WithCode(errors.CodeUnauthorized)

// ErrTokenEmpty is returned when the Authorization header carries no token.
var ErrTokenEmpty = errors.New("bearer token is empty", errors.CategoryAuth).
	WithTextCode(TextCodeTokenEmpty).
	WithCode(errors.CodeUnauthorized)

// ErrTokenInvalid is returned when token verification fails for any other reason.
var ErrTokenInvalid = errors.New("invalid token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned when the token signature checks out but the token is stale.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrActivationTokenInvalid is returned for unknown or already consumed activation tokens.
var ErrActivationTokenInvalid = errors.New("invalid or expired activation token", errors.CategoryValidation).
	WithTextCode(TextCodeActivationInvalid).
	WithCode(errors.CodeBadRequest)

// ErrEmailAlreadyRegistered is returned when a registration loses a uniqueness race.
var ErrEmailAlreadyRegistered = errors.New("email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeEmailExists).
	WithCode(errors.CodeConflict)

// ErrUserNotFound is returned when no local record exists for the authenticated subject.
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeNotFound)

// NewUpstreamError wraps an unexpected identity provider response. The upstream
// status and body travel in metadata so the boundary never leaks them to clients.
func NewUpstreamError(operation string, status int, body string, err error) *errors.Error {
	e := errors.New("identity provider request failed", errors.CategoryOperation).
		WithTextCode(TextCodeUpstreamFailure).
		WithCode(http.StatusBadGateway).
		WithMetadata(map[string]any{
			"operation":       operation,
			"upstream_status": status,
			"upstream_body":   truncate(body, 512),
		})
	if err != nil {
		e.Source = err
	}
	return e
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// IsUniqueViolation reports whether err is a relational unique constraint error.
// Both the sqlite and postgres drivers surface these as plain driver errors.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

func conflictError(err error, field string) *errors.Error {
	clone := ErrEmailAlreadyRegistered.Clone()
	if clone == nil {
		return ErrEmailAlreadyRegistered
	}
	clone.Source = err
	return clone.WithMetadata(map[string]any{"field": field})
}
