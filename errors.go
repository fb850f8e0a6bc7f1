package userauth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// Token error taxonomy. The distinction exists for logging and metrics
// only; network responses must always go through CollapseTokenError so a
// caller cannot tell a bad signature from an expired or mistargeted token.
var (
	// ErrTokenMalformed covers tokens that cannot be decoded or whose
	// signature does not verify.
	ErrTokenMalformed = errors.New("authentication token is malformed", errors.CategoryAuth).
				WithTextCode("TOKEN_MALFORMED").
				WithCode(errors.CodeUnauthorized)

	// ErrTokenExpired is returned once now > exp.
	ErrTokenExpired = errors.New("authentication token is expired", errors.CategoryAuth).
			WithTextCode("TOKEN_EXPIRED").
			WithCode(errors.CodeUnauthorized)

	// ErrTokenSubjectMismatch is returned when a token verifies but was
	// issued for a different subject than the caller expected.
	ErrTokenSubjectMismatch = errors.New("authentication token subject mismatch", errors.CategoryAuth).
				WithTextCode("TOKEN_SUBJECT_MISMATCH").
				WithCode(errors.CodeUnauthorized)

	// ErrTokenInvalid is the single classification exposed at the network
	// boundary for any token failure.
	ErrTokenInvalid = errors.New("invalid authentication token", errors.CategoryAuth).
			WithTextCode("TOKEN_INVALID").
			WithCode(errors.CodeUnauthorized)
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryAuth).
	WithTextCode("IDENTITY_NOT_FOUND").
	WithCode(errors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is the uniform credential failure: callers
// get the same error whether the username was unknown or the password wrong.
var ErrMismatchedHashAndPassword = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode("EMPTY_PASSWORD").
	WithCode(errors.CodeBadRequest)

// ErrDuplicateUser is returned when a username or email is already taken.
var ErrDuplicateUser = errors.New("username or email already exists", errors.CategoryConflict).
	WithTextCode("DUPLICATE_USER").
	WithCode(errors.CodeConflict)

// ErrUnableToFindSession is the error when our request has no token
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithTextCode("SESSION_NOT_FOUND").
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode JWT claims into a session
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithTextCode("SESSION_DECODE").
	WithCode(errors.CodeUnauthorized)

// CollapseTokenError maps any token validation error to the generic invalid
// classification. The original error is only useful for internal logging.
func CollapseTokenError(err error) *errors.Error {
	if err == nil {
		return nil
	}
	return ErrTokenInvalid
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsUniqueConstraintError detects uniqueness violations surfaced by the
// directory. Matches sqlite and postgres driver messages since the rich
// error chain does not carry driver codes across the repository layer.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicateUser) {
		return true
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.Category == errors.CategoryConflict {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
