package auth

import (
	"fmt"
	"strings"
)

// ValidationError indicates the caller supplied a missing or invalid
// identifier or payload. It is recoverable by correcting the input and is
// never retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TokenRefreshError indicates the refresh-token exchange with the identity
// provider failed (expired or revoked refresh token, network failure,
// malformed response). Callers should surface it as "re-authentication
// required" rather than retrying.
type TokenRefreshError struct {
	UserID string
	Err    error
}

func (e *TokenRefreshError) Error() string {
	return fmt.Sprintf("token refresh failed for user %s: %v", e.UserID, e.Err)
}

func (e *TokenRefreshError) Unwrap() error {
	return e.Err
}

// AuthFlowError indicates the companion authorization server was unreachable
// or returned an unexpected response shape.
type AuthFlowError struct {
	Op  string
	Err error
}

func (e *AuthFlowError) Error() string {
	return fmt.Sprintf("auth flow %s failed: %v", e.Op, e.Err)
}

func (e *AuthFlowError) Unwrap() error {
	return e.Err
}

// AmbiguousUserError is returned when a caller uses the "default" sentinel
// while several users are authenticated. The system is healthy; the caller
// must supply an explicit user id.
type AmbiguousUserError struct {
	Users []string
}

func (e *AmbiguousUserError) Error() string {
	return fmt.Sprintf("multiple authenticated users (%s); specify an explicit userId", strings.Join(e.Users, ", "))
}
