package auth

import "errors"

// Common authentication errors.
var (
	// ErrUnauthorized is returned when authentication is required but not provided.
	ErrUnauthorized = errors.New("auth: unauthorized")

	// ErrForbidden is returned when the caller lacks permission.
	ErrForbidden = errors.New("auth: forbidden")

	// ErrInvalidToken is returned when a token fails validation.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrTokenExpired is returned when a token has expired.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrMissingClaims is returned when required claims are missing.
	ErrMissingClaims = errors.New("auth: missing required claims")
)
