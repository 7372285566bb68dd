package auth

import "errors"

var (
	// ErrInvalidCredentials is returned for both unknown users and wrong passwords
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotFound is returned by a CredentialStore when the username is unknown
	ErrNotFound = errors.New("user not found")
	// ErrTokenExpired is returned when a well-formed token is past its expiry
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers bad signatures, malformed input and unexpected claims
	ErrTokenInvalid = errors.New("token invalid")
)
