package domain

import "errors"

var (
	// ErrNotFound is returned by repositories when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyRevoked is returned when an atomic revoke finds the record already revoked
	ErrAlreadyRevoked = errors.New("already revoked")

	// ErrGrantNotSupported is returned when a grant is asked to run a phase it does not implement
	ErrGrantNotSupported = errors.New("grant does not support this request")

	// ErrInvalidCredentials is returned when user credentials do not match
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInternal is returned when there is an internal server error
	ErrInternal = errors.New("internal server error")
)
