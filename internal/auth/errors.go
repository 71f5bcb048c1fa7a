package auth

import "errors"

var (
	// ErrUnauthorized is returned when a request carries no usable identity.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrForbidden is returned when the caller's role is too low.
	ErrForbidden = errors.New("auth: forbidden")
	// ErrTenantMismatch indicates the project belongs to a different tenant.
	ErrTenantMismatch = errors.New("auth: tenant mismatch")
	// ErrNotFound indicates the project does not exist.
	ErrNotFound = errors.New("auth: resource not found")
)
