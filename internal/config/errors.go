package config

import "errors"

// ErrMissingJWTSecret is returned when JWT_SECRET is unset; access tokens
// cannot be signed without it.
var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")
