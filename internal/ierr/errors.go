package ierr

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource conflict")
	ErrInternalServer = errors.New("internal server error")

	// ErrStorageUnavailable reports that the backing store could not be
	// reached. Callers degrade to an explicit "feature unavailable"
	// response instead of crashing.
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrInvalidToken = errors.New("invalid or expired session token")

	ErrUpstream            = errors.New("upstream service error")
	ErrUpstreamRateLimited = errors.New("upstream rate limited")
	ErrUpstreamNotFound    = errors.New("upstream resource not found")
	ErrUpstreamForbidden   = errors.New("upstream permission denied")
)
