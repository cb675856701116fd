package service

import (
	"errors"
	"fmt"
)

// Sentinel errors for the session service; transports map them to status codes with errors.Is.
var (
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnavailable marks a store failure during validation; callers must not treat the session as valid.
	ErrUnavailable = errors.New("impersonation session store unavailable")
	// ErrAlreadyEnded is a Forbidden variant; transports that distinguish it report a conflict.
	ErrAlreadyEnded = fmt.Errorf("%w: impersonation session already ended", ErrForbidden)
)
