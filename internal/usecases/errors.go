package usecases

import (
	"errors"
	"fmt"
)

// Caller-facing failure taxonomy. None of these are retried internally:
// they are request errors, not infrastructure faults. The transport layer
// maps each sentinel to a stable status code with errors.Is, never by
// matching message text.
var (
	ErrValidation             = errors.New("invalid input")
	ErrPermissionDenied       = errors.New("user is not authorized to this action")
	ErrAuthenticationRequired = fmt.Errorf("%w: authentication required", ErrPermissionDenied)
	ErrNotFound               = errors.New("requested entity does not exist")
	ErrNotAMember             = errors.New("user is not a chat member")
	ErrAlreadyMember          = errors.New("user is already a chat member")
	ErrRateLimited            = errors.New("slow mode is in effect")
	ErrEditWindowExpired      = errors.New("edit window has expired")
	ErrInvalidOperation       = errors.New("operation is not valid in the current state")
	ErrCapacityExceeded       = errors.New("configured capacity limit exceeded")
)
