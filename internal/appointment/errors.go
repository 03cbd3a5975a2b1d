package appointment

import "errors"

var (
	ErrSlotAlreadyBooked   = errors.New("slot overlaps an approved appointment")
	ErrScheduleBusy        = errors.New("employee schedule is being updated, please retry")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrStatusNotFound      = errors.New("status not found")
)

// ValidationError is a client mistake: malformed or out of bounds input, or
// a reference that does not resolve. Message is safe to return to callers.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// ForbiddenError is a role or ownership mismatch.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string { return "Forbidden: " + e.Reason }

func forbidden(reason string) error {
	return &ForbiddenError{Reason: reason}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsForbidden(err error) bool {
	var f *ForbiddenError
	return errors.As(err, &f)
}
