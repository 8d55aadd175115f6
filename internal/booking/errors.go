package booking

import "errors"

var (
	// ErrInvalidTransition means the operation is not legal from the
	// booking's current status. The booking is left unchanged.
	ErrInvalidTransition = errors.New("invalid booking transition")
	// ErrUnknownBooking means the booking id does not exist.
	ErrUnknownBooking = errors.New("unknown booking")
	// ErrInvalidRequest means the creation input failed validation.
	ErrInvalidRequest = errors.New("invalid booking request")
)
