package registry

import "errors"

var (
	// ErrAlreadyReserved means another booking won the reservation race.
	ErrAlreadyReserved = errors.New("unit already reserved")
	// ErrUnknownUnit means the unit id is not registered.
	ErrUnknownUnit = errors.New("unknown unit")
)
