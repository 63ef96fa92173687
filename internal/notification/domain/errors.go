package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidIPO          = errors.New("invalid ipo")
	ErrInvalidPreference   = errors.New("invalid preference")
	ErrDeliveryFailure     = errors.New("delivery failure")
	ErrPersistence         = errors.New("persistence error")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrAlreadyHandled      = errors.New("notification already delivered")
	ErrLeaseHeld           = errors.New("dispatch lease held by another worker")
)
