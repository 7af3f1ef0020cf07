package inventory

import "errors"

var (
	ErrInvalidQuantity = errors.New("quantity must be > 0")
	ErrInvalidValidity = errors.New("validity must be > 0")

	ErrReservationConflict  = errors.New("reservation already exists for this order")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrReservationConfirmed = errors.New("reservation already confirmed")
	ErrAlreadyRegistered    = errors.New("inventory already registered")

	ErrOutOfStock = errors.New("out of stock")
)
