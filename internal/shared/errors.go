package shared

import "errors"

var (
	// ErrNotFound indicates a referenced product, warehouse, vendor, user or
	// order does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input or a cross-tenant reference.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientStock occurs when a stock-out exceeds the available quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidTransition occurs when an order action violates the status workflow.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrDuplicate surfaces a uniqueness violation from the directory.
	ErrDuplicate = errors.New("duplicate resource")
)
