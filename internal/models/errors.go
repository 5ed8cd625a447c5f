package models

import "errors"

// Error taxonomy of the order and payment lifecycle. Callers wrap these with
// fmt.Errorf("%w: ...") and test with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid payment transition")
	ErrProvider          = errors.New("payment provider error")
	ErrPersistence       = errors.New("persistence error")
)
