package timebank

import "errors"

var (
	// ErrInvalidAmount is returned when amount is <= 0
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrCorruptState is returned by stores when a persisted snapshot cannot be decoded
	ErrCorruptState = errors.New("corrupt ledger snapshot")
)
