package credits

import "errors"

var (
	// ErrInsufficientCredits indicates the balance cannot cover the requested amount.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrInvalidAmount rejects zero or negative movements.
	ErrInvalidAmount = errors.New("invalid credit amount")
	// ErrPersistence wraps failures of the backing store.
	ErrPersistence = errors.New("credit store failure")
)
