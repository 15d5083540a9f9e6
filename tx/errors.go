package tx

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyExecuted is returned when a unit is activated a second time,
	// usually because the same unit of work was subscribed to twice.
	ErrAlreadyExecuted       = errors.New("unit of work already executed")
	ErrNoConnectionScheduler = errors.New("no connection scheduler found for transaction")
	ErrMixedSchedulers       = errors.New("transaction units are bound to different connection schedulers")
	ErrTransactionInProgress = errors.New("transaction is already executing")
	ErrInsufficientRows      = errors.New("fewer rows affected than required")
)

// InsufficientRowsError is the expected business failure of a unit that
// affected fewer rows than it required. The transaction is rolled back.
type InsufficientRowsError struct {
	Source   string
	Required int64
	Affected int64
}

func (e *InsufficientRowsError) Error() string {
	return fmt.Sprintf("%s: %d rows affected, %d required", e.Source, e.Affected, e.Required)
}

func (e *InsufficientRowsError) Unwrap() error { return ErrInsufficientRows }

// IsRecoverable reports whether err is an expected business failure rather
// than an unexpected database error.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrInsufficientRows)
}
