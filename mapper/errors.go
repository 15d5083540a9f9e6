package mapper

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrNoColumns   = errors.New("result has no columns")
	ErrColumnCount = errors.New("row width does not match the result columns")
)

// DecodeError reports a failure to build a value of Type from a row.
// Column is empty when the failure concerns the row as a whole.
type DecodeError struct {
	Type   reflect.Type
	Column string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("failed to decode row into %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("failed to decode column %q into %s: %v", e.Column, e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
