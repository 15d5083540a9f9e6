package query

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrUnsupportedTemplate = errors.New("unnamed ? placeholders are not supported")
	ErrPagingPlaceholder   = errors.New("paging parameter cannot be used as a placeholder")
	ErrArgumentCount       = errors.New("argument count does not match the declared parameters")
	ErrArgumentType        = errors.New("argument does not match the declared parameter type")
	ErrArrayParameter      = errors.New("list parameter needs a dialect with array support")
	ErrNullSchemaRef       = errors.New("schema reference bound to a null value")
	ErrInvalidSchemaName   = errors.New("invalid schema name")
)

// UnknownPlaceholderError reports a placeholder naming no declared parameter.
type UnknownPlaceholderError struct {
	Name   string
	Source string
}

func (e *UnknownPlaceholderError) Error() string {
	return fmt.Sprintf("%s: unknown placeholder :%s", e.Source, e.Name)
}

// UnresolvablePropertyError reports a dotted placeholder path that does not
// exist on its parameter's type.
type UnresolvablePropertyError struct {
	Path   string
	Root   reflect.Type
	Source string
	Err    error
}

func (e *UnresolvablePropertyError) Error() string {
	return fmt.Sprintf("%s: cannot resolve :%s on %s", e.Source, e.Path, e.Root)
}

func (e *UnresolvablePropertyError) Unwrap() error { return e.Err }
