package query

import (
	"reflect"

	"github.com/Konsultn-Engineering/daokit/paging"
)

// Role says how a method parameter takes part in a query.
type Role uint8

const (
	// RoleValue parameters are bound as statement arguments.
	RoleValue Role = iota
	// RoleSchema parameters are substituted into the SQL text as a schema name.
	RoleSchema
	// RolePaging marks the *paging.Request parameter.
	RolePaging
)

// Parameter describes one method parameter. Name may be empty, in which case
// placeholders refer to it positionally as paramN (1-based).
type Parameter struct {
	Name string
	Type reflect.Type
	Role Role
}

// Method describes the query method a template belongs to. It is built by the
// caller ahead of time; nothing is discovered reflectively at call time.
type Method struct {
	Owner  string
	Name   string
	Params []Parameter
	Paging paging.Meta
}

// Arg declares a value parameter of type T.
func Arg[T any](name string) Parameter {
	return Parameter{Name: name, Type: reflect.TypeFor[T]()}
}

// SchemaArg declares a schema-name parameter.
func SchemaArg(name string) Parameter {
	return Parameter{Name: name, Type: reflect.TypeFor[string](), Role: RoleSchema}
}

// PageArg declares the paging parameter.
func PageArg(name string) Parameter {
	return Parameter{Name: name, Type: reflect.TypeFor[*paging.Request](), Role: RolePaging}
}

var pagingRequestType = reflect.TypeFor[*paging.Request]()

func (p Parameter) isPaging() bool {
	return p.Role == RolePaging || p.Type == pagingRequestType
}

// Source identifies the method as Owner.Name.
func (m Method) Source() string {
	switch {
	case m.Owner == "":
		return m.Name
	case m.Name == "":
		return m.Owner
	default:
		return m.Owner + "." + m.Name
	}
}

// lookup resolves a placeholder root name to a parameter index.
func (m Method) lookup(name string) (int, bool) {
	for i, p := range m.Params {
		if p.Name != "" && p.Name == name {
			return i, true
		}
	}
	for i, p := range m.Params {
		if p.Name == "" && name == positionalName(i) {
			return i, true
		}
	}
	return -1, false
}

func (m Method) pagingIndex() int {
	for i, p := range m.Params {
		if p.isPaging() {
			return i
		}
	}
	return -1
}
