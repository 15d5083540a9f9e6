// Package schema introspects Go struct types into property trees and resolves
// dotted property paths against them.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/goccy/go-json"

	"github.com/Konsultn-Engineering/daokit/codec"
)

var (
	ErrNotStruct       = errors.New("not a struct type")
	ErrUnknownProperty = errors.New("unknown property")
)

var entityCache sync.Map // map[reflect.Type]*Struct

var jsonUnmarshalerType = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()

// Struct is the property tree of a struct type.
type Struct struct {
	Type       reflect.Type
	Properties []*Property

	// Immutable types expose no settable properties and are populated as a
	// whole through their UnmarshalJSON method.
	Immutable bool

	byName map[string]*Property
}

// Property is one exported field, including fields promoted from embedded structs.
type Property struct {
	Name   string // camelCase property name
	Field  string // Go field name
	Column string
	Type   reflect.Type
	Index  []int
	Kind   codec.Kind
}

// Nested reports whether the property is a struct walked by property paths
// rather than a single codec value.
func (p *Property) Nested() bool {
	t := p.Type
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && p.Kind == codec.KindJSON
}

// Struct introspects the property's type. It fails unless Nested is true.
func (p *Property) Struct() (*Struct, error) {
	if !p.Nested() {
		return nil, fmt.Errorf("%w: property %s has type %s", ErrNotStruct, p.Name, p.Type)
	}
	return Introspect(p.Type)
}

// Introspect returns the cached property tree of t, building it on first use.
// Pointer types are dereferenced.
func Introspect(t reflect.Type) (*Struct, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrNotStruct, t)
	}
	if s, ok := entityCache.Load(t); ok {
		return s.(*Struct), nil
	}
	s := buildStruct(t)
	actual, _ := entityCache.LoadOrStore(t, s)
	return actual.(*Struct), nil
}

func buildStruct(t reflect.Type) *Struct {
	s := &Struct{
		Type:   t,
		byName: make(map[string]*Property, t.NumField()),
	}
	s.collect(t, nil)
	s.Immutable = len(s.Properties) == 0 && reflect.PointerTo(t).Implements(jsonUnmarshalerType)
	return s
}

func (s *Struct) collect(t reflect.Type, index []int) {
	var embedded [][]int
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := ParseTag(f.Name, f.Tag)
		if tag.Skip {
			continue
		}

		fieldIndex := append(append([]int(nil), index...), i)

		// Embedded structs and inline fields contribute their properties after
		// the direct fields; embedded pointers are not walked.
		if (f.Anonymous || tag.Inline) && f.Type.Kind() == reflect.Struct && codec.KindOf(f.Type) == codec.KindJSON {
			embedded = append(embedded, fieldIndex)
			continue
		}
		if !f.IsExported() {
			continue
		}

		p := &Property{
			Name:   toCamelCase(f.Name),
			Field:  f.Name,
			Column: tag.ColumnName,
			Type:   f.Type,
			Index:  fieldIndex,
			Kind:   codec.KindOf(f.Type),
		}
		// Shallower fields win, like Go's own promotion rules.
		if _, exists := s.byName[p.Name]; exists {
			continue
		}
		s.Properties = append(s.Properties, p)
		s.byName[p.Name] = p
		if alias := toCamelCase(p.Column); alias != p.Name {
			if _, exists := s.byName[alias]; !exists {
				s.byName[alias] = p
			}
		}
	}
	for _, idx := range embedded {
		s.collect(t.Field(idx[len(idx)-1]).Type, idx)
	}
}

// Lookup finds a property by camelCase name, Go field name or column name.
func (s *Struct) Lookup(name string) (*Property, bool) {
	if p, ok := s.byName[name]; ok {
		return p, true
	}
	p, ok := s.byName[toCamelCase(name)]
	return p, ok
}
