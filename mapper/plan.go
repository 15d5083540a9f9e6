package mapper

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/Konsultn-Engineering/daokit/codec"
	"github.com/Konsultn-Engineering/daokit/database"
	"github.com/Konsultn-Engineering/daokit/schema"
)

type planMode uint8

const (
	modeScalar planMode = iota
	modeRowMap
	modeMutable
	modeImmutable
)

// Plan decodes rows of one column shape into one target type.
//
// Mutable struct targets match columns by snake_case or dotted labels, so
// address_city and address.city both reach Address.City. Immutable targets
// are built from a property map keyed by label and nest only on '.': label
// nested columns address.city for them, since address_city becomes a flat
// addressCity key.
type Plan struct {
	Type    reflect.Type
	Columns []database.Column

	mode    planMode
	base    reflect.Type // Type without pointers
	scalar  codec.Decoder
	leaves  []leaf
	keys    [][]string // immutable: property path per column
	skipped []string
}

type leaf struct {
	col    int
	path   *schema.Path
	decode codec.Decoder
}

var rowMapType = reflect.TypeFor[map[string]any]()

func buildPlan(t reflect.Type, cols []database.Column) (*Plan, error) {
	if len(cols) == 0 {
		return nil, &DecodeError{Type: t, Err: ErrNoColumns}
	}
	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	p := &Plan{Type: t, Columns: cols, base: base}

	switch {
	case t == rowMapType:
		p.mode = modeRowMap
		return p, nil
	case base.Kind() != reflect.Struct || codec.KindOf(base).Scalar():
		p.mode = modeScalar
		p.scalar = codec.DecoderFor(t)
		return p, nil
	}

	s, err := schema.Introspect(base)
	if err != nil {
		return nil, &DecodeError{Type: t, Err: err}
	}
	if s.Immutable {
		p.mode = modeImmutable
		p.keys = make([][]string, len(cols))
		for i, c := range cols {
			p.keys[i] = propertyKeys(c.Name)
		}
		return p, nil
	}

	p.mode = modeMutable
	for i, c := range cols {
		path, ok := s.MatchColumn(c.Name)
		if !ok {
			p.skipped = append(p.skipped, c.Name)
			continue
		}
		p.leaves = append(p.leaves, leaf{
			col:    i,
			path:   path,
			decode: codec.DecoderFor(path.Type()),
		})
	}
	return p, nil
}

// propertyKeys splits a column label on '.' into camelCase property names.
func propertyKeys(label string) []string {
	parts := strings.Split(label, ".")
	for i, part := range parts {
		parts[i] = schema.CamelCase(part)
	}
	return parts
}

// Decode builds one value of p.Type from a row. A pointer target whose
// columns are all NULL decodes to nil.
func (p *Plan) Decode(values []any) (reflect.Value, error) {
	if len(values) != len(p.Columns) {
		return reflect.Value{}, &DecodeError{
			Type: p.Type,
			Err:  fmt.Errorf("%w: %d values for %d columns", ErrColumnCount, len(values), len(p.Columns)),
		}
	}

	switch p.mode {
	case modeScalar:
		out := reflect.New(p.Type).Elem()
		if err := p.scalar(values[0], out); err != nil {
			return reflect.Value{}, &DecodeError{Type: p.Type, Column: p.Columns[0].Name, Err: err}
		}
		return out, nil
	case modeRowMap:
		m := make(map[string]any, len(values))
		for i, c := range p.Columns {
			m[c.Name] = values[i]
		}
		return reflect.ValueOf(m), nil
	}

	if p.Type.Kind() == reflect.Pointer && allNull(values) {
		return reflect.Zero(p.Type), nil
	}

	var (
		target reflect.Value
		err    error
	)
	if p.mode == modeImmutable {
		target, err = p.decodeImmutable(values)
	} else {
		target, err = p.decodeMutable(values)
	}
	if err != nil {
		return reflect.Value{}, err
	}
	return wrap(p.Type, target), nil
}

func (p *Plan) decodeMutable(values []any) (reflect.Value, error) {
	target := reflect.New(p.base).Elem()
	for _, l := range p.leaves {
		v := values[l.col]
		// NULL leaves keep their zero value and never allocate intermediates.
		if v == nil {
			continue
		}
		if err := l.decode(v, l.path.Target(target)); err != nil {
			return reflect.Value{}, &DecodeError{Type: p.Type, Column: p.Columns[l.col].Name, Err: err}
		}
	}
	return target, nil
}

func allNull(values []any) bool {
	for _, v := range values {
		if v != nil {
			return false
		}
	}
	return true
}

// wrap builds the pointer chain of t around v.
func wrap(t reflect.Type, v reflect.Value) reflect.Value {
	if v.Type() == t {
		return v
	}
	p := reflect.New(t.Elem())
	p.Elem().Set(wrap(t.Elem(), v))
	return p
}
