package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Path is a resolved chain of properties starting at a root type.
// An empty path denotes the root value itself.
type Path struct {
	Root     reflect.Type
	Segments []*Property
}

// Resolve resolves dotted property names against root.
func Resolve(root reflect.Type, names []string) (*Path, error) {
	path := &Path{Root: root, Segments: make([]*Property, 0, len(names))}
	current := root
	for i, name := range names {
		s, err := Introspect(current)
		if err != nil {
			return nil, fmt.Errorf("%w: %s on %s", ErrUnknownProperty, strings.Join(names[:i+1], "."), root)
		}
		p, ok := s.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s on %s", ErrUnknownProperty, strings.Join(names[:i+1], "."), root)
		}
		path.Segments = append(path.Segments, p)
		current = p.Type
	}
	return path, nil
}

// Type is the static type at the end of the path.
func (p *Path) Type() reflect.Type {
	if len(p.Segments) == 0 {
		return p.Root
	}
	return p.Segments[len(p.Segments)-1].Type
}

func (p *Path) String() string {
	names := make([]string, len(p.Segments))
	for i, seg := range p.Segments {
		names[i] = seg.Name
	}
	return strings.Join(names, ".")
}

// Get reads the value at the path. ok is false when a nil pointer or
// interface is met before the leaf, which callers bind as NULL.
func (p *Path) Get(root any) (v any, ok bool) {
	rv := reflect.ValueOf(root)
	if len(p.Segments) == 0 {
		return root, root != nil
	}
	for _, seg := range p.Segments {
		for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
			if rv.IsNil() {
				return nil, false
			}
			rv = rv.Elem()
		}
		if !rv.IsValid() || rv.Kind() != reflect.Struct {
			return nil, false
		}
		rv = rv.FieldByIndex(seg.Index)
	}
	return rv.Interface(), true
}

// Target returns the settable leaf for the path below root, allocating nil
// pointers on the way. root must be addressable.
func (p *Path) Target(root reflect.Value) reflect.Value {
	rv := root
	for _, seg := range p.Segments {
		for rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				rv.Set(reflect.New(rv.Type().Elem()))
			}
			rv = rv.Elem()
		}
		rv = rv.FieldByIndex(seg.Index)
	}
	return rv
}
