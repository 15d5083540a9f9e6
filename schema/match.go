package schema

import "strings"

// MatchColumn maps a result column label to a property path.
//
// The label is converted to camelCase segment by segment on '.'. A label
// without a dot matches a declared property first; only when none exists are
// its underscore-separated prefixes tried, and then only against nested
// struct properties, longest prefix first. So a flat property named
// addressCity always beats the path address.city for the label address_city.
func (s *Struct) MatchColumn(label string) (*Path, bool) {
	segments, ok := s.match(label)
	if !ok {
		return nil, false
	}
	return &Path{Root: s.Type, Segments: segments}, true
}

func (s *Struct) match(label string) ([]*Property, bool) {
	if head, rest, dotted := strings.Cut(label, "."); dotted {
		p, ok := s.Lookup(head)
		if !ok || !p.Nested() {
			return nil, false
		}
		nested, err := p.Struct()
		if err != nil {
			return nil, false
		}
		tail, ok := nested.match(rest)
		if !ok {
			return nil, false
		}
		return append([]*Property{p}, tail...), true
	}

	if p, ok := s.Lookup(label); ok {
		return []*Property{p}, true
	}

	parts := strings.Split(label, "_")
	for i := len(parts) - 1; i >= 1; i-- {
		p, ok := s.Lookup(strings.Join(parts[:i], "_"))
		if !ok || !p.Nested() {
			continue
		}
		nested, err := p.Struct()
		if err != nil {
			continue
		}
		if tail, ok := nested.match(strings.Join(parts[i:], "_")); ok {
			return append([]*Property{p}, tail...), true
		}
	}
	return nil, false
}
