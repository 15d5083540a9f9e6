package mapper

import (
	"fmt"
	"reflect"

	"github.com/goccy/go-json"
	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Konsultn-Engineering/daokit/codec"
)

// decodeImmutable nests the row into a property map and hands it to the
// target's UnmarshalJSON in one piece.
func (p *Plan) decodeImmutable(values []any) (reflect.Value, error) {
	root := make(map[string]any, len(values))
	for i, keys := range p.keys {
		m := root
		for _, k := range keys[:len(keys)-1] {
			child, ok := m[k].(map[string]any)
			if !ok {
				child = make(map[string]any)
				m[k] = child
			}
			m = child
		}
		v, err := normalize(values[i])
		if err != nil {
			return reflect.Value{}, &DecodeError{Type: p.Type, Column: p.Columns[i].Name, Err: err}
		}
		m[keys[len(keys)-1]] = v
	}

	b, err := json.Marshal(root)
	if err != nil {
		return reflect.Value{}, &DecodeError{Type: p.Type, Err: err}
	}
	target := reflect.New(p.base)
	if err := json.Unmarshal(b, target.Interface()); err != nil {
		return reflect.Value{}, &DecodeError{Type: p.Type, Err: err}
	}
	return target.Elem(), nil
}

// normalize converts driver values without a natural JSON form.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case []byte:
		return string(x), nil
	case [16]byte:
		return uuid.UUID(x).String(), nil
	case pgtype.UUID:
		if !x.Valid {
			return nil, nil
		}
		return uuid.UUID(x.Bytes).String(), nil
	case pgtype.Numeric:
		if !x.Valid {
			return nil, nil
		}
		f, err := x.Float64Value()
		if err != nil {
			return nil, fmt.Errorf("numeric: %w", err)
		}
		return f.Float64, nil
	case pgtype.Time:
		if !x.Valid {
			return nil, nil
		}
		var c civil.Time
		if err := codec.Decode(x, reflect.ValueOf(&c).Elem()); err != nil {
			return nil, err
		}
		return c.String(), nil
	}
	return v, nil
}
