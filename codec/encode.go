package codec

import (
	"fmt"
	"reflect"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oklog/ulid/v2"
)

// Encoder converts a Go value into the value handed to the driver.
// A nil value, or a nil pointer, slice or map, encodes as SQL NULL.
type Encoder func(v any) (any, error)

// EncoderFor selects the encoding for values of static type t. The choice is
// made once; only interface types defer the choice to the dynamic type.
func EncoderFor(t reflect.Type) Encoder {
	if t == nil || t.Kind() == reflect.Interface {
		return encodeDynamic
	}
	kind := KindOf(t)
	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	var elem string
	if kind == KindList {
		elem = ArrayElementType(base.Elem())
	}
	return func(v any) (any, error) {
		rv, ok := indirect(v)
		if !ok {
			return nil, nil
		}
		return encodeValue(kind, elem, rv)
	}
}

func encodeDynamic(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return EncoderFor(reflect.TypeOf(v))(v)
}

// indirect dereferences pointers. ok is false when the value is NULL.
func indirect(v any) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return rv, false
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Interface:
		if rv.IsNil() {
			return reflect.Value{}, false
		}
	}
	return rv, true
}

func encodeValue(kind Kind, elem string, rv reflect.Value) (any, error) {
	switch kind {
	case KindString:
		return rv.String(), nil
	case KindInt:
		return rv.Int(), nil
	case KindUint:
		return rv.Uint(), nil
	case KindFloat:
		return rv.Float(), nil
	case KindBool:
		return rv.Bool(), nil
	case KindEnum:
		return enumName(rv)
	case KindDate:
		d := rv.Interface().(civil.Date)
		return pgtype.Date{Time: d.In(time.UTC), Valid: true}, nil
	case KindTime:
		return pgtype.Time{Microseconds: clockMicros(rv.Interface().(civil.Time)), Valid: true}, nil
	case KindDateTime:
		dt := rv.Interface().(civil.DateTime)
		return pgtype.Timestamp{Time: dt.In(time.UTC), Valid: true}, nil
	case KindTimestamp:
		return pgtype.Timestamptz{Time: rv.Interface().(time.Time), Valid: true}, nil
	case KindYearMonth:
		return rv.Interface().(YearMonth).Int(), nil
	case KindUUID:
		return rv.Interface().(uuid.UUID).String(), nil
	case KindULID:
		return rv.Interface().(ulid.ULID).String(), nil
	case KindBytes:
		return rv.Bytes(), nil
	case KindList:
		if elem == "" {
			return encodeJSON(rv)
		}
		return encodeArray(elem, rv)
	case KindMap, KindJSON:
		return encodeJSON(rv)
	case KindValuer:
		return rv.Interface(), nil
	case KindInvalid:
	}
	return nil, fmt.Errorf("no encoding for %s", rv.Type())
}

func enumName(rv reflect.Value) (any, error) {
	if m, ok := rv.Interface().(interface{ MarshalText() ([]byte, error) }); ok {
		b, err := m.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", rv.Type(), err)
		}
		return string(b), nil
	}
	return rv.String(), nil
}

// encodeArray builds the native slice for a list whose elements have a SQL
// array element type. NULL elements are not representable and fail.
func encodeArray(elem string, rv reflect.Value) (any, error) {
	n := rv.Len()
	switch elem {
	case "text", "uuid":
		out := make([]string, n)
		for i := 0; i < n; i++ {
			ev, ok := indirect(rv.Index(i).Interface())
			if !ok {
				return nil, fmt.Errorf("null element %d in %s", i, rv.Type())
			}
			s, err := elementText(ev)
			if err != nil {
				return nil, err
			}
			out[i] = s
		}
		return out, nil
	case "bigint":
		out := make([]int64, n)
		for i := 0; i < n; i++ {
			ev, ok := indirect(rv.Index(i).Interface())
			if !ok {
				return nil, fmt.Errorf("null element %d in %s", i, rv.Type())
			}
			if ev.CanInt() {
				out[i] = ev.Int()
			} else {
				out[i] = int64(ev.Uint())
			}
		}
		return out, nil
	case "integer":
		out := make([]int32, n)
		for i := 0; i < n; i++ {
			ev, ok := indirect(rv.Index(i).Interface())
			if !ok {
				return nil, fmt.Errorf("null element %d in %s", i, rv.Type())
			}
			if ev.CanInt() {
				out[i] = int32(ev.Int())
			} else {
				out[i] = int32(ev.Uint())
			}
		}
		return out, nil
	}
	return encodeJSON(rv)
}

func elementText(ev reflect.Value) (string, error) {
	switch KindOf(ev.Type()) {
	case KindUUID:
		return ev.Interface().(uuid.UUID).String(), nil
	case KindEnum:
		s, err := enumName(ev)
		if err != nil {
			return "", err
		}
		return s.(string), nil
	default:
		return ev.String(), nil
	}
}

func encodeJSON(rv reflect.Value) (any, error) {
	b, err := json.Marshal(rv.Interface())
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s as json: %w", rv.Type(), err)
	}
	return string(b), nil
}

func clockMicros(c civil.Time) int64 {
	return int64(c.Hour)*int64(time.Hour/time.Microsecond) +
		int64(c.Minute)*int64(time.Minute/time.Microsecond) +
		int64(c.Second)*int64(time.Second/time.Microsecond) +
		int64(c.Nanosecond)/int64(time.Microsecond)
}
