package codec

import (
	"database/sql"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oklog/ulid/v2"
)

// Decoder stores a driver value into dst, which must be settable.
// A nil source sets a pointer target to nil and a value target to its zero value.
type Decoder func(src any, dst reflect.Value) error

// DecoderFor selects the decoding for targets of type t once.
func DecoderFor(t reflect.Type) Decoder {
	if t.Kind() == reflect.Pointer {
		elem := DecoderFor(t.Elem())
		return func(src any, dst reflect.Value) error {
			if src == nil {
				dst.SetZero()
				return nil
			}
			p := reflect.New(t.Elem())
			if err := elem(src, p.Elem()); err != nil {
				return err
			}
			dst.Set(p)
			return nil
		}
	}
	kind := KindOf(t)
	return func(src any, dst reflect.Value) error {
		if src == nil {
			dst.SetZero()
			return nil
		}
		return decodeKind(kind, src, dst)
	}
}

// Decode is DecoderFor(dst.Type()) applied once.
func Decode(src any, dst reflect.Value) error {
	return DecoderFor(dst.Type())(src, dst)
}

func decodeKind(kind Kind, src any, dst reflect.Value) error {
	t := dst.Type()
	if sv := reflect.ValueOf(src); sv.Type() == t {
		dst.Set(sv)
		return nil
	}

	switch kind {
	case KindString:
		dst.SetString(asText(src))
		return nil
	case KindInt:
		v, err := asInt64(src)
		if err != nil {
			return err
		}
		if dst.OverflowInt(v) {
			return fmt.Errorf("value %d overflows %s", v, t)
		}
		dst.SetInt(v)
		return nil
	case KindUint:
		v, err := asUint64(src)
		if err != nil {
			return err
		}
		if dst.OverflowUint(v) {
			return fmt.Errorf("value %d overflows %s", v, t)
		}
		dst.SetUint(v)
		return nil
	case KindFloat:
		v, err := asFloat64(src)
		if err != nil {
			return err
		}
		if dst.OverflowFloat(v) {
			return fmt.Errorf("value %g overflows %s", v, t)
		}
		dst.SetFloat(v)
		return nil
	case KindBool:
		v, err := asBool(src)
		if err != nil {
			return err
		}
		dst.SetBool(v)
		return nil
	case KindEnum:
		return decodeEnum(asText(src), dst)
	case KindDate:
		d, err := asDate(src)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(d))
		return nil
	case KindTime:
		c, err := asClock(src)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(c))
		return nil
	case KindDateTime:
		dt, err := asDateTime(src)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(dt))
		return nil
	case KindTimestamp:
		ts, err := asTime(src)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(ts))
		return nil
	case KindYearMonth:
		ym, err := asYearMonth(src)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(ym))
		return nil
	case KindUUID:
		u, err := asUUID(src)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(u))
		return nil
	case KindULID:
		id, err := asULID(src)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(id))
		return nil
	case KindBytes:
		switch v := src.(type) {
		case []byte:
			dst.SetBytes(append([]byte(nil), v...))
		case string:
			dst.SetBytes([]byte(v))
		default:
			return mismatch(src, t)
		}
		return nil
	case KindList:
		return decodeList(src, dst)
	case KindMap, KindJSON:
		return decodeJSON(src, dst)
	case KindValuer:
		return decodeScanner(src, dst)
	case KindInvalid:
	}
	return mismatch(src, t)
}

func mismatch(src any, t reflect.Type) error {
	return fmt.Errorf("cannot decode %T into %s", src, t)
}

func asText(src any) string {
	switch v := src.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case [16]byte:
		return uuid.UUID(v).String()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func asInt64(src any) (int64, error) {
	switch v := src.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("value %g is not integral", v)
		}
		return int64(v), nil
	case float32:
		return asInt64(float64(v))
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
	case pgtype.Numeric:
		i, err := v.Int64Value()
		if err != nil {
			return 0, err
		}
		return i.Int64, nil
	}
	return 0, fmt.Errorf("cannot decode %T as integer", src)
}

func asUint64(src any) (uint64, error) {
	switch v := src.(type) {
	case uint64:
		return v, nil
	case string:
		return strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	case []byte:
		return strconv.ParseUint(strings.TrimSpace(string(v)), 10, 64)
	}
	i, err := asInt64(src)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, fmt.Errorf("value %d is negative", i)
	}
	return uint64(i), nil
}

func asFloat64(src any) (float64, error) {
	switch v := src.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	case pgtype.Numeric:
		f, err := v.Float64Value()
		if err != nil {
			return 0, err
		}
		return f.Float64, nil
	}
	i, err := asInt64(src)
	if err != nil {
		return 0, fmt.Errorf("cannot decode %T as float", src)
	}
	return float64(i), nil
}

func asBool(src any) (bool, error) {
	switch v := src.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	case []byte:
		return strconv.ParseBool(strings.TrimSpace(string(v)))
	}
	i, err := asInt64(src)
	if err != nil {
		return false, fmt.Errorf("cannot decode %T as bool", src)
	}
	return i != 0, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func asTime(src any) (time.Time, error) {
	switch v := src.(type) {
	case time.Time:
		return v, nil
	case pgtype.Timestamptz:
		return v.Time, nil
	case pgtype.Timestamp:
		return v.Time, nil
	case pgtype.Date:
		return v.Time, nil
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	}
	return time.Time{}, fmt.Errorf("cannot decode %T as time", src)
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as time", s)
}

func asDate(src any) (civil.Date, error) {
	switch v := src.(type) {
	case string:
		if len(v) >= 10 {
			return civil.ParseDate(v[:10])
		}
		return civil.ParseDate(v)
	case []byte:
		return asDate(string(v))
	}
	t, err := asTime(src)
	if err != nil {
		return civil.Date{}, err
	}
	return civil.DateOf(t), nil
}

func asClock(src any) (civil.Time, error) {
	switch v := src.(type) {
	case pgtype.Time:
		d := time.Duration(v.Microseconds) * time.Microsecond
		return civil.Time{
			Hour:       int(d / time.Hour),
			Minute:     int(d % time.Hour / time.Minute),
			Second:     int(d % time.Minute / time.Second),
			Nanosecond: int(d % time.Second),
		}, nil
	case string:
		return civil.ParseTime(strings.TrimSpace(v))
	case []byte:
		return civil.ParseTime(strings.TrimSpace(string(v)))
	}
	t, err := asTime(src)
	if err != nil {
		return civil.Time{}, err
	}
	return civil.TimeOf(t), nil
}

func asDateTime(src any) (civil.DateTime, error) {
	switch v := src.(type) {
	case string:
		if dt, err := civil.ParseDateTime(strings.TrimSpace(v)); err == nil {
			return dt, nil
		}
	case []byte:
		return asDateTime(string(v))
	}
	t, err := asTime(src)
	if err != nil {
		return civil.DateTime{}, err
	}
	return civil.DateTimeOf(t), nil
}

func asYearMonth(src any) (YearMonth, error) {
	switch v := src.(type) {
	case string:
		return ParseYearMonth(v)
	case []byte:
		return ParseYearMonth(string(v))
	case time.Time:
		return YearMonthOf(v), nil
	}
	i, err := asInt64(src)
	if err != nil {
		return YearMonth{}, err
	}
	return YearMonthFromInt(i)
}

func asUUID(src any) (uuid.UUID, error) {
	switch v := src.(type) {
	case [16]byte:
		return uuid.UUID(v), nil
	case pgtype.UUID:
		return uuid.UUID(v.Bytes), nil
	case string:
		return uuid.Parse(v)
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	}
	return uuid.UUID{}, fmt.Errorf("cannot decode %T as uuid", src)
}

func asULID(src any) (ulid.ULID, error) {
	switch v := src.(type) {
	case [16]byte:
		return ulid.ULID(v), nil
	case string:
		return ulid.Parse(v)
	case []byte:
		if len(v) == 16 {
			var id ulid.ULID
			copy(id[:], v)
			return id, nil
		}
		return ulid.Parse(string(v))
	}
	return ulid.ULID{}, fmt.Errorf("cannot decode %T as ulid", src)
}

func decodeEnum(name string, dst reflect.Value) error {
	p := reflect.New(dst.Type())
	if u, ok := p.Interface().(interface{ UnmarshalText([]byte) error }); ok {
		if err := u.UnmarshalText([]byte(name)); err != nil {
			return fmt.Errorf("invalid %s value %q: %w", dst.Type(), name, err)
		}
		dst.Set(p.Elem())
		return nil
	}
	dst.SetString(name)
	return nil
}

func decodeList(src any, dst reflect.Value) error {
	t := dst.Type()
	switch v := src.(type) {
	case string:
		return unmarshalInto([]byte(v), dst)
	case []byte:
		return unmarshalInto(v, dst)
	}

	sv := reflect.ValueOf(src)
	if sv.Kind() != reflect.Slice && sv.Kind() != reflect.Array {
		return mismatch(src, t)
	}
	n := sv.Len()
	var out reflect.Value
	if t.Kind() == reflect.Array {
		if n > t.Len() {
			return fmt.Errorf("%d elements do not fit %s", n, t)
		}
		out = reflect.New(t).Elem()
	} else {
		out = reflect.MakeSlice(t, n, n)
	}
	elem := DecoderFor(t.Elem())
	for i := 0; i < n; i++ {
		if err := elem(sv.Index(i).Interface(), out.Index(i)); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	dst.Set(out)
	return nil
}

func decodeJSON(src any, dst reflect.Value) error {
	if dst.Kind() == reflect.Interface {
		dst.Set(reflect.ValueOf(src))
		return nil
	}
	switch v := src.(type) {
	case string:
		return unmarshalInto([]byte(v), dst)
	case []byte:
		return unmarshalInto(v, dst)
	}
	// jsonb values arrive already parsed
	b, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("cannot decode %T into %s: %w", src, dst.Type(), err)
	}
	return unmarshalInto(b, dst)
}

func unmarshalInto(b []byte, dst reflect.Value) error {
	p := reflect.New(dst.Type())
	if err := json.Unmarshal(b, p.Interface()); err != nil {
		return fmt.Errorf("cannot decode json into %s: %w", dst.Type(), err)
	}
	dst.Set(p.Elem())
	return nil
}

func decodeScanner(src any, dst reflect.Value) error {
	p := reflect.New(dst.Type())
	if s, ok := p.Interface().(sql.Scanner); ok {
		if b, ok := src.([16]byte); ok {
			src = b[:]
		}
		if err := s.Scan(src); err != nil {
			return fmt.Errorf("failed to scan %T into %s: %w", src, dst.Type(), err)
		}
		dst.Set(p.Elem())
		return nil
	}
	sv := reflect.ValueOf(src)
	if sv.Type().ConvertibleTo(dst.Type()) {
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}
	return mismatch(src, dst.Type())
}
