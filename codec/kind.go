// Package codec maps Go types to a closed set of column kinds and converts
// values between their Go form and the form bound to or read from a driver.
package codec

import (
	"database/sql"
	"database/sql/driver"
	"encoding"
	"reflect"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Kind is the closed set of value shapes the codec knows how to bind and read.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindUint
	KindFloat
	KindBool
	KindEnum
	KindDate
	KindTime
	KindDateTime
	KindTimestamp
	KindYearMonth
	KindUUID
	KindULID
	KindBytes
	KindList
	KindMap
	KindValuer
	KindJSON
)

var kindNames = [...]string{
	KindInvalid:   "invalid",
	KindString:    "string",
	KindInt:       "int",
	KindUint:      "uint",
	KindFloat:     "float",
	KindBool:      "bool",
	KindEnum:      "enum",
	KindDate:      "date",
	KindTime:      "time",
	KindDateTime:  "datetime",
	KindTimestamp: "timestamp",
	KindYearMonth: "yearmonth",
	KindUUID:      "uuid",
	KindULID:      "ulid",
	KindBytes:     "bytes",
	KindList:      "list",
	KindMap:       "map",
	KindValuer:    "valuer",
	KindJSON:      "json",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Scalar reports whether values of this kind come from exactly one column.
// List, Map and JSON kinds are structured and fall back to JSON text.
func (k Kind) Scalar() bool {
	switch k {
	case KindString, KindInt, KindUint, KindFloat, KindBool, KindEnum,
		KindDate, KindTime, KindDateTime, KindTimestamp, KindYearMonth,
		KindUUID, KindULID, KindBytes, KindValuer:
		return true
	case KindList, KindMap, KindJSON, KindInvalid:
		return false
	}
	return false
}

// Temporal reports whether the kind binds through a driver temporal wrapper.
func (k Kind) Temporal() bool {
	switch k {
	case KindDate, KindTime, KindDateTime, KindTimestamp, KindYearMonth:
		return true
	}
	return false
}

var (
	timeType      = reflect.TypeOf(time.Time{})
	dateType      = reflect.TypeOf(civil.Date{})
	clockType     = reflect.TypeOf(civil.Time{})
	dateTimeType  = reflect.TypeOf(civil.DateTime{})
	yearMonthType = reflect.TypeOf(YearMonth{})
	uuidType      = reflect.TypeOf(uuid.UUID{})
	ulidType      = reflect.TypeOf(ulid.ULID{})

	valuerType          = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	scannerType         = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// KindOf classifies t. Pointer types are classified by their element type;
// nullability is handled by the encoders and decoders built for t.
func KindOf(t reflect.Type) Kind {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t {
	case timeType:
		return KindTimestamp
	case dateType:
		return KindDate
	case clockType:
		return KindTime
	case dateTimeType:
		return KindDateTime
	case yearMonthType:
		return KindYearMonth
	case uuidType:
		return KindUUID
	case ulidType:
		return KindULID
	}

	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return KindBytes
	}

	ptr := reflect.PointerTo(t)
	if t.Implements(valuerType) || ptr.Implements(scannerType) {
		return KindValuer
	}
	if t.Implements(textMarshalerType) && ptr.Implements(textUnmarshalerType) {
		return KindEnum
	}

	switch t.Kind() {
	case reflect.String:
		if t.PkgPath() != "" {
			return KindEnum
		}
		return KindString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return KindInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindUint
	case reflect.Float32, reflect.Float64:
		return KindFloat
	case reflect.Bool:
		return KindBool
	case reflect.Slice, reflect.Array:
		return KindList
	case reflect.Map:
		return KindMap
	default:
		return KindJSON
	}
}

// ArrayElementType returns the SQL array element type name a list of elem
// binds as natively, or "" when the list must be bound as JSON text.
func ArrayElementType(elem reflect.Type) string {
	for elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	switch KindOf(elem) {
	case KindString, KindEnum:
		return "text"
	case KindUUID:
		return "uuid"
	case KindInt:
		switch elem.Kind() {
		case reflect.Int8, reflect.Int16, reflect.Int32:
			return "integer"
		default:
			return "bigint"
		}
	case KindUint:
		switch elem.Kind() {
		case reflect.Uint8, reflect.Uint16:
			return "integer"
		default:
			return "bigint"
		}
	}
	return ""
}
