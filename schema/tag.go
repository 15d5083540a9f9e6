package schema

import (
	"reflect"
	"strings"
)

// TagName is the struct tag read for column mapping.
const TagName = "db"

// ParsedTag is the column mapping extracted from a struct field tag.
type ParsedTag struct {
	ColumnName string // explicit column name, or snake_case of the field name
	Skip       bool   // db:"-"
	Inline     bool   // flatten the nested struct's properties into the parent
}

// ParseTag parses the db tag of a struct field.
//
// Supported tag syntax:
//
//	`db:"column_name"`          // Basic column mapping
//	`db:"column:custom_name"`   // Explicit column name
//	`db:"inline"`               // Flatten a nested struct
//	`db:"-"`                    // Skip field entirely
func ParseTag(fieldName string, tag reflect.StructTag) ParsedTag {
	tagValue := strings.TrimSpace(tag.Get(TagName))

	parsed := ParsedTag{ColumnName: toSnakeCase(fieldName)}

	switch {
	case tagValue == "":
		return parsed
	case tagValue == "-":
		return ParsedTag{Skip: true}
	case !strings.ContainsAny(tagValue, ";:") && tagValue != "inline":
		parsed.ColumnName = tagValue
		return parsed
	}

	for _, option := range strings.Split(tagValue, ";") {
		option = strings.TrimSpace(option)
		if option == "" {
			continue
		}
		key, value, hasValue := strings.Cut(option, ":")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch {
		case hasValue && (key == "column" || key == "name"):
			parsed.ColumnName = value
		case !hasValue && key == "inline":
			parsed.Inline = true
		default:
			// Ignore unknown options for forward compatibility
		}
	}
	return parsed
}
