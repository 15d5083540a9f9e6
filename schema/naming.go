package schema

import (
	"strings"
	"unicode"
)

// SnakeCase converts a Go or camelCase name to snake_case.
// Acronyms stay together: UserID -> user_id, HTTPServer -> http_server.
func SnakeCase(name string) string {
	return toSnakeCase(name)
}

// CamelCase converts a snake_case, PascalCase or camelCase name to camelCase.
// It is the canonical property name used for column matching.
func CamelCase(name string) string {
	return toCamelCase(name)
}

// toSnakeCase converts any naming convention to snake_case.
// Handles acronyms, numbers, and already snake_cased input.
func toSnakeCase(name string) string {
	if name == "" {
		return ""
	}

	// Handle special common cases for performance
	switch name {
	case "ID":
		return "id"
	case "UUID":
		return "uuid"
	case "ULID":
		return "ulid"
	case "URL":
		return "url"
	case "API":
		return "api"
	case "JSON":
		return "json"
	case "SQL":
		return "sql"
	}

	// If already snake_case (contains underscores and no uppercase), return as-is
	if strings.Contains(name, "_") && !hasUpperCase(name) {
		return strings.ToLower(name)
	}

	var result strings.Builder
	result.Grow(len(name) + 10) // Pre-allocate with some extra space for underscores

	runes := []rune(name)

	for i, r := range runes {
		lower := unicode.ToLower(r)

		needsUnderscore := false

		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]

			// 1. Previous char is lowercase or digit: aB -> a_b, a1B -> a1_b
			// 2. Previous char is uppercase, but next char is lowercase: ABc -> a_bc
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				needsUnderscore = true
			} else if unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
				needsUnderscore = true
			}
		}

		if needsUnderscore {
			result.WriteByte('_')
		}

		result.WriteRune(lower)
	}

	return result.String()
}

// toCamelCase converts any naming convention to camelCase.
func toCamelCase(name string) string {
	if name == "" {
		return ""
	}

	snake := toSnakeCase(name)

	if !strings.Contains(snake, "_") {
		return snake
	}

	parts := strings.Split(snake, "_")

	var result strings.Builder
	result.Grow(len(snake))

	first := true
	for _, part := range parts {
		if part == "" {
			continue
		}
		if first {
			result.WriteString(part)
			first = false
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		result.WriteString(string(r))
	}

	return result.String()
}

// hasUpperCase returns true if the string contains any uppercase letters.
func hasUpperCase(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}
