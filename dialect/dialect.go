package dialect

import (
	"fmt"
	"strings"
)

// Dialect captures the few places where the engine's SQL output differs per driver.
type Dialect interface {
	Name() string
	QuoteIdentifier(name string) string
	// Placeholder renders the n-th (1-based) bind placeholder.
	Placeholder(n int) string
	// RenderValue renders v as an inline literal; used for debug output only.
	RenderValue(v any) string
	SupportsArrays() bool
}

// Standard renders `?` placeholders and no array support.
var Standard Dialect = &SQLite{}

// ByName returns the dialect registered for a driver name.
func ByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx", "pg":
		return NewPostgresDialect(), nil
	case "mysql", "mariadb":
		return NewMySQLDialect(), nil
	case "sqlite", "sqlite3":
		return NewSQLiteDialect(), nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
}
