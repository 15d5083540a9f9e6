package dialect

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Postgres struct{}

func NewPostgresDialect() Dialect {
	return &Postgres{}
}

func (Postgres) Name() string { return "postgres" }

func (p Postgres) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (p Postgres) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (Postgres) RenderValue(v any) string {
	switch val := v.(type) {
	case []byte:
		return fmt.Sprintf("'\\x%x'", val) // hex bytea literal
	case time.Time:
		return "'" + val.Format("2006-01-02 15:04:05.999999Z07:00") + "'"
	case []string:
		quoted := make([]string, len(val))
		for i, s := range val {
			quoted[i] = `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
		}
		return "'{" + strings.ReplaceAll(strings.Join(quoted, ","), "'", "''") + "}'"
	case []int64, []int32:
		return "'{" + strings.Trim(strings.Join(strings.Fields(fmt.Sprint(val)), ","), "[]") + "}'"
	default:
		return renderScalar(v)
	}
}

func (p Postgres) SupportsArrays() bool {
	return true
}
