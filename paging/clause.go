package paging

import (
	"strconv"
	"strings"

	"github.com/Konsultn-Engineering/daokit/schema"
)

// Meta is the paging declaration of a query method.
type Meta struct {
	DefaultSort  string   // raw ORDER BY term used when the request names no allowed column
	AllowedSort  []string // columns a request may sort by
	DefaultLimit int
	MaxLimit     int // 0 means unbounded
}

// EffectiveLimit resolves the page size for r. ok is false when paging is
// disabled for the request.
func (m Meta) EffectiveLimit(r *Request) (limit int, ok bool) {
	if !r.Enabled() {
		return 0, false
	}
	limit = m.DefaultLimit
	if *r.Limit >= 0 {
		limit = *r.Limit
	}
	if m.MaxLimit > 0 && limit > m.MaxLimit {
		limit = m.MaxLimit
	}
	return limit, true
}

// SortTerm resolves the ORDER BY term for r, or "" when there is none.
func (m Meta) SortTerm(r *Request) string {
	if r != nil && r.SortBy != "" {
		want := schema.SnakeCase(r.SortBy)
		for _, col := range m.AllowedSort {
			if schema.SnakeCase(col) == want {
				return col + " " + r.SortOrder.String()
			}
		}
	}
	return m.DefaultSort
}

// Apply appends the paging clause for r to sql. The limit asks for one row
// beyond the page so the overlay can tell whether another page exists. When
// sql already orders its rows the resolved term becomes the leading sort key
// of that ORDER BY. With paging disabled sql is returned unchanged.
func (m Meta) Apply(sql string, r *Request) string {
	limit, ok := m.EffectiveLimit(r)
	if !ok {
		return sql
	}

	var b strings.Builder
	b.Grow(len(sql) + 48)

	if term := m.SortTerm(r); term != "" {
		if at := findOrderBy(sql); at >= 0 {
			b.WriteString(sql[:at])
			b.WriteString(term)
			b.WriteString(", ")
			b.WriteString(strings.TrimLeft(sql[at:], " \t\n"))
		} else {
			b.WriteString(sql)
			b.WriteString(" ORDER BY ")
			b.WriteString(term)
		}
	} else {
		b.WriteString(sql)
	}

	b.WriteString(" LIMIT ")
	b.WriteString(strconv.Itoa(limit + 1))
	if r.Offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(r.Offset))
	}
	return b.String()
}

// findOrderBy returns the offset just past the last top-level ORDER BY
// keyword pair (and the whitespace after it), or -1. Quoted text and
// parenthesized subqueries are ignored.
func findOrderBy(sql string) int {
	found := -1
	depth := 0
	for i := 0; i < len(sql); i++ {
		switch c := sql[i]; c {
		case '\'', '"', '`':
			if end := strings.IndexByte(sql[i+1:], c); end >= 0 {
				i += end + 1
			} else {
				return found
			}
		case '(':
			depth++
		case ')':
			depth--
		case 'o', 'O':
			if depth != 0 || !wordAt(sql, i, "order") {
				continue
			}
			j := skipSpace(sql, i+5)
			if j == i+5 || !wordAt(sql, j, "by") {
				continue
			}
			found = skipSpace(sql, j+2)
			i = found - 1
		}
	}
	return found
}

func wordAt(s string, i int, word string) bool {
	if i+len(word) > len(s) || !strings.EqualFold(s[i:i+len(word)], word) {
		return false
	}
	if i > 0 && isIdent(s[i-1]) {
		return false
	}
	end := i + len(word)
	return end == len(s) || !isIdent(s[end])
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

func isIdent(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
