package query

import (
	"context"
	"database/sql/driver"
	"strings"

	"github.com/Konsultn-Engineering/daokit/database"
	"github.com/Konsultn-Engineering/daokit/paging"
)

// Statement is a compiled query bound to one call's arguments.
type Statement struct {
	query *CompiledQuery
	sql   string
	args  []any
	page  *paging.Request
	limit int

	schemas []string // quoted schema names in fragment order
}

func (s *Statement) SQL() string    { return s.sql }
func (s *Statement) Args() []any    { return s.args }
func (s *Statement) Source() string { return s.query.source }

// BatchKey is the rendered SQL. Statements with equal keys differ only in
// their arguments and can run as one batch.
func (s *Statement) BatchKey() string { return s.sql }

// Page returns the paging request and effective limit the statement was
// bound with. ok is false for unpaged statements.
func (s *Statement) Page() (req *paging.Request, limit int, ok bool) {
	if s.page == nil {
		return nil, -1, false
	}
	return s.page, s.limit, true
}

// Exec runs the statement and returns the affected row count.
func (s *Statement) Exec(ctx context.Context, e database.Execer) (int64, error) {
	return e.Exec(ctx, s.sql, s.args...)
}

// Query runs the statement and returns its result set.
func (s *Statement) Query(ctx context.Context, q database.Querier) (database.Rows, error) {
	return q.Query(ctx, s.sql, s.args...)
}

func (s *Statement) String() string { return s.sql }

// Inline renders the statement with each argument written as a literal of
// the query's dialect. The result is for logs and tooling, never for
// execution.
func (s *Statement) Inline() string {
	d := s.query.dialect
	var b strings.Builder
	b.Grow(len(s.sql) + 16*len(s.args))
	n, schema := 0, 0
	for _, f := range s.query.fragments {
		switch f := f.(type) {
		case Static:
			b.WriteString(f.Text)
		case Param:
			if f.padded() {
				b.WriteString(" ")
			}
			b.WriteString(d.RenderValue(driverValue(s.args[n])))
			if f.padded() {
				b.WriteString(" ")
			}
			n++
		case SchemaRef:
			writeSchemaRef(&b, s.schemas[schema], f.Suffix)
			schema++
		case PagingClause:
			if s.page != nil {
				sql := f.Meta.Apply(b.String(), s.page)
				b.Reset()
				b.WriteString(sql)
			}
		}
	}
	return b.String()
}

func driverValue(v any) any {
	if valuer, ok := v.(driver.Valuer); ok {
		if dv, err := valuer.Value(); err == nil {
			return dv
		}
	}
	return v
}

func pagingRequest(arg any) *paging.Request {
	req, _ := arg.(*paging.Request)
	return req
}
