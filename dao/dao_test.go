package dao

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/daokit/database"
	"github.com/Konsultn-Engineering/daokit/database/databasetest"
	"github.com/Konsultn-Engineering/daokit/dialect"
	"github.com/Konsultn-Engineering/daokit/paging"
	"github.com/Konsultn-Engineering/daokit/query"
	"github.com/Konsultn-Engineering/daokit/scheduler"
	"github.com/Konsultn-Engineering/daokit/tx"
)

type Item struct {
	ID   int64
	Name string
}

var (
	findByPrefix = query.Method{
		Owner:  "Items",
		Name:   "FindByPrefix",
		Params: []query.Parameter{query.Arg[string]("prefix")},
	}
	pageByPrefix = query.Method{
		Owner:  "Items",
		Name:   "PageByPrefix",
		Params: []query.Parameter{query.Arg[string]("prefix"), query.PageArg("page")},
		Paging: paging.Meta{DefaultSort: "id", DefaultLimit: 10},
	}
	renameItem = query.Method{
		Owner:  "Items",
		Name:   "Rename",
		Params: []query.Parameter{query.Arg[int64]("id"), query.Arg[string]("name")},
	}
)

func newRuntime(t *testing.T) (*databasetest.Conn, *Runtime) {
	t.Helper()
	conn := databasetest.NewConn()
	sched := scheduler.New(&databasetest.Provider{Conn: conn}, scheduler.GoroutineWorkers(2), scheduler.WithLogger(zerolog.Nop()))
	return conn, New(sched, WithDialect(dialect.NewPostgresDialect()), WithLogger(zerolog.Nop()))
}

func itemRows(n int) *databasetest.Rows {
	data := make([][]any, n)
	for i := range n {
		data[i] = []any{int64(i + 1), string(rune('a' + i))}
	}
	return databasetest.NewRows([]string{"id", "name"}, data...)
}

func TestRuntime_CompilesOncePerTemplate(t *testing.T) {
	_, rt := newRuntime(t)
	const tmpl = "SELECT id, name FROM items WHERE name LIKE :prefix"

	a, err := NewQuery[Item](rt, tmpl, findByPrefix)
	require.NoError(t, err)
	b, err := NewQuery[Item](rt, tmpl, findByPrefix)
	require.NoError(t, err)

	assert.Same(t, a.Compiled(), b.Compiled())
	assert.Equal(t, 1, rt.Compiled())

	_, err = NewQuery[Item](rt, "SELECT * FROM items WHERE id = :id", findByPrefix)
	assert.True(t, query.IsCompileError(err))
	assert.Equal(t, 1, rt.Compiled())
}

func TestQuery_List(t *testing.T) {
	conn, rt := newRuntime(t)
	rows := itemRows(2)
	conn.Result = func(string, []any) (database.Rows, error) { return rows, nil }

	q := MustQuery[Item](rt, "SELECT id, name FROM items WHERE name LIKE :prefix", findByPrefix)
	items, err := q.List(context.Background(), "a%")
	require.NoError(t, err)
	assert.Equal(t, []Item{{1, "a"}, {2, "b"}}, items)

	calls := conn.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "SELECT id, name FROM items WHERE name LIKE $1", calls[0].SQL)
	assert.Equal(t, [][]any{{"a%"}}, calls[0].Args)
	assert.False(t, calls[0].InTx)
	assert.True(t, rows.Closed())
	assert.Equal(t, 1, conn.Released())
}

func TestQuery_ListPaged(t *testing.T) {
	conn, rt := newRuntime(t)
	conn.Result = func(string, []any) (database.Rows, error) { return itemRows(3), nil }

	q := MustQuery[Item](rt, "SELECT id, name FROM items WHERE name LIKE :prefix", pageByPrefix)

	req := paging.NewRequest(2, 0)
	items, err := q.List(context.Background(), "%", req)
	require.NoError(t, err)
	assert.Equal(t, []Item{{1, "a"}, {2, "b"}}, items)
	assert.False(t, req.IsLastPage())
	assert.Contains(t, conn.Calls()[0].SQL, "ORDER BY id LIMIT 3")

	req = paging.NewRequest(5, 0)
	items, err = q.List(context.Background(), "%", req)
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.True(t, req.IsLastPage())

	items, err = q.List(context.Background(), "%", nil)
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.NotContains(t, conn.Calls()[2].SQL, "LIMIT")
}

func TestQuery_LogsInlinedStatement(t *testing.T) {
	conn := databasetest.NewConn()
	conn.Result = func(string, []any) (database.Rows, error) { return itemRows(1), nil }
	sched := scheduler.New(&databasetest.Provider{Conn: conn}, scheduler.GoroutineWorkers(1), scheduler.WithLogger(zerolog.Nop()))

	var buf bytes.Buffer
	rt := New(sched, WithDialect(dialect.NewPostgresDialect()), WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

	q := MustQuery[Item](rt, "SELECT id, name FROM items WHERE name LIKE :prefix", pageByPrefix)
	_, err := q.List(context.Background(), "o'neil%", paging.NewRequest(5, 10))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"message":"query bound"`)
	assert.Contains(t, buf.String(), `"sql":"SELECT id, name FROM items WHERE name LIKE 'o''neil%' ORDER BY id LIMIT 6 OFFSET 10"`)
}

func TestQuery_RejectsMistypedArgument(t *testing.T) {
	conn, rt := newRuntime(t)
	q := MustQuery[Item](rt, "SELECT id, name FROM items WHERE name LIKE :prefix", findByPrefix)

	_, err := q.List(context.Background(), 42)
	assert.ErrorIs(t, err, query.ErrArgumentType)
	assert.Empty(t, conn.Calls())
}

func TestQuery_One(t *testing.T) {
	conn, rt := newRuntime(t)
	rows := itemRows(3)
	conn.Result = func(string, []any) (database.Rows, error) { return rows, nil }

	q := MustQuery[Item](rt, "SELECT id, name FROM items WHERE name LIKE :prefix", findByPrefix)
	item, err := q.One(context.Background(), "%")
	require.NoError(t, err)
	assert.Equal(t, Item{1, "a"}, item)
	assert.True(t, rows.Closed())

	conn.Result = func(string, []any) (database.Rows, error) { return itemRows(0), nil }
	_, err = q.One(context.Background(), "%")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuery_Errors(t *testing.T) {
	conn, rt := newRuntime(t)
	q := MustQuery[Item](rt, "SELECT id, name FROM items WHERE name LIKE :prefix", findByPrefix)

	_, err := q.List(context.Background())
	assert.ErrorIs(t, err, query.ErrArgumentCount)
	assert.Empty(t, conn.Calls())

	_, err = q.List(context.Background(), "%")
	assert.ErrorIs(t, err, databasetest.ErrNoRows)

	rows := itemRows(1)
	rows.Failure = errors.New("network reset")
	conn.Result = func(string, []any) (database.Rows, error) { return rows, nil }
	_, err = q.List(context.Background(), "%")
	assert.EqualError(t, err, "network reset")
	assert.Equal(t, 2, conn.Released())
}

func TestQuery_Stream(t *testing.T) {
	conn, rt := newRuntime(t)
	conn.Result = func(string, []any) (database.Rows, error) { return itemRows(4), nil }
	q := MustQuery[Item](rt, "SELECT id, name FROM items WHERE name LIKE :prefix", findByPrefix)

	var names []string
	for item, err := range q.Stream(context.Background(), "%") {
		require.NoError(t, err)
		names = append(names, item.Name)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, names)
	assert.Equal(t, 1, conn.Released())
}

func TestQuery_StreamEarlyStopReleasesConnection(t *testing.T) {
	conn, rt := newRuntime(t)
	rows := itemRows(100)
	conn.Result = func(string, []any) (database.Rows, error) { return rows, nil }
	q := MustQuery[Item](rt, "SELECT id, name FROM items WHERE name LIKE :prefix", findByPrefix)

	for item, err := range q.Stream(context.Background(), "%") {
		require.NoError(t, err)
		assert.Equal(t, int64(1), item.ID)
		break
	}
	assert.True(t, rows.Closed())
	assert.Equal(t, 1, conn.Released())
}

func TestQuery_StreamSurfacesErrors(t *testing.T) {
	_, rt := newRuntime(t)
	q := MustQuery[Item](rt, "SELECT id, name FROM items WHERE name LIKE :prefix", findByPrefix)

	var errs []error
	for _, err := range q.Stream(context.Background(), "%") {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], databasetest.ErrNoRows)

	errs = errs[:0]
	for _, err := range q.Stream(context.Background()) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], query.ErrArgumentCount)
}

func TestUpdate_Exec(t *testing.T) {
	conn, rt := newRuntime(t)
	conn.Affected = func(string, []any) (int64, error) { return 3, nil }

	u := MustUpdate(rt, "UPDATE items SET name = :name WHERE id = :id", renameItem)
	n, err := u.Exec(context.Background(), int64(1), "x")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	calls := conn.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "UPDATE items SET name = $1 WHERE id = $2", calls[0].SQL)
	assert.True(t, calls[0].InTx)
	assert.Equal(t, 1, conn.Committed())
}

func TestUpdate_RequireRows(t *testing.T) {
	conn, rt := newRuntime(t)
	conn.Affected = func(string, []any) (int64, error) { return 0, nil }

	u := MustUpdate(rt, "UPDATE items SET name = :name WHERE id = :id", renameItem, RequireRows(1))
	_, err := u.Exec(context.Background(), int64(1), "x")
	assert.True(t, tx.IsRecoverable(err))
	assert.Equal(t, 1, conn.RolledBack())
}

func TestRuntime_TransactionBatchesUnits(t *testing.T) {
	conn, rt := newRuntime(t)
	u := MustUpdate(rt, "UPDATE items SET name = :name WHERE id = :id", renameItem)

	var units []*tx.Unit
	for i := range 3 {
		unit, err := u.Unit(int64(i), "n")
		require.NoError(t, err)
		units = append(units, unit)
	}
	txn, err := rt.Transaction(units...)
	require.NoError(t, err)
	require.NoError(t, txn.Execute(context.Background()))

	calls := conn.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Batch)
	assert.Len(t, calls[0].Args, 3)
	for _, unit := range units {
		assert.Equal(t, int64(1), unit.Affected())
	}
}
