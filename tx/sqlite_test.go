package tx

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/Konsultn-Engineering/daokit/database"
	"github.com/Konsultn-Engineering/daokit/query"
	"github.com/Konsultn-Engineering/daokit/scheduler"
)

var clearName = query.MustCompile("UPDATE items SET name = NULL WHERE id = :id", query.Method{
	Owner:  "Items",
	Name:   "ClearName",
	Params: []query.Parameter{query.Arg[int64]("id")},
})

func sqliteScheduler(t *testing.T) (*sql.DB, *scheduler.ConnectionScheduler) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "items.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)
	require.NoError(t, err)

	provider := scheduler.ProviderFunc(func(ctx context.Context) (database.Conn, error) {
		c, err := db.Conn(ctx)
		if err != nil {
			return nil, err
		}
		return database.NewSqlConn(c), nil
	})
	return db, scheduler.New(provider, scheduler.GoroutineWorkers(2), scheduler.WithLogger(zerolog.Nop()))
}

func countItems(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&n))
	return n
}

func TestSQLite_FailedUnitRollsBackEarlierUnits(t *testing.T) {
	db, sched := sqliteScheduler(t)

	clear, err := clearName.Bind(int64(1))
	require.NoError(t, err)

	txn, err := New(sched,
		NewUnit(bind(t, insertItem, 1, "a")),
		NewUnit(bind(t, insertItem, 2, "b")),
		NewUnit(clear),
		NewUnit(bind(t, insertItem, 4, "d")),
		NewUnit(bind(t, insertItem, 5, "e")),
	)
	require.NoError(t, err)

	err = txn.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT NULL")
	assert.False(t, IsRecoverable(err))
	assert.Equal(t, 0, countItems(t, db))
}

func TestSQLite_CommitAndRequiredRows(t *testing.T) {
	db, sched := sqliteScheduler(t)

	txn, err := New(sched,
		NewUnit(bind(t, insertItem, 1, "a")),
		NewUnit(bind(t, insertItem, 2, "b")),
		NewUnit(bind(t, renameItem, 2, "bee"), RequireRows(1)),
	)
	require.NoError(t, err)
	require.NoError(t, txn.Execute(context.Background()))
	assert.Equal(t, 2, countItems(t, db))

	var name string
	require.NoError(t, db.QueryRow(`SELECT name FROM items WHERE id = 2`).Scan(&name))
	assert.Equal(t, "bee", name)

	missing := NewUnit(bind(t, renameItem, 42, "nobody"), RequireRows(1))
	txn, err = New(sched, NewUnit(bind(t, insertItem, 3, "c")), missing)
	require.NoError(t, err)

	err = txn.Execute(context.Background())
	assert.True(t, IsRecoverable(err))
	assert.Equal(t, int64(0), missing.Affected())
	assert.Equal(t, 2, countItems(t, db))
}
