package daokit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/daokit/dao"
	"github.com/Konsultn-Engineering/daokit/query"
)

func TestConnect_SQLite(t *testing.T) {
	db, err := Connect(context.Background(), Config{
		Driver:   "sqlite",
		Database: filepath.Join(t.TempDir(), "app.db"),
	}, WithLogger(zerolog.Nop()), WithWorkers(1))
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "sqlite", db.Dialect().Name())
	require.NoError(t, db.Health(context.Background()))

	_, err = dao.MustUpdate(db.Runtime, "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)", query.Method{
		Owner: "Notes",
		Name:  "CreateTable",
	}).Exec(context.Background())
	require.NoError(t, err)

	add := dao.MustUpdate(db.Runtime, "INSERT INTO notes (body) VALUES (:body)", query.Method{
		Owner:  "Notes",
		Name:   "Add",
		Params: []query.Parameter{query.Arg[string]("body")},
	})
	n, err := add.Exec(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	bodies, err := dao.MustQuery[string](db.Runtime, "SELECT body FROM notes", query.Method{
		Owner: "Notes",
		Name:  "Bodies",
	}).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, bodies)

	assert.Equal(t, int64(3), db.Stats().Acquires)
}

func TestOpen_FromFileWithEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daokit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("driver: sqlite\ndatabase: ignored.db\n"), 0o600))
	t.Setenv("DAOKIT_DATABASE", filepath.Join(dir, "env.db"))

	db, err := Open(context.Background(), path, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Health(context.Background()))
	_, err = os.Stat(filepath.Join(dir, "env.db"))
	assert.NoError(t, err)
}
