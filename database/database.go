// Package database is the driver seam: the connection, transaction and row
// contracts the engine runs on, implemented over pgx and database/sql.
package database

import (
	"context"
)

// Column describes one result column.
type Column struct {
	Name     string
	DataType uint32 // driver type code, 0 when the driver does not report one
	TypeName string
}

// Rows is a forward-only result set whose values are read as a whole row.
type Rows interface {
	Next() bool
	Values() ([]any, error)
	Columns() ([]Column, error)
	Err() error
	Close() error
}

type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
}

// Execer runs a statement and reports the affected row count.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
}

// BatchExecer runs one statement once per argument set as a single batch,
// returning the affected row count of each set in order.
type BatchExecer interface {
	ExecBatch(ctx context.Context, sql string, argSets [][]any) ([]int64, error)
}

type Tx interface {
	Querier
	Execer
	BatchExecer
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Conn is one connection checked out of a pool. Release returns it.
type Conn interface {
	Querier
	Execer
	Begin(ctx context.Context) (Tx, error)
	Release()
}
