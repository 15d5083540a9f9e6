package database

import (
	"context"
	"database/sql"
	"fmt"
)

// SqlConn implements Conn for a *sql.Conn checked out of a *sql.DB.
type SqlConn struct {
	conn *sql.Conn
}

func NewSqlConn(conn *sql.Conn) *SqlConn {
	return &SqlConn{conn: conn}
}

// Query executes a query that returns rows.
func (s *SqlConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &SqlRows{rows: rows}, nil
}

// Exec executes a statement without returning rows.
func (s *SqlConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SqlConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &SqlTx{tx: tx}, nil
}

// Release returns the connection to the *sql.DB pool.
func (s *SqlConn) Release() { _ = s.conn.Close() }

// SqlTx implements Tx for *sql.Tx.
type SqlTx struct {
	tx *sql.Tx
}

func (t *SqlTx) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &SqlRows{rows: rows}, nil
}

func (t *SqlTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExecBatch prepares the statement once and executes it per argument set.
func (t *SqlTx) ExecBatch(ctx context.Context, query string, argSets [][]any) ([]int64, error) {
	stmt, err := t.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	counts := make([]int64, 0, len(argSets))
	for i, args := range argSets {
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return counts, fmt.Errorf("batch item %d: %w", i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return counts, err
		}
		counts = append(counts, n)
	}
	return counts, nil
}

func (t *SqlTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t *SqlTx) Rollback(context.Context) error { return t.tx.Rollback() }

// SqlRows implements Rows for *sql.Rows.
type SqlRows struct {
	rows    *sql.Rows
	columns []Column
}

// Next prepares the next result row for reading.
func (s *SqlRows) Next() bool { return s.rows.Next() }

// Values scans the current row into driver values.
func (s *SqlRows) Values() ([]any, error) {
	cols, err := s.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := s.rows.Scan(dest...); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *SqlRows) Err() error { return s.rows.Err() }

// Close closes the rows iterator.
func (s *SqlRows) Close() error { return s.rows.Close() }

// Columns returns the column names and database type names.
func (s *SqlRows) Columns() ([]Column, error) {
	if s.columns != nil {
		return s.columns, nil
	}
	types, err := s.rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	columns := make([]Column, len(types))
	for i, ct := range types {
		columns[i] = Column{Name: ct.Name(), TypeName: ct.DatabaseTypeName()}
	}
	s.columns = columns
	return columns, nil
}

var (
	_ Conn = (*SqlConn)(nil)
	_ Tx   = (*SqlTx)(nil)
	_ Rows = (*SqlRows)(nil)
)
