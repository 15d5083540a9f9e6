package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxConn implements Conn for a connection acquired from a pgxpool.Pool.
type PgxConn struct {
	conn *pgxpool.Conn
}

func NewPgxConn(conn *pgxpool.Conn) *PgxConn {
	return &PgxConn{conn: conn}
}

// Query executes a query that returns rows.
func (p *PgxConn) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := p.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &PgxRows{rows: rows}, nil
}

// Exec executes a statement without returning rows.
func (p *PgxConn) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := p.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *PgxConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &PgxTx{tx: tx}, nil
}

// Release returns the connection to its pool.
func (p *PgxConn) Release() { p.conn.Release() }

// PgxTx implements Tx for pgx.Tx.
type PgxTx struct {
	tx pgx.Tx
}

func (t *PgxTx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &PgxRows{rows: rows}, nil
}

func (t *PgxTx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ExecBatch queues every argument set on one pgx.Batch and sends it in a
// single round trip.
func (t *PgxTx) ExecBatch(ctx context.Context, sql string, argSets [][]any) ([]int64, error) {
	batch := &pgx.Batch{}
	for _, args := range argSets {
		batch.Queue(sql, args...)
	}

	results := t.tx.SendBatch(ctx, batch)
	counts := make([]int64, 0, len(argSets))
	for i := range argSets {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return counts, fmt.Errorf("batch item %d: %w", i, err)
		}
		counts = append(counts, tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return counts, err
	}
	return counts, nil
}

func (t *PgxTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *PgxTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// PgxRows implements Rows for pgx.Rows.
type PgxRows struct {
	rows    pgx.Rows
	columns []Column
}

// Next prepares the next result row for reading.
func (p *PgxRows) Next() bool { return p.rows.Next() }

// Values returns the decoded values of the current row.
func (p *PgxRows) Values() ([]any, error) { return p.rows.Values() }

func (p *PgxRows) Err() error { return p.rows.Err() }

// Close closes the rows iterator.
func (p *PgxRows) Close() error { p.rows.Close(); return nil }

// Columns returns the column names and type OIDs.
func (p *PgxRows) Columns() ([]Column, error) {
	if p.columns == nil {
		p.columns = columnsOf(p.rows.FieldDescriptions(), p.rows.Conn())
	}
	return p.columns, nil
}

func columnsOf(fields []pgconn.FieldDescription, conn *pgx.Conn) []Column {
	columns := make([]Column, len(fields))
	for i, fd := range fields {
		columns[i] = Column{Name: fd.Name, DataType: fd.DataTypeOID}
		if conn != nil {
			if t, ok := conn.TypeMap().TypeForOID(fd.DataTypeOID); ok {
				columns[i].TypeName = t.Name
			}
		}
	}
	return columns
}

var (
	_ Conn = (*PgxConn)(nil)
	_ Tx   = (*PgxTx)(nil)
	_ Rows = (*PgxRows)(nil)
)
