// Package databasetest provides in-memory fakes of the database contracts
// that record every statement they receive.
package databasetest

import (
	"context"
	"errors"
	"sync"

	"github.com/Konsultn-Engineering/daokit/database"
)

var ErrNoRows = errors.New("databasetest: no query result configured")

// Call is one physical round trip. Batch calls carry one argument set per item.
type Call struct {
	SQL   string
	Args  [][]any
	Batch bool
	InTx  bool
}

// Conn records statements and transaction boundaries.
type Conn struct {
	// Affected decides the row count of one statement execution; nil reports 1.
	Affected func(sql string, args []any) (int64, error)
	// Result decides the rows of one query; nil fails with ErrNoRows.
	Result func(sql string, args []any) (database.Rows, error)

	BeginErr    error
	CommitErr   error
	RollbackErr error

	mu         sync.Mutex
	calls      []Call
	begun      int
	committed  int
	rolledBack int
	released   int
}

func NewConn() *Conn { return &Conn{} }

func (c *Conn) Query(_ context.Context, sql string, args ...any) (database.Rows, error) {
	return c.query(sql, args, false)
}

func (c *Conn) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	return c.exec(sql, args, false)
}

func (c *Conn) Begin(context.Context) (database.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.BeginErr != nil {
		return nil, c.BeginErr
	}
	c.begun++
	return &Tx{conn: c}, nil
}

func (c *Conn) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released++
}

func (c *Conn) query(sql string, args []any, inTx bool) (database.Rows, error) {
	c.mu.Lock()
	c.calls = append(c.calls, Call{SQL: sql, Args: [][]any{args}, InTx: inTx})
	result := c.Result
	c.mu.Unlock()
	if result == nil {
		return nil, ErrNoRows
	}
	return result(sql, args)
}

func (c *Conn) exec(sql string, args []any, inTx bool) (int64, error) {
	c.mu.Lock()
	c.calls = append(c.calls, Call{SQL: sql, Args: [][]any{args}, InTx: inTx})
	c.mu.Unlock()
	return c.affected(sql, args)
}

func (c *Conn) affected(sql string, args []any) (int64, error) {
	if c.Affected == nil {
		return 1, nil
	}
	return c.Affected(sql, args)
}

// Calls returns a copy of the recorded round trips in order.
func (c *Conn) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

func (c *Conn) Begun() int      { c.mu.Lock(); defer c.mu.Unlock(); return c.begun }
func (c *Conn) Committed() int  { c.mu.Lock(); defer c.mu.Unlock(); return c.committed }
func (c *Conn) RolledBack() int { c.mu.Lock(); defer c.mu.Unlock(); return c.rolledBack }
func (c *Conn) Released() int   { c.mu.Lock(); defer c.mu.Unlock(); return c.released }

// Tx records into its Conn.
type Tx struct {
	conn *Conn
}

func (t *Tx) Query(_ context.Context, sql string, args ...any) (database.Rows, error) {
	return t.conn.query(sql, args, true)
}

func (t *Tx) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	return t.conn.exec(sql, args, true)
}

func (t *Tx) ExecBatch(_ context.Context, sql string, argSets [][]any) ([]int64, error) {
	t.conn.mu.Lock()
	t.conn.calls = append(t.conn.calls, Call{SQL: sql, Args: argSets, Batch: true, InTx: true})
	t.conn.mu.Unlock()

	counts := make([]int64, 0, len(argSets))
	for _, args := range argSets {
		n, err := t.conn.affected(sql, args)
		if err != nil {
			return counts, err
		}
		counts = append(counts, n)
	}
	return counts, nil
}

func (t *Tx) Commit(context.Context) error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	if t.conn.CommitErr != nil {
		return t.conn.CommitErr
	}
	t.conn.committed++
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.rolledBack++
	return t.conn.RollbackErr
}

// Provider hands out Conn on every Acquire.
type Provider struct {
	Conn *Conn
	Err  error

	mu       sync.Mutex
	acquired int
}

func (p *Provider) Acquire(context.Context) (database.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	p.acquired++
	return p.Conn, nil
}

func (p *Provider) Acquired() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired
}

// Rows is a scripted result set.
type Rows struct {
	cols   []database.Column
	data   [][]any
	pos    int
	closed bool

	// Failure is reported by Err once the rows are drained.
	Failure error
}

func NewRows(names []string, data ...[]any) *Rows {
	cols := make([]database.Column, len(names))
	for i, n := range names {
		cols[i] = database.Column{Name: n}
	}
	return &Rows{cols: cols, data: data}
}

func (r *Rows) Next() bool {
	if r.closed || r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *Rows) Values() ([]any, error)              { return r.data[r.pos-1], nil }
func (r *Rows) Columns() ([]database.Column, error) { return r.cols, nil }
func (r *Rows) Err() error                          { return r.Failure }
func (r *Rows) Close() error                        { r.closed = true; return nil }

// Closed reports whether Close was called.
func (r *Rows) Closed() bool { return r.closed }

var (
	_ database.Conn = (*Conn)(nil)
	_ database.Tx   = (*Tx)(nil)
	_ database.Rows = (*Rows)(nil)
)
