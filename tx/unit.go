package tx

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/Konsultn-Engineering/daokit/query"
	"github.com/Konsultn-Engineering/daokit/scheduler"
)

type unitState int32

const (
	unitPending unitState = iota
	unitActivated
	unitDone
)

// Unit is one statement's execution. It runs at most once.
type Unit struct {
	stmt     *query.Statement
	sched    *scheduler.ConnectionScheduler
	required int64

	state    atomic.Int32
	affected atomic.Int64
}

type UnitOption func(*Unit)

// RequireRows fails the unit's transaction with an InsufficientRowsError
// when the statement affects fewer than n rows.
func RequireRows(n int64) UnitOption {
	return func(u *Unit) { u.required = n }
}

// WithScheduler binds the unit to the scheduler that provides its connection.
func WithScheduler(s *scheduler.ConnectionScheduler) UnitOption {
	return func(u *Unit) { u.sched = s }
}

func NewUnit(stmt *query.Statement, opts ...UnitOption) *Unit {
	u := &Unit{stmt: stmt, required: -1}
	for _, opt := range opts {
		opt(u)
	}
	u.affected.Store(-1)
	return u
}

func (u *Unit) Statement() *query.Statement { return u.stmt }

// Affected is the row count reported for the unit, or -1 before it has run.
func (u *Unit) Affected() int64 { return u.affected.Load() }

// Done reports whether the unit has been executed, successfully or not.
func (u *Unit) Done() bool { return unitState(u.state.Load()) == unitDone }

// Execute runs the unit as a transaction of its own on its scheduler and
// returns the affected row count.
func (u *Unit) Execute(ctx context.Context) (int64, error) {
	t, err := New(nil, u)
	if err != nil {
		return 0, err
	}
	if err := t.Execute(ctx); err != nil {
		return 0, err
	}
	return u.Affected(), nil
}

func (u *Unit) activate() error {
	if !u.state.CompareAndSwap(int32(unitPending), int32(unitActivated)) {
		return fmt.Errorf("%s: %w", u.stmt.Source(), ErrAlreadyExecuted)
	}
	return nil
}

// deactivate returns a unit that was activated but never ran to Pending.
func (u *Unit) deactivate() {
	u.state.CompareAndSwap(int32(unitActivated), int32(unitPending))
}

func (u *Unit) finish() {
	u.state.Store(int32(unitDone))
}

func (u *Unit) record(n int64) error {
	u.affected.Store(n)
	if u.required >= 0 && n < u.required {
		return &InsufficientRowsError{Source: u.stmt.Source(), Required: u.required, Affected: n}
	}
	return nil
}
