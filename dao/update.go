package dao

import (
	"context"

	"github.com/Konsultn-Engineering/daokit/query"
	"github.com/Konsultn-Engineering/daokit/tx"
)

// Update is a modifying statement. Each call becomes a transaction unit.
type Update struct {
	rt       *Runtime
	q        *query.CompiledQuery
	required int64
}

type UpdateOption func(*Update)

// RequireRows makes every unit of the update fail with a recoverable
// tx.InsufficientRowsError when fewer than n rows are affected.
func RequireRows(n int64) UpdateOption {
	return func(u *Update) { u.required = n }
}

func NewUpdate(rt *Runtime, template string, m query.Method, opts ...UpdateOption) (*Update, error) {
	q, err := rt.Compile(template, m)
	if err != nil {
		return nil, err
	}
	u := &Update{rt: rt, q: q, required: -1}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// MustUpdate is NewUpdate for package-level declarations.
func MustUpdate(rt *Runtime, template string, m query.Method, opts ...UpdateOption) *Update {
	u, err := NewUpdate(rt, template, m, opts...)
	if err != nil {
		panic(err)
	}
	return u
}

func (u *Update) Compiled() *query.CompiledQuery { return u.q }

// Unit binds args into a unit that can join a transaction or run alone.
func (u *Update) Unit(args ...any) (*tx.Unit, error) {
	stmt, err := u.rt.bind(u.q, args)
	if err != nil {
		return nil, err
	}
	opts := []tx.UnitOption{tx.WithScheduler(u.rt.sched)}
	if u.required >= 0 {
		opts = append(opts, tx.RequireRows(u.required))
	}
	return tx.NewUnit(stmt, opts...), nil
}

// Exec runs the update in a transaction of its own and returns the affected
// row count.
func (u *Update) Exec(ctx context.Context, args ...any) (int64, error) {
	unit, err := u.Unit(args...)
	if err != nil {
		return 0, err
	}
	ctx, cancel := u.rt.withTimeout(ctx)
	defer cancel()

	t, err := u.rt.Transaction(unit)
	if err != nil {
		return 0, err
	}
	if err := t.Execute(ctx); err != nil {
		return 0, err
	}
	return unit.Affected(), nil
}
