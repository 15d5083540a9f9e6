// Package tx executes groups of statements atomically on one connection,
// batching adjacent statements that share the same SQL.
package tx

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Konsultn-Engineering/daokit/database"
	"github.com/Konsultn-Engineering/daokit/scheduler"
)

type txState int32

const (
	waitingForExecution txState = iota
	executing
	committed
)

// Transaction runs its units in order inside one database transaction.
type Transaction struct {
	id    ulid.ULID
	units []*Unit
	sched *scheduler.ConnectionScheduler
	state atomic.Int32
	log   zerolog.Logger
}

// New groups units into a transaction. A nil sched falls back to the first
// unit bound to a scheduler; every bound unit must use the same one.
func New(sched *scheduler.ConnectionScheduler, units ...*Unit) (*Transaction, error) {
	for i, u := range units {
		if u == nil {
			return nil, fmt.Errorf("unit %d is nil", i)
		}
		if sched == nil && u.sched != nil {
			sched = u.sched
		}
	}
	if sched == nil {
		return nil, ErrNoConnectionScheduler
	}
	for _, u := range units {
		if u.sched != nil && u.sched != sched {
			return nil, fmt.Errorf("%s: %w", u.stmt.Source(), ErrMixedSchedulers)
		}
	}

	id := newID()
	return &Transaction{
		id:    id,
		units: units,
		sched: sched,
		log:   log.Logger.With().Str("tx_id", id.String()).Logger(),
	}, nil
}

// WithLogger replaces the transaction's logger. The tx_id field is added.
func (t *Transaction) WithLogger(l zerolog.Logger) *Transaction {
	t.log = l.With().Str("tx_id", t.id.String()).Logger()
	return t
}

// ID correlates the transaction's log events.
func (t *Transaction) ID() ulid.ULID { return t.id }

func (t *Transaction) Units() []*Unit { return t.units }

// Committed reports whether Execute has succeeded.
func (t *Transaction) Committed() bool { return txState(t.state.Load()) == committed }

// Execute activates every unit and runs them in submission order on one
// scheduled connection, then commits. On any failure the transaction is
// rolled back and the original error is returned unchanged; a failed
// rollback is only logged. Once started, execution is not interrupted by
// ctx cancellation.
func (t *Transaction) Execute(ctx context.Context) error {
	if !t.state.CompareAndSwap(int32(waitingForExecution), int32(executing)) {
		if txState(t.state.Load()) == committed {
			return ErrAlreadyExecuted
		}
		return ErrTransactionInProgress
	}

	for i, u := range t.units {
		if err := u.activate(); err != nil {
			for _, prev := range t.units[:i] {
				prev.deactivate()
			}
			t.state.Store(int32(waitingForExecution))
			return err
		}
	}

	started := false
	err := t.sched.Run(ctx, func(ctx context.Context, conn database.Conn) error {
		started = true
		return t.commit(context.WithoutCancel(ctx), conn)
	})

	for _, u := range t.units {
		if started {
			u.finish()
		} else {
			u.deactivate()
		}
	}

	if err != nil {
		t.state.Store(int32(waitingForExecution))
		ev := t.log.Warn()
		if IsRecoverable(err) {
			ev = t.log.Debug()
		}
		ev.Err(err).Int("units", len(t.units)).Msg("transaction failed")
		return err
	}
	t.state.Store(int32(committed))
	t.log.Debug().Int("units", len(t.units)).Msg("transaction committed")
	return nil
}

func (t *Transaction) commit(ctx context.Context, conn database.Conn) error {
	dbtx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			t.rollback(ctx, dbtx, fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	if err := t.run(ctx, dbtx); err != nil {
		t.rollback(ctx, dbtx, err)
		return err
	}
	if err := dbtx.Commit(ctx); err != nil {
		t.rollback(ctx, dbtx, err)
		return err
	}
	return nil
}

func (t *Transaction) rollback(ctx context.Context, dbtx database.Tx, cause error) {
	if err := dbtx.Rollback(ctx); err != nil {
		t.log.Error().Err(err).AnErr("cause", cause).Msg("rollback failed")
	}
}

func (t *Transaction) run(ctx context.Context, dbtx database.Tx) error {
	for _, b := range Batches(t.units) {
		if err := b.execute(ctx, dbtx); err != nil {
			return err
		}
	}
	return nil
}
