// Package scheduler runs connection-bound work on workers.
//
// A ConnectionScheduler pairs a ConnectionProvider with a WorkerFactory: each
// scheduled action gets its own worker and one connection, both released
// when the action returns, fails or panics.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Konsultn-Engineering/daokit/database"
)

// ConnectionProvider hands out pooled connections. Acquire may block.
type ConnectionProvider interface {
	Acquire(ctx context.Context) (database.Conn, error)
}

// ProviderFunc adapts a function to ConnectionProvider.
type ProviderFunc func(ctx context.Context) (database.Conn, error)

func (f ProviderFunc) Acquire(ctx context.Context) (database.Conn, error) { return f(ctx) }

// Worker runs at most one function. Release must be called once the
// function has finished.
type Worker interface {
	ScheduleOnce(fn func())
	Release()
}

type WorkerFactory interface {
	CreateWorker() Worker
}

// Action is connection-bound work.
type Action func(ctx context.Context, conn database.Conn) error

// PanicError is reported when an action panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("scheduled action panicked: %v", e.Value)
}

// ConnectionScheduler is safe for concurrent use.
type ConnectionScheduler struct {
	provider ConnectionProvider
	workers  WorkerFactory
	log      zerolog.Logger
}

type Option func(*ConnectionScheduler)

func WithLogger(l zerolog.Logger) Option {
	return func(s *ConnectionScheduler) { s.log = l }
}

// New creates a scheduler. A nil factory runs actions inline.
func New(provider ConnectionProvider, workers WorkerFactory, opts ...Option) *ConnectionScheduler {
	if workers == nil {
		workers = InlineWorkers
	}
	s := &ConnectionScheduler{
		provider: provider,
		workers:  workers,
		log:      log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule runs action on a new worker with an acquired connection and
// returns without waiting. Any failure, including a panic or a context that
// was already done when the worker started, is passed to onError.
func (s *ConnectionScheduler) Schedule(ctx context.Context, onError func(error), action Action) {
	w := s.workers.CreateWorker()
	w.ScheduleOnce(func() {
		defer w.Release()
		if err := s.run(ctx, action); err != nil && onError != nil {
			onError(err)
		}
	})
}

// Run is the blocking form of Schedule. Once the action has started it runs
// to completion even if ctx is cancelled.
func (s *ConnectionScheduler) Run(ctx context.Context, action Action) error {
	done := make(chan error, 1)
	w := s.workers.CreateWorker()
	w.ScheduleOnce(func() {
		defer w.Release()
		done <- s.run(ctx, action)
	})
	return <-done
}

func (s *ConnectionScheduler) run(ctx context.Context, action Action) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := s.provider.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			s.log.Error().
				Interface("panic", r).
				Bytes("stack", stack).
				Msg("scheduled action panicked")
			err = &PanicError{Value: r, Stack: stack}
		}
	}()

	return action(ctx, conn)
}
