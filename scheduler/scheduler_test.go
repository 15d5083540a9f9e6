package scheduler

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/daokit/database"
	"github.com/Konsultn-Engineering/daokit/database/databasetest"
)

type countingFactory struct {
	inner    WorkerFactory
	created  atomic.Int32
	released atomic.Int32
}

func (f *countingFactory) CreateWorker() Worker {
	f.created.Add(1)
	return &countingWorker{Worker: f.inner.CreateWorker(), f: f}
}

type countingWorker struct {
	Worker
	f *countingFactory
}

func (w *countingWorker) Release() {
	w.f.released.Add(1)
	w.Worker.Release()
}

func newScheduler(t *testing.T) (*ConnectionScheduler, *databasetest.Provider, *countingFactory) {
	t.Helper()
	provider := &databasetest.Provider{Conn: databasetest.NewConn()}
	workers := &countingFactory{inner: InlineWorkers}
	return New(provider, workers, WithLogger(zerolog.Nop())), provider, workers
}

func TestRun_PassesConnectionAndReleases(t *testing.T) {
	s, provider, workers := newScheduler(t)

	var got database.Conn
	err := s.Run(context.Background(), func(_ context.Context, conn database.Conn) error {
		got = conn
		return nil
	})

	require.NoError(t, err)
	assert.Same(t, provider.Conn, got)
	assert.Equal(t, 1, provider.Conn.Released())
	assert.EqualValues(t, 1, workers.created.Load())
	assert.EqualValues(t, 1, workers.released.Load())
}

func TestRun_ActionErrorReturnedUnchanged(t *testing.T) {
	s, provider, workers := newScheduler(t)
	boom := errors.New("boom")

	err := s.Run(context.Background(), func(context.Context, database.Conn) error { return boom })

	assert.Same(t, boom, err)
	assert.Equal(t, 1, provider.Conn.Released())
	assert.EqualValues(t, 1, workers.released.Load())
}

func TestRun_AcquireFailure(t *testing.T) {
	s, provider, workers := newScheduler(t)
	provider.Err = errors.New("pool exhausted")

	ran := false
	err := s.Run(context.Background(), func(context.Context, database.Conn) error {
		ran = true
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, provider.Err)
	assert.False(t, ran)
	assert.EqualValues(t, 1, workers.released.Load())
}

func TestRun_DoneContextSkipsAction(t *testing.T) {
	s, provider, _ := newScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := s.Run(ctx, func(context.Context, database.Conn) error {
		ran = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
	assert.Equal(t, 0, provider.Acquired())
}

func TestRun_PanicRecoveredAndLogged(t *testing.T) {
	var buf bytes.Buffer
	provider := &databasetest.Provider{Conn: databasetest.NewConn()}
	s := New(provider, nil, WithLogger(zerolog.New(&buf)))

	err := s.Run(context.Background(), func(context.Context, database.Conn) error {
		panic("kaput")
	})

	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "kaput", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.Equal(t, 1, provider.Conn.Released())
	assert.Contains(t, buf.String(), "scheduled action panicked")
}

func TestSchedule_ReportsErrorsAsynchronously(t *testing.T) {
	provider := &databasetest.Provider{Conn: databasetest.NewConn()}
	pool := GoroutineWorkers(2)
	s := New(provider, pool, WithLogger(zerolog.Nop()))
	boom := errors.New("boom")

	errs := make(chan error, 1)
	s.Schedule(context.Background(), func(err error) { errs <- err }, func(context.Context, database.Conn) error {
		return boom
	})

	select {
	case err := <-errs:
		assert.Same(t, boom, err)
	case <-time.After(time.Second):
		t.Fatal("onError was not called")
	}
	assert.Eventually(t, func() bool { return pool.Active() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, provider.Conn.Released())
}

func TestSchedule_SuccessDoesNotCallOnError(t *testing.T) {
	s, _, workers := newScheduler(t)

	called := false
	s.Schedule(context.Background(), func(error) { called = true }, func(context.Context, database.Conn) error {
		return nil
	})

	assert.False(t, called)
	assert.EqualValues(t, 1, workers.released.Load())
}

func TestGoroutineWorkers_BoundsConcurrency(t *testing.T) {
	pool := GoroutineWorkers(2)

	var (
		wg      sync.WaitGroup
		current atomic.Int32
		peak    atomic.Int32
		ran     atomic.Int32
	)
	for range 6 {
		wg.Add(1)
		w := pool.CreateWorker()
		w.ScheduleOnce(func() {
			defer wg.Done()
			defer w.Release()
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
			ran.Add(1)
		})
	}
	wg.Wait()

	assert.EqualValues(t, 6, ran.Load())
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.EqualValues(t, 0, pool.Active())
}

func TestGoroutineWorkers_ScheduleOnce(t *testing.T) {
	pool := GoroutineWorkers(1)
	w := pool.CreateWorker()

	var calls atomic.Int32
	done := make(chan struct{})
	w.ScheduleOnce(func() {
		calls.Add(1)
		close(done)
	})
	w.ScheduleOnce(func() { calls.Add(1) })

	<-done
	w.Release()
	w.Release()

	time.Sleep(10 * time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())
	assert.EqualValues(t, 0, pool.Active())
}
