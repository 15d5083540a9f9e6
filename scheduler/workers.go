package scheduler

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// InlineWorkers runs every function on the goroutine that schedules it.
var InlineWorkers WorkerFactory = inlineFactory{}

type inlineFactory struct{}

func (inlineFactory) CreateWorker() Worker { return inlineWorker{} }

type inlineWorker struct{}

func (inlineWorker) ScheduleOnce(fn func()) { fn() }
func (inlineWorker) Release()               {}

// Pool starts one goroutine per worker and lets at most n of them run at
// once.
type Pool struct {
	sem    *semaphore.Weighted
	active atomic.Int64
}

// GoroutineWorkers creates a Pool of size n. A non-positive n uses GOMAXPROCS.
func GoroutineWorkers(n int) *Pool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(n))}
}

func (p *Pool) CreateWorker() Worker {
	p.active.Add(1)
	return &poolWorker{pool: p}
}

// Active is the number of created workers not yet released.
func (p *Pool) Active() int64 { return p.active.Load() }

type poolWorker struct {
	pool      *Pool
	scheduled atomic.Bool
	release   sync.Once
}

// ScheduleOnce ignores every call after the first.
func (w *poolWorker) ScheduleOnce(fn func()) {
	if !w.scheduled.CompareAndSwap(false, true) {
		return
	}
	go func() {
		// Acquire only fails on a done context.
		_ = w.pool.sem.Acquire(context.Background(), 1)
		defer w.pool.sem.Release(1)
		fn()
	}()
}

func (w *poolWorker) Release() {
	w.release.Do(func() { w.pool.active.Add(-1) })
}
