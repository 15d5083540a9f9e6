// Package dao binds compiled queries to a connection scheduler and a row
// deserializer, giving typed read queries and transactional updates.
package dao

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Konsultn-Engineering/daokit/cache"
	"github.com/Konsultn-Engineering/daokit/dialect"
	"github.com/Konsultn-Engineering/daokit/mapper"
	"github.com/Konsultn-Engineering/daokit/query"
	"github.com/Konsultn-Engineering/daokit/scheduler"
	"github.com/Konsultn-Engineering/daokit/tx"
)

const defaultQueryCacheSize = 512

type queryKey struct {
	source   string
	template string
}

// Runtime is shared by every query and update of one database.
type Runtime struct {
	sched   *scheduler.ConnectionScheduler
	decoder *mapper.Deserializer
	dialect dialect.Dialect
	queries *cache.LRU[queryKey, *query.CompiledQuery]
	timeout time.Duration
	log     zerolog.Logger
}

type Option func(*Runtime)

func WithLogger(l zerolog.Logger) Option {
	return func(r *Runtime) { r.log = l }
}

// WithDialect sets the placeholder style templates are compiled for.
func WithDialect(d dialect.Dialect) Option {
	return func(r *Runtime) {
		if d != nil {
			r.dialect = d
		}
	}
}

func WithDeserializer(d *mapper.Deserializer) Option {
	return func(r *Runtime) {
		if d != nil {
			r.decoder = d
		}
	}
}

// WithQueryTimeout bounds every query and update issued through the runtime.
// Zero means no timeout.
func WithQueryTimeout(d time.Duration) Option {
	return func(r *Runtime) { r.timeout = d }
}

func WithQueryCacheSize(n int) Option {
	return func(r *Runtime) { r.queries = cache.NewLRU[queryKey, *query.CompiledQuery](n) }
}

func New(sched *scheduler.ConnectionScheduler, opts ...Option) *Runtime {
	r := &Runtime{
		sched:   sched,
		decoder: mapper.Default,
		dialect: dialect.Standard,
		log:     log.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.queries == nil {
		r.queries = cache.NewLRU[queryKey, *query.CompiledQuery](defaultQueryCacheSize)
	}
	return r
}

func (r *Runtime) Scheduler() *scheduler.ConnectionScheduler { return r.sched }
func (r *Runtime) Dialect() dialect.Dialect                  { return r.dialect }
func (r *Runtime) Deserializer() *mapper.Deserializer        { return r.decoder }

// Compile returns the compiled form of template for m, compiling it once per
// method source and template text.
func (r *Runtime) Compile(template string, m query.Method) (*query.CompiledQuery, error) {
	key := queryKey{source: m.Source(), template: template}
	return r.queries.GetOrCreate(key, func() (*query.CompiledQuery, error) {
		q, err := query.Compile(template, m, query.WithDialect(r.dialect))
		if err != nil {
			return nil, err
		}
		r.log.Debug().Str("source", q.Source()).Str("sql", q.String()).Msg("query compiled")
		return q, nil
	})
}

// bind binds args to q and logs the statement with its arguments inlined.
func (r *Runtime) bind(q *query.CompiledQuery, args []any) (*query.Statement, error) {
	stmt, err := q.Bind(args...)
	if err != nil {
		return nil, err
	}
	if e := r.log.Debug(); e.Enabled() {
		e.Str("source", stmt.Source()).Str("sql", stmt.Inline()).Msg("query bound")
	}
	return stmt, nil
}

// Compiled reports how many templates are cached.
func (r *Runtime) Compiled() int { return r.queries.Len() }

// Transaction groups units on the runtime's scheduler.
func (r *Runtime) Transaction(units ...*tx.Unit) (*tx.Transaction, error) {
	t, err := tx.New(r.sched, units...)
	if err != nil {
		return nil, err
	}
	return t.WithLogger(r.log), nil
}

func (r *Runtime) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}
