// Package daokit opens a configured database and wires its pool, connection
// scheduler and deserializer into a dao.Runtime.
package daokit

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Konsultn-Engineering/daokit/connector"
	"github.com/Konsultn-Engineering/daokit/dao"
	"github.com/Konsultn-Engineering/daokit/mapper"
	"github.com/Konsultn-Engineering/daokit/scheduler"
)

type Config = connector.Config

// DB is an open database with its runtime.
type DB struct {
	*dao.Runtime
	conn    connector.Connection
	workers *scheduler.Pool
}

type Option func(*options)

type options struct {
	log     zerolog.Logger
	workers int
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithWorkers bounds how many scheduled actions hold a connection at once.
// It defaults to the pool's MaxOpen.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// Connect opens cfg.Driver and returns a runtime compiling for its dialect.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*DB, error) {
	o := options{log: log.Logger, workers: cfg.Pool.MaxOpen}
	for _, opt := range opts {
		opt(&o)
	}

	conn, err := connector.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger := o.log.With().Str("driver", cfg.Driver).Logger()
	workers := scheduler.GoroutineWorkers(o.workers)
	sched := scheduler.New(conn, workers, scheduler.WithLogger(logger))
	rt := dao.New(sched,
		dao.WithDialect(conn.Dialect()),
		dao.WithDeserializer(mapper.New(mapper.WithLogger(logger))),
		dao.WithQueryTimeout(cfg.QueryTimeout),
		dao.WithLogger(logger),
	)
	return &DB{Runtime: rt, conn: conn, workers: workers}, nil
}

// Open loads the YAML file at path, applies DAOKIT_* overrides and connects.
func Open(ctx context.Context, path string, opts ...Option) (*DB, error) {
	cfg, err := connector.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return Connect(ctx, *cfg, opts...)
}

func (db *DB) Connection() connector.Connection { return db.conn }

func (db *DB) Health(ctx context.Context) error { return db.conn.Health(ctx) }

func (db *DB) Stats() connector.ConnectionStats { return db.conn.Stats() }

// ActiveWorkers reports how many scheduled actions are running.
func (db *DB) ActiveWorkers() int64 { return db.workers.Active() }

func (db *DB) Close() error { return db.conn.Close() }
