package connector

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Konsultn-Engineering/daokit/database"
	"github.com/Konsultn-Engineering/daokit/dialect"
)

// PostgresConnector is a PostgreSQL pool on pgxpool.
type PostgresConnector struct {
	config   Config
	pool     *pgxpool.Pool
	dialect  dialect.Dialect
	acquires atomic.Int64
}

func connectPostgres(ctx context.Context, cfg Config) (Connection, error) {
	p := &PostgresConnector{
		config:  cfg,
		dialect: dialect.NewPostgresDialect(),
	}
	if err := p.connect(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// connect establishes the PostgreSQL pool and verifies it with a ping.
func (p *PostgresConnector) connect(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(postgresDSN(p.config))
	if err != nil {
		return err
	}

	cfg := p.config.Pool
	poolCfg.MaxConns = int32(cfg.MaxOpen)
	poolCfg.MinConns = int32(min(cfg.MaxIdle, cfg.MaxOpen))
	poolCfg.MaxConnLifetime = cfg.MaxLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxIdleTime
	if cfg.HealthCheckFreq > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckFreq
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return err
	}
	p.pool = pool
	return nil
}

// Acquire checks out a pooled connection.
func (p *PostgresConnector) Acquire(ctx context.Context) (database.Conn, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("not connected")
	}
	conn, err := retry(ctx, p.config.Retry, "acquire", p.pool.Acquire)
	if err != nil {
		return nil, err
	}
	p.acquires.Add(1)
	return database.NewPgxConn(conn), nil
}

// Dialect returns the PostgreSQL dialect.
func (p *PostgresConnector) Dialect() dialect.Dialect {
	return p.dialect
}

// Health checks the connection health.
func (p *PostgresConnector) Health(ctx context.Context) error {
	if p.pool == nil {
		return fmt.Errorf("not connected")
	}
	return p.pool.Ping(ctx)
}

// Stats returns connection pool statistics.
func (p *PostgresConnector) Stats() ConnectionStats {
	if p.pool == nil {
		return ConnectionStats{}
	}
	s := p.pool.Stat()
	return ConnectionStats{
		OpenConnections: int(s.TotalConns()),
		InUse:           int(s.AcquiredConns()),
		Idle:            int(s.IdleConns()),
		Acquires:        p.acquires.Load(),
	}
}

// Close closes the connection pool.
func (p *PostgresConnector) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	return nil
}
