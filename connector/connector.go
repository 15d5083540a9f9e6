// Package connector opens pooled database connections from configuration and
// exposes them as connection providers for the scheduler.
package connector

import (
	"context"

	"github.com/Konsultn-Engineering/daokit/database"
	"github.com/Konsultn-Engineering/daokit/dialect"
)

// Connection is an open pool. Acquire checks out one connection, retrying
// per the configured RetryConfig.
type Connection interface {
	Acquire(ctx context.Context) (database.Conn, error)
	Dialect() dialect.Dialect
	Health(ctx context.Context) error
	Stats() ConnectionStats
	Close() error
}

// Provider opens connections for one driver.
type Provider interface {
	Connect(ctx context.Context, config Config) (Connection, error)
	Dialect() dialect.Dialect
}

// ProviderFunc adapts a connect function and its dialect to Provider.
type ProviderFunc struct {
	ConnectFunc func(ctx context.Context, config Config) (Connection, error)
	SQLDialect  dialect.Dialect
}

func (p ProviderFunc) Connect(ctx context.Context, config Config) (Connection, error) {
	return p.ConnectFunc(ctx, config)
}

func (p ProviderFunc) Dialect() dialect.Dialect { return p.SQLDialect }
