package connector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Konsultn-Engineering/daokit/dialect"
)

var globalManager = &Manager{
	providers: map[string]Provider{
		"postgres": ProviderFunc{ConnectFunc: connectPostgres, SQLDialect: dialect.NewPostgresDialect()},
		"mysql":    ProviderFunc{ConnectFunc: connectMySQL, SQLDialect: dialect.NewMySQLDialect()},
		"sqlite":   ProviderFunc{ConnectFunc: connectSQLite, SQLDialect: dialect.NewSQLiteDialect()},
	},
}

// Manager is the driver registry.
type Manager struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

// Register adds or replaces the provider for a driver name.
func Register(name string, provider Provider) {
	globalManager.mu.Lock()
	defer globalManager.mu.Unlock()
	globalManager.providers[name] = provider
}

// Drivers lists the registered driver names.
func Drivers() []string {
	globalManager.mu.RLock()
	defer globalManager.mu.RUnlock()
	names := make([]string, 0, len(globalManager.providers))
	for name := range globalManager.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open validates config and connects through the provider registered for
// config.Driver, retrying per config.Retry.
func Open(ctx context.Context, config Config) (Connection, error) {
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	globalManager.mu.RLock()
	provider, ok := globalManager.providers[config.Driver]
	globalManager.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider %s not registered", config.Driver)
	}

	if config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.ConnectTimeout)
		defer cancel()
	}

	conn, err := retry(ctx, config.Retry, "connect", func(ctx context.Context) (Connection, error) {
		return provider.Connect(ctx, config)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.Driver, err)
	}
	log.Info().
		Str("driver", config.Driver).
		Str("host", config.Host).
		Str("database", config.Database).
		Msg("database connected")
	return conn, nil
}
