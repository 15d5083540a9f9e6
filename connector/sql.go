package connector

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"net"
	"strconv"
	"sync/atomic"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/Konsultn-Engineering/daokit/database"
	"github.com/Konsultn-Engineering/daokit/dialect"
)

// SQLConnector is a database/sql pool, used for MySQL and SQLite.
type SQLConnector struct {
	config   Config
	db       *sql.DB
	dialect  dialect.Dialect
	acquires atomic.Int64
}

func connectMySQL(ctx context.Context, cfg Config) (Connection, error) {
	s, err := openSQL(ctx, cfg, "mysql", mysqlDSN(cfg), dialect.NewMySQLDialect())
	if err != nil {
		return nil, err
	}
	return s, nil
}

func connectSQLite(ctx context.Context, cfg Config) (Connection, error) {
	s, err := openSQL(ctx, cfg, "sqlite", sqliteDSN(cfg), dialect.NewSQLiteDialect())
	if err != nil {
		return nil, err
	}
	return s, nil
}

// mysqlDSN formats cfg through the driver's own config type.
func mysqlDSN(cfg Config) string {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Timeout = cfg.ConnectTimeout
	mc.TLSConfig = mysqlTLS(cfg.SSLMode)
	if len(cfg.Params) > 0 {
		mc.Params = maps.Clone(cfg.Params)
	}
	return mc.FormatDSN()
}

// mysqlTLS maps PostgreSQL-style ssl modes onto the driver's tls values.
func mysqlTLS(mode string) string {
	switch mode {
	case "", "disable":
		return ""
	case "require", "verify-ca", "verify-full":
		return "true"
	case "allow", "prefer":
		return "preferred"
	default:
		return mode
	}
}

// sqliteDSN is the database file followed by driver parameters such as
// _pragma=foreign_keys(1).
func sqliteDSN(cfg Config) string {
	if query := encodeParams(cfg.Params); query != "" {
		return cfg.Database + "?" + query
	}
	return cfg.Database
}

func openSQL(ctx context.Context, cfg Config, driver, dsn string, d dialect.Dialect) (*SQLConnector, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Pool.MaxOpen)
	db.SetMaxIdleConns(cfg.Pool.MaxIdle)
	db.SetConnMaxLifetime(cfg.Pool.MaxLifetime)
	db.SetConnMaxIdleTime(cfg.Pool.MaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLConnector{config: cfg, db: db, dialect: d}, nil
}

// Acquire checks out a dedicated connection from the pool.
func (s *SQLConnector) Acquire(ctx context.Context) (database.Conn, error) {
	conn, err := retry(ctx, s.config.Retry, "acquire", s.db.Conn)
	if err != nil {
		return nil, err
	}
	s.acquires.Add(1)
	return database.NewSqlConn(conn), nil
}

func (s *SQLConnector) Dialect() dialect.Dialect { return s.dialect }

// DB exposes the underlying pool for migrations and ad-hoc statements.
func (s *SQLConnector) DB() *sql.DB { return s.db }

func (s *SQLConnector) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLConnector) Stats() ConnectionStats {
	st := s.db.Stats()
	return ConnectionStats{
		OpenConnections: st.OpenConnections,
		InUse:           st.InUse,
		Idle:            st.Idle,
		Acquires:        s.acquires.Load(),
	}
}

func (s *SQLConnector) Close() error {
	return s.db.Close()
}

var (
	_ Connection = (*SQLConnector)(nil)
	_ Connection = (*PostgresConnector)(nil)
)
