package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB bundles the Ent SQL driver with the handles it wraps.
type DB struct {
	Driver  *entsql.Driver
	Dialect string
	sqlDB   *sql.DB
	pool    *pgxpool.Pool // nil for SQLite
}

// IsPostgresDSN reports whether dsn targets Postgres; anything else is treated as SQLite.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to Postgres (pgx pool) or SQLite (modernc) depending on the DSN,
// wraps the connection for Ent and creates the schema if missing.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}

	var (
		db  *DB
		err error
	)
	if IsPostgresDSN(cfg.DSN) {
		db, err = openPostgres(ctx, cfg, logger)
	} else {
		db, err = openSQLite(cfg, logger)
	}
	if err != nil {
		return nil, err
	}

	if err := db.HealthCheck(ctx, cfg.DialTimeout, logger); err != nil {
		db.Close(logger)
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := Migrate(ctx, db.Driver); err != nil {
		logger.Error("failed to migrate database", "error", err)
		db.Close(logger)
		return nil, err
	}
	logger.Info("successfully connected to database", "dialect", db.Dialect)
	return db, nil
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "dialect", dialect.Postgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database dsn", "error", err)
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "studynotes"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	dctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	// Wrap pool as *sql.DB for Ent
	sqlDB := stdlib.OpenDBFromPool(pool)
	return &DB{
		Driver:  entsql.OpenDB(dialect.Postgres, sqlDB),
		Dialect: dialect.Postgres,
		sqlDB:   sqlDB,
		pool:    pool,
	}, nil
}

func openSQLite(cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "dialect", dialect.SQLite, "dsn", cfg.DSN)
	sqlDB, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		logger.Error("failed to open sqlite database", "error", err)
		return nil, err
	}
	// one writer; also keeps ":memory:" databases on a single connection
	sqlDB.SetMaxOpenConns(1)
	if cfg.MaxConnIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
	}
	return &DB{
		Driver:  entsql.OpenDB(dialect.SQLite, sqlDB),
		Dialect: dialect.SQLite,
		sqlDB:   sqlDB,
	}, nil
}

// Close closes the database connections gracefully
func (db *DB) Close(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("closing database connections")
	if db.Driver != nil {
		if err := db.Driver.Close(); err != nil {
			logger.Error("failed to close ent driver", "error", err)
		}
	}
	if db.pool != nil {
		db.pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	logger.Debug("pinging database")
	if db.pool != nil {
		if err := db.pool.Ping(ctx); err != nil {
			return err
		}
	} else if err := db.sqlDB.PingContext(ctx); err != nil {
		return err
	}
	logger.Debug("database ping successful")
	return nil
}
