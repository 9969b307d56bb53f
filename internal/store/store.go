package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jonboulle/clockwork"
)

type Driver string

const (
	DriverDuckDB   Driver = "duckdb"
	DriverPostgres Driver = "postgres"
)

const (
	defaultQueryTimeout = 10 * time.Second
	defaultMaxRows      = 500
	defaultMaxOpenConns = 3
	defaultMaxIdleConns = 1
	defaultConnMaxIdle  = 60 * time.Second
)

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock

	Driver Driver
	// DSN is a postgres connection string, or a DuckDB file path. An empty
	// DuckDB DSN opens an in-memory database.
	DSN string

	QueryTimeout time.Duration
	MaxRows      int
	MaxOpenConns int
	MaxIdleConns int
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	c.Driver = Driver(strings.ToLower(string(c.Driver)))
	switch c.Driver {
	case "":
		c.Driver = DriverDuckDB
	case DriverDuckDB:
	case DriverPostgres, "postgresql", "pgx":
		c.Driver = DriverPostgres
		if c.DSN == "" {
			return errors.New("postgres DSN is required")
		}
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = defaultQueryTimeout
	}
	if c.MaxRows == 0 {
		c.MaxRows = defaultMaxRows
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = defaultMaxOpenConns
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = defaultMaxIdleConns
	}
	return nil
}

// Store is the relational backend holding patient records, the statistics
// view and the conversation log.
type Store struct {
	log *slog.Logger
	cfg Config
	db  *sql.DB
}

func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate store config: %w", err)
	}

	driverName := "duckdb"
	if cfg.Driver == DriverPostgres {
		driverName = "pgx"
	}
	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxIdleTime(defaultConnMaxIdle)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Driver, err)
	}

	cfg.Logger.Info("store: connected", "driver", cfg.Driver, "maxOpenConns", cfg.MaxOpenConns)
	return &Store{log: cfg.Logger, cfg: cfg, db: db}, nil
}

func (s *Store) Driver() Driver {
	return s.cfg.Driver
}

// DB exposes the pool for packages that scan typed rows.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
