// Package gorm provides the GORM persistence layer of activable.
package gorm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/thebtf/activable/pkg/activable"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrUnknownDriver is returned by NewStore for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown database driver")

// Store represents the GORM database connection.
type Store struct {
	healthCacheTime time.Time
	DB              *gorm.DB
	sqlDB           *sql.DB
	metrics         *PoolMetrics
	cachedHealth    *HealthInfo
	driver          string
	slowOperation   time.Duration
	healthCacheTTL  time.Duration
	healthCacheMu   sync.RWMutex
}

// Config holds database configuration.
type Config struct {
	Driver        string          // "postgres" (default) or "sqlite"
	DSN           string          // PostgreSQL DSN or SQLite file path
	MaxConns      int             // Maximum number of open connections (default: 10)
	LogLevel      logger.LogLevel // GORM log level (logger.Silent for production)
	SlowOperation time.Duration   // Operations slower than this are logged (default: 100ms)
}

func dialector(cfg Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	case DriverSQLite:
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// NewStore opens the database, registers the removal protection plugin and
// runs migrations.
func NewStore(cfg Config) (*Store, error) {
	dial, err := dialector(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}

	// 1. Open GORM
	db, err := gorm.Open(dial, &gorm.Config{
		Logger:      logger.Default.LogMode(cfg.LogLevel),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm %s: %w", dial.Name(), err)
	}

	// 2. Reject direct writes of removal markers
	if err := db.Use(activable.Protect{}); err != nil {
		return nil, fmt.Errorf("register protect plugin: %w", err)
	}

	// 3. Get underlying *sql.DB for pool configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 10
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(max(maxConns/2, 1))
	sqlDB.SetConnMaxLifetime(1 * time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	// 4. Verify connection
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", dial.Name(), err)
	}

	slow := cfg.SlowOperation
	if slow <= 0 {
		slow = 100 * time.Millisecond
	}

	store := &Store{
		DB:             db,
		sqlDB:          sqlDB,
		driver:         dial.Name(),
		slowOperation:  slow,
		metrics:        NewPoolMetrics(100),
		healthCacheTTL: 5 * time.Second,
	}

	// 5. Run migrations
	if err := runMigrations(db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// 6. Warm connection pool
	store.WarmPool(maxConns / 2)

	return store, nil
}

// WarmPool pre-creates connections to avoid cold start latency.
func (s *Store) WarmPool(numConns int) {
	if numConns <= 0 {
		return
	}

	var wg sync.WaitGroup
	for i := 0; i < numConns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			conn, err := s.sqlDB.Conn(ctx)
			if err != nil {
				return
			}
			_ = conn.PingContext(ctx)
			// Return connection to pool
			_ = conn.Close()
		}()
	}
	wg.Wait()
	log.Debug().Int("connections", numConns).Str("driver", s.driver).Msg("Connection pool warmed")
}

// Driver returns the name of the dialect in use.
func (s *Store) Driver() string {
	return s.driver
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping() error {
	return s.sqlDB.Ping()
}

// GetDB returns the GORM DB instance for standard queries.
func (s *Store) GetDB() *gorm.DB {
	return s.DB
}

// Stats returns database connection pool statistics.
func (s *Store) Stats() sql.DBStats {
	return s.sqlDB.Stats()
}

// Optimize runs ANALYZE to update query planner statistics.
func (s *Store) Optimize(ctx context.Context) error {
	start := time.Now()
	if err := s.DB.WithContext(ctx).Exec("ANALYZE").Error; err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	log.Debug().Dur("duration", time.Since(start)).Msg("Database optimization complete")
	return nil
}

// QueryTimeout constants for different operation types.
const (
	// DefaultQueryTimeout is the default timeout for regular queries.
	DefaultQueryTimeout = 5 * time.Second
	// FastQueryTimeout is for queries that should be very fast (health checks, etc).
	FastQueryTimeout = 1 * time.Second
	// SlowQueryTimeout is for mass removals and migrations.
	SlowQueryTimeout = 30 * time.Second
)

// WithTimeout wraps a context with the given timeout and logs slow operations.
// Returns the wrapped context and a cancel function that should be called when done.
func (s *Store) WithTimeout(ctx context.Context, timeout time.Duration, operation string) (context.Context, context.CancelFunc) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	start := time.Now()

	return timeoutCtx, func() {
		elapsed := time.Since(start)
		cancel()

		if elapsed > s.slowOperation {
			log.Warn().
				Str("operation", operation).
				Dur("elapsed", elapsed).
				Dur("timeout", timeout).
				Msg("Slow database operation")
		}
	}
}

// TransactionWithTimeout wraps a transaction function with timeout handling.
// The transaction is rolled back if the context times out.
func (s *Store) TransactionWithTimeout(ctx context.Context, timeout time.Duration, fn func(*gorm.DB) error) error {
	timeoutCtx, cancel := s.WithTimeout(ctx, timeout, "transaction")
	defer cancel()

	return s.DB.WithContext(timeoutCtx).Transaction(func(tx *gorm.DB) error {
		if err := timeoutCtx.Err(); err != nil {
			return err
		}
		return fn(tx)
	})
}
