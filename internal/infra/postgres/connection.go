// Package postgres stores documents of every collection in one JSONB table
// and translates filter expressions into parameterized SQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"docquery-service/internal/infra/postgres/migrations"
)

// Config holds database connection configuration.
type Config struct {
	Host         string
	Port         int
	Name         string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// slowQueryThreshold marks queries that gorm reports as slow.
const slowQueryThreshold = 500 * time.Millisecond

// zapWriter routes gorm's log lines to zap.
type zapWriter struct {
	logger *zap.SugaredLogger
}

func (w zapWriter) Printf(format string, args ...any) {
	w.logger.Warnf(format, args...)
}

// NewConnection creates a new GORM database connection. Gorm warnings and
// slow queries are logged through logger when it is non-nil.
func NewConnection(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	gormLogger := gormlogger.Discard
	if logger != nil {
		gormLogger = gormlogger.New(zapWriter{logger: logger.Named("gorm").Sugar()}, gormlogger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	// Filter SQL differs per request shape, so statements are not cached.
	gormConfig := &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if logger != nil {
		logger.Info("database connection established",
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
			zap.String("database", cfg.Name),
		)
	}

	return db, nil
}

// Open connects, applies pending migrations and returns the store.
func Open(cfg Config, logger *zap.Logger) (*Store, *gorm.DB, error) {
	db, err := NewConnection(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	if err := migrations.Run(db); err != nil {
		_ = Close(db)
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	return NewStore(db), db, nil
}

// Close closes the database connection.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// HealthCheck verifies the database connection is alive.
func HealthCheck(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}
