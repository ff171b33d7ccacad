// Package gormstore persists items and packages in a relational database
// (PostgreSQL or SQLite) through gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashendes/rental-inventory/internal/apperr"
	"github.com/ashendes/rental-inventory/internal/models"
	"github.com/ashendes/rental-inventory/internal/repository"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// PostgreSQL error codes translated at the repository edge
const (
	pgErrNotNullViolation    = "23502" // not_null_violation
	pgErrForeignKeyViolation = "23503" // foreign_key_violation
	pgErrUniqueViolation     = "23505" // unique_violation
	pgErrCheckViolation      = "23514" // check_violation
)

// Options configures the connection
type Options struct {
	Driver          string
	DSN             string
	ConnectAttempts int
	RetryDelay      time.Duration
	MaxOpenConns    int
	LogSQL          bool
}

// Store is a repository.Store backed by gorm
type Store struct {
	db       *gorm.DB
	driver   string
	items    *itemRepository
	packages *packageRepository
}

var _ repository.Store = (*Store)(nil)

// Open connects, retrying while the database comes up, and migrates the schema
func Open(opts Options) (*Store, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case DriverPostgres:
		dialector = postgres.Open(opts.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported relational driver %q", opts.Driver)
	}

	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// SQLite errors carry no portable codes, so let the dialector map them
		TranslateError: opts.Driver == DriverSQLite,
	}
	if opts.LogSQL {
		config.Logger = logger.Default.LogMode(logger.Info)
	}

	attempts := opts.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < attempts; i++ {
		db, err = gorm.Open(dialector, config)
		if err == nil {
			break
		}
		log.WithFields(log.Fields{
			"driver":  opts.Driver,
			"attempt": i + 1,
			"error":   err.Error(),
		}).Warn("Database connection failed")
		if i < attempts-1 {
			time.Sleep(opts.RetryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", opts.Driver, err)
	}

	if opts.MaxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("connection pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := db.AutoMigrate(
		&models.Item{},
		&models.ItemRate{},
		&models.Package{},
		&models.PackageItem{},
		&models.PackageRate{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	log.WithField("driver", opts.Driver).Info("Connected to database")

	return &Store{
		db:       db,
		driver:   opts.Driver,
		items:    &itemRepository{db: db},
		packages: &packageRepository{db: db},
	}, nil
}

func (s *Store) Items() repository.ItemRepository       { return s.items }
func (s *Store) Packages() repository.PackageRepository { return s.packages }
func (s *Store) Driver() string                         { return s.driver }

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translate turns a storage error into an *apperr.Error. what names the
// entity for not-found messages.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s not found", what)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Validation("Validation failed", "duplicate key")
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return apperr.Validation("Validation failed", "referenced record does not exist")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrUniqueViolation, pgErrForeignKeyViolation, pgErrNotNullViolation, pgErrCheckViolation:
			detail := pgErr.Detail
			if detail == "" {
				detail = pgErr.Message
			}
			return apperr.Validation("Validation failed", detail)
		}
	}

	return apperr.Unexpected("Storage failure", err)
}

// likePattern builds a case-insensitive LIKE pattern matching s anywhere
func likePattern(s string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(s))
	return "%" + escaped + "%"
}
