// Package store persists sessions, answers and form analytics through gorm.
// DATABASE_URL selects the backend: postgres:// URLs use Postgres,
// sqlite://path uses a SQLite file.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"voice-forms-go/internal/logger"
)

var (
	ErrNotFound         = errors.New("store: not found")
	ErrSessionCompleted = errors.New("store: response session already completed")
)

type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open connects to dsn and applies migrations.
func Open(dsn string, log *logger.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is not defined")
	}

	config := &gorm.Config{
		PrepareStmt: true,
		Logger:      gormlogger.Default.LogMode(gormlogger.Error),
		NowFunc:     func() time.Time { return time.Now().UTC() },
	}

	isSQLite := strings.HasPrefix(dsn, "sqlite://")
	var dialector gorm.Dialector
	if isSQLite {
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
	} else {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if isSQLite {
		// sqlite allows one writer; a single connection avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.WithField("sqlite", isSQLite).Info("database ready")
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
