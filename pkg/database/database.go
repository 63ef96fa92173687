package database

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"ipo-reminder-backend/internal/notification/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// successfulLogIndex keeps at most one successful ledger row per pair
const successfulLogIndex = `CREATE UNIQUE INDEX IF NOT EXISTS uniq_notification_log_success
ON notification_log (ipo_id, fcm_token_id, notification_type) WHERE success`

// NewConnection opens the database named by url. postgres:// and
// postgresql:// URLs use the Postgres driver, sqlite:// URLs (and SQLAlchemy
// style sqlite:///path) use the pure Go SQLite driver.
func NewConnection(url string) (*gorm.DB, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return NewPostgresConnection(url)
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		// sqlite:///ipos.db names a relative file, sqlite:////tmp/x.db an absolute one
		if strings.HasPrefix(path, "/") {
			path = path[1:]
		}
		return NewSQLiteConnection(path)
	default:
		return nil, fmt.Errorf("unsupported database url scheme: %q", url)
	}
}

func NewPostgresConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// NewSQLiteConnection opens path with foreign keys enforced. SQLite allows a
// single writer, so the pool is pinned to one connection and writers queue
// instead of failing with SQLITE_BUSY.
func NewSQLiteConnection(path string) (*gorm.DB, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func gormConfig() *gorm.Config {
	gormLogger := logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
	return &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Migrate creates or updates the notification schema
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.IPO{},
		&domain.FCMToken{},
		&domain.Preference{},
		&domain.NotificationLog{},
		&domain.DispatchLease{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := db.Exec(successfulLogIndex).Error; err != nil {
		return fmt.Errorf("failed to create ledger index: %w", err)
	}
	return nil
}
