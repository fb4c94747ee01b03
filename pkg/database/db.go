package database

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// APIKey represents the api_keys table
type APIKey struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Key        string     `gorm:"unique;not null" json:"-"`
	Name       string     `gorm:"not null" json:"name"`
	KeyPreview string     `json:"key_preview"`
	RateLimit  int        `gorm:"default:10000" json:"rate_limit"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsed   *time.Time `json:"last_used"`
	RevokedAt  *time.Time `json:"revoked_at"`
}

// APIUsage represents the api_usages table, one row per key per day
type APIUsage struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	KeyID            uint   `gorm:"uniqueIndex:idx_key_date;not null" json:"key_id"`
	Date             string `gorm:"uniqueIndex:idx_key_date;not null" json:"date"`
	RequestCount     int    `gorm:"default:0" json:"request_count"`
	TotalRecords     int    `gorm:"default:0" json:"total_records"`
	TotalAllocations int    `gorm:"default:0" json:"total_allocations"`
}

// MasterUser represents the master_users table
type MasterUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"unique;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// KVEntry represents the kv_entries table backing KVStore
type KVEntry struct {
	Key       string `gorm:"primaryKey"`
	Value     []byte
	UpdatedAt time.Time
}

// Options selects the database InitDB connects to
type Options struct {
	// DatabaseURL selects postgres when set
	DatabaseURL string
	// DataPath is the sqlite file used otherwise
	DataPath string
}

// gormLogger reports slow queries and errors, but not missing rows
func gormLogger(w io.Writer) logger.Interface {
	return logger.New(log.New(w, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// InitDB opens the database and migrates the schema
func InitDB(opts Options) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	if opts.DatabaseURL != "" {
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  opts.DatabaseURL,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
			Logger:      gormLogger(os.Stderr),
		})
	} else {
		dbPath := opts.DataPath
		if dbPath == "" {
			dbPath = "compass.db"
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: gormLogger(os.Stderr),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := db.AutoMigrate(&APIKey{}, &APIUsage{}, &MasterUser{}, &KVEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}
