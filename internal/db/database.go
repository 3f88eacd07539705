package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite" // Pure-Go SQLite-Treiber
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mood-mirror-go/config"
	"mood-mirror-go/internal/db/models"
)

// Open öffnet die SQLite-Datenbank und führt die Migrationen aus.
// Die Verbindung wird explizit an die Aufrufer übergeben.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	if cfg.File != "" && cfg.File != ":memory:" {
		dbDir := filepath.Dir(cfg.File)
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// GORM loggt über den konfigurierten logrus-Logger
	gormLogger := logger.New(
		log.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second * 2,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Infof("Connecting to database: %s", cfg.File)
	conn, err := gorm.Open(sqlite.Open(cfg.File), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := conn.AutoMigrate(&models.Detection{}); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	log.Info("Database connection established and migrated")
	return conn, nil
}
