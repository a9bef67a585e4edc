package database

import (
	"fmt"
	"log"

	"github.com/depinlaunch/web-backend/config"
	"github.com/depinlaunch/web-backend/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the shared connection pool. Handlers and services receive a
// *Store explicitly; there is no package-level client.
type Store struct {
	db *gorm.DB
}

// Open connects to MySQL/MariaDB and runs migrations.
func Open(conf *config.Config) (*Store, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		conf.DBUser, conf.DBPassword, conf.DBHost, conf.DBPort, conf.DBName)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db}
	if err := s.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Successfully connected to the database and ran migrations")
	return s, nil
}

// Migrate runs the auto-migration for all models.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Credential{},
		&models.Instance{},
		&models.Transaction{},
		&models.BillingLog{},
	); err != nil {
		return fmt.Errorf("error migrating database: %w", err)
	}
	return nil
}
