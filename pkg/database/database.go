package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/biodoia/nutrillm/pkg/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config contiene la configurazione del database
type Config struct {
	Type       string `yaml:"type" mapstructure:"type"`             // "postgres" or "sqlite"
	Connection string `yaml:"connection" mapstructure:"connection"` // Connection string
	MaxConns   int    `yaml:"max_conns" mapstructure:"max_conns"`
	LogLevel   string `yaml:"log_level" mapstructure:"log_level"`
}

// DB wrappa la connessione GORM
type DB struct {
	*gorm.DB
}

// New crea una nuova connessione al database
func New(cfg *Config) (*DB, error) {
	var dialector gorm.Dialector

	switch cfg.Type {
	case "postgres":
		dialector = postgres.Open(cfg.Connection)
	case "sqlite":
		dialector = sqlite.Open(cfg.Connection)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	logLevel := logger.Silent
	switch cfg.LogLevel {
	case "info":
		logLevel = logger.Info
	case "warn":
		logLevel = logger.Warn
	case "error":
		logLevel = logger.Error
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	switch {
	case cfg.Type == "sqlite" && strings.Contains(cfg.Connection, ":memory:"):
		// ogni connessione a :memory: è un database diverso
		sqlDB.SetMaxOpenConns(1)
	case cfg.MaxConns > 0:
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
		sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &DB{DB: db}, nil
}

// AutoMigrate crea o aggiorna le tabelle della memoria
func (db *DB) AutoMigrate() error {
	return db.DB.AutoMigrate(
		&models.ConversationTurn{},
		&models.Profile{},
	)
}

// Ping verifica che il database risponda
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close chiude la connessione al database
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
