package db

import (
	"database/sql"
	"fmt"

	"github.com/SIMPLYBOYS/pay_usdc/internal/config"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// DBServiceImpl implements the DBService interface
type DBServiceImpl struct {
	db *sql.DB
}

var _ DBService = (*DBServiceImpl)(nil)

type DBOperations interface {
	Open(driverName, dataSourceName string) (*sql.DB, error)
	RunMigrations(db *sql.DB) error
}

// PostgresOperations opens lib/pq connections and migrates from a source URL
// such as "file://migrations".
type PostgresOperations struct {
	MigrationsPath string
}

func (o PostgresOperations) Open(driverName, dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

func (o PostgresOperations) RunMigrations(db *sql.DB) error {
	return RunMigrations(db, o.MigrationsPath)
}

// NewDBService creates and returns a new DBService
func NewDBService(ops DBOperations, cfg config.DatabaseConfig) (*DBServiceImpl, error) {
	db, err := ops.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := ops.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DBServiceImpl{db: db}, nil
}

func (s *DBServiceImpl) Close() error {
	return s.db.Close()
}
