package postgres

import (
	"context"
	"fmt"
	"github.com/jackc/pgx/v5/pgxpool"
	"os"
)

// Storage instance for processing sql queries
type Storage struct {
	dbPool *pgxpool.Pool
}

// Simple helper function to read an environment or return a default value
func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// New opens a connection pool, falling back to DB_* environment when storagePath is empty
func New(ctx context.Context, storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	if storagePath == "" {
		storagePath = ConnStringFromEnv()
	}
	dbPool, err := pgxpool.New(ctx, storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: error connecting to database: %w", op, err)
	}
	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{dbPool: dbPool}, nil
}

// ConnStringFromEnv constructs the database connection string from DB_* variables
func ConnStringFromEnv() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASS", "postgres"),
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_NAME", "sw360auth"),
	)
}

// Pool exposes the underlying pool for repositories
func (s *Storage) Pool() *pgxpool.Pool {
	return s.dbPool
}

// CloseStorage ends database pool connection
func (s *Storage) CloseStorage() {
	s.dbPool.Close()
}
