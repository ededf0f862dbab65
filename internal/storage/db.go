package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection and provides health checks
type DB struct {
	conn *sqlx.DB

	// Cache for frequently accessed data
	workspaceCache *LRUCache
	toolCache      *LRUCache
}

// DBConfig holds database configuration
type DBConfig struct {
	// Connection settings
	DSN string

	// Pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Cache settings
	WorkspaceCacheSize int
	WorkspaceCacheTTL  time.Duration
	ToolCacheSize      int
	ToolCacheTTL       time.Duration
}

// DefaultDBConfig returns default database configuration
func DefaultDBConfig() DBConfig {
	return DBConfig{
		DSN: "postgres://postgres@localhost:5432/promptdeck?sslmode=disable",

		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,

		WorkspaceCacheSize: 1000,
		WorkspaceCacheTTL:  1 * time.Minute,
		ToolCacheSize:      500,
		ToolCacheTTL:       5 * time.Minute,
	}
}

// NewDB creates a new database connection with caching
func NewDB(cfg DBConfig) (*DB, error) {
	conn, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	db := &DB{
		conn:           conn,
		workspaceCache: NewLRUCache(cfg.WorkspaceCacheSize, cfg.WorkspaceCacheTTL),
		toolCache:      NewLRUCache(cfg.ToolCacheSize, cfg.ToolCacheTTL),
	}

	return db, nil
}

// Close closes the database connection and clears caches
func (db *DB) Close() error {
	db.workspaceCache.Clear()
	db.toolCache.Clear()
	return db.conn.Close()
}

// Ping checks if the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Health returns the health status of the database
func (db *DB) Health(ctx context.Context) error {
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := db.conn.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("health check query failed: %w", err)
	}

	return nil
}

// GetWorkspaceCache returns the workspace cache
func (db *DB) GetWorkspaceCache() *LRUCache {
	return db.workspaceCache
}

// GetToolCache returns the tool cache
func (db *DB) GetToolCache() *LRUCache {
	return db.toolCache
}
