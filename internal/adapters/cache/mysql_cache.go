package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/ransomware-detector/internal/core"
	"go.uber.org/zap"
)

const mysqlTimeLayout = "2006-01-02 15:04:05.000000"

// MySQLCache is a MySQL implementation of the CacheRepository interface.
// Timestamps are stored in UTC.
type MySQLCache struct {
	db     *sql.DB
	logger *zap.Logger
	stopCh chan struct{}
	once   sync.Once
}

// NewMySQLCache creates a new MySQL cache
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sample_cache (
			sha256 CHAR(64) PRIMARY KEY,
			filename VARCHAR(255),
			label VARCHAR(32),
			probability DOUBLE,
			features MEDIUMTEXT,
			last_seen DATETIME(6),
			expires_at DATETIME(6),
			INDEX idx_sample_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	cache := &MySQLCache{
		db:     db,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	go runCleanup(cache, cleanupFreq, cache.stopCh, logger)

	return cache, nil
}

// Get retrieves a cached verdict for a digest
func (c *MySQLCache) Get(ctx context.Context, sha256 string) (*core.CacheEntry, error) {
	var (
		entry               core.CacheEntry
		features            string
		lastSeen, expiresAt string
	)

	err := c.db.QueryRowContext(ctx, `
		SELECT sha256, filename, label, probability, features,
			DATE_FORMAT(last_seen, '%Y-%m-%d %H:%i:%s.%f'),
			DATE_FORMAT(expires_at, '%Y-%m-%d %H:%i:%s.%f')
		FROM sample_cache
		WHERE sha256 = ? AND expires_at > UTC_TIMESTAMP(6)
	`, sha256).Scan(&entry.SHA256, &entry.Filename, &entry.Label, &entry.Probability,
		&features, &lastSeen, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	if err := json.Unmarshal([]byte(features), &entry.Features); err != nil {
		return nil, fmt.Errorf("failed to decode cached features: %w", err)
	}

	entry.LastSeen, err = time.Parse(mysqlTimeLayout, lastSeen)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_seen timestamp: %w", err)
	}
	entry.ExpiresAt, err = time.Parse(mysqlTimeLayout, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expires_at timestamp: %w", err)
	}

	return &entry, nil
}

// Set stores a cache entry
func (c *MySQLCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	features, err := json.Marshal(entry.Features)
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO sample_cache (sha256, filename, label, probability, features, last_seen, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			filename = VALUES(filename),
			label = VALUES(label),
			probability = VALUES(probability),
			features = VALUES(features),
			last_seen = VALUES(last_seen),
			expires_at = VALUES(expires_at)
	`, entry.SHA256, entry.Filename, entry.Label, entry.Probability, string(features),
		entry.LastSeen.UTC().Format(mysqlTimeLayout), entry.ExpiresAt.UTC().Format(mysqlTimeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}

	return nil
}

// Delete removes a cache entry
func (c *MySQLCache) Delete(ctx context.Context, sha256 string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM sample_cache WHERE sha256 = ?`, sha256); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (c *MySQLCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM sample_cache WHERE expires_at <= UTC_TIMESTAMP(6)`)
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (c *MySQLCache) Stop() {
	c.once.Do(func() {
		close(c.stopCh)
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close MySQL database", zap.Error(err))
		}
	})
}
