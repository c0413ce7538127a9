package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLStorage is a SQL-backed key-value backend. It works with any
// database/sql compatible driver (PostgreSQL, MySQL, SQLite) and a table
// with schema:
//
//	CREATE TABLE vueuse_kv (
//	    k TEXT PRIMARY KEY,
//	    v TEXT NOT NULL,
//	    updated_at TIMESTAMP
//	);
//
// Migrate creates the table when it doesn't exist. SQLStorage does not
// emit native change events; same-process synchronization still works
// through the event bus.
type SQLStorage struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect
	timeout   time.Duration
}

// SQLDialect selects the placeholder and upsert syntax.
type SQLDialect int

const (
	// DialectPostgreSQL uses $1, $2 placeholders and ON CONFLICT upserts.
	DialectPostgreSQL SQLDialect = iota
	// DialectMySQL uses ? placeholders and ON DUPLICATE KEY upserts.
	DialectMySQL
	// DialectSQLite uses ? placeholders and INSERT OR REPLACE.
	DialectSQLite
)

// SQLStorageOption configures SQLStorage.
type SQLStorageOption func(*sqlStorageConfig)

type sqlStorageConfig struct {
	tableName string
	dialect   SQLDialect
	timeout   time.Duration
}

// WithSQLTableName sets the table name. Default: "vueuse_kv".
func WithSQLTableName(name string) SQLStorageOption {
	return func(c *sqlStorageConfig) {
		c.tableName = name
	}
}

// WithSQLDialect sets the SQL dialect. Default: DialectSQLite.
func WithSQLDialect(dialect SQLDialect) SQLStorageOption {
	return func(c *sqlStorageConfig) {
		c.dialect = dialect
	}
}

// WithSQLTimeout bounds each query. Default: 5 seconds.
func WithSQLTimeout(d time.Duration) SQLStorageOption {
	return func(c *sqlStorageConfig) {
		c.timeout = d
	}
}

// NewSQLStorage creates a SQL-backed backend over db. The db is externally
// owned; closing it is the caller's job.
func NewSQLStorage(db *sql.DB, opts ...SQLStorageOption) *SQLStorage {
	cfg := &sqlStorageConfig{
		tableName: "vueuse_kv",
		dialect:   DialectSQLite,
		timeout:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &SQLStorage{
		db:        db,
		tableName: cfg.tableName,
		dialect:   cfg.dialect,
		timeout:   cfg.timeout,
	}
}

// Migrate creates the key-value table if it doesn't exist.
func (s *SQLStorage) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL,
			updated_at TIMESTAMP
		)
	`, s.tableName)

	_, err := s.db.ExecContext(ctx, query)
	return err
}

// placeholder returns the placeholder syntax for the dialect.
func (s *SQLStorage) placeholder(n int) string {
	if s.dialect == DialectPostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// GetItem returns the value stored under key.
func (s *SQLStorage) GetItem(key string) (string, bool, error) {
	ctx, cancel := s.queryContext()
	defer cancel()

	query := fmt.Sprintf(`SELECT v FROM %s WHERE k = %s`, s.tableName, s.placeholder(1))

	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// SetItem upserts value under key.
func (s *SQLStorage) SetItem(key, value string) error {
	ctx, cancel := s.queryContext()
	defer cancel()

	var query string
	switch s.dialect {
	case DialectPostgreSQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (k, v, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (k) DO UPDATE SET
				v = EXCLUDED.v,
				updated_at = NOW()
		`, s.tableName)
	case DialectMySQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (k, v, updated_at)
			VALUES (?, ?, NOW())
			ON DUPLICATE KEY UPDATE
				v = VALUES(v),
				updated_at = NOW()
		`, s.tableName)
	default:
		query = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (k, v, updated_at)
			VALUES (?, ?, datetime('now'))
		`, s.tableName)
	}

	_, err := s.db.ExecContext(ctx, query, key, value)
	return err
}

// RemoveItem deletes key.
func (s *SQLStorage) RemoveItem(key string) error {
	ctx, cancel := s.queryContext()
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE k = %s`, s.tableName, s.placeholder(1))
	_, err := s.db.ExecContext(ctx, query, key)
	return err
}

// Clear drops all keys.
func (s *SQLStorage) Clear() error {
	ctx, cancel := s.queryContext()
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s`, s.tableName)
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Keys returns all stored keys.
func (s *SQLStorage) Keys() ([]string, error) {
	ctx, cancel := s.queryContext()
	defer cancel()

	query := fmt.Sprintf(`SELECT k FROM %s ORDER BY k`, s.tableName)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLStorage) queryContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}
