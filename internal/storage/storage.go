package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Keys shared by the background, page and popup contexts.
const (
	KeyAPIKey              = "perplexityApiKey"
	KeyConversationHistory = "conversationHistory"
	KeyPendingQuery        = "pendingQuery"
)

// Store is a durable key-value area. Values are stored as JSON.
// There is no transaction spanning a caller's read-modify-write.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createKVTable := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME
	);`

	if _, err := db.Exec(createKVTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	logger.Info("storage opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Get decodes the value stored under key into v. It reports false when the
// key is absent.
func (s *Store) Get(ctx context.Context, key string, v any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores v under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, ?)",
		key, string(data), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	s.logger.Debug("storage set", "key", key, "bytes", len(data))
	return nil
}

// Remove deletes the given keys. Missing keys are not an error.
func (s *Store) Remove(ctx context.Context, keys ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
			return fmt.Errorf("failed to remove %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("storage removed", "keys", keys)
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
