package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/exodetect/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of core.CredentialStore
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (and if needed creates) the credential database at dbPath
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS session_credential (
			slot TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			display_name TEXT NOT NULL,
			saved_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger,
	}, nil
}

// Load returns the persisted credential
func (s *SQLiteStore) Load(ctx context.Context) (*core.Credential, error) {
	var cred core.Credential
	err := s.db.QueryRowContext(ctx, `
		SELECT token, display_name
		FROM session_credential
		WHERE slot = ?
	`, credentialKey).Scan(&cred.Token, &cred.DisplayName)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}
	return &cred, nil
}

// Save replaces the persisted credential
func (s *SQLiteStore) Save(ctx context.Context, cred *core.Credential) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO session_credential (slot, token, display_name, saved_at)
		VALUES (?, ?, ?, ?)
	`, credentialKey, cred.Token, cred.DisplayName, time.Now().UTC().Format(time.RFC3339))

	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// Clear erases the persisted credential
func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM session_credential
		WHERE slot = ?
	`, credentialKey)

	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// Stop closes the database connection
func (s *SQLiteStore) Stop() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}
