package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/exodetect/internal/core"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of core.CredentialStore. Rows are keyed by
// operator profile so several workstations can share one database.
type MySQLStore struct {
	db      *sql.DB
	profile string
	logger  *zap.Logger
}

// NewMySQLStore connects to dsn and prepares the credential table
func NewMySQLStore(dsn, profile string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS session_credential (
			profile VARCHAR(255) PRIMARY KEY,
			token TEXT NOT NULL,
			display_name VARCHAR(255) NOT NULL,
			saved_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	if profile == "" {
		profile = defaultProfile()
	}

	return &MySQLStore{
		db:      db,
		profile: profile,
		logger:  logger,
	}, nil
}

// Load returns the persisted credential for this profile
func (s *MySQLStore) Load(ctx context.Context) (*core.Credential, error) {
	var cred core.Credential
	err := s.db.QueryRowContext(ctx, `
		SELECT token, display_name
		FROM session_credential
		WHERE profile = ?
	`, s.profile).Scan(&cred.Token, &cred.DisplayName)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}
	return &cred, nil
}

// Save replaces the persisted credential for this profile
func (s *MySQLStore) Save(ctx context.Context, cred *core.Credential) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_credential (profile, token, display_name, saved_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			token = VALUES(token),
			display_name = VALUES(display_name),
			saved_at = VALUES(saved_at)
	`, s.profile, cred.Token, cred.DisplayName, time.Now().UTC().Format("2006-01-02 15:04:05"))

	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// Clear erases the persisted credential for this profile
func (s *MySQLStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM session_credential
		WHERE profile = ?
	`, s.profile)

	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// Stop closes the database connection
func (s *MySQLStore) Stop() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close MySQL database", zap.Error(err))
	}
}

func defaultProfile() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return credentialKey
	}
	if user := os.Getenv("USER"); user != "" {
		return user + "@" + host
	}
	return host
}
