package credstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mikey/exodetect/internal/core"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// fileCredential is the on-disk shape of the persisted credential
type fileCredential struct {
	Token       string    `yaml:"token"`
	DisplayName string    `yaml:"displayName"`
	SavedAt     time.Time `yaml:"savedAt"`
}

// FileStore persists the credential as a YAML file readable only by the owner
type FileStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFileStore creates a file store at path; an empty path selects DefaultPath()
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if path == "" {
		path = DefaultPath()
	}
	return &FileStore{
		path:   path,
		logger: logger,
	}
}

// DefaultPath returns the per-user location of the credential file
func DefaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		if home, herr := os.UserHomeDir(); herr == nil && home != "" {
			base = filepath.Join(home, ".config")
		} else {
			base = "."
		}
	}
	return filepath.Join(base, "exodetect", "session.yaml")
}

// Path returns the file the store writes to
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the credential file
func (s *FileStore) Load(ctx context.Context) (*core.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Clean(s.path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("credstore: read failed: %w", err)
	}

	var fc fileCredential
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("credstore: parse failed: %w", err)
	}
	return &core.Credential{Token: fc.Token, DisplayName: fc.DisplayName}, nil
}

// Save writes the credential atomically with 0600 permissions
func (s *FileStore) Save(ctx context.Context, cred *core.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("credstore: mkdir failed: %w", err)
	}

	out, err := yaml.Marshal(fileCredential{
		Token:       cred.Token,
		DisplayName: cred.DisplayName,
		SavedAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("credstore: marshal failed: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session.tmp-*")
	if err != nil {
		return fmt.Errorf("credstore: temp create failed: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(out); err != nil {
		return fmt.Errorf("credstore: temp write failed: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("credstore: chmod failed: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("credstore: sync failed: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("credstore: atomic rename failed: %w", err)
	}

	s.logger.Debug("Persisted credential", zap.String("path", s.path))
	return nil
}

// Clear removes the credential file; a missing file is not an error
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("credstore: remove failed: %w", err)
	}
	return nil
}
