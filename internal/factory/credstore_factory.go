package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/exodetect/internal/adapters/credstore"
	"github.com/mikey/exodetect/internal/config"
	"github.com/mikey/exodetect/internal/core"
	"go.uber.org/zap"
)

// CredentialStoreFactory creates credential stores based on configuration
type CredentialStoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCredentialStoreFactory creates a new credential store factory
func NewCredentialStoreFactory(cfg *config.Config, logger *zap.Logger) *CredentialStoreFactory {
	return &CredentialStoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCredentialStore creates a credential store based on the configuration
func (f *CredentialStoreFactory) CreateCredentialStore() (core.CredentialStore, error) {
	sessionConfig := f.cfg.GetSession()

	switch sessionConfig.StoreType {
	case "file":
		return credstore.NewFileStore(sessionConfig.Path, f.logger), nil
	case "memory":
		return credstore.NewMemoryStore(f.logger), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(sessionConfig.SQLitePath), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return credstore.NewSQLiteStore(sessionConfig.SQLitePath, f.logger)
	case "mysql":
		return credstore.NewMySQLStore(sessionConfig.MySQLDSN, sessionConfig.Profile, f.logger)
	default:
		return nil, fmt.Errorf("unsupported credential store type: %s", sessionConfig.StoreType)
	}
}
