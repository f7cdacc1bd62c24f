package factory

import (
	"fmt"

	"github.com/mikey/exodetect/internal/adapters/backend"
	"github.com/mikey/exodetect/internal/adapters/status"
	"github.com/mikey/exodetect/internal/config"
	"github.com/mikey/exodetect/internal/core"
	"go.uber.org/zap"
)

// BackendFactory creates the analysis backend client and its status source
type BackendFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewBackendFactory creates a new backend factory
func NewBackendFactory(cfg *config.Config, logger *zap.Logger) *BackendFactory {
	return &BackendFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateClient creates the HTTP client for the configured backend
func (f *BackendFactory) CreateClient() (*backend.Client, error) {
	backendConfig, err := f.cfg.GetBackend()
	if err != nil {
		return nil, err
	}

	client, err := backend.NewClient(backendConfig.BaseURL, backendConfig.Timeout, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	f.logger.Info("Using analysis backend",
		zap.String("base_url", backendConfig.BaseURL),
		zap.Duration("timeout", backendConfig.Timeout))
	return client, nil
}

// CreateStatusSource wraps source with the configured status cache
func (f *BackendFactory) CreateStatusSource(source core.StatusSource) (core.StatusSource, error) {
	ttl, err := f.cfg.GetStatusTTL()
	if err != nil {
		return nil, err
	}
	return status.NewCachedSource(source, ttl, f.logger), nil
}
