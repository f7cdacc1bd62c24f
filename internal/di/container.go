package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/exodetect/internal/adapters/backend"
	"github.com/mikey/exodetect/internal/config"
	"github.com/mikey/exodetect/internal/core"
	"github.com/mikey/exodetect/internal/devserver"
	"github.com/mikey/exodetect/internal/factory"
	"github.com/mikey/exodetect/internal/logging"
)

// BuildDevServerContainer creates a dependency injection container for the
// development backend, configured from the default config search paths
func BuildDevServerContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register development backend
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*devserver.Server, error) {
		devConfig, err := cfg.GetDevServer()
		if err != nil {
			return nil, err
		}
		return devserver.NewServer(devConfig, logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// registerServices registers everything below configuration and logging
func registerServices(container *dig.Container) error {
	// Register factories
	if err := container.Provide(factory.NewBackendFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewCredentialStoreFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewFrontendFactory); err != nil {
		return err
	}

	// Register backend client and the ports it serves
	if err := container.Provide(func(f *factory.BackendFactory) (*backend.Client, error) {
		return f.CreateClient()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(c *backend.Client) core.AnalysisBackend {
		return c
	}); err != nil {
		return err
	}
	if err := container.Provide(func(c *backend.Client) core.AuthBackend {
		return c
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.BackendFactory, c *backend.Client) (core.StatusSource, error) {
		return f.CreateStatusSource(c)
	}); err != nil {
		return err
	}

	// Register credential store
	if err := container.Provide(func(f *factory.CredentialStoreFactory) (core.CredentialStore, error) {
		return f.CreateCredentialStore()
	}); err != nil {
		return err
	}

	// Register clock
	if err := container.Provide(core.RealClock); err != nil {
		return err
	}

	// Register orchestrator settings
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (core.Settings, error) {
		analysisConfig, err := cfg.GetAnalysis()
		if err != nil {
			return core.Settings{}, err
		}
		logger.Debug("Loaded analysis settings", zap.Duration("batch_interval", analysisConfig.BatchInterval))
		return core.Settings{BatchInterval: analysisConfig.BatchInterval}, nil
	}); err != nil {
		return err
	}

	// Register core services
	if err := container.Provide(core.NewResultCache); err != nil {
		return err
	}
	if err := container.Provide(core.NewViewController); err != nil {
		return err
	}
	if err := container.Provide(core.NewSessionStore); err != nil {
		return err
	}
	if err := container.Provide(core.NewOrchestrator); err != nil {
		return err
	}
	if err := container.Provide(core.NewStatusMonitor); err != nil {
		return err
	}

	return nil
}
