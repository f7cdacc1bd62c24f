package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/exodetect/internal/config"
	"github.com/mikey/exodetect/internal/logging"
)

// CLIFlags contains the persistent command line flags of the CLI application
type CLIFlags struct {
	ConfigFile string
	BaseURL    string
	StoreType  string
	StorePath  string
	Verbose    bool
	JSONLog    bool
	LogFile    string
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags) (*config.Config, error) {
		cfg, err := config.NewFromFile(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		applyFlagOverrides(cfg, flags)
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags, cfg *config.Config) (*zap.Logger, error) {
		logFile := flags.LogFile
		if logFile == "" {
			logFile = cfg.GetString("logging.file")
		}
		logger, err := logging.InitConsoleLogger(flags.Verbose, flags.JSONLog, logFile)
		if err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Debug("Loaded configuration from file", zap.String("file", used))
		}
		return logger, nil
	}); err != nil {
		return nil, err
	}

	if err := registerServices(container); err != nil {
		return nil, err
	}
	return container, nil
}

// applyFlagOverrides lets explicit flags win over file and environment values
func applyFlagOverrides(cfg *config.Config, flags *CLIFlags) {
	if flags.BaseURL != "" {
		cfg.Set("backend.base_url", flags.BaseURL)
	}
	if flags.StoreType != "" {
		cfg.Set("session.store.type", flags.StoreType)
	}
	if flags.StorePath != "" {
		key := "session.store.path"
		if cfg.GetString("session.store.type") == "sqlite" {
			key = "session.store.sqlite_path"
		}
		cfg.Set(key, flags.StorePath)
	}
}
