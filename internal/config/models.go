package config

import (
	"fmt"
	"time"
)

// BackendConfig represents the configuration for the analysis backend
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SessionConfig represents the configuration for credential persistence
type SessionConfig struct {
	StoreType  string
	Path       string
	SQLitePath string
	MySQLDSN   string
	Profile    string
}

// AnalysisConfig represents the configuration for the analysis orchestrator
type AnalysisConfig struct {
	BatchInterval time.Duration
}

// DevServerConfig represents the configuration for the development backend
type DevServerConfig struct {
	ListenAddress string
	JWTSecret     string
	TokenTTL      time.Duration
	AnalysisDelay time.Duration
	Users         map[string]string
}

// GetBackend returns the backend configuration
func (c *Config) GetBackend() (BackendConfig, error) {
	timeout, err := c.GetDuration("backend.timeout")
	if err != nil {
		return BackendConfig{}, fmt.Errorf("invalid backend timeout: %w", err)
	}
	return BackendConfig{
		BaseURL: c.GetString("backend.base_url"),
		Timeout: timeout,
	}, nil
}

// GetSession returns the session persistence configuration
func (c *Config) GetSession() SessionConfig {
	return SessionConfig{
		StoreType:  c.GetString("session.store.type"),
		Path:       c.GetString("session.store.path"),
		SQLitePath: c.GetString("session.store.sqlite_path"),
		MySQLDSN:   c.GetString("session.store.mysql_dsn"),
		Profile:    c.GetString("session.store.profile"),
	}
}

// GetAnalysis returns the orchestrator configuration
func (c *Config) GetAnalysis() (AnalysisConfig, error) {
	interval, err := c.GetDuration("analysis.batch_interval")
	if err != nil {
		return AnalysisConfig{}, fmt.Errorf("invalid batch interval: %w", err)
	}
	return AnalysisConfig{
		BatchInterval: interval,
	}, nil
}

// GetStatusTTL returns how long a backend status answer is reused
func (c *Config) GetStatusTTL() (time.Duration, error) {
	ttl, err := c.GetDuration("status.ttl")
	if err != nil {
		return 0, fmt.Errorf("invalid status ttl: %w", err)
	}
	return ttl, nil
}

// GetDevServer returns the development backend configuration
func (c *Config) GetDevServer() (DevServerConfig, error) {
	ttl, err := c.GetDuration("devserver.token_ttl")
	if err != nil {
		return DevServerConfig{}, fmt.Errorf("invalid devserver token ttl: %w", err)
	}
	delay, err := c.GetDuration("devserver.analysis_delay")
	if err != nil {
		return DevServerConfig{}, fmt.Errorf("invalid devserver analysis delay: %w", err)
	}
	return DevServerConfig{
		ListenAddress: c.GetString("devserver.listen_address"),
		JWTSecret:     c.GetString("devserver.jwt_secret"),
		TokenTTL:      ttl,
		AnalysisDelay: delay,
		Users:         c.GetStringMapString("devserver.users"),
	}, nil
}
