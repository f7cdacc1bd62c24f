package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	return NewFromFile("")
}

// NewFromFile creates a configuration instance, reading path when it is set and
// searching the default locations otherwise
func NewFromFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/exodetect/")
		v.AddConfigPath("$HOME/.exodetect")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("EXODETECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Backend defaults
	v.SetDefault("backend.base_url", "http://localhost:5000/api")
	v.SetDefault("backend.timeout", "60s")

	// Session defaults
	v.SetDefault("session.store.type", "file")
	v.SetDefault("session.store.path", "")
	v.SetDefault("session.store.sqlite_path", "/data/exodetect_session.db")
	v.SetDefault("session.store.mysql_dsn", "user:password@tcp(localhost:3306)/exodetect")
	v.SetDefault("session.store.profile", "")

	// Analysis defaults
	v.SetDefault("analysis.batch_interval", "500ms")

	// Status indicator defaults
	v.SetDefault("status.ttl", "30s")

	// Frontend defaults
	v.SetDefault("frontend.color", "auto")
	v.SetDefault("frontend.locale", "en")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")

	// Development backend defaults
	v.SetDefault("devserver.listen_address", "127.0.0.1:5000")
	v.SetDefault("devserver.jwt_secret", "change-me")
	v.SetDefault("devserver.token_ttl", "8h")
	v.SetDefault("devserver.analysis_delay", "2s")
	v.SetDefault("devserver.users", map[string]string{"astro": "transit"})
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetStringMapString gets a string map value from the configuration
func (c *Config) GetStringMapString(key string) map[string]string {
	return c.v.GetStringMapString(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// Set overrides a configuration value
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
