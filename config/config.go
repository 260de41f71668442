// Package config loads the shorty configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/apoxy-dev/shorty/pkg/store"
)

// DefaultAppPassword is the placeholder password shipped in the default
// configuration. Deployments must change it.
const DefaultAppPassword = "howdoyouturnthison"

var (
	ConfigFile string
	Verbose    bool
	JSONLogs   bool
)

type Config struct {
	// The TCP port to listen on.
	Port int `yaml:"port,omitempty"`
	// The maximum size of a request in bytes, head and body included.
	MaxRequestSize int64 `yaml:"max_request_size,omitempty"`
	// Deadlines for reading a request and writing the response.
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
	// The password required to save new URLs.
	AppPassword string `yaml:"app_password,omitempty"`
	// The length of generated keys.
	KeyLength int `yaml:"key_length,omitempty"`
	// How many generated keys are tried when they collide.
	MaxKeyAttempts int `yaml:"max_key_attempts,omitempty"`
	// Whether to enable verbose logging.
	Verbose bool `yaml:"verbose,omitempty"`
	// Whether to log JSON instead of text.
	JSONLogs bool `yaml:"json_logs,omitempty"`
	// Sentry DSN for error reporting. Empty disables it.
	SentryDSN string `yaml:"sentry_dsn,omitempty"`
	// Where mappings are stored.
	Store StoreConfig `yaml:"store"`
}

type StoreConfig struct {
	// One of "badger", "postgres" or "memory".
	Driver string `yaml:"driver,omitempty"`
	// The badger data directory.
	Path string `yaml:"path,omitempty"`
	// The postgres connection string.
	Connection string `yaml:"connection,omitempty"`
	// Credentials overriding the ones in Connection.
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	// The postgres schema holding the mappings table.
	Schema string `yaml:"schema,omitempty"`
}

// ShortyDir returns the path to the shorty configuration directory.
func ShortyDir() string {
	return filepath.Join(os.Getenv("HOME"), ".shorty")
}

func getDefaultConfigPath() string {
	return filepath.Join(ShortyDir(), "config.yaml")
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		MaxRequestSize: 2048000000,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		AppPassword:    DefaultAppPassword,
		KeyLength:      8,
		MaxKeyAttempts: 5,
		Store: StoreConfig{
			Driver: store.DriverBadger,
			Path:   filepath.Join(ShortyDir(), "data"),
			Schema: "sh",
		},
	}
}

// Load reads ConfigFile, or the default path if it is unset. A missing file
// yields DefaultConfig.
func Load() (*Config, error) {
	if ConfigFile == "" {
		ConfigFile = getDefaultConfigPath()
	}
	cfg, err := LoadFile(ConfigFile)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg)
	return cfg, nil
}

// applyFlags overrides cfg with the command line flags.
func applyFlags(cfg *Config) {
	if Verbose {
		cfg.Verbose = true
	}
	if JSONLogs {
		cfg.JSONLogs = true
	}
}

// LoadFile reads the configuration at path. Fields missing from the file keep
// their default values.
func LoadFile(path string) (*Config, error) {
	yamlFile, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}
	return parse(path, yamlFile)
}

// parse decodes data over the defaults and validates the result.
func parse(path string, data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.MaxRequestSize <= 0 {
		errs = append(errs, fmt.Errorf("max_request_size must be positive, got %d", c.MaxRequestSize))
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.AppPassword == "" {
		errs = append(errs, errors.New("app_password must not be empty"))
	}
	if c.KeyLength < 1 {
		errs = append(errs, fmt.Errorf("key_length must be positive, got %d", c.KeyLength))
	}
	if c.MaxKeyAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_key_attempts must be positive, got %d", c.MaxKeyAttempts))
	}
	switch c.Store.Driver {
	case store.DriverBadger, store.DriverMemory:
	case store.DriverPostgres:
		if c.Store.Connection == "" {
			errs = append(errs, errors.New("store.connection is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	return errors.Join(errs...)
}

// StoreOptions converts the store section to store.Options.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Driver:     c.Store.Driver,
		Path:       c.Store.Path,
		Connection: c.Store.Connection,
		User:       c.Store.User,
		Password:   c.Store.Password,
		Schema:     c.Store.Schema,
	}
}

func ensureDirExists(filePath string) error {
	dir := filepath.Dir(filePath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return nil
}

// Store writes cfg to ConfigFile. The file holds the app password, so it is
// only readable by its owner.
func Store(cfg *Config) error {
	yamlFile, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if ConfigFile == "" {
		ConfigFile = getDefaultConfigPath()
	}
	if err := ensureDirExists(ConfigFile); err != nil {
		return fmt.Errorf("failed to ensure directory exists: %w", err)
	}
	if err := os.WriteFile(ConfigFile, yamlFile, 0600); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}
