// Package config loads, validates and persists the ftpd configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (FTPD_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kuba23c/ftp-server/internal/bytesize"
)

// Config represents the ftpd configuration: the FTP engine itself, the
// storage backend behind it, logging, and the optional observability
// surfaces.
type Config struct {
	// Server configures the FTP protocol engine.
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Credentials is the single accepted (username, password) pair.
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`

	// Storage selects and configures the filesystem backend.
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains the status/health HTTP endpoint configuration.
	API APIConfig `mapstructure:"api" yaml:"api"`
}

// ServerConfig mirrors the FTP adapter configuration surface.
type ServerConfig struct {
	// Port is the control-channel listen port.
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`

	// DataPort is the base of the passive-mode data port window.
	DataPort int `mapstructure:"data_port" validate:"min=0,max=65535" yaml:"data_port"`

	// MaxClients is the worker pool size: concurrent sessions served.
	MaxClients int `mapstructure:"max_clients" validate:"min=0,max=64" yaml:"max_clients"`

	// ReadTimeout is one control-read lap.
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout bounds control-channel writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// InactiveCount is the number of read laps before idle disconnect.
	InactiveCount int `mapstructure:"inactive_count" validate:"min=0" yaml:"inactive_count"`

	// StorReceiveTimeout is the data-socket receive deadline during STOR.
	StorReceiveTimeout time.Duration `mapstructure:"stor_receive_timeout" yaml:"stor_receive_timeout"`

	// Passive configures PASV mode.
	Passive PassiveConfig `mapstructure:"passive" yaml:"passive"`

	// TransferBuffer is the per-session transfer buffer size. Accepts
	// human-readable values ("32KiB"); must be a multiple of 1KiB.
	TransferBuffer bytesize.ByteSize `mapstructure:"transfer_buffer" yaml:"transfer_buffer"`
}

// PassiveConfig groups PASV-mode options.
type PassiveConfig struct {
	// Enabled controls PASV support; nil defaults to true.
	Enabled *bool `mapstructure:"enabled" yaml:"enabled,omitempty"`

	// AcceptTimeout bounds the wait for the client's data connection.
	AcceptTimeout time.Duration `mapstructure:"accept_timeout" yaml:"accept_timeout"`

	// ListenTimeout is the receive timeout on a fresh data listener.
	ListenTimeout time.Duration `mapstructure:"listen_timeout" yaml:"listen_timeout"`
}

// CredentialsConfig carries the login pair. Values longer than 32 bytes fail
// validation.
type CredentialsConfig struct {
	Username string `mapstructure:"username" validate:"required,max=32" yaml:"username"`
	Password string `mapstructure:"password" validate:"required,max=32" yaml:"password"`
}

// StorageConfig selects the blockfs backend.
type StorageConfig struct {
	// Backend is one of "memory", "os", "badger".
	Backend string `mapstructure:"backend" validate:"required,oneof=memory os badger" yaml:"backend"`

	// Root is the host directory served by the "os" backend.
	Root string `mapstructure:"root" yaml:"root,omitempty"`

	// Path is the database directory of the "badger" backend.
	Path string `mapstructure:"path" yaml:"path,omitempty"`

	// Capacity bounds the volume reported via SITE FREE.
	Capacity bytesize.ByteSize `mapstructure:"capacity" yaml:"capacity,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is "text" or "json".
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is "stdout", "stderr" or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics endpoint. When disabled no
// metrics are collected at all.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// APIConfig configures the status/health HTTP server. The /metrics route is
// mounted there when metrics are enabled.
type APIConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses the default
//     location under $XDG_CONFIG_HOME/ftpd)
//
// When no config file is found, the defaults are returned as they are;
// environment variables are not applied in that case.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the config
// file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  ftpd init\n\n"+
				"Or specify a custom config file:\n"+
				"  ftpd <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  ftpd init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	if cfg.Server.TransferBuffer != 0 && cfg.Server.TransferBuffer%1024 != 0 {
		return fmt.Errorf("server.transfer_buffer must be a multiple of 1KiB, got %s", cfg.Server.TransferBuffer)
	}
	switch cfg.Storage.Backend {
	case "os":
		if cfg.Storage.Root == "" {
			return fmt.Errorf("storage.root is required for the os backend")
		}
	case "badger":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the badger backend")
		}
	}
	return nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file carries the FTP password; keep it owner-only.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file
// settings. Environment variables use the FTPD_ prefix with underscores,
// e.g. FTPD_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("FTPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error).
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns a combined decode hook for ByteSize and
// time.Duration values.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

// byteSizeDecodeHook converts strings and integers to bytesize.ByteSize so
// config files can say "32KiB" or "1GB" or a plain byte count.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch from.Kind() {
		case reflect.String:
			return bytesize.ParseByteSize(data.(string))
		case reflect.Int, reflect.Int64:
			return bytesize.ByteSize(reflect.ValueOf(data).Int()), nil
		case reflect.Uint, reflect.Uint64:
			return bytesize.ByteSize(reflect.ValueOf(data).Uint()), nil
		case reflect.Float64:
			return bytesize.ByteSize(data.(float64)), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the directory searched for the default config file.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ftpd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "ftpd")
}

// GetDefaultConfigPath returns the default config file location.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file sits at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
