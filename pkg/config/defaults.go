package config

import (
	"strings"
	"time"

	"github.com/kuba23c/ftp-server/internal/bytesize"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyCredentialsDefaults(&cfg.Credentials)
	applyStorageDefaults(&cfg.Storage)
	applyLoggingDefaults(&cfg.Logging)
	applyAPIDefaults(&cfg.API)
}

// applyServerDefaults mirrors the embedded reference deployment: control
// port 21, passive base 55600, one client slot, one-second control reads
// with a 60-lap idle budget and a 32 KiB transfer buffer.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = 21
	}
	if cfg.DataPort == 0 {
		cfg.DataPort = 55600
	}
	if cfg.MaxClients == 0 {
		cfg.MaxClients = 1
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 3 * time.Second
	}
	if cfg.InactiveCount == 0 {
		cfg.InactiveCount = 60
	}
	if cfg.StorReceiveTimeout == 0 {
		cfg.StorReceiveTimeout = 5 * time.Second
	}
	if cfg.Passive.AcceptTimeout == 0 {
		cfg.Passive.AcceptTimeout = 500 * time.Millisecond
	}
	if cfg.Passive.ListenTimeout == 0 {
		cfg.Passive.ListenTimeout = 5 * time.Second
	}
	if cfg.TransferBuffer == 0 {
		cfg.TransferBuffer = 32 * bytesize.KiB
	}
}

func applyCredentialsDefaults(cfg *CredentialsConfig) {
	if cfg.Username == "" {
		cfg.Username = "user"
	}
	if cfg.Password == "" {
		cfg.Password = "pass"
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = bytesize.GiB
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyAPIDefaults(cfg *APIConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8021
	}
}

// GetDefaultConfig returns a fully defaulted configuration, the one `ftpd
// init` writes out.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
