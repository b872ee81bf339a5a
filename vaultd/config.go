package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wdklabs/walletvault/vault"
)

// Config holds the vault daemon configuration.
type Config struct {
	// DevMode keeps the document store in memory instead of on disk.
	DevMode bool `yaml:"dev_mode"`

	// NATS configuration
	NATS NATSConfig `yaml:"nats"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Backup configuration (remote snapshot upload)
	Backup BackupConfig `yaml:"backup"`

	// KDFIterations overrides the key-derivation work factor. Lowering it
	// below the default weakens every stored wallet; only tests do that.
	KDFIterations int `yaml:"kdf_iterations"`
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL             string `yaml:"url"`
	CredentialsFile string `yaml:"credentials_file"`
	ReconnectWait   int    `yaml:"reconnect_wait_ms"`
	MaxReconnects   int    `yaml:"max_reconnects"`
	SubjectPrefix   string `yaml:"subject_prefix"`
}

// StorageConfig holds document store settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// BackupConfig holds remote snapshot settings. The snapshot is an
// HMAC-authenticated copy of the whole document store; seeds inside it are
// still encrypted under their wallet passwords.
type BackupConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	KeyPrefix       string `yaml:"key_prefix"`
	IntervalMinutes int    `yaml:"interval_minutes"`
	Secret          string `yaml:"secret"` // HMAC secret for snapshot integrity
}

// LoadConfig loads configuration from a YAML file, falling back to
// defaults if the file does not exist.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DevMode: false,
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			ReconnectWait: 2000,
			MaxReconnects: -1, // Unlimited
			SubjectPrefix: "wallet.vault",
		},
		Storage: StorageConfig{
			Path: "walletvault.db",
		},
		Backup: BackupConfig{
			Enabled:         false,
			KeyPrefix:       "walletvault/snapshots",
			IntervalMinutes: 60,
		},
		KDFIterations: vault.DefaultKDFIterations,
	}
}
