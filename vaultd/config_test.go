package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wdklabs/walletvault/vault"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("A missing config file should fall back to defaults: %v", err)
	}

	if cfg.NATS.URL != "nats://127.0.0.1:4222" {
		t.Errorf("Unexpected default NATS URL: %q", cfg.NATS.URL)
	}
	if cfg.NATS.SubjectPrefix != "wallet.vault" {
		t.Errorf("Unexpected default subject prefix: %q", cfg.NATS.SubjectPrefix)
	}
	if cfg.Storage.Path != "walletvault.db" {
		t.Errorf("Unexpected default storage path: %q", cfg.Storage.Path)
	}
	if cfg.KDFIterations != vault.DefaultKDFIterations {
		t.Errorf("Unexpected default KDF iterations: %d", cfg.KDFIterations)
	}
	if cfg.Backup.Enabled {
		t.Error("Backup should be disabled by default")
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vaultd.yaml")
	content := `
dev_mode: true
nats:
  url: nats://nats.internal:4222
  subject_prefix: custom.vault
storage:
  path: /var/lib/walletvault/vault.db
backup:
  enabled: true
  bucket: vault-backups
  region: us-east-1
  interval_minutes: 30
  secret: test-secret
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if !cfg.DevMode {
		t.Error("Expected dev_mode to be set")
	}
	if cfg.NATS.URL != "nats://nats.internal:4222" {
		t.Errorf("Unexpected NATS URL: %q", cfg.NATS.URL)
	}
	if cfg.NATS.SubjectPrefix != "custom.vault" {
		t.Errorf("Unexpected subject prefix: %q", cfg.NATS.SubjectPrefix)
	}
	if cfg.Storage.Path != "/var/lib/walletvault/vault.db" {
		t.Errorf("Unexpected storage path: %q", cfg.Storage.Path)
	}
	if !cfg.Backup.Enabled || cfg.Backup.Bucket != "vault-backups" {
		t.Errorf("Unexpected backup config: %+v", cfg.Backup)
	}
	if cfg.Backup.IntervalMinutes != 30 {
		t.Errorf("Unexpected backup interval: %d", cfg.Backup.IntervalMinutes)
	}

	// Fields the file does not mention keep their defaults.
	if cfg.NATS.ReconnectWait != 2000 {
		t.Errorf("Unset fields must keep defaults, got reconnect_wait %d", cfg.NATS.ReconnectWait)
	}
	if cfg.Backup.KeyPrefix != "walletvault/snapshots" {
		t.Errorf("Unset fields must keep defaults, got key_prefix %q", cfg.Backup.KeyPrefix)
	}
	if cfg.KDFIterations != vault.DefaultKDFIterations {
		t.Errorf("Unset fields must keep defaults, got kdf_iterations %d", cfg.KDFIterations)
	}
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("nats: [not a mapping"), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("Malformed YAML should fail to load")
	}
}
