package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/driftfs/driftfs/internal/bytesize"
)

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("expected default log level INFO, got %s", cfg.Logging.Level)
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("expected default database type sqlite, got %s", cfg.Database.Type)
	}
	if cfg.Mount.ACL != "owner" {
		t.Errorf("expected default ACL owner, got %s", cfg.Mount.ACL)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
logging:
  level: DEBUG
  format: json
  output: stdout
shutdown_timeout: 10s
mount:
  acl: root-and-owner
  engine: parallel
  max_write: 256Ki
database:
  type: sqlite
  sqlite:
    path: /tmp/driftfs-test.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("expected DEBUG, got %s", cfg.Logging.Level)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("expected 10s shutdown timeout, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Mount.Engine != "parallel" {
		t.Errorf("expected parallel engine, got %s", cfg.Mount.Engine)
	}
	if cfg.Mount.MaxWrite != bytesize.ByteSize(256<<10) {
		t.Errorf("expected 256Ki max_write, got %d", cfg.Mount.MaxWrite)
	}
	if cfg.Database.SQLite.Path != "/tmp/driftfs-test.db" {
		t.Errorf("unexpected sqlite path: %s", cfg.Database.SQLite.Path)
	}
}

func TestLoadInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
logging:
  level: LOUD
  format: text
  output: stderr
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("expected 'oneof' in error, got: %v", err)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "WARN"
	cfg.Remote.Bucket = "my-bucket"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Logging.Level != "WARN" {
		t.Errorf("expected WARN after round trip, got %s", loaded.Logging.Level)
	}
	if loaded.Remote.Bucket != "my-bucket" {
		t.Errorf("expected bucket to survive round trip, got %s", loaded.Remote.Bucket)
	}
}

func TestEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
logging:
  level: INFO
  format: text
  output: stderr
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DRIFTFS_LOGGING_LEVEL", "ERROR")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("expected env override ERROR, got %s", cfg.Logging.Level)
	}
}
