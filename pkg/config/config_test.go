package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if filepath.Base(cfg.Database.KGPath) != "kg.db" {
		t.Errorf("Expected kg database file named kg.db, got %s", cfg.Database.KGPath)
	}
	if filepath.Base(cfg.Database.SemanticMemoryPath) != "memory.db" {
		t.Errorf("Expected semantic memory database file named memory.db, got %s", cfg.Database.SemanticMemoryPath)
	}

	if !cfg.RestAPI.Enabled {
		t.Error("Expected RestAPI.Enabled=true")
	}
	if cfg.RestAPI.Port != 3002 {
		t.Errorf("Expected Port=3002, got %d", cfg.RestAPI.Port)
	}
	if cfg.RestAPI.Host != "localhost" {
		t.Errorf("Expected Host=localhost, got %s", cfg.RestAPI.Host)
	}
	if !cfg.RestAPI.CORS {
		t.Error("Expected CORS=true")
	}

	if cfg.Nudge.StaleThresholds.Person != 14 {
		t.Errorf("Expected person stale threshold 14, got %d", cfg.Nudge.StaleThresholds.Person)
	}
	if cfg.Nudge.MaxNudgesPerDay != 5 {
		t.Errorf("Expected max nudges per day 5, got %d", cfg.Nudge.MaxNudgesPerDay)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		expectErr bool
	}{
		{name: "valid config", modify: func(c *Config) {}, expectErr: false},
		{
			name:      "empty kg path",
			modify:    func(c *Config) { c.Database.KGPath = "" },
			expectErr: true,
		},
		{
			name:      "invalid port",
			modify:    func(c *Config) { c.RestAPI.Port = 99999 },
			expectErr: true,
		},
		{
			name:      "invalid logging level",
			modify:    func(c *Config) { c.Logging.Level = "invalid" },
			expectErr: true,
		},
		{
			name:      "invalid quiet hours start",
			modify:    func(c *Config) { c.Nudge.QuietHours.Start = 24 },
			expectErr: true,
		},
		{
			name:      "negative max nudges",
			modify:    func(c *Config) { c.Nudge.MaxNudgesPerDay = -1 },
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.expectErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		})
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd) //nolint:errcheck
	_ = os.Chdir(tmpDir)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error with missing config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected config, got nil")
	}
	if cfg.RestAPI.Port != 3002 {
		t.Errorf("Expected default port 3002, got %d", cfg.RestAPI.Port)
	}
}

func TestLoadConfig_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
profile: test
database:
  kg_path: /tmp/test-kg.db
  semantic_memory_path: /tmp/test-memory.db
rest_api:
  enabled: true
  port: 4000
  host: 127.0.0.1
  cors: false
logging:
  level: debug
  format: json
nudge:
  owner_name: Test Owner
  max_nudges_per_day: 3
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd) //nolint:errcheck
	_ = os.Chdir(tmpDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Profile != "test" {
		t.Errorf("Expected profile=test, got %s", cfg.Profile)
	}
	if cfg.Database.KGPath != "/tmp/test-kg.db" {
		t.Errorf("Expected kg path=/tmp/test-kg.db, got %s", cfg.Database.KGPath)
	}
	if cfg.RestAPI.Port != 4000 {
		t.Errorf("Expected port=4000, got %d", cfg.RestAPI.Port)
	}
	if cfg.RestAPI.CORS {
		t.Error("Expected CORS=false, got true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected level=debug, got %s", cfg.Logging.Level)
	}
	if cfg.Nudge.OwnerName != "Test Owner" {
		t.Errorf("Expected nudge owner_name=Test Owner, got %s", cfg.Nudge.OwnerName)
	}
	if cfg.Nudge.MaxNudgesPerDay != 3 {
		t.Errorf("Expected nudge max_nudges_per_day=3, got %d", cfg.Nudge.MaxNudgesPerDay)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &Config{
		Database: DatabaseConfig{
			KGPath:             filepath.Join(tmpDir, "subdir", "kg.db"),
			SemanticMemoryPath: filepath.Join(tmpDir, "subdir", "memory.db"),
		},
	}

	if err := cfg.EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "subdir")); os.IsNotExist(err) {
		t.Error("Config directory was not created")
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if path == "" {
		t.Error("ConfigPath returned empty string")
	}

	homeDir, _ := os.UserHomeDir()
	expected := filepath.Join(homeDir, ".kgraph")
	if path != expected {
		t.Errorf("Expected %s, got %s", expected, path)
	}
}
