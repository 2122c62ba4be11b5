package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/claimmatrix/claimmatrix/internal/cli/config"
)

func chTempDir(t *testing.T) string {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "claimmatrix-init-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	originalDir, _ := os.Getwd()
	if err := os.Chdir(tempDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}

	t.Cleanup(func() {
		os.Chdir(originalDir)
		os.RemoveAll(tempDir)
	})

	return tempDir
}

// TestInitCommand_NewConfig tests creating a brand new config file
func TestInitCommand_NewConfig(t *testing.T) {
	tempDir := chTempDir(t)

	if err := runInit(nil, []string{"https://claims.acme.dev"}); err != nil {
		t.Fatalf("init command failed: %v", err)
	}

	cfgPath := filepath.Join(tempDir, config.ConfigFileName)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load created config: %v", err)
	}

	if len(cfg.Environments) != 1 {
		t.Fatalf("expected 1 environment, got %d", len(cfg.Environments))
	}
	if cfg.Environments[0].URL != "https://claims.acme.dev" {
		t.Errorf("unexpected URL: %s", cfg.Environments[0].URL)
	}
	if cfg.Environments[0].Alias != "production" {
		t.Errorf("expected first environment alias 'production', got %s", cfg.Environments[0].Alias)
	}
}

// TestInitCommand_AppendEnvironment tests adding to an existing config
func TestInitCommand_AppendEnvironment(t *testing.T) {
	tempDir := chTempDir(t)

	if err := runInit(nil, []string{"https://claims.acme.dev"}); err != nil {
		t.Fatalf("first init failed: %v", err)
	}
	if err := runInit(nil, []string{"https://staging.claims.acme.dev"}); err != nil {
		t.Fatalf("second init failed: %v", err)
	}

	cfg, err := config.Load(filepath.Join(tempDir, config.ConfigFileName))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if len(cfg.Environments) != 2 {
		t.Fatalf("expected 2 environments, got %d", len(cfg.Environments))
	}
	if cfg.Environments[1].Alias != "env-2" {
		t.Errorf("expected second environment alias 'env-2', got %s", cfg.Environments[1].Alias)
	}
}

// TestInitCommand_DuplicateURL tests that the same URL is not added twice
func TestInitCommand_DuplicateURL(t *testing.T) {
	tempDir := chTempDir(t)

	if err := runInit(nil, []string{"https://claims.acme.dev"}); err != nil {
		t.Fatalf("first init failed: %v", err)
	}
	if err := runInit(nil, []string{"https://claims.acme.dev"}); err != nil {
		t.Fatalf("duplicate init failed: %v", err)
	}

	cfg, err := config.Load(filepath.Join(tempDir, config.ConfigFileName))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if len(cfg.Environments) != 1 {
		t.Fatalf("expected 1 environment after duplicate init, got %d", len(cfg.Environments))
	}
}

// TestInitCommand_InvalidURL tests that non-http URLs are rejected
func TestInitCommand_InvalidURL(t *testing.T) {
	chTempDir(t)

	for _, bad := range []string{"claims.acme.dev", "ftp://claims.acme.dev", ""} {
		if err := runInit(nil, []string{bad}); err == nil {
			t.Errorf("expected error for URL %q, got nil", bad)
		}
	}

	if _, err := os.Stat(config.ConfigFileName); !os.IsNotExist(err) {
		t.Error("expected no config file to be written for invalid URLs")
	}
}
