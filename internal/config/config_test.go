package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PerPage != 20 || cfg.MaxVisiblePages != 5 || cfg.Addr != "127.0.0.1:8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	body := "per_page: 30\nhttp_timeout: 3s\ndb_path: /tmp/from-file.db\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CATALOG_DB_PATH", "/tmp/from-env.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PerPage != 30 || cfg.HTTPTimeout != 3*time.Second {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.DBPath != "/tmp/from-env.db" {
		t.Fatalf("env must win over file, got %q", cfg.DBPath)
	}
}

func TestLoad_NormalizesOutOfRangeValues(t *testing.T) {
	t.Setenv("CATALOG_PER_PAGE", "500")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PerPage != 20 {
		t.Fatalf("expected per_page clamp to default, got %d", cfg.PerPage)
	}
}

func TestWatch_ReportsFileChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte("max_concurrent_fetches: 2\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	changes := make(chan Config, 4)
	if err := Watch(path, func(c Config) {
		select {
		case changes <- c:
		default:
		}
	}); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	// fsnotify s'abonne de manière asynchrone.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("max_concurrent_fetches: 6\n"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.MaxConcurrentFetches == 6 {
				return
			}
		case <-deadline:
			t.Fatalf("no change reported")
		}
	}
}

func TestWatch_WithoutFileIsNoop(t *testing.T) {
	if err := Watch("", func(Config) { t.Fatalf("unexpected change") }); err != nil {
		t.Fatalf("Watch: %v", err)
	}
}
