package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	defer os.Chdir(cwd)
	os.Chdir(dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 1344 {
		t.Errorf("Port = %d, want 1344", cfg.Port)
	}
	if cfg.Children != 4 {
		t.Errorf("Children = %d, want 4", cfg.Children)
	}
}

func TestLoadExplicitFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "icapd.yaml")
	contents := "port: 1500\nchildren: 8\nmax_requests: 50\n" +
		"handlers:\n  reqmod: /filter\n  respmod: /scan\n" +
		"audit:\n  db_host: db.internal\n  db_name: cards\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 1500 {
		t.Errorf("Port = %d, want 1500", cfg.Port)
	}
	if cfg.Children != 8 {
		t.Errorf("Children = %d, want 8", cfg.Children)
	}
	if cfg.Handlers.Reqmod != "/filter" {
		t.Errorf("Handlers.Reqmod = %q, want /filter", cfg.Handlers.Reqmod)
	}
	if cfg.Audit.DBHost != "db.internal" {
		t.Errorf("Audit.DBHost = %q, want db.internal", cfg.Audit.DBHost)
	}
	if cfg.Audit.DBName != "cards" {
		t.Errorf("Audit.DBName = %q, want cards", cfg.Audit.DBName)
	}
}

func TestLoadMissingExplicitFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/icapd.yaml")
	if err == nil {
		t.Fatal("expected an error for a missing explicit config file")
	}
}
