package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8090 {
		t.Fatalf("port = %d, want 8090", cfg.Port)
	}
	if cfg.SessionRetentionDays != 30 {
		t.Fatalf("retention = %d, want 30", cfg.SessionRetentionDays)
	}
	if cfg.HistoryWindow != 20 {
		t.Fatalf("history window = %d, want 20", cfg.HistoryWindow)
	}
	if cfg.Cache.Backend != "memory" || cfg.Cache.Capacity != 288 {
		t.Fatalf("cache defaults = %+v", cfg.Cache)
	}
	if cfg.Chain.ChainID != 42220 {
		t.Fatalf("chain id = %d, want 42220", cfg.Chain.ChainID)
	}
}

func TestYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("port: 9001\njwt_secret: filesecret\nchain:\n  rpc_url: https://forno.celo.org\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9001 {
		t.Fatalf("port = %d, want 9001", cfg.Port)
	}
	if cfg.JWTSecret != "filesecret" {
		t.Fatalf("jwt secret = %q", cfg.JWTSecret)
	}
	if cfg.Chain.RPCURL != "https://forno.celo.org" {
		t.Fatalf("rpc url = %q", cfg.Chain.RPCURL)
	}
	// untouched keys keep their defaults
	if cfg.DatabasePath != "agentflow.db" {
		t.Fatalf("db path = %q", cfg.DatabasePath)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: 9001\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("AGENTFLOW_PORT", "9002")
	t.Setenv("AGENTFLOW_JWT_SECRET", "envsecret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9002 {
		t.Fatalf("port = %d, want 9002", cfg.Port)
	}
	if cfg.JWTSecret != "envsecret" {
		t.Fatalf("jwt secret = %q", cfg.JWTSecret)
	}
}

func TestMissingFileIsNotAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: [not a number\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNegativeRetentionRejected(t *testing.T) {
	t.Setenv("AGENTFLOW_SESSION_RETENTION_DAYS", "-1")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error")
	}
}
