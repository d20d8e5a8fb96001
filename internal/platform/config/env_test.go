package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Port    int           `env:"WAYOUT_TEST_PORT" envDefault:"8920"`
	Timeout time.Duration `env:"WAYOUT_TEST_TIMEOUT" envDefault:"2s"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 8920 {
		t.Fatalf("expected default port 8920, got %d", cfg.Port)
	}
	if cfg.Timeout != 2*time.Second {
		t.Fatalf("expected default timeout 2s, got %v", cfg.Timeout)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("WAYOUT_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseEnvFromIgnoresProcessEnv(t *testing.T) {
	t.Setenv("WAYOUT_TEST_PORT", "1")

	var cfg envTestConfig
	if err := ParseEnvFrom(&cfg, map[string]string{"WAYOUT_TEST_TIMEOUT": "150ms"}); err != nil {
		t.Fatalf("parse env from map: %v", err)
	}
	if cfg.Port != 8920 {
		t.Fatalf("expected default port, got %d", cfg.Port)
	}
	if cfg.Timeout != 150*time.Millisecond {
		t.Fatalf("expected 150ms timeout, got %v", cfg.Timeout)
	}
}

func TestParseEnvFromNilMap(t *testing.T) {
	var cfg envTestConfig
	if err := ParseEnvFrom(&cfg, nil); err != nil {
		t.Fatalf("parse env from nil map: %v", err)
	}
	if cfg.Port != 8920 {
		t.Fatalf("expected default port, got %d", cfg.Port)
	}
}
