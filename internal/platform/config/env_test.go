package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Limit int `env:"VMBOT_TEST_LIMIT" envDefault:"15"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Limit != 15 {
		t.Fatalf("limit = %d, want 15", cfg.Limit)
	}
}

func TestParseEnvInvalidValue(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("VMBOT_TEST_LIMIT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
