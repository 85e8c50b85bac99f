package config

import (
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Port    string `env:"SAMPLE_PORT" envDefault:"8083"`
	Brokers string `env:"SAMPLE_BROKERS"`
	Size    int    `env:"SAMPLE_SIZE" envDefault:"10"`
}

func TestLoadAppliesDotEnvWithoutOverridingProcessEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("SAMPLE_BROKERS=kafka:9092\nSAMPLE_SIZE=99\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILES", path)
	t.Setenv("SAMPLE_SIZE", "5")

	var cfg sample
	if err := Load(&cfg); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8083" {
		t.Fatalf("expected default port, got %q", cfg.Port)
	}
	if cfg.Brokers != "kafka:9092" {
		t.Fatalf("expected brokers from file, got %q", cfg.Brokers)
	}
	if cfg.Size != 5 {
		t.Fatalf("expected process env to win, got %d", cfg.Size)
	}
}

func TestLoadIgnoresMissingDotEnv(t *testing.T) {
	t.Setenv("ENV_FILES", filepath.Join(t.TempDir(), "missing.env"))
	var cfg sample
	if err := Load(&cfg); err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
}

func TestCheckPort(t *testing.T) {
	if err := CheckPort("PORT", "8080"); err != nil {
		t.Fatalf("expected valid port, got %v", err)
	}
	if err := CheckPort("PORT", "70000"); err == nil {
		t.Fatal("expected out of range port to fail")
	}
}

func TestList(t *testing.T) {
	got := List(" a, ,b,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected list %v", got)
	}
}
