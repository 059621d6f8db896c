package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/aerovm/workerplane/internal/worker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	got := Load(discardLogger(), filepath.Join(t.TempDir(), "does-not-exist.yml"))
	want := worker.DefaultConfig()
	if got != want {
		t.Fatalf("got %+v, want defaults %+v", got, want)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	got := Load(discardLogger(), "")
	if got != worker.DefaultConfig() {
		t.Fatalf("expected defaults for an empty path, got %+v", got)
	}
}

func TestLoadAppliesDefaultsOverPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site-config.yml")
	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got := Load(discardLogger(), path)
	if got.LogLevel != "debug" {
		t.Fatalf("expected log_level from file, got %q", got.LogLevel)
	}
	if got.GuestMemoryMiB != worker.DefaultConfig().GuestMemoryMiB {
		t.Fatalf("expected default guest_memory_mib, got %d", got.GuestMemoryMiB)
	}
}

func TestLoadRejectsWorldWritableFile(t *testing.T) {
	if os.Getenv("GOOS") == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	path := filepath.Join(t.TempDir(), "site-config.yml")
	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0o666); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// WriteFile's mode is filtered by the process umask; set it explicitly.
	if err := os.Chmod(path, 0o666); err != nil {
		t.Fatalf("Chmod: %v", err)
	}

	got := Load(discardLogger(), path)
	if got != worker.DefaultConfig() {
		t.Fatalf("expected defaults for a world-writable file, got %+v", got)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site-config.yml")
	if err := os.WriteFile(path, []byte("not: [valid: yaml"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got := Load(discardLogger(), path)
	if got != worker.DefaultConfig() {
		t.Fatalf("expected defaults for malformed yaml, got %+v", got)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(worker.DefaultConfig()); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
	if err := Validate(worker.Config{}); err == nil {
		t.Fatalf("expected zero guest_memory_mib to fail validation")
	}
}
