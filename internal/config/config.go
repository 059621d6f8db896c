// Package config loads the on-disk YAML site configuration workers start
// from, applying the same load-time caution the rest of this codebase uses
// for files that live outside the worker's own control (world-writable
// refusal, a size cap, tolerant defaults on any read/parse failure).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/aerovm/workerplane/internal/worker"
	"gopkg.in/yaml.v3"
)

// maxConfigSize bounds how large a config file this loader will read,
// guarding against an operator accidentally pointing it at the wrong file.
const maxConfigSize = 1 << 20

// Load reads and parses the YAML config at path, applying defaults over any
// field the file leaves zero-valued. A missing file is not an error: it
// yields the default configuration. A malformed or unsafe file logs a
// warning and falls back to defaults rather than failing startup, since a
// worker with a bad config file should still come up in a safe state.
func Load(logger *slog.Logger, path string) worker.Config {
	defaults := worker.DefaultConfig()
	if path == "" {
		return defaults
	}

	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to stat config file", "path", path, "error", err)
		}
		return defaults
	}

	if runtime.GOOS != "windows" && info.Mode().Perm()&0o002 != 0 {
		logger.Error("config file is world-writable, refusing to load", "path", path, "mode", info.Mode())
		return defaults
	}

	if info.Size() > maxConfigSize {
		logger.Warn("config file too large, ignoring", "path", path, "size", info.Size())
		return defaults
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("failed to read config file", "path", path, "error", err)
		return defaults
	}

	var cfg worker.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Warn("failed to parse config file", "path", path, "error", err)
		return defaults
	}

	return worker.ApplyDefaults(cfg, defaults)
}

// Validate checks the fields Load cannot safely default: values that must be
// explicitly sane rather than silently substituted.
func Validate(cfg worker.Config) error {
	if cfg.GuestMemoryMiB == 0 {
		return fmt.Errorf("config: guest_memory_mib must be nonzero")
	}
	return nil
}
