// Package config loads the optional .bazelnav.toml workspace configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jward/bazelnav/internal/bazel"
	"github.com/jward/bazelnav/internal/documents"
	"github.com/jward/bazelnav/internal/watch"
)

// FileName is looked up in the workspace root when no path is given.
const FileName = ".bazelnav.toml"

// Config is the decoded configuration. Zero values are never used directly;
// Load starts from Default and overlays the file.
type Config struct {
	Bazel           string `toml:"bazel"`
	ExecRoot        string `toml:"exec_root"`
	MetadataSegment string `toml:"metadata_segment"`
	ExternalDir     string `toml:"external_dir"`
	MaxAliasDepth   int    `toml:"max_alias_depth"`
	LogLevel        string `toml:"log_level"`
	Cache           Cache  `toml:"cache"`
	Watch           Watch  `toml:"watch"`
}

// Cache configures the persistent index cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Watch configures the filesystem watcher.
type Watch struct {
	Enabled    bool `toml:"enabled"`
	DebounceMS int  `toml:"debounce_ms"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Bazel:           "bazel",
		MetadataSegment: bazel.DefaultMetadataSegment,
		ExternalDir:     bazel.DefaultExternalDir,
		MaxAliasDepth:   documents.DefaultMaxAliasDepth,
		LogLevel:        "info",
		Cache:           Cache{Path: filepath.Join(".bazelnav", "index.db")},
		Watch:           Watch{DebounceMS: int(watch.DefaultDebounce / time.Millisecond)},
	}
}

// Load reads the configuration for workspace root. An explicit path must
// exist; otherwise root/.bazelnav.toml is used if present and defaults
// apply if not. Relative cache paths are resolved against root.
func Load(root, path string) (Config, error) {
	cfg := Default()
	if path == "" {
		candidate := filepath.Join(root, FileName)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path != "" {
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}
	if err := cfg.Validate(); err != nil {
		if path != "" {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
		return Config{}, err
	}
	if cfg.Cache.Path != "" && !filepath.IsAbs(cfg.Cache.Path) && root != "" {
		cfg.Cache.Path = filepath.Join(root, cfg.Cache.Path)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.MaxAliasDepth <= 0 {
		errs = append(errs, fmt.Errorf("max_alias_depth must be positive, got %d", c.MaxAliasDepth))
	}
	if c.Watch.DebounceMS < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce_ms must not be negative, got %d", c.Watch.DebounceMS))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		errs = append(errs, errors.New("cache.path is required when the cache is enabled"))
	}
	return errors.Join(errs...)
}

// Debounce returns the watcher debounce as a duration.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

// ParseLevel maps debug, info, warn or error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", s)
	}
	return l, nil
}
