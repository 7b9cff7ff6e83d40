package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jward/bazelnav"
	"github.com/jward/bazelnav/internal/bazel"
	"github.com/jward/bazelnav/internal/config"
)

// workspaceMarkers identify a Bazel workspace root.
var workspaceMarkers = []string{"MODULE.bazel", "WORKSPACE.bazel", "WORKSPACE"}

// session bundles what every command needs: the workspace root, the
// effective configuration and an engine built from it.
type session struct {
	root   string
	found  bool
	cfg    config.Config
	logger *slog.Logger
	engine *bazelnav.Engine
}

// openSession loads the configuration for the workspace containing
// startDir and creates an engine. Logs go to logOut.
func openSession(startDir string, logOut io.Writer) (*session, error) {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))
	return newSession(startDir, logger, level)
}

// newSession is openSession with a caller-supplied logger. level is set
// from the effective configuration.
func newSession(startDir string, logger *slog.Logger, level *slog.LevelVar) (*session, error) {
	root, found := findWorkspaceRoot(startDir)
	cfg, err := config.Load(root, flagConfig)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(&cfg, root); err != nil {
		return nil, err
	}
	l, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	level.Set(l)

	if cfg.Cache.Enabled {
		dir := filepath.Dir(cfg.Cache.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	engine, err := bazelnav.New(engineOptions(cfg, logger)...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return &session{root: root, found: found, cfg: cfg, logger: logger, engine: engine}, nil
}

func (s *session) Close() error {
	return s.engine.Close()
}

// applyFlags overlays command-line flags on cfg.
func applyFlags(cfg *config.Config, root string) error {
	if flagLogLevel != "" {
		if _, err := config.ParseLevel(flagLogLevel); err != nil {
			return err
		}
		cfg.LogLevel = flagLogLevel
	}
	if flagBazel != "" {
		cfg.Bazel = flagBazel
	}
	if flagExecRoot != "" {
		abs, err := filepath.Abs(flagExecRoot)
		if err != nil {
			return fmt.Errorf("resolving path %q: %w", flagExecRoot, err)
		}
		cfg.ExecRoot = abs
	}
	if flagCache {
		cfg.Cache.Enabled = true
	}
	if flagDB != "" {
		cfg.Cache.Enabled = true
		cfg.Cache.Path = flagDB
		if !filepath.IsAbs(flagDB) {
			cfg.Cache.Path = filepath.Join(root, flagDB)
		}
	}
	return nil
}

// backendFor picks how the execution root is discovered. A configured
// exec_root skips the bazel subprocess entirely.
func backendFor(cfg config.Config) bazelnav.Backend {
	if cfg.ExecRoot != "" {
		return bazel.StaticExecRoot(cfg.ExecRoot)
	}
	return bazel.Executable{Path: cfg.Bazel}
}

func engineOptions(cfg config.Config, logger *slog.Logger) []bazelnav.Option {
	opts := []bazelnav.Option{
		bazelnav.WithLogger(logger),
		bazelnav.WithBackend(backendFor(cfg)),
		bazelnav.WithMetadataRewrite(cfg.MetadataSegment, cfg.ExternalDir),
		bazelnav.WithMaxAliasDepth(cfg.MaxAliasDepth),
		bazelnav.WithDebounce(cfg.Debounce()),
	}
	if cfg.Cache.Enabled {
		opts = append(opts, bazelnav.WithCache(cfg.Cache.Path))
	}
	return opts
}

// findWorkspaceRoot walks up from startDir looking for a WORKSPACE,
// WORKSPACE.bazel or MODULE.bazel file. Returns startDir and false if
// none is found.
func findWorkspaceRoot(startDir string) (string, bool) {
	dir := startDir
	for {
		for _, marker := range workspaceMarkers {
			if info, err := os.Stat(filepath.Join(dir, marker)); err == nil && !info.IsDir() {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir, false
		}
		dir = parent
	}
}

// resolveTargetDir returns the absolute path of the directory argument,
// or of the working directory when there is none.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// resolveFilePath makes file absolute.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return filepath.Clean(file), nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}
