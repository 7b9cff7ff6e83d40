package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/bazelnav"
	"github.com/jward/bazelnav/internal/config"
	"github.com/jward/bazelnav/internal/lsp"
	"github.com/jward/bazelnav/internal/mcp"
)

var flagLogFile string

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Serve go-to-definition over the Language Server Protocol on stdio",
	Long:  "Runs a language server on stdin and stdout. The workspace, and the .bazelnav.toml read from it, are taken from the client's initialize request. Logs go to stderr or --logfile.",
	Args:  cobra.NoArgs,
	RunE:  runLSP,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve definition lookups as MCP tools on stdio",
	Long:  "Runs a Model Context Protocol server on stdin and stdout. If the working directory is inside a Bazel workspace, it is loaded at startup.",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func init() {
	lspCmd.Flags().StringVar(&flagLogFile, "logfile", "", "append logs to this file instead of stderr")
}

// logOutput opens the log destination for the server commands. stdout is
// never used; it carries the protocol.
func logOutput() (io.Writer, func(), error) {
	if flagLogFile == "" {
		return os.Stderr, func() {}, nil
	}
	f, err := os.OpenFile(flagLogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// startWatch runs the watcher in the background when the configuration
// asks for it.
func (s *session) startWatch(ctx context.Context) {
	if !s.cfg.Watch.Enabled || !s.found {
		return
	}
	go func() {
		if err := s.engine.Watch(ctx, s.root); err != nil {
			s.logger.Error("watcher stopped", "root", s.root, "error", err)
		}
	}()
}

// lspEngines builds the language server's engine once the client names
// its workspace, so that workspace's configuration applies. fallback is
// used when the client sends no root.
type lspEngines struct {
	ctx      context.Context
	fallback string
	logger   *slog.Logger
	level    *slog.LevelVar
	session  *session
}

func (l *lspEngines) open(_ context.Context, root string) (*bazelnav.Engine, error) {
	if root == "" {
		root = l.fallback
	}
	s, err := newSession(root, l.logger, l.level)
	if err != nil {
		return nil, err
	}
	l.session = s
	s.startWatch(l.ctx)
	return s.engine, nil
}

func (l *lspEngines) Close() error {
	if l.session == nil {
		return nil
	}
	return l.session.Close()
}

func runLSP(cmd *cobra.Command, args []string) error {
	out, closeLog, err := logOutput()
	if err != nil {
		return err
	}
	defer closeLog()

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	level := new(slog.LevelVar)
	if flagLogLevel != "" {
		l, err := config.ParseLevel(flagLogLevel)
		if err != nil {
			return err
		}
		level.Set(l)
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	engines := &lspEngines{ctx: ctx, fallback: cwd, logger: logger, level: level}
	defer engines.Close()

	srv := lsp.NewServer(engines.open, lsp.WithLogger(logger), lsp.WithVersion(version))
	return srv.Serve(ctx, lsp.Stdio())
}

func runMCP(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	s, err := openSession(cwd, os.Stderr)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if s.found {
		s.updateWorkspace(ctx)
	}
	s.startWatch(ctx)

	return mcp.NewServer(s.engine, s.logger).Run(ctx, version)
}
