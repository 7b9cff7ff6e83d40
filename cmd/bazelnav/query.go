package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/bazelnav"
)

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <line> <col>",
	Short: "Find where the function called at a position is defined",
	Long:  "Indexes <file> and the files it loads, then resolves the call at the zero-based <line> and byte <col>. Prints nothing (an empty result) when the position is not inside a call.",
	Args:  cobra.ExactArgs(3),
	RunE:  runDefinition,
}

var rootsCmd = &cobra.Command{
	Use:   "roots [path]",
	Short: "Show the workspace, source and execution roots for a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRoots,
}

var docsCmd = &cobra.Command{
	Use:   "docs <file>",
	Short: "Show the declarations, calls and loads recorded for a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocs,
}

func runDefinition(cmd *cobra.Command, args []string) error {
	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("definition", err)
	}
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return outputError("definition", err)
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return outputError("definition", err)
	}

	s, err := openSession(filepath.Dir(file), os.Stderr)
	if err != nil {
		return outputError("definition", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	s.updateWorkspace(ctx)
	if err := s.engine.OpenDocument(ctx, file); err != nil {
		return outputError("definition", err)
	}

	locs := []CLILocation{}
	loc, err := s.engine.Query().ExplainDefinitionAt(file, line, col)
	switch {
	case err == nil:
		locs = append(locs, toCLILocation(*loc))
	case bazelnav.IsNoDefinition(err):
		s.logger.Debug("no definition", "file", file, "line", line, "col", col, "reason", err)
	default:
		return outputError("definition", err)
	}
	total := len(locs)
	return outputResult(CLIResult{Command: "definition", Results: locs, TotalCount: &total})
}

func runRoots(cmd *cobra.Command, args []string) error {
	dir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("roots", err)
	}
	s, err := openSession(dir, os.Stderr)
	if err != nil {
		return outputError("roots", err)
	}
	defer s.Close()

	if err := s.engine.UpdateWorkspace(cmd.Context(), s.root); err != nil {
		return outputError("roots", err)
	}
	roots, ok := s.engine.Roots()
	return outputResult(CLIResult{Command: "roots", Results: toCLIRoots(roots, ok)})
}

func runDocs(cmd *cobra.Command, args []string) error {
	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("docs", err)
	}
	s, err := openSession(filepath.Dir(file), os.Stderr)
	if err != nil {
		return outputError("docs", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	s.updateWorkspace(ctx)
	if err := s.engine.OpenDocument(ctx, file); err != nil {
		return outputError("docs", err)
	}
	return outputResult(CLIResult{Command: "docs", Results: toCLIDocument(file, s.engine.Query())})
}

// updateWorkspace loads the roots for the session's workspace. A failure
// is logged rather than returned: every load stays unresolved but
// definitions inside a single file still work.
func (s *session) updateWorkspace(ctx context.Context) {
	if !s.found {
		s.logger.Warn("no WORKSPACE or MODULE.bazel found; loads will not resolve", "dir", s.root)
		return
	}
	if err := s.engine.UpdateWorkspace(ctx, s.root); err != nil {
		s.logger.Warn("workspace update failed; loads will not resolve", "root", s.root, "error", err)
	}
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}
