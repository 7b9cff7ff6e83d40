package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var flagWatch bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index every Starlark file under a directory",
	Long:  "Parses BUILD, WORKSPACE, MODULE.bazel and .bzl files under [path] and the files they load. With --cache the result is kept in SQLite and reused by later runs.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagWatch, "watch", false, "keep running and re-index files as they change")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	dir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("index", err)
	}
	s, err := openSession(dir, os.Stderr)
	if err != nil {
		return outputError("index", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	s.updateWorkspace(ctx)
	stats, err := s.engine.IndexDirectory(ctx, dir)
	if err != nil {
		return outputError("index", err)
	}

	fmt.Fprintf(os.Stderr, "Indexed %s in %s\n", dir, time.Since(start).Round(time.Millisecond))
	if s.cfg.Cache.Enabled {
		fmt.Fprintf(os.Stderr, "Database: %s\n", s.cfg.Cache.Path)
	}

	err = outputResult(CLIResult{Command: "index", Results: CLIIndexStats{
		Root:      dir,
		Files:     stats.Files,
		Failed:    stats.Failed,
		Documents: stats.Documents,
		Pruned:    stats.Pruned,
	}})
	if err != nil || !flagWatch {
		return err
	}

	fmt.Fprintf(os.Stderr, "Watching %s (interrupt to stop)\n", dir)
	return s.engine.Watch(ctx, dir)
}
