package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	flagFormat   string
	flagConfig   string
	flagLogLevel string
	flagBazel    string
	flagExecRoot string
	flagCache    bool
	flagDB       string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "bazelnav",
	Short:         "Go-to-definition for Bazel Starlark files",
	Long:          "bazelnav indexes BUILD, WORKSPACE, MODULE.bazel and .bzl files and resolves calls to the function they refer to, following load statements across packages and external repositories.",
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagFormat, "format", "json", "output format: json|text")
	pf.StringVar(&flagConfig, "config", "", "config file (default: .bazelnav.toml in the workspace root)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	pf.StringVar(&flagBazel, "bazel", "", "bazel executable used for `bazel info` (overrides config)")
	pf.StringVar(&flagExecRoot, "exec-root", "", "use this execution root instead of running bazel")
	pf.BoolVar(&flagCache, "cache", false, "keep the index in a SQLite cache between runs")
	pf.StringVar(&flagDB, "db", "", "cache database path, implies --cache (default: .bazelnav/index.db relative to workspace root)")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(definitionCmd)
	rootCmd.AddCommand(rootsCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(lspCmd)
	rootCmd.AddCommand(mcpCmd)
}
