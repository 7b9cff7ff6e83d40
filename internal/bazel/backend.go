package bazel

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Backend answers the build tool's info query for a directory. Executable
// runs the real tool; StaticInfo returns canned output for tests and for
// configurations that pin the execution root.
type Backend interface {
	Info(ctx context.Context, dir string) (string, error)
}

// Executable runs `<Path> info` in the queried directory.
type Executable struct {
	Path string
}

// Info runs the info subcommand and returns its stdout. A non-zero exit is an
// error carrying the tool's stderr.
func (b Executable) Info(ctx context.Context, dir string) (string, error) {
	path := b.Path
	if path == "" {
		path = "bazel"
	}
	cmd := exec.CommandContext(ctx, path, "info")
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("%s info: %w", path, err)
		}
		return "", fmt.Errorf("%s info: %w: %s", path, err, msg)
	}
	return stdout.String(), nil
}

// StaticInfo returns Output (or Err) regardless of the directory.
type StaticInfo struct {
	Output string
	Err    error
}

func (b StaticInfo) Info(context.Context, string) (string, error) {
	return b.Output, b.Err
}

// StaticExecRoot builds a StaticInfo reporting execRoot as the execution
// root.
func StaticExecRoot(execRoot string) StaticInfo {
	return StaticInfo{Output: InfoExecutionRoot + ": " + execRoot + "\n"}
}
