// Package bazel maps load labels to files. It tracks the three roots a Bazel
// session cares about: the workspace the user opened, the source root that
// "//" labels currently resolve against, and the execution root where
// external repositories are materialized.
package bazel

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Default rewrite applied to the reported execution root so that "@repo"
// labels land in the directory holding external repositories.
const (
	DefaultMetadataSegment = "execroot/__main__"
	DefaultExternalDir     = "external"
)

// Roots is a snapshot of the resolver's paths.
type Roots struct {
	Workspace string `json:"workspace_root"`
	Source    string `json:"source_root"`
	Exec      string `json:"exec_root"`
}

// Fingerprint is a stable digest of the roots. Two indexes built under the
// same fingerprint resolved their labels against the same directories.
func (r Roots) Fingerprint() string {
	h := sha256.New()
	for _, p := range []string{r.Workspace, r.Source, r.Exec} {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Resolver is the label resolver. All methods are safe for concurrent use.
type Resolver struct {
	backend         Backend
	metadataSegment string
	externalDir     string

	mu    sync.Mutex
	roots Roots
	ready bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMetadataRewrite replaces segment with dir inside the reported
// execution root. An empty segment disables the rewrite.
func WithMetadataRewrite(segment, dir string) Option {
	return func(r *Resolver) {
		r.metadataSegment = segment
		r.externalDir = dir
	}
}

// NewResolver creates a Resolver that queries backend for workspace info.
func NewResolver(backend Backend, opts ...Option) *Resolver {
	r := &Resolver{
		backend:         backend,
		metadataSegment: DefaultMetadataSegment,
		externalDir:     DefaultExternalDir,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// UpdateWorkspace queries the build tool at root and resets all roots: the
// workspace and source roots become root, the execution root the rewritten
// info value. On failure the previous roots stay in effect.
func (r *Resolver) UpdateWorkspace(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return &WorkspaceUpdateError{Root: root, Err: err}
	}

	// The subprocess can take seconds; keep it outside the lock.
	out, err := r.backend.Info(ctx, abs)
	if err != nil {
		return &WorkspaceUpdateError{Root: abs, Err: err}
	}
	fields, err := ParseInfo(out)
	if err != nil {
		return &WorkspaceUpdateError{Root: abs, Err: err}
	}
	execRoot, err := readField(fields, InfoExecutionRoot)
	if err != nil {
		return &WorkspaceUpdateError{Root: abs, Err: err}
	}
	execRoot = r.rewriteExecRoot(execRoot)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.roots = Roots{Workspace: abs, Source: abs, Exec: execRoot}
	r.ready = true
	return nil
}

func (r *Resolver) rewriteExecRoot(execRoot string) string {
	if r.metadataSegment == "" {
		return filepath.Clean(execRoot)
	}
	segment := filepath.FromSlash(r.metadataSegment)
	dir := filepath.FromSlash(r.externalDir)
	return filepath.Clean(strings.Replace(filepath.FromSlash(execRoot), segment, dir, 1))
}

// Roots returns the current roots and whether UpdateWorkspace has succeeded.
func (r *Resolver) Roots() (Roots, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roots, r.ready
}

// MaybeChangeSourceRoot follows the user into or out of an external
// repository. A path under the execution root makes its top-level directory
// below the execution root the source root; a path under the workspace root
// restores the workspace root. Other paths change nothing.
func (r *Resolver) MaybeChangeSourceRoot(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		return fmt.Errorf("bazel: change source root for %s: %w", path, ErrRootsUnset)
	}

	path = filepath.Clean(path)
	if within(r.roots.Exec, path) {
		for dir := filepath.Dir(path); within(r.roots.Exec, dir) && dir != r.roots.Exec; dir = filepath.Dir(dir) {
			if filepath.Dir(dir) == r.roots.Exec {
				r.roots.Source = dir
				return nil
			}
		}
		return nil
	}
	if within(r.roots.Workspace, path) {
		r.roots.Source = r.roots.Workspace
	}
	return nil
}

// ResolveLabel maps label to an existing file. Labels starting with "//"
// resolve against the source root, all others against the execution root.
func (r *Resolver) ResolveLabel(label string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		return "", &LabelResolutionError{Label: label, Err: ErrRootsUnset}
	}

	root := r.roots.Exec
	if isWorkspaceAbsolute(label) {
		root = r.roots.Source
	}
	path := filepath.Join(root, SanitizeLabel(label))

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", &LabelResolutionError{Label: label, Path: path, Err: ErrLabelNotFound}
	}
	return path, nil
}

// within reports whether path is root or lies below it.
func within(root, path string) bool {
	if root == "" {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
