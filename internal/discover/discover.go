// Package discover finds Starlark files in a workspace.
package discover

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/jward/bazelnav/internal/parser"
)

var skipDirs = map[string]struct{}{
	"node_modules": {},
	"__pycache__":  {},
	"venv":         {},
	".venv":        {},
}

// Files returns the absolute paths of Starlark files under root, sorted.
// Hidden directories, bazel-* convenience symlinks and paths matched by the
// root .gitignore are skipped.
func Files(ctx context.Context, root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	gi := loadGitignore(root)

	var results []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "bazel-") {
				return filepath.SkipDir
			}
			if gi != nil && gi.MatchesPath(rel(root, path)+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		// bazel-out and friends are symlinks at the root; never follow them.
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if !parser.IsStarlarkFile(name) {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel(root, path)) {
			return nil
		}
		results = append(results, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(results)
	return results, nil
}

func rel(root, path string) string {
	r, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(r)
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
