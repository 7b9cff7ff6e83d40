package bazel

import (
	"path/filepath"
	"strings"
)

var labelSeparators = strings.NewReplacer("//:", "/", "//", "/", ":", "/")

// SanitizeLabel turns a label into a relative path: trim, drop '@', collapse
// each "//:", "//" and ":" to one separator, then strip a single leading
// separator. It does not look at roots or the filesystem.
//
//	//pkg:defs.bzl        -> pkg/defs.bzl
//	//:defs.bzl           -> defs.bzl
//	@repo//pkg:defs.bzl   -> repo/pkg/defs.bzl
//	defs.bzl              -> defs.bzl
func SanitizeLabel(label string) string {
	s := strings.TrimSpace(label)
	s = strings.ReplaceAll(s, "@", "")
	s = labelSeparators.Replace(s)
	s = strings.TrimPrefix(s, "/")
	return filepath.FromSlash(s)
}

// isWorkspaceAbsolute reports whether label resolves against the source
// root rather than the execution root.
func isWorkspaceAbsolute(label string) bool {
	return strings.HasPrefix(strings.TrimSpace(label), "//")
}
