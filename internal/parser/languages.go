package parser

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// FileKind classifies a Starlark file by its role in a Bazel workspace.
type FileKind string

const (
	KindBuild     FileKind = "build"
	KindWorkspace FileKind = "workspace"
	KindModule    FileKind = "module"
	KindExtension FileKind = "extension"
	KindPrelude   FileKind = "prelude"
)

// nameToKind matches exact base names.
var nameToKind = map[string]FileKind{
	"BUILD":           KindBuild,
	"BUILD.bazel":     KindBuild,
	"WORKSPACE":       KindWorkspace,
	"WORKSPACE.bazel": KindWorkspace,
	"MODULE.bazel":    KindModule,
	"prelude_bazel":   KindPrelude,
}

// extToKind matches lowercase extensions.
var extToKind = map[string]FileKind{
	".bzl":  KindExtension,
	".star": KindExtension,
	".sky":  KindExtension,
}

// Starlark has no grammar of its own in the binding; it is a syntactic subset
// of Python, so the Python grammar is used. Initialized on first use.
var (
	starlarkGrammar *sitter.Language
	grammarOnce     sync.Once
)

func grammar() *sitter.Language {
	grammarOnce.Do(func() {
		starlarkGrammar = python.GetLanguage()
	})
	return starlarkGrammar
}

// KindForFile returns the Starlark file kind for path. Returns ("", false) if
// the file is not a Starlark file.
func KindForFile(path string) (FileKind, bool) {
	base := filepath.Base(path)
	if k, ok := nameToKind[base]; ok {
		return k, true
	}
	k, ok := extToKind[strings.ToLower(filepath.Ext(base))]
	return k, ok
}

// IsStarlarkFile reports whether path names a file the indexer understands.
func IsStarlarkFile(path string) bool {
	_, ok := KindForFile(path)
	return ok
}
