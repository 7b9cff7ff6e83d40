package bazelnav

import (
	"github.com/jward/bazelnav/internal/bazel"
	"github.com/jward/bazelnav/internal/index"
)

// Public type aliases for the internal types used in the Engine and
// QueryBuilder API.

type Position = index.Position
type Range = index.Range
type Location = index.Location
type Declaration = index.Declaration
type Call = index.Call
type IndexedDocument = index.IndexedDocument
type Roots = bazel.Roots
type Backend = bazel.Backend
type SourceKind = index.SourceKind

// Declaration kinds.
const (
	DeclaredInFile = index.DeclaredInFile
	Loaded         = index.Loaded
)
