package bazelnav

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/jward/bazelnav/internal/documents"
	"github.com/jward/bazelnav/internal/index"
)

// QueryBuilder provides read-only queries over the indexed documents.
type QueryBuilder struct {
	docs *documents.Documents
}

// DefinitionAt finds where the function called at (line, col) in file is
// defined, following loads and renames across files. Lines and columns are
// zero-based. It returns nil when there is no definition; an error is only
// returned for an invalid position.
func (q *QueryBuilder) DefinitionAt(file string, line, col int) (*Location, error) {
	if line < 0 || col < 0 {
		return nil, fmt.Errorf("definition at: invalid position %d:%d", line, col)
	}
	loc, ok := q.docs.LocateDeclarationOfCallAt(filepath.Clean(file), index.Position{Line: line, Column: col})
	if !ok {
		return nil, nil
	}
	return &loc, nil
}

// ExplainDefinitionAt is DefinitionAt with the reason a lookup came back
// empty. The error wraps documents.ErrNoDefinition in that case.
func (q *QueryBuilder) ExplainDefinitionAt(file string, line, col int) (*Location, error) {
	if line < 0 || col < 0 {
		return nil, fmt.Errorf("definition at: invalid position %d:%d", line, col)
	}
	loc, err := q.docs.Resolve(filepath.Clean(file), index.Position{Line: line, Column: col})
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// IsNoDefinition reports whether err is an empty lookup rather than a bad
// request.
func IsNoDefinition(err error) bool {
	return errors.Is(err, documents.ErrNoDefinition)
}

// Document returns the indexed form of file, or nil if it is not indexed.
func (q *QueryBuilder) Document(file string) *IndexedDocument {
	doc, ok := q.docs.GetDoc(filepath.Clean(file))
	if !ok {
		return nil
	}
	return doc
}

// Declarations returns the declarations of file sorted by name.
func (q *QueryBuilder) Declarations(file string) []Declaration {
	doc := q.Document(file)
	if doc == nil {
		return nil
	}
	out := make([]Declaration, 0, len(doc.Declarations))
	for _, d := range doc.Declarations {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ImportedName < out[j].ImportedName })
	return out
}

// Calls returns the call sites of file in source order.
func (q *QueryBuilder) Calls(file string) []Call {
	doc := q.Document(file)
	if doc == nil {
		return nil
	}
	return append([]Call(nil), doc.Calls...)
}

// Dependencies returns the files file loads symbols from, sorted.
func (q *QueryBuilder) Dependencies(file string) []string {
	doc := q.Document(file)
	if doc == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, d := range doc.Declarations {
		if d.Kind != index.Loaded || seen[d.Path] {
			continue
		}
		seen[d.Path] = true
		out = append(out, d.Path)
	}
	sort.Strings(out)
	return out
}

// Documents returns every indexed path in sorted order.
func (q *QueryBuilder) Documents() []string {
	return q.docs.ListDocs()
}
