// Package indexer extracts declarations and call sites from a parsed
// Starlark file and resolves its load statements into dependency paths.
package indexer

import (
	"errors"
	"fmt"

	"github.com/jward/bazelnav/internal/index"
	"github.com/jward/bazelnav/internal/syntax"
)

// LabelResolver maps a load label to an existing file.
type LabelResolver interface {
	ResolveLabel(label string) (string, error)
}

// MalformedLoadError reports a load call the indexer cannot interpret. It
// fails the whole document.
type MalformedLoadError struct {
	Line   int
	Column int
	Reason string
}

func (e *MalformedLoadError) Error() string {
	return fmt.Sprintf("indexer: malformed load at %d:%d: %s", e.Line, e.Column, e.Reason)
}

// SkippedLoad records a load whose label did not resolve. Its names are not
// declared and its file is not a dependency.
type SkippedLoad struct {
	Label string
	Err   error
}

// Result is the outcome of indexing one file.
type Result struct {
	Doc *index.IndexedDocument
	// Deps lists resolved load targets in source order, without duplicates.
	Deps    []string
	Skipped []SkippedLoad
}

// Index walks file and returns its IndexedDocument plus the files it loads.
// A load whose label fails to resolve is skipped. A malformed load fails
// the whole file and no partial result is returned.
func Index(file *syntax.File, resolver LabelResolver) (*Result, error) {
	ix := &indexer{
		resolver: resolver,
		res:      &Result{Doc: index.NewIndexedDocument()},
		seen:     make(map[string]bool),
	}
	if err := ix.stmts(file.Stmts); err != nil {
		return nil, err
	}
	return ix.res, nil
}

type indexer struct {
	resolver LabelResolver
	res      *Result
	seen     map[string]bool
}

func (ix *indexer) stmts(stmts []syntax.Stmt) error {
	for _, s := range stmts {
		if err := ix.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (ix *indexer) stmt(s syntax.Stmt) error {
	switch s := s.(type) {
	case *syntax.DefStmt:
		ix.declare(s.Name)
		return ix.stmts(s.Body)
	case *syntax.AssignStmt:
		for _, target := range s.Targets {
			ix.declareTarget(target)
		}
		return ix.expr(s.Value)
	case *syntax.ExprStmt:
		return ix.expr(s.X)
	case *syntax.ReturnStmt:
		return ix.expr(s.Result)
	case *syntax.IfStmt:
		if err := ix.expr(s.Cond); err != nil {
			return err
		}
		if err := ix.stmts(s.True); err != nil {
			return err
		}
		return ix.stmts(s.False)
	case *syntax.ForStmt:
		if err := ix.expr(s.X); err != nil {
			return err
		}
		return ix.stmts(s.Body)
	}
	return nil
}

func (ix *indexer) declare(id *syntax.Ident) {
	ix.res.Doc.Declare(index.DeclaredAt(id.Name, index.IdentifierRange(id.Name, id.Pos)))
}

// declareTarget declares every identifier in an assignment target,
// descending into tuples. Attribute and subscript targets bind nothing.
func (ix *indexer) declareTarget(e syntax.Expr) {
	switch e := e.(type) {
	case *syntax.Ident:
		ix.declare(e)
	case *syntax.TupleExpr:
		for _, elt := range e.Elts {
			ix.declareTarget(elt)
		}
	}
}

func (ix *indexer) expr(e syntax.Expr) error {
	switch e := e.(type) {
	case *syntax.Ident:
		ix.res.Doc.AddCall(index.CallAt(e.Name, e.Pos))
	case *syntax.CallExpr:
		if e.CalleeName() == "load" {
			return ix.load(e)
		}
		if err := ix.expr(e.Fn); err != nil {
			return err
		}
		for _, arg := range e.Args {
			if err := ix.expr(arg); err != nil {
				return err
			}
		}
		for _, kw := range e.Kwargs {
			if err := ix.expr(kw.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

// load handles load(label, "name"..., local = "name"...). The label must be
// a string literal and so must every imported name.
func (ix *indexer) load(call *syntax.CallExpr) error {
	if len(call.Args) == 0 {
		return malformed(call.Pos, "missing label")
	}
	label, ok := call.Args[0].(*syntax.StringLit)
	if !ok {
		return malformed(call.Args[0].Start(), "label is not a string literal")
	}

	names := make([]*syntax.StringLit, 0, len(call.Args)-1)
	for _, arg := range call.Args[1:] {
		lit, ok := arg.(*syntax.StringLit)
		if !ok {
			return malformed(arg.Start(), "imported name is not a string literal")
		}
		names = append(names, lit)
	}
	for _, kw := range call.Kwargs {
		if kw.Name == nil {
			return malformed(kw.Value.Start(), "keyword argument without a name")
		}
		if _, ok := kw.Value.(*syntax.StringLit); !ok {
			return malformed(kw.Value.Start(), fmt.Sprintf("value of %s is not a string literal", kw.Name.Name))
		}
	}

	path, err := ix.resolver.ResolveLabel(label.Value)
	if err != nil {
		ix.res.Skipped = append(ix.res.Skipped, SkippedLoad{Label: label.Value, Err: err})
		return nil
	}

	doc := ix.res.Doc
	for _, n := range names {
		doc.Declare(index.LoadedFrom(n.Value, n.Value, path))
	}
	for _, kw := range call.Kwargs {
		doc.Declare(index.LoadedFrom(kw.Value.(*syntax.StringLit).Value, kw.Name.Name, path))
	}
	if !ix.seen[path] {
		ix.seen[path] = true
		ix.res.Deps = append(ix.res.Deps, path)
	}
	return nil
}

func malformed(pos index.Position, reason string) error {
	return &MalformedLoadError{Line: pos.Line, Column: pos.Column, Reason: reason}
}

// IsMalformedLoad reports whether err came from a malformed load call.
func IsMalformedLoad(err error) bool {
	var m *MalformedLoadError
	return errors.As(err, &m)
}
