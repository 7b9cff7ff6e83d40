// Package syntax is the small Starlark syntax model the indexer walks. The
// parser package builds it from tree-sitter output; nothing here depends on
// the parser implementation.
package syntax

import "github.com/jward/bazelnav/internal/index"

// File is a parsed Starlark source file.
type File struct {
	Path  string
	Stmts []Stmt
}

// Stmt is any statement node.
type Stmt interface {
	stmtNode()
}

// Expr is any expression node.
type Expr interface {
	Start() index.Position
}

// DefStmt is a function definition. Name.Pos is the position of the name,
// not of the def keyword.
type DefStmt struct {
	Name *Ident
	Body []Stmt
}

// AssignStmt is `targets = value`. Chained assignments produce one
// AssignStmt per link, left to right.
type AssignStmt struct {
	Targets []Expr
	Value   Expr
}

// ExprStmt is a bare expression such as a rule invocation.
type ExprStmt struct {
	X Expr
}

// ReturnStmt carries an optional result.
type ReturnStmt struct {
	Result Expr
}

// IfStmt covers if/elif/else; elif chains nest in False.
type IfStmt struct {
	Cond  Expr
	True  []Stmt
	False []Stmt
}

// ForStmt is `for vars in x: body`.
type ForStmt struct {
	Vars Expr
	X    Expr
	Body []Stmt
}

func (*DefStmt) stmtNode()    {}
func (*AssignStmt) stmtNode() {}
func (*ExprStmt) stmtNode()   {}
func (*ReturnStmt) stmtNode() {}
func (*IfStmt) stmtNode()     {}
func (*ForStmt) stmtNode()    {}

// Ident is a bare identifier.
type Ident struct {
	Name string
	Pos  index.Position
}

// CallExpr is fn(args..., name = value...).
type CallExpr struct {
	Fn     Expr
	Args   []Expr
	Kwargs []*Keyword
	Pos    index.Position
}

// Keyword is a keyword argument. Name is nil for **kwargs splats.
type Keyword struct {
	Name  *Ident
	Value Expr
}

// StringLit is a plain string literal with quotes and prefixes removed.
type StringLit struct {
	Value string
	Pos   index.Position
}

// TupleExpr groups comma-separated expressions, e.g. assignment targets.
type TupleExpr struct {
	Elts []Expr
	Pos  index.Position
}

// OtherExpr stands in for anything the indexer does not look inside.
type OtherExpr struct {
	Kind string
	Pos  index.Position
}

func (e *Ident) Start() index.Position     { return e.Pos }
func (e *CallExpr) Start() index.Position  { return e.Pos }
func (e *StringLit) Start() index.Position { return e.Pos }
func (e *TupleExpr) Start() index.Position { return e.Pos }
func (e *OtherExpr) Start() index.Position { return e.Pos }

// CalleeName returns the callee identifier's name, or "" when the callee is
// not a bare identifier.
func (c *CallExpr) CalleeName() string {
	if id, ok := c.Fn.(*Ident); ok {
		return id.Name
	}
	return ""
}
