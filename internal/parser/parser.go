// Package parser turns Starlark source into the syntax model. It drives
// tree-sitter with the Python grammar and converts only the node kinds the
// indexer cares about; everything else becomes syntax.OtherExpr or is
// dropped.
package parser

import (
	"context"
	"fmt"

	"fortio.org/safecast"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/bazelnav/internal/index"
	"github.com/jward/bazelnav/internal/syntax"
)

// ParseError reports a syntax error at the first ERROR or MISSING node.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parser: %s:%d:%d: %s", e.Path, e.Line, e.Column, e.Detail)
}

// Parse parses src as a Starlark file. path is only recorded on the result
// and in errors.
func Parse(ctx context.Context, path string, src []byte) (*syntax.File, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(grammar())

	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parser: parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(path, root)
	}

	c := &converter{src: src}
	file := &syntax.File{Path: path, Stmts: c.block(root)}
	if c.err != nil {
		return nil, fmt.Errorf("parser: %s: %w", path, c.err)
	}
	return file, nil
}

// syntaxError locates the first error node in document order.
func syntaxError(path string, root *sitter.Node) error {
	n := firstError(root)
	if n == nil {
		n = root
	}
	c := &converter{}
	at := c.pos(n)
	if c.err != nil {
		return fmt.Errorf("parser: %s: %w", path, c.err)
	}
	detail := "syntax error"
	if n.IsMissing() {
		detail = fmt.Sprintf("missing %s", n.Type())
	}
	return &ParseError{Path: path, Line: at.Line, Column: at.Column, Detail: detail}
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := firstError(n.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

// converter walks a tree-sitter tree into syntax nodes. The first position
// conversion failure is kept in err and stops nothing; Parse checks it once
// at the end.
type converter struct {
	src []byte
	err error
}

func (c *converter) pos(n *sitter.Node) index.Position {
	pt := n.StartPoint()
	line, err := safecast.Conv[int](pt.Row)
	if err != nil && c.err == nil {
		c.err = err
	}
	col, err := safecast.Conv[int](pt.Column)
	if err != nil && c.err == nil {
		c.err = err
	}
	return index.Position{Line: line, Column: col}
}

// namedChildren returns n's named children without comments.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

func (c *converter) block(n *sitter.Node) []syntax.Stmt {
	var stmts []syntax.Stmt
	for _, child := range namedChildren(n) {
		stmts = append(stmts, c.stmt(child)...)
	}
	return stmts
}

func (c *converter) stmt(n *sitter.Node) []syntax.Stmt {
	switch n.Type() {
	case "expression_statement":
		var stmts []syntax.Stmt
		for _, child := range namedChildren(n) {
			switch child.Type() {
			case "assignment":
				stmts = append(stmts, c.assignment(child)...)
			case "augmented_assignment":
				// Not a new binding.
			default:
				stmts = append(stmts, &syntax.ExprStmt{X: c.expr(child)})
			}
		}
		return stmts

	case "function_definition":
		name := n.ChildByFieldName("name")
		if name == nil {
			return nil
		}
		return []syntax.Stmt{&syntax.DefStmt{
			Name: &syntax.Ident{Name: name.Content(c.src), Pos: c.pos(name)},
			Body: c.block(n.ChildByFieldName("body")),
		}}

	case "decorated_definition":
		if def := n.ChildByFieldName("definition"); def != nil {
			return c.stmt(def)
		}
		return nil

	case "if_statement":
		return []syntax.Stmt{c.ifStmt(n)}

	case "for_statement":
		return []syntax.Stmt{&syntax.ForStmt{
			Vars: c.target(n.ChildByFieldName("left")),
			X:    c.expr(n.ChildByFieldName("right")),
			Body: c.block(n.ChildByFieldName("body")),
		}}

	case "return_statement":
		ret := &syntax.ReturnStmt{}
		if kids := namedChildren(n); len(kids) > 0 {
			ret.Result = c.expr(kids[0])
		}
		return []syntax.Stmt{ret}

	default:
		return nil
	}
}

// assignment flattens `a = b = value` into one AssignStmt per target, the
// last carrying the value.
func (c *converter) assignment(n *sitter.Node) []syntax.Stmt {
	stmt := &syntax.AssignStmt{Targets: []syntax.Expr{c.target(n.ChildByFieldName("left"))}}
	right := n.ChildByFieldName("right")
	if right == nil {
		// Annotation only: `x: int`.
		return []syntax.Stmt{stmt}
	}
	if right.Type() == "assignment" {
		return append([]syntax.Stmt{stmt}, c.assignment(right)...)
	}
	stmt.Value = c.expr(right)
	return []syntax.Stmt{stmt}
}

func (c *converter) ifStmt(n *sitter.Node) *syntax.IfStmt {
	stmt := &syntax.IfStmt{
		Cond: c.expr(n.ChildByFieldName("condition")),
		True: c.block(n.ChildByFieldName("consequence")),
	}
	// Fold elif/else clauses into a right-leaning chain.
	tail := stmt
	for _, child := range namedChildren(n) {
		switch child.Type() {
		case "elif_clause":
			next := &syntax.IfStmt{
				Cond: c.expr(child.ChildByFieldName("condition")),
				True: c.block(child.ChildByFieldName("consequence")),
			}
			tail.False = []syntax.Stmt{next}
			tail = next
		case "else_clause":
			tail.False = c.block(child.ChildByFieldName("body"))
		}
	}
	return stmt
}

func (c *converter) target(n *sitter.Node) syntax.Expr {
	if n == nil {
		return &syntax.OtherExpr{}
	}
	switch n.Type() {
	case "identifier":
		return c.ident(n)
	case "pattern_list", "tuple_pattern", "list_pattern", "expression_list", "tuple":
		tuple := &syntax.TupleExpr{Pos: c.pos(n)}
		for _, child := range namedChildren(n) {
			tuple.Elts = append(tuple.Elts, c.target(child))
		}
		return tuple
	case "parenthesized_expression":
		if kids := namedChildren(n); len(kids) == 1 {
			return c.target(kids[0])
		}
	}
	return &syntax.OtherExpr{Kind: n.Type(), Pos: c.pos(n)}
}

func (c *converter) ident(n *sitter.Node) *syntax.Ident {
	return &syntax.Ident{Name: n.Content(c.src), Pos: c.pos(n)}
}

func (c *converter) expr(n *sitter.Node) syntax.Expr {
	if n == nil {
		return &syntax.OtherExpr{}
	}
	switch n.Type() {
	case "identifier":
		return c.ident(n)
	case "call":
		return c.call(n)
	case "string":
		if lit, ok := c.stringLit(n); ok {
			return lit
		}
	case "parenthesized_expression":
		if kids := namedChildren(n); len(kids) == 1 {
			return c.expr(kids[0])
		}
	}
	return &syntax.OtherExpr{Kind: n.Type(), Pos: c.pos(n)}
}

func (c *converter) call(n *sitter.Node) *syntax.CallExpr {
	call := &syntax.CallExpr{
		Fn:  c.expr(n.ChildByFieldName("function")),
		Pos: c.pos(n),
	}
	args := n.ChildByFieldName("arguments")
	if args == nil || args.Type() != "argument_list" {
		// f(x for x in y) carries a generator_expression instead.
		return call
	}
	for _, arg := range namedChildren(args) {
		switch arg.Type() {
		case "keyword_argument":
			kw := &syntax.Keyword{Value: c.expr(arg.ChildByFieldName("value"))}
			if name := arg.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
				kw.Name = c.ident(name)
			}
			call.Kwargs = append(call.Kwargs, kw)
		case "dictionary_splat":
			kw := &syntax.Keyword{Value: &syntax.OtherExpr{Kind: arg.Type(), Pos: c.pos(arg)}}
			if kids := namedChildren(arg); len(kids) == 1 {
				kw.Value = c.expr(kids[0])
			}
			call.Kwargs = append(call.Kwargs, kw)
		case "list_splat":
			call.Args = append(call.Args, &syntax.OtherExpr{Kind: arg.Type(), Pos: c.pos(arg)})
		default:
			call.Args = append(call.Args, c.expr(arg))
		}
	}
	return call
}

// stringLit strips the prefix and quotes from a plain string literal.
// Formatted strings are not literals.
func (c *converter) stringLit(n *sitter.Node) (*syntax.StringLit, bool) {
	for _, child := range namedChildren(n) {
		if child.Type() == "interpolation" {
			return nil, false
		}
	}
	text := n.Content(c.src)
	i := 0
	for i < len(text) && text[i] != '"' && text[i] != '\'' {
		switch text[i] {
		case 'f', 'F':
			return nil, false
		}
		i++
	}
	text = text[i:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(text) >= 2*len(q) && text[:len(q)] == q && text[len(text)-len(q):] == q {
			return &syntax.StringLit{Value: text[len(q) : len(text)-len(q)], Pos: c.pos(n)}, true
		}
	}
	return nil, false
}
