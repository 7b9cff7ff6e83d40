package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/bazelnav/internal/index"
	"github.com/jward/bazelnav/internal/parser"
)

// mapResolver resolves labels from a fixed table.
type mapResolver map[string]string

var errUnknownLabel = errors.New("unknown label")

func (m mapResolver) ResolveLabel(label string) (string, error) {
	if p, ok := m[label]; ok {
		return p, nil
	}
	return "", errUnknownLabel
}

func indexSource(t *testing.T, src string, r LabelResolver) (*Result, error) {
	t.Helper()
	f, err := parser.Parse(context.Background(), "test.bzl", []byte(src))
	require.NoError(t, err)
	return Index(f, r)
}

func mustIndex(t *testing.T, src string, r LabelResolver) *Result {
	t.Helper()
	res, err := indexSource(t, src, r)
	require.NoError(t, err)
	return res
}

func pos(line, col int) index.Position {
	return index.Position{Line: line, Column: col}
}

func TestIndex_SingleAssignment(t *testing.T) {
	t.Parallel()
	res := mustIndex(t, "a = 3\n", mapResolver{})

	assert.Equal(t, map[string]index.Declaration{
		"a": {
			ImportedName: "a",
			RealName:     "a",
			Kind:         index.DeclaredInFile,
			Range:        index.Range{Start: pos(0, 0), End: pos(0, 1)},
		},
	}, res.Doc.Declarations)
	assert.Empty(t, res.Doc.Calls)
	assert.Empty(t, res.Deps)
}

func TestIndex_FunctionDeclaration(t *testing.T) {
	t.Parallel()
	src := "def hello():\n  call_to_other_function()\nhello()\n"
	res := mustIndex(t, src, mapResolver{})

	require.Len(t, res.Doc.Declarations, 1)
	hello := res.Doc.Declarations["hello"]
	assert.Equal(t, index.DeclaredInFile, hello.Kind)
	assert.Equal(t, pos(0, 4), hello.Range.Start)
	assert.Equal(t, pos(0, 9), hello.Range.End)

	assert.Equal(t, []index.Call{
		index.CallAt("call_to_other_function", pos(1, 2)),
		index.CallAt("hello", pos(2, 0)),
	}, res.Doc.Calls)
}

func TestIndex_LoadStatement(t *testing.T) {
	t.Parallel()
	src := "load('//:some_file.bzl', 'loaded_func', renamed = 'other_func')\nloaded_func()\nrenamed(3, 4)\n"
	r := mapResolver{"//:some_file.bzl": "/ws/some_file.bzl"}
	res := mustIndex(t, src, r)

	assert.Equal(t, map[string]index.Declaration{
		"loaded_func": index.LoadedFrom("loaded_func", "loaded_func", "/ws/some_file.bzl"),
		"renamed":     index.LoadedFrom("other_func", "renamed", "/ws/some_file.bzl"),
	}, res.Doc.Declarations)
	assert.Equal(t, []string{"/ws/some_file.bzl"}, res.Deps)
	assert.Equal(t, []index.Call{
		index.CallAt("loaded_func", pos(1, 0)),
		index.CallAt("renamed", pos(2, 0)),
	}, res.Doc.Calls)
}

func TestIndex_UnresolvedLoadIsSkipped(t *testing.T) {
	t.Parallel()
	src := "load('//:some_file.bzl', 'loaded_func', renamed = 'other_func')\n"
	res := mustIndex(t, src, mapResolver{})

	assert.Empty(t, res.Doc.Declarations)
	assert.Empty(t, res.Deps)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "//:some_file.bzl", res.Skipped[0].Label)
	assert.ErrorIs(t, res.Skipped[0].Err, errUnknownLabel)
}

func TestIndex_CallLoadedFunctionFromDeclaredFunction(t *testing.T) {
	t.Parallel()
	src := "load('//:b.bzl', 'loaded_func')\ndef local():\n    loaded_func()\n"
	res := mustIndex(t, src, mapResolver{"//:b.bzl": "/ws/b.bzl"})

	assert.Contains(t, res.Doc.Declarations, "local")
	assert.Contains(t, res.Doc.Declarations, "loaded_func")
	assert.Equal(t, []index.Call{index.CallAt("loaded_func", pos(2, 4))}, res.Doc.Calls)
}

func TestIndex_NestedCalls(t *testing.T) {
	t.Parallel()
	res := mustIndex(t, "x = f(g(), key = h(y))\n", mapResolver{})

	var names []string
	for _, c := range res.Doc.Calls {
		names = append(names, c.FunctionName)
	}
	assert.Equal(t, []string{"f", "g", "h", "y"}, names)
}

func TestIndex_IgnoredExpressions(t *testing.T) {
	t.Parallel()
	res := mustIndex(t, "x = [a, b]\ny = c.d()\nz = 1 + e\n", mapResolver{})
	assert.Empty(t, res.Doc.Calls)
	assert.Len(t, res.Doc.Declarations, 3)
}

func TestIndex_TupleTargetsAndRebinding(t *testing.T) {
	t.Parallel()
	res := mustIndex(t, "a, b = pair()\na = 1\n", mapResolver{})

	require.Contains(t, res.Doc.Declarations, "b")
	assert.Equal(t, pos(1, 0), res.Doc.Declarations["a"].Range.Start)
}

func TestIndex_DuplicateLoadsDedupDeps(t *testing.T) {
	t.Parallel()
	src := "load('//:b.bzl', 'x')\nload('//:b.bzl', 'y')\n"
	res := mustIndex(t, src, mapResolver{"//:b.bzl": "/ws/b.bzl"})
	assert.Equal(t, []string{"/ws/b.bzl"}, res.Deps)
	assert.Len(t, res.Doc.Declarations, 2)
}

func TestIndex_MalformedLoad(t *testing.T) {
	t.Parallel()
	r := mapResolver{"//:b.bzl": "/ws/b.bzl"}
	cases := []string{
		"load(label)\n",
		"load('//:b.bzl', name)\n",
		"load('//:b.bzl', x = y)\n",
		"load('//:b.bzl', **kw)\n",
		"load()\n",
	}
	for _, src := range cases {
		res, err := indexSource(t, src, r)
		require.Error(t, err, src)
		assert.Nil(t, res, src)
		assert.True(t, IsMalformedLoad(err), src)
	}
}

func TestIndex_Deterministic(t *testing.T) {
	t.Parallel()
	src := "load('//:b.bzl', 'x', y = 'z')\ndef f():\n    x()\n    y()\nf()\n"
	r := mapResolver{"//:b.bzl": "/ws/b.bzl"}
	first := mustIndex(t, src, r)
	second := mustIndex(t, src, r)
	assert.True(t, first.Doc.Equal(second.Doc))
	assert.Equal(t, first.Deps, second.Deps)
}
