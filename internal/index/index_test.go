package index

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifierRange(t *testing.T) {
	t.Parallel()
	r := IdentifierRange("a", Position{Line: 0, Column: 0})
	assert.Equal(t, Position{0, 0}, r.Start)
	assert.Equal(t, Position{0, 1}, r.End)

	r = IdentifierRange("hello", Position{Line: 3, Column: 4})
	assert.Equal(t, Position{3, 9}, r.End)
}

func TestRangeContains(t *testing.T) {
	t.Parallel()
	r := Range{Start: Position{1, 4}, End: Position{1, 9}}

	cases := []struct {
		pos  Position
		want bool
	}{
		{Position{1, 4}, true},
		{Position{1, 6}, true},
		{Position{1, 9}, true},
		{Position{1, 3}, false},
		{Position{1, 10}, false},
		{Position{0, 6}, false},
		{Position{2, 0}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, r.Contains(tc.pos), "pos %s", tc.pos)
	}
}

func TestRangeContainsMultiline(t *testing.T) {
	t.Parallel()
	r := Range{Start: Position{1, 8}, End: Position{3, 2}}
	assert.True(t, r.Contains(Position{2, 0}))
	assert.True(t, r.Contains(Position{2, 100}))
	assert.False(t, r.Contains(Position{3, 3}))
}

func TestPositionCompare(t *testing.T) {
	t.Parallel()
	assert.Equal(t, -1, Position{0, 5}.Compare(Position{1, 0}))
	assert.Equal(t, 1, Position{1, 1}.Compare(Position{1, 0}))
	assert.Equal(t, 0, Position{2, 2}.Compare(Position{2, 2}))
}

func TestIndexedDocumentCallAt(t *testing.T) {
	t.Parallel()
	doc := NewIndexedDocument()
	doc.AddCall(CallAt("foo", Position{0, 0}))
	doc.AddCall(CallAt("bar", Position{0, 4}))

	c, ok := doc.CallAt(Position{0, 5})
	require.True(t, ok)
	assert.Equal(t, "bar", c.FunctionName)

	// Adjacent ranges share a boundary; the earlier call wins.
	c, ok = doc.CallAt(Position{0, 3})
	require.True(t, ok)
	assert.Equal(t, "foo", c.FunctionName)

	_, ok = doc.CallAt(Position{1, 0})
	assert.False(t, ok)
}

func TestIndexedDocumentDeclare(t *testing.T) {
	t.Parallel()
	doc := NewIndexedDocument()
	doc.Declare(DeclaredAt("x", IdentifierRange("x", Position{0, 0})))
	doc.Declare(DeclaredAt("x", IdentifierRange("x", Position{2, 0})))
	doc.Declare(LoadedFrom("real", "local", "/ws/f.bzl"))

	x, ok := doc.DeclarationOf("x")
	require.True(t, ok)
	assert.Equal(t, 2, x.Range.Start.Line)

	local, ok := doc.DeclarationOf("local")
	require.True(t, ok)
	assert.Equal(t, Loaded, local.Kind)
	assert.Equal(t, "real", local.RealName)
	assert.Equal(t, "/ws/f.bzl", local.Path)

	_, ok = doc.DeclarationOf("real")
	assert.False(t, ok)
}

func TestIndexedDocumentEqual(t *testing.T) {
	t.Parallel()
	build := func() *IndexedDocument {
		d := NewIndexedDocument()
		d.Declare(DeclaredAt("a", IdentifierRange("a", Position{0, 0})))
		d.Declare(LoadedFrom("b", "b", "/ws/b.bzl"))
		d.AddCall(CallAt("b", Position{1, 0}))
		return d
	}
	assert.True(t, build().Equal(build()))

	other := build()
	other.AddCall(CallAt("a", Position{2, 0}))
	assert.False(t, build().Equal(other))

	var nilDoc *IndexedDocument
	assert.True(t, nilDoc.Equal(nil))
	assert.False(t, nilDoc.Equal(build()))
}

func TestDeclaration_JSON(t *testing.T) {
	t.Parallel()
	b, err := json.Marshal(LoadedFrom("impl", "local", "/ws/defs.bzl"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"imported_name": "local",
		"real_name": "impl",
		"kind": "loaded",
		"range": {"start": {"line": 0, "column": 0}, "end": {"line": 0, "column": 0}},
		"path": "/ws/defs.bzl"
	}`, string(b))

	var kind SourceKind
	require.NoError(t, json.Unmarshal([]byte(`"declared"`), &kind))
	assert.Equal(t, DeclaredInFile, kind)
	assert.Error(t, json.Unmarshal([]byte(`"other"`), &kind))
}
