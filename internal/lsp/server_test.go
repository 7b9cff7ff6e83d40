package lsp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/jward/bazelnav"
	"github.com/jward/bazelnav/internal/bazel"
	"github.com/jward/bazelnav/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newTestServer writes files into a fresh workspace and returns a server
// over an engine whose build tool reports a temp execution root.
func newTestServer(t *testing.T, files map[string]string) (*Server, string) {
	t.Helper()
	ws := t.TempDir()
	for rel, content := range files {
		writeFile(t, filepath.Join(ws, rel), content)
	}
	backend := bazel.StaticExecRoot(filepath.Join(t.TempDir(), "execroot", "__main__"))
	e, err := bazelnav.New(bazelnav.WithBackend(backend))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return NewServer(Fixed(e), WithVersion("test")), ws
}

// send calls Handle with one message and returns what it replied.
func send(t *testing.T, s *Server, method string, params any, notify bool) (any, error) {
	t.Helper()
	var req jsonrpc2.Request
	var err error
	if notify {
		req, err = jsonrpc2.NewNotification(method, params)
	} else {
		req, err = jsonrpc2.NewCall(jsonrpc2.NewNumberID(1), method, params)
	}
	require.NoError(t, err)

	var (
		result   any
		replyErr error
		replied  bool
	)
	reply := func(_ context.Context, r any, e error) error {
		replied = true
		result, replyErr = r, e
		return nil
	}
	require.NoError(t, s.Handle(context.Background(), reply, req))
	require.True(t, replied, "%s was not replied to", method)
	return result, replyErr
}

func initialize(t *testing.T, s *Server, ws string) {
	t.Helper()
	_, err := send(t, s, protocol.MethodInitialize, protocol.InitializeParams{RootURI: uri.File(ws)}, false)
	require.NoError(t, err)
	_, err = send(t, s, protocol.MethodInitialized, protocol.InitializedParams{}, true)
	require.NoError(t, err)
}

func open(t *testing.T, s *Server, path, text string) {
	t.Helper()
	_, err := send(t, s, protocol.MethodTextDocumentDidOpen, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri.File(path), LanguageID: "starlark", Version: 1, Text: text},
	}, true)
	require.NoError(t, err)
}

func definition(t *testing.T, s *Server, path string, line, col uint32) any {
	t.Helper()
	result, err := send(t, s, protocol.MethodTextDocumentDefinition, protocol.DefinitionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri.File(path)},
			Position:     protocol.Position{Line: line, Character: col},
		},
	}, false)
	require.NoError(t, err)
	return result
}

func location(path string, line, start, end uint32) protocol.Location {
	return protocol.Location{
		URI: uri.File(path),
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: start},
			End:   protocol.Position{Line: line, Character: end},
		},
	}
}

func TestHandle_RequiresInitialize(t *testing.T) {
	s, ws := newTestServer(t, nil)
	_, err := send(t, s, protocol.MethodTextDocumentDefinition, protocol.DefinitionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri.File(filepath.Join(ws, "BUILD"))},
		},
	}, false)
	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, jsonrpc2.ServerNotInitialized, rpcErr.Code)
}

func TestInitialize(t *testing.T) {
	s, ws := newTestServer(t, nil)
	result, err := send(t, s, protocol.MethodInitialize, protocol.InitializeParams{
		WorkspaceFolders: []protocol.WorkspaceFolder{{URI: string(uri.File(ws)), Name: "ws"}},
	}, false)
	require.NoError(t, err)

	res, ok := result.(protocol.InitializeResult)
	require.True(t, ok, "got %T", result)
	assert.Equal(t, ServerName, res.ServerInfo.Name)
	assert.Equal(t, "test", res.ServerInfo.Version)
	assert.Equal(t, true, res.Capabilities.DefinitionProvider)
	sync, ok := res.Capabilities.TextDocumentSync.(*protocol.TextDocumentSyncOptions)
	require.True(t, ok)
	assert.Equal(t, protocol.TextDocumentSyncKindFull, sync.Change)

	roots, ok := s.engine.Roots()
	require.True(t, ok)
	assert.Equal(t, ws, roots.Workspace)
}

func TestInitialize_EngineUsesClientWorkspaceConfig(t *testing.T) {
	ws := t.TempDir()
	base := t.TempDir()
	writeFile(t, filepath.Join(ws, config.FileName),
		fmt.Sprintf("exec_root = %q\n", filepath.Join(base, "execroot", "__main__")))
	writeFile(t, filepath.Join(ws, "BUILD"), "load('@rules_x//:defs.bzl', 'x')\nx()\n")
	writeFile(t, filepath.Join(base, "external", "rules_x", "defs.bzl"), "def x():\n    pass\n")

	var got []string
	s := NewServer(func(_ context.Context, root string) (*bazelnav.Engine, error) {
		got = append(got, root)
		cfg, err := config.Load(root, "")
		if err != nil {
			return nil, err
		}
		e, err := bazelnav.New(bazelnav.WithBackend(bazel.StaticExecRoot(cfg.ExecRoot)))
		if err != nil {
			return nil, err
		}
		t.Cleanup(func() { e.Close() })
		return e, nil
	})

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NotEqual(t, cwd, ws)
	initialize(t, s, ws)
	assert.Equal(t, []string{ws}, got)

	roots, ok := s.engine.Roots()
	require.True(t, ok)
	assert.Equal(t, filepath.Join(base, "external"), roots.Exec)

	build := filepath.Join(ws, "BUILD")
	open(t, s, build, "load('@rules_x//:defs.bzl', 'x')\nx()\n")
	assert.Equal(t, location(filepath.Join(base, "external", "rules_x", "defs.bzl"), 0, 4, 5), definition(t, s, build, 1, 0))

	// A second initialize keeps the engine.
	_, err = send(t, s, protocol.MethodInitialize, protocol.InitializeParams{RootURI: uri.File(ws)}, false)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestInitialize_EngineFactoryFails(t *testing.T) {
	s := NewServer(func(context.Context, string) (*bazelnav.Engine, error) {
		return nil, errors.New("bad config")
	})
	ws := t.TempDir()

	_, err := send(t, s, protocol.MethodInitialize, protocol.InitializeParams{RootURI: uri.File(ws)}, false)
	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, jsonrpc2.InternalError, rpcErr.Code)
	assert.Contains(t, rpcErr.Message, "bad config")

	_, err = send(t, s, protocol.MethodTextDocumentDefinition, protocol.DefinitionParams{}, false)
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, jsonrpc2.ServerNotInitialized, rpcErr.Code)
}

func TestInitialize_WorkspaceFailureKeepsServing(t *testing.T) {
	e, err := bazelnav.New(bazelnav.WithBackend(bazel.StaticInfo{Output: "no colon here\n"}))
	require.NoError(t, err)
	defer e.Close()
	s := NewServer(Fixed(e))

	ws := t.TempDir()
	build := filepath.Join(ws, "BUILD")
	writeFile(t, build, "def f():\n    pass\nf()\n")
	initialize(t, s, ws)

	_, ok := e.Roots()
	assert.False(t, ok)

	open(t, s, build, "def f():\n    pass\nf()\n")
	assert.Equal(t, location(build, 0, 4, 5), definition(t, s, build, 2, 0))
}

func TestDefinition_AcrossFiles(t *testing.T) {
	s, ws := newTestServer(t, map[string]string{
		"BUILD":        "load('//lib:defs.bzl', 'helper')\nhelper()\n",
		"lib/defs.bzl": "def helper():\n    pass\n",
	})
	initialize(t, s, ws)

	build := filepath.Join(ws, "BUILD")
	open(t, s, build, "load('//lib:defs.bzl', 'helper')\nhelper()\n")

	assert.Equal(t, location(filepath.Join(ws, "lib", "defs.bzl"), 0, 4, 10), definition(t, s, build, 1, 3))
	assert.Nil(t, definition(t, s, build, 0, 0), "load is not a call")
	assert.Nil(t, definition(t, s, filepath.Join(ws, "other.bzl"), 0, 0))
}

func TestDidOpen_UsesEditorText(t *testing.T) {
	s, ws := newTestServer(t, map[string]string{
		"BUILD": "f()\n",
	})
	initialize(t, s, ws)

	build := filepath.Join(ws, "BUILD")
	open(t, s, build, "def f():\n    pass\nf()\n")
	assert.Equal(t, location(build, 0, 4, 5), definition(t, s, build, 2, 1))
}

func TestDidOpen_IgnoresOtherFiles(t *testing.T) {
	s, ws := newTestServer(t, map[string]string{"README.md": "hello\n"})
	initialize(t, s, ws)

	open(t, s, filepath.Join(ws, "README.md"), "hello\n")
	assert.Empty(t, s.engine.Query().Documents())
}

func TestDidChange_FullSync(t *testing.T) {
	s, ws := newTestServer(t, map[string]string{
		"BUILD": "def f():\n    pass\nf()\n",
	})
	initialize(t, s, ws)
	build := filepath.Join(ws, "BUILD")
	open(t, s, build, "def f():\n    pass\nf()\n")

	_, err := send(t, s, protocol.MethodTextDocumentDidChange, protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri.File(build)},
			Version:                2,
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{
			{Text: "broken("},
			{Text: "\ndef f():\n    pass\nf()\n"},
		},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, location(build, 1, 4, 5), definition(t, s, build, 3, 0))

	// A buffer that does not parse keeps the last good index.
	_, err = send(t, s, protocol.MethodTextDocumentDidChange, protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri.File(build)},
			Version:                3,
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: "def f(:\n"}},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, location(build, 1, 4, 5), definition(t, s, build, 3, 0))
}

func TestDidSave_ReadsDisk(t *testing.T) {
	s, ws := newTestServer(t, map[string]string{
		"BUILD": "def f():\n    pass\nf()\n",
	})
	initialize(t, s, ws)
	build := filepath.Join(ws, "BUILD")
	open(t, s, build, "def f():\n    pass\nf()\n")

	writeFile(t, build, "\n\ndef f():\n    pass\nf()\n")
	_, err := send(t, s, protocol.MethodTextDocumentDidSave, protocol.DidSaveTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri.File(build)},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, location(build, 2, 4, 5), definition(t, s, build, 4, 0))
}

func TestShutdown(t *testing.T) {
	s, ws := newTestServer(t, nil)
	initialize(t, s, ws)

	_, err := send(t, s, protocol.MethodShutdown, nil, false)
	require.NoError(t, err)

	_, err = send(t, s, protocol.MethodTextDocumentDefinition, protocol.DefinitionParams{}, false)
	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, jsonrpc2.InvalidRequest, rpcErr.Code)
}

func TestHandle_UnknownMethod(t *testing.T) {
	s, ws := newTestServer(t, nil)
	initialize(t, s, ws)

	_, err := send(t, s, "textDocument/hover", protocol.HoverParams{}, false)
	assert.ErrorIs(t, err, jsonrpc2.ErrMethodNotFound)
}

func TestServe_Session(t *testing.T) {
	s, ws := newTestServer(t, map[string]string{
		"BUILD": "def f():\n    pass\nf()\n",
	})
	serverSide, clientSide := net.Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, serverSide) }()

	client := jsonrpc2.NewConn(jsonrpc2.NewStream(clientSide))
	client.Go(ctx, jsonrpc2.MethodNotFoundHandler)
	defer client.Close()

	var res protocol.InitializeResult
	_, err := client.Call(ctx, protocol.MethodInitialize, protocol.InitializeParams{RootURI: uri.File(ws)}, &res)
	require.NoError(t, err)
	assert.Equal(t, ServerName, res.ServerInfo.Name)

	build := filepath.Join(ws, "BUILD")
	require.NoError(t, client.Notify(ctx, protocol.MethodTextDocumentDidOpen, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri.File(build), Text: "def f():\n    pass\nf()\n"},
	}))

	var loc protocol.Location
	_, err = client.Call(ctx, protocol.MethodTextDocumentDefinition, protocol.DefinitionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri.File(build)},
			Position:     protocol.Position{Line: 2, Character: 0},
		},
	}, &loc)
	require.NoError(t, err)
	assert.Equal(t, location(build, 0, 4, 5), loc)

	_, err = client.Call(ctx, protocol.MethodShutdown, nil, nil)
	require.NoError(t, err)
	require.NoError(t, client.Notify(ctx, protocol.MethodExit, nil))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("Serve did not return after exit")
	}
}
