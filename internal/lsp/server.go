// Package lsp serves an Engine over the Language Server Protocol. It
// handles the lifecycle requests, keeps documents indexed as the editor
// opens and edits them, and answers textDocument/definition.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"fortio.org/safecast"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/jward/bazelnav"
	"github.com/jward/bazelnav/internal/parser"
)

// ServerName is reported in the initialize result.
const ServerName = "bazelnav"

// ErrExitWithoutShutdown is returned by Serve when the client sends exit
// before shutdown.
var ErrExitWithoutShutdown = errors.New("lsp: exit before shutdown")

// EngineFactory builds the engine for the workspace root the client names
// in initialize. root is empty when the client sent none. The caller owns
// the returned engine.
type EngineFactory func(ctx context.Context, root string) (*bazelnav.Engine, error)

// Fixed returns a factory that always hands out e.
func Fixed(e *bazelnav.Engine) EngineFactory {
	return func(context.Context, string) (*bazelnav.Engine, error) {
		return e, nil
	}
}

// Server handles one client connection.
type Server struct {
	newEngine EngineFactory
	logger    *slog.Logger
	version   string

	mu          sync.Mutex
	engine      *bazelnav.Engine
	initialized bool
	shutdown    bool
	exited      chan struct{}
	exitOnce    sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger. Nothing is ever written to stdout.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithVersion sets the version reported to the client.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer creates a Server. The engine is built by newEngine when the
// client initializes.
func NewServer(newEngine EngineFactory, opts ...Option) *Server {
	s := &Server{
		newEngine: newEngine,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		exited:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve runs the protocol over rwc until the client exits, the stream
// closes or ctx is done. Requests are handled one at a time in arrival
// order.
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(rwc))
	conn.Go(ctx, jsonrpc2.AsyncHandler(jsonrpc2.ReplyHandler(s.Handle)))
	s.logger.Info("lsp server started")

	select {
	case <-ctx.Done():
		_ = conn.Close()
		<-conn.Done()
		return ctx.Err()
	case <-conn.Done():
		if err := conn.Err(); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("lsp: connection: %w", err)
		}
		return nil
	case <-s.exited:
		_ = conn.Close()
		<-conn.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.shutdown {
			return ErrExitWithoutShutdown
		}
		return nil
	}
}

// Handle dispatches one request or notification.
func (s *Server) Handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	s.logger.Debug("request", "method", req.Method())

	switch req.Method() {
	case protocol.MethodInitialize:
		return s.initialize(ctx, reply, req)
	case protocol.MethodExit:
		s.exitOnce.Do(func() { close(s.exited) })
		return reply(ctx, nil, nil)
	}

	s.mu.Lock()
	ready, down, e := s.initialized, s.shutdown, s.engine
	s.mu.Unlock()
	if !ready {
		return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.ServerNotInitialized, "server not initialized"))
	}
	if down && req.Method() != protocol.MethodShutdown {
		return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.InvalidRequest, "server is shutting down"))
	}

	switch req.Method() {
	case protocol.MethodInitialized:
		return reply(ctx, nil, nil)
	case protocol.MethodShutdown:
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		return reply(ctx, nil, nil)
	case protocol.MethodTextDocumentDidOpen:
		return s.didOpen(ctx, e, reply, req)
	case protocol.MethodTextDocumentDidChange:
		return s.didChange(ctx, e, reply, req)
	case protocol.MethodTextDocumentDidSave:
		return s.didSave(ctx, e, reply, req)
	case protocol.MethodTextDocumentDidClose:
		// The index outlives the buffer.
		return reply(ctx, nil, nil)
	case protocol.MethodTextDocumentDefinition:
		return s.definition(ctx, e, reply, req)
	}
	return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
}

func decode(req jsonrpc2.Request, v any) error {
	if err := json.Unmarshal(req.Params(), v); err != nil {
		return fmt.Errorf("%s: %w: %v", req.Method(), jsonrpc2.ErrInvalidParams, err)
	}
	return nil
}

// workspaceRoot picks the first workspace folder, falling back to the
// deprecated rootUri and rootPath fields.
func workspaceRoot(p *protocol.InitializeParams) string {
	if len(p.WorkspaceFolders) > 0 {
		return uri.URI(p.WorkspaceFolders[0].URI).Filename()
	}
	if p.RootURI != "" {
		return p.RootURI.Filename()
	}
	return p.RootPath
}

func (s *Server) initialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.InitializeParams
	if err := decode(req, &params); err != nil {
		return reply(ctx, nil, err)
	}

	s.mu.Lock()
	e := s.engine
	s.mu.Unlock()

	root := workspaceRoot(&params)
	if e == nil {
		var err error
		if e, err = s.newEngine(ctx, root); err != nil {
			s.logger.Error("engine setup failed", "root", root, "error", err)
			return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.InternalError, err.Error()))
		}
	}

	if root != "" {
		// A failed update leaves every load unresolved; the server keeps
		// running so definitions within a file still work.
		if err := e.UpdateWorkspace(ctx, root); err != nil {
			s.logger.Error("workspace update failed", "root", root, "error", err)
		}
	} else {
		s.logger.Warn("client sent no workspace root")
	}

	s.mu.Lock()
	s.engine = e
	s.initialized = true
	s.mu.Unlock()

	return reply(ctx, protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
				Save:      &protocol.SaveOptions{IncludeText: true},
			},
			DefinitionProvider: true,
		},
		ServerInfo: &protocol.ServerInfo{Name: ServerName, Version: s.version},
	}, nil)
}

// documentPath maps a document URI to a Starlark file path. ok is false for
// other files, which are ignored.
func documentPath(u protocol.DocumentURI) (string, bool) {
	path := u.Filename()
	return path, parser.IsStarlarkFile(path)
}

func (s *Server) didOpen(ctx context.Context, e *bazelnav.Engine, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidOpenTextDocumentParams
	if err := decode(req, &params); err != nil {
		return reply(ctx, nil, err)
	}
	if path, ok := documentPath(params.TextDocument.URI); ok {
		if err := e.OpenDocumentContent(ctx, path, []byte(params.TextDocument.Text)); err != nil {
			s.logger.Warn("index failed", "path", path, "error", err)
		}
	}
	return reply(ctx, nil, nil)
}

func (s *Server) didChange(ctx context.Context, e *bazelnav.Engine, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidChangeTextDocumentParams
	if err := decode(req, &params); err != nil {
		return reply(ctx, nil, err)
	}
	path, ok := documentPath(params.TextDocument.URI)
	if !ok || len(params.ContentChanges) == 0 {
		return reply(ctx, nil, nil)
	}
	// Full sync: the last change carries the whole buffer.
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	if err := e.RefreshDocumentContent(ctx, path, []byte(text)); err != nil {
		s.logger.Debug("index failed", "path", path, "error", err)
	}
	return reply(ctx, nil, nil)
}

func (s *Server) didSave(ctx context.Context, e *bazelnav.Engine, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidSaveTextDocumentParams
	if err := decode(req, &params); err != nil {
		return reply(ctx, nil, err)
	}
	path, ok := documentPath(params.TextDocument.URI)
	if !ok {
		return reply(ctx, nil, nil)
	}
	var err error
	if params.Text != "" {
		err = e.RefreshDocumentContent(ctx, path, []byte(params.Text))
	} else {
		err = e.RefreshDocument(ctx, path)
	}
	if err != nil {
		s.logger.Warn("index failed", "path", path, "error", err)
	}
	return reply(ctx, nil, nil)
}

func (s *Server) definition(ctx context.Context, e *bazelnav.Engine, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DefinitionParams
	if err := decode(req, &params); err != nil {
		return reply(ctx, nil, err)
	}
	path := params.TextDocument.URI.Filename()
	line, err := safecast.Conv[int](params.Position.Line)
	if err != nil {
		return reply(ctx, nil, fmt.Errorf("%w: line: %v", jsonrpc2.ErrInvalidParams, err))
	}
	col, err := safecast.Conv[int](params.Position.Character)
	if err != nil {
		return reply(ctx, nil, fmt.Errorf("%w: character: %v", jsonrpc2.ErrInvalidParams, err))
	}

	loc, err := e.Query().ExplainDefinitionAt(path, line, col)
	if err != nil {
		// An empty lookup is a null result, never an error.
		s.logger.Debug("no definition", "path", path, "line", line, "col", col, "reason", err)
		return reply(ctx, nil, nil)
	}
	out, err := toProtocol(*loc)
	if err != nil {
		s.logger.Warn("location out of range", "location", loc.String(), "error", err)
		return reply(ctx, nil, nil)
	}
	return reply(ctx, out, nil)
}

func toProtocol(loc bazelnav.Location) (protocol.Location, error) {
	start, err := toPosition(loc.Range.Start)
	if err != nil {
		return protocol.Location{}, err
	}
	end, err := toPosition(loc.Range.End)
	if err != nil {
		return protocol.Location{}, err
	}
	return protocol.Location{
		URI:   uri.File(loc.Path),
		Range: protocol.Range{Start: start, End: end},
	}, nil
}

func toPosition(p bazelnav.Position) (protocol.Position, error) {
	line, err := safecast.Conv[uint32](p.Line)
	if err != nil {
		return protocol.Position{}, err
	}
	col, err := safecast.Conv[uint32](p.Column)
	if err != nil {
		return protocol.Position{}, err
	}
	return protocol.Position{Line: line, Character: col}, nil
}

// Stdio joins the process's stdin and stdout into one stream.
func Stdio() io.ReadWriteCloser {
	return stdio{}
}

type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func (stdio) Close() error {
	return errors.Join(os.Stdin.Close(), os.Stdout.Close())
}
