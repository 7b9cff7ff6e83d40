// Package mcp exposes an Engine as Model Context Protocol tools so agents
// can resolve Starlark definitions without an editor.
package mcp

import (
	"context"
	"io"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jward/bazelnav"
)

// ServerName is the implementation name reported to clients.
const ServerName = "bazelnav"

// Server holds the state shared by the tool handlers.
type Server struct {
	engine *bazelnav.Engine
	logger *slog.Logger
}

// NewServer creates a Server over engine. A nil logger discards output.
func NewServer(engine *bazelnav.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{engine: engine, logger: logger}
}

// SDKServer builds an SDK server with every tool registered.
func (s *Server) SDKServer(version string) *mcpsdk.Server {
	srv := mcpsdk.NewServer(&mcpsdk.Implementation{Name: ServerName, Version: version}, nil)
	s.Register(srv)
	return srv
}

// Register adds the bazelnav tools to srv.
func (s *Server) Register(srv *mcpsdk.Server) {
	registerWorkspaceTools(srv, s)
	registerDocumentTools(srv, s)
}

// Run serves the tools over stdin and stdout until the client disconnects
// or ctx is done.
func (s *Server) Run(ctx context.Context, version string) error {
	s.logger.Info("mcp server started")
	return s.SDKServer(version).Run(ctx, &mcpsdk.StdioTransport{})
}
