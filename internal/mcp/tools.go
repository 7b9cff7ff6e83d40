package mcp

import (
	"context"
	"errors"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jward/bazelnav"
)

// --- update_workspace ---

type UpdateWorkspaceInput struct {
	Path string `json:"path" jsonschema:"absolute path to the Bazel workspace root (the directory holding WORKSPACE or MODULE.bazel)"`
}

// --- roots ---

type RootsInput struct{}

type RootsOutput struct {
	Loaded bool `json:"loaded"`
	bazelnav.Roots
}

// --- index_directory ---

type IndexDirectoryInput struct {
	Path string `json:"path,omitempty" jsonschema:"directory to scan; defaults to the workspace root"`
}

func registerWorkspaceTools(s *mcpsdk.Server, state *Server) {
	mcpsdk.AddTool(s, &mcpsdk.Tool{
		Name:        "update_workspace",
		Description: "Point bazelnav at a Bazel workspace. Runs `bazel info` once to find the execution root. Must be called before labels can be resolved.",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, in UpdateWorkspaceInput) (*mcpsdk.CallToolResult, any, error) {
		if in.Path == "" {
			return errResult(errors.New("path is required")), nil, nil
		}
		if err := state.engine.UpdateWorkspace(ctx, in.Path); err != nil {
			return errResult(err), nil, nil
		}
		roots, _ := state.engine.Roots()
		return textResult(RootsOutput{Loaded: true, Roots: roots}), nil, nil
	})

	mcpsdk.AddTool(s, &mcpsdk.Tool{
		Name:        "roots",
		Description: "Return the workspace, source and execution roots labels currently resolve against.",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, in RootsInput) (*mcpsdk.CallToolResult, any, error) {
		roots, ok := state.engine.Roots()
		return textResult(RootsOutput{Loaded: ok, Roots: roots}), nil, nil
	})

	mcpsdk.AddTool(s, &mcpsdk.Tool{
		Name:        "index_directory",
		Description: "Index every Starlark file (BUILD, WORKSPACE, MODULE.bazel, .bzl) under a directory, following their loads.",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, in IndexDirectoryInput) (*mcpsdk.CallToolResult, any, error) {
		dir := in.Path
		if dir == "" {
			roots, ok := state.engine.Roots()
			if !ok {
				return errResult(errors.New("no workspace loaded; call update_workspace first or pass path")), nil, nil
			}
			dir = roots.Workspace
		}
		stats, err := state.engine.IndexDirectory(ctx, dir)
		if err != nil {
			return errResult(err), nil, nil
		}
		return textResult(stats), nil, nil
	})
}

// --- definition ---

type DefinitionInput struct {
	File   string `json:"file" jsonschema:"absolute path to a Starlark file"`
	Line   int    `json:"line" jsonschema:"zero-based line of the call"`
	Column int    `json:"column" jsonschema:"zero-based byte column inside the called name"`
}

type DefinitionOutput struct {
	Found      bool               `json:"found"`
	Definition *bazelnav.Location `json:"definition,omitempty"`
	Reason     string             `json:"reason,omitempty"`
}

// --- open_document ---

type OpenDocumentInput struct {
	File string `json:"file" jsonschema:"absolute path to a Starlark file"`
}

type OpenDocumentOutput struct {
	File         string   `json:"file"`
	Declarations int      `json:"declarations"`
	Calls        int      `json:"calls"`
	Dependencies []string `json:"dependencies"`
}

// --- document ---

type DocumentInput struct {
	File string `json:"file" jsonschema:"absolute path to an indexed Starlark file"`
}

type DocumentOutput struct {
	File         string                 `json:"file"`
	Declarations []bazelnav.Declaration `json:"declarations"`
	Calls        []bazelnav.Call        `json:"calls"`
}

// --- documents ---

type DocumentsInput struct{}

type DocumentsOutput struct {
	Count     int      `json:"count"`
	Documents []string `json:"documents"`
}

func absFile(file string) (string, error) {
	if file == "" {
		return "", errors.New("file is required")
	}
	return filepath.Abs(file)
}

func registerDocumentTools(s *mcpsdk.Server, state *Server) {
	mcpsdk.AddTool(s, &mcpsdk.Tool{
		Name:        "open_document",
		Description: "Index a Starlark file and the files it loads, as an editor does when the file is opened. Switches the source root when the file lives in an external repository.",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, in OpenDocumentInput) (*mcpsdk.CallToolResult, any, error) {
		path, err := absFile(in.File)
		if err != nil {
			return errResult(err), nil, nil
		}
		if err := state.engine.OpenDocument(ctx, path); err != nil {
			return errResult(err), nil, nil
		}
		q := state.engine.Query()
		return textResult(OpenDocumentOutput{
			File:         path,
			Declarations: len(q.Declarations(path)),
			Calls:        len(q.Calls(path)),
			Dependencies: q.Dependencies(path),
		}), nil, nil
	})

	mcpsdk.AddTool(s, &mcpsdk.Tool{
		Name:        "definition",
		Description: "Find where the function called at a position is defined, following load statements and renames across files. Indexes the file first if needed.",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, in DefinitionInput) (*mcpsdk.CallToolResult, any, error) {
		path, err := absFile(in.File)
		if err != nil {
			return errResult(err), nil, nil
		}
		q := state.engine.Query()
		if q.Document(path) == nil {
			if err := state.engine.OpenDocument(ctx, path); err != nil {
				return errResult(err), nil, nil
			}
		}
		loc, err := q.ExplainDefinitionAt(path, in.Line, in.Column)
		if err != nil {
			if bazelnav.IsNoDefinition(err) {
				return textResult(DefinitionOutput{Reason: err.Error()}), nil, nil
			}
			return errResult(err), nil, nil
		}
		return textResult(DefinitionOutput{Found: true, Definition: loc}), nil, nil
	})

	mcpsdk.AddTool(s, &mcpsdk.Tool{
		Name:        "document",
		Description: "Return the declarations and call sites recorded for an indexed file.",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, in DocumentInput) (*mcpsdk.CallToolResult, any, error) {
		path, err := absFile(in.File)
		if err != nil {
			return errResult(err), nil, nil
		}
		q := state.engine.Query()
		if q.Document(path) == nil {
			return errResult(errors.New(path + " is not indexed; call open_document first")), nil, nil
		}
		return textResult(DocumentOutput{
			File:         path,
			Declarations: q.Declarations(path),
			Calls:        q.Calls(path),
		}), nil, nil
	})

	mcpsdk.AddTool(s, &mcpsdk.Tool{
		Name:        "documents",
		Description: "List every indexed file.",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, in DocumentsInput) (*mcpsdk.CallToolResult, any, error) {
		docs := state.engine.Query().Documents()
		return textResult(DocumentsOutput{Count: len(docs), Documents: docs}), nil, nil
	})
}
