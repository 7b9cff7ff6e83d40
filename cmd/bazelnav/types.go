package main

import "github.com/jward/bazelnav"

// CLIResult is the top-level JSON envelope for every command.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLILocation is a definition site.
type CLILocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLIRoots reports the directories labels resolve against.
type CLIRoots struct {
	Loaded    bool   `json:"loaded"`
	Workspace string `json:"workspace_root,omitempty"`
	Source    string `json:"source_root,omitempty"`
	Exec      string `json:"exec_root,omitempty"`
}

// CLIDeclaration is one name bound at the top level of a file. Line and
// Col are set for names declared in the file, LoadedFrom for loaded ones.
type CLIDeclaration struct {
	Name       string `json:"name"`
	RealName   string `json:"real_name"`
	Kind       string `json:"kind"`
	LoadedFrom string `json:"loaded_from,omitempty"`
	Line       *int   `json:"line,omitempty"`
	Col        *int   `json:"col,omitempty"`
}

// CLICall is one call site.
type CLICall struct {
	Function string `json:"function"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
	EndCol   int    `json:"end_col"`
}

// CLIDocument is the index entry for one file.
type CLIDocument struct {
	File         string           `json:"file"`
	Declarations []CLIDeclaration `json:"declarations"`
	Calls        []CLICall        `json:"calls"`
	Dependencies []string         `json:"dependencies"`
}

// CLIIndexStats summarizes an index run.
type CLIIndexStats struct {
	Root      string `json:"root"`
	Files     int    `json:"files"`
	Failed    int    `json:"failed"`
	Documents int    `json:"documents"`
	Pruned    int    `json:"pruned"`
}

func toCLILocation(loc bazelnav.Location) CLILocation {
	return CLILocation{
		File:      loc.Path,
		StartLine: loc.Range.Start.Line,
		StartCol:  loc.Range.Start.Column,
		EndLine:   loc.Range.End.Line,
		EndCol:    loc.Range.End.Column,
	}
}

func toCLIRoots(r bazelnav.Roots, loaded bool) CLIRoots {
	return CLIRoots{Loaded: loaded, Workspace: r.Workspace, Source: r.Source, Exec: r.Exec}
}

func toCLIDocument(file string, q *bazelnav.QueryBuilder) CLIDocument {
	doc := CLIDocument{
		File:         file,
		Declarations: []CLIDeclaration{},
		Calls:        []CLICall{},
		Dependencies: q.Dependencies(file),
	}
	if doc.Dependencies == nil {
		doc.Dependencies = []string{}
	}
	for _, d := range q.Declarations(file) {
		decl := CLIDeclaration{
			Name:       d.ImportedName,
			RealName:   d.RealName,
			Kind:       d.Kind.String(),
			LoadedFrom: d.Path,
		}
		if d.Kind == bazelnav.DeclaredInFile {
			line, col := d.Range.Start.Line, d.Range.Start.Column
			decl.Line, decl.Col = &line, &col
		}
		doc.Declarations = append(doc.Declarations, decl)
	}
	for _, c := range q.Calls(file) {
		doc.Calls = append(doc.Calls, CLICall{
			Function: c.FunctionName,
			Line:     c.Range.Start.Line,
			Col:      c.Range.Start.Column,
			EndCol:   c.Range.End.Column,
		})
	}
	return doc
}
