// Package bazelnav provides go-to-definition for Bazel Starlark files. It
// parses BUILD, WORKSPACE and .bzl files with tree-sitter, follows load
// statements across files and answers "where is the function called here
// defined" for any call site.
//
// # Pipeline
//
// bazelnav works in three stages:
//
//  1. Workspace: [Engine.UpdateWorkspace] asks the build tool for its
//     execution root so labels such as //pkg:defs.bzl and
//     @repo//pkg:defs.bzl can be mapped to files on disk.
//
//  2. Index: [Engine.IndexDocument] parses a file, records its top-level
//     declarations (assignments, function definitions and loaded symbols)
//     and every call site, then indexes the transitive closure of the files
//     it loads.
//
//  3. Resolve: [QueryBuilder.DefinitionAt] finds the call under a position
//     and chases its declaration through loads and renames until it reaches
//     the file that defines it.
//
// # Usage
//
//	e, err := bazelnav.New()
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	err = e.UpdateWorkspace(ctx, "/path/to/workspace")
//	err = e.OpenDocument(ctx, "/path/to/workspace/pkg/BUILD")
//
//	loc, err := e.Query().DefinitionAt("/path/to/workspace/pkg/BUILD", 10, 4)
//
// Lines and columns are zero-based. A nil location means there is no
// definition to jump to.
//
// # Caching
//
// [WithCache] keeps indexed documents in a SQLite database. An entry is
// reused only when the file content and the resolver roots are unchanged,
// which makes re-opening a large workspace cheap. [Engine.IndexDirectory]
// indexes every Starlark file under a directory, and [Engine.Watch] keeps
// indexed files current with edits made outside the editor.
package bazelnav
