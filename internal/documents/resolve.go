package documents

import (
	"errors"
	"fmt"

	"github.com/jward/bazelnav/internal/index"
)

// ErrNoDefinition is wrapped by every Resolve failure. The wrapping message
// says which hop failed.
var ErrNoDefinition = errors.New("no definition")

// hop identifies one step of an alias chase: a name looked up in a file.
type hop struct {
	path string
	name string
}

// LocateDeclarationOfCallAt returns the terminal declaration of the call
// under pos in path, following loads and renames across files. ok is false
// when there is no definition; the reason is logged at debug level.
func (d *Documents) LocateDeclarationOfCallAt(path string, pos index.Position) (index.Location, bool) {
	loc, err := d.Resolve(path, pos)
	if err != nil {
		d.logger.Debug("definition not found", "path", path, "pos", pos.String(), "reason", err)
		return index.Location{}, false
	}
	return loc, true
}

// Resolve is LocateDeclarationOfCallAt with the failure reason. Every error
// wraps ErrNoDefinition.
func (d *Documents) Resolve(path string, pos index.Position) (index.Location, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	doc, ok := d.docs[path]
	if !ok {
		return index.Location{}, fmt.Errorf("%w: %s is not indexed", ErrNoDefinition, path)
	}
	call, ok := doc.CallAt(pos)
	if !ok {
		return index.Location{}, fmt.Errorf("%w: no call at %s:%s", ErrNoDefinition, path, pos)
	}
	decl, ok := doc.DeclarationOf(call.FunctionName)
	if !ok {
		return index.Location{}, fmt.Errorf("%w: %s is not declared in %s", ErrNoDefinition, call.FunctionName, path)
	}

	visited := map[hop]bool{{path: path, name: call.FunctionName}: true}
	return d.chase(path, decl, visited, 0)
}

// chase follows decl to the file that declares it. The caller holds the
// read lock.
func (d *Documents) chase(path string, decl index.Declaration, visited map[hop]bool, depth int) (index.Location, error) {
	if decl.Kind == index.DeclaredInFile {
		return index.Location{Path: path, Range: decl.Range}, nil
	}
	if depth >= d.maxDepth {
		return index.Location{}, fmt.Errorf("%w: alias chain longer than %d", ErrNoDefinition, d.maxDepth)
	}

	next := hop{path: decl.Path, name: decl.RealName}
	if visited[next] {
		return index.Location{}, fmt.Errorf("%w: load cycle at %s in %s", ErrNoDefinition, next.name, next.path)
	}
	visited[next] = true

	target, ok := d.docs[decl.Path]
	if !ok {
		return index.Location{}, fmt.Errorf("%w: %s is not indexed", ErrNoDefinition, decl.Path)
	}
	origin, ok := target.DeclarationOf(decl.RealName)
	if !ok {
		return index.Location{}, fmt.Errorf("%w: %s is not declared in %s", ErrNoDefinition, decl.RealName, decl.Path)
	}
	return d.chase(decl.Path, origin, visited, depth+1)
}
