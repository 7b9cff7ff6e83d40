// Package documents is the multi-file index: a concurrent table from path to
// IndexedDocument that pulls in the transitive load closure of every file it
// indexes, and the definition resolver that walks it.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jward/bazelnav/internal/index"
	"github.com/jward/bazelnav/internal/indexer"
	"github.com/jward/bazelnav/internal/parser"
)

// DefaultMaxAliasDepth caps the number of cross-file hops a definition
// lookup will follow.
const DefaultMaxAliasDepth = 64

// ErrIndexPanic wraps a panic recovered while building a document.
var ErrIndexPanic = errors.New("panic while indexing")

// Cache persists indexed documents between sessions. Load returns a hit
// only if the entry was built from identical content under the current
// roots. Store may drop entries it cannot persist.
type Cache interface {
	Load(ctx context.Context, path string, content []byte) (*index.IndexedDocument, []string, bool)
	Store(ctx context.Context, path string, content []byte, doc *index.IndexedDocument, deps []string)
}

// Documents is the document store. Readers run in parallel; indexing builds
// new entries outside the lock and merges them in one short write section.
type Documents struct {
	resolver indexer.LabelResolver
	cache    Cache
	logger   *slog.Logger
	maxDepth int
	workers  int

	mu   sync.RWMutex
	docs map[string]*index.IndexedDocument
}

// Option configures Documents.
type Option func(*Documents)

// WithCache enables a persistent cache consulted before parsing.
func WithCache(c Cache) Option {
	return func(d *Documents) { d.cache = c }
}

// WithLogger sets the logger for recovered failures.
func WithLogger(l *slog.Logger) Option {
	return func(d *Documents) { d.logger = l }
}

// WithMaxAliasDepth caps cross-file hops during definition lookup.
func WithMaxAliasDepth(n int) Option {
	return func(d *Documents) {
		if n > 0 {
			d.maxDepth = n
		}
	}
}

// WithWorkers bounds how many dependency files are parsed at once.
func WithWorkers(n int) Option {
	return func(d *Documents) {
		if n > 0 {
			d.workers = n
		}
	}
}

// New creates an empty store that resolves load labels through resolver.
func New(resolver indexer.LabelResolver, opts ...Option) *Documents {
	d := &Documents{
		resolver: resolver,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxDepth: DefaultMaxAliasDepth,
		workers:  runtime.GOMAXPROCS(0),
		docs:     make(map[string]*index.IndexedDocument),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// built is one freshly indexed file.
type built struct {
	path string
	doc  *index.IndexedDocument
	deps []string
}

// IndexDocument indexes path from disk and replaces its entry. Every file it
// loads, directly or transitively, is indexed too unless it already has an
// entry. If path itself cannot be read, parsed or indexed, the error is
// returned and any previous entry is kept. Dependencies that fail are
// logged and left out.
func (d *Documents) IndexDocument(ctx context.Context, path string) error {
	return d.indexRoot(ctx, path, nil)
}

// RefreshDoc re-indexes exactly path. Its dependencies are only indexed if
// they are missing; existing entries are not re-validated.
func (d *Documents) RefreshDoc(ctx context.Context, path string) error {
	return d.indexRoot(ctx, path, nil)
}

// RefreshDocContent re-indexes path using content instead of the file on
// disk, for unsaved editor buffers.
func (d *Documents) RefreshDocContent(ctx context.Context, path string, content []byte) error {
	if content == nil {
		content = []byte{}
	}
	return d.indexRoot(ctx, path, content)
}

func (d *Documents) indexRoot(ctx context.Context, path string, content []byte) error {
	root, err := d.build(ctx, path, content)
	if err != nil {
		return fmt.Errorf("documents: index %s: %w", path, err)
	}

	fresh := map[string]built{path: root}
	failed := map[string]bool{}
	frontier := d.missing(root.deps, fresh, failed)
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("documents: index %s: %w", path, err)
		}
		results := d.buildAll(ctx, frontier)
		var next []string
		for _, b := range results {
			if b.doc == nil {
				failed[b.path] = true
				continue
			}
			fresh[b.path] = b
			next = append(next, b.deps...)
		}
		frontier = d.missing(next, fresh, failed)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.docs[path] = root.doc
	for p, b := range fresh {
		if _, ok := d.docs[p]; !ok {
			d.docs[p] = b.doc
		}
	}
	return nil
}

// missing filters paths down to those with no entry, not built or failed
// in this pass, and not repeated.
func (d *Documents) missing(paths []string, fresh map[string]built, failed map[string]bool) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	seen := make(map[string]bool, len(paths))
	var out []string
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		if failed[p] {
			continue
		}
		if _, ok := fresh[p]; ok {
			continue
		}
		if _, ok := d.docs[p]; ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

// buildAll indexes one frontier of dependency files concurrently. Failed
// files come back with a nil doc.
func (d *Documents) buildAll(ctx context.Context, paths []string) []built {
	results := make([]built, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(d.workers, len(paths)))
	for i, p := range paths {
		g.Go(func() error {
			b, err := d.build(gctx, p, nil)
			if err != nil {
				d.logger.Warn("dependency not indexed", "path", p, "error", err)
				results[i] = built{path: p}
				return nil
			}
			results[i] = b
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// build reads, parses and indexes one file without touching the table.
func (d *Documents) build(ctx context.Context, path string, content []byte) (b built, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrIndexPanic, r)
		}
	}()

	if content == nil {
		content, err = os.ReadFile(path)
		if err != nil {
			return built{}, err
		}
	}

	if d.cache != nil {
		if doc, deps, ok := d.cache.Load(ctx, path, content); ok {
			d.logger.Debug("cache hit", "path", path)
			return built{path: path, doc: doc, deps: deps}, nil
		}
	}

	file, err := parser.Parse(ctx, path, content)
	if err != nil {
		return built{}, err
	}
	res, err := indexer.Index(file, d.resolver)
	if err != nil {
		return built{}, err
	}
	for _, s := range res.Skipped {
		d.logger.Debug("load skipped", "path", path, "label", s.Label, "error", s.Err)
	}

	// A skipped load may resolve later without this file changing, so
	// such documents are never cached.
	if d.cache != nil && len(res.Skipped) == 0 {
		d.cache.Store(ctx, path, content, res.Doc, res.Deps)
	}
	return built{path: path, doc: res.Doc, deps: res.Deps}, nil
}

// GetDoc returns the entry for path, if any. The document must not be
// modified.
func (d *Documents) GetDoc(path string) (*index.IndexedDocument, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	doc, ok := d.docs[path]
	return doc, ok
}

// ListDocs returns every indexed path in sorted order.
func (d *Documents) ListDocs() []string {
	d.mu.RLock()
	paths := make([]string, 0, len(d.docs))
	for p := range d.docs {
		paths = append(paths, p)
	}
	d.mu.RUnlock()
	sort.Strings(paths)
	return paths
}

// Len returns the number of indexed documents.
func (d *Documents) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.docs)
}
