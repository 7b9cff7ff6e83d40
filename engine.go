package bazelnav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jward/bazelnav/internal/bazel"
	"github.com/jward/bazelnav/internal/discover"
	"github.com/jward/bazelnav/internal/documents"
	"github.com/jward/bazelnav/internal/store"
	"github.com/jward/bazelnav/internal/watch"
)

// Engine is one editing session: the label resolver, the document store
// and, optionally, the persistent cache behind it. Create one per server
// and pass it to every handler.
type Engine struct {
	resolver *bazel.Resolver
	docs     *documents.Documents
	logger   *slog.Logger

	backend         bazel.Backend
	metadataSegment string
	externalDir     string
	maxAliasDepth   int
	workers         int
	debounce        time.Duration

	cachePath string
	store     *store.Store
	cache     *store.Cache
}

// Option configures an Engine.
type Option func(*Engine)

// WithBackend sets how workspace info is obtained. The default runs the
// bazel executable found on PATH.
func WithBackend(b Backend) Option {
	return func(e *Engine) {
		e.backend = b
	}
}

// WithLogger sets the logger used by the Engine and everything it owns.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithCache keeps indexed documents in a SQLite database at dbPath. The
// parent directory must exist.
func WithCache(dbPath string) Option {
	return func(e *Engine) {
		e.cachePath = dbPath
	}
}

// WithMetadataRewrite replaces segment with dir in the execution root
// reported by the build tool. An empty segment disables the rewrite.
func WithMetadataRewrite(segment, dir string) Option {
	return func(e *Engine) {
		e.metadataSegment = segment
		e.externalDir = dir
	}
}

// WithMaxAliasDepth caps the cross-file hops of a definition lookup.
func WithMaxAliasDepth(n int) Option {
	return func(e *Engine) {
		e.maxAliasDepth = n
	}
}

// WithWorkers bounds how many files are parsed at once. The default is
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithDebounce sets the quiet period Watch waits for before re-indexing.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		e.debounce = d
	}
}

// New creates an Engine. Nothing resolves until UpdateWorkspace succeeds.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		backend:         bazel.Executable{},
		metadataSegment: bazel.DefaultMetadataSegment,
		externalDir:     bazel.DefaultExternalDir,
		maxAliasDepth:   documents.DefaultMaxAliasDepth,
		workers:         runtime.GOMAXPROCS(0),
		debounce:        watch.DefaultDebounce,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.resolver = bazel.NewResolver(e.backend, bazel.WithMetadataRewrite(e.metadataSegment, e.externalDir))

	docOpts := []documents.Option{
		documents.WithLogger(e.logger),
		documents.WithMaxAliasDepth(e.maxAliasDepth),
		documents.WithWorkers(e.workers),
	}
	if e.cachePath != "" {
		s, err := store.Open(e.cachePath)
		if err != nil {
			return nil, fmt.Errorf("bazelnav: open cache: %w", err)
		}
		e.store = s
		e.cache = store.NewCache(s, e.rootsFingerprint, e.logger)
		docOpts = append(docOpts, documents.WithCache(e.cache))
	}
	e.docs = documents.New(e.resolver, docOpts...)

	return e, nil
}

// Close releases the cache database, if any.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

func (e *Engine) rootsFingerprint() string {
	roots, _ := e.resolver.Roots()
	return roots.Fingerprint()
}

// Query returns a QueryBuilder over the current documents.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{docs: e.docs}
}

// UpdateWorkspace points the session at the workspace rooted at root. It
// runs the build tool once; on failure the previous roots stay in effect.
func (e *Engine) UpdateWorkspace(ctx context.Context, root string) error {
	start := time.Now()
	if err := e.resolver.UpdateWorkspace(ctx, filepath.Clean(root)); err != nil {
		return err
	}
	roots, _ := e.resolver.Roots()
	e.logger.Info("workspace updated",
		"workspace", roots.Workspace,
		"exec_root", roots.Exec,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// Roots returns the resolver roots. ok is false before the first
// successful UpdateWorkspace.
func (e *Engine) Roots() (Roots, bool) {
	return e.resolver.Roots()
}

// OpenDocument is called when the editor opens path: it moves the source
// root if path lives inside an external repository, then re-indexes path.
func (e *Engine) OpenDocument(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	e.followSourceRoot(path)
	return e.docs.RefreshDoc(ctx, path)
}

// OpenDocumentContent is OpenDocument for a buffer whose text the editor
// supplied.
func (e *Engine) OpenDocumentContent(ctx context.Context, path string, content []byte) error {
	path = filepath.Clean(path)
	e.followSourceRoot(path)
	return e.docs.RefreshDocContent(ctx, path, content)
}

func (e *Engine) followSourceRoot(path string) {
	if err := e.resolver.MaybeChangeSourceRoot(path); err != nil {
		// Without roots every load is skipped, but the file's own
		// declarations and calls are still indexed.
		e.logger.Debug("source root unchanged", "path", path, "error", err)
	}
}

// IndexDocument indexes path and the files it loads.
func (e *Engine) IndexDocument(ctx context.Context, path string) error {
	return e.docs.IndexDocument(ctx, filepath.Clean(path))
}

// RefreshDocument re-indexes path from disk.
func (e *Engine) RefreshDocument(ctx context.Context, path string) error {
	return e.docs.RefreshDoc(ctx, filepath.Clean(path))
}

// RefreshDocumentContent re-indexes path from an unsaved editor buffer.
func (e *Engine) RefreshDocumentContent(ctx context.Context, path string, content []byte) error {
	return e.docs.RefreshDocContent(ctx, filepath.Clean(path), content)
}

// IndexStats summarizes an IndexDirectory run.
type IndexStats struct {
	Files     int `json:"files"`
	Failed    int `json:"failed"`
	Documents int `json:"documents"`
	Pruned    int `json:"pruned"`
}

// IndexDirectory indexes every Starlark file under root, honoring the
// root .gitignore and skipping bazel-* output links. Files that fail to
// parse are counted and logged, not returned. When a cache is configured,
// entries for deleted files are pruned afterwards.
func (e *Engine) IndexDirectory(ctx context.Context, root string) (IndexStats, error) {
	start := time.Now()
	root = filepath.Clean(root)
	paths, err := discover.Files(ctx, root)
	if err != nil {
		return IndexStats{}, fmt.Errorf("bazelnav: discover %s: %w", root, err)
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, p := range paths {
		g.Go(func() error {
			if err := e.docs.IndexDocument(gctx, p); err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				e.logger.Warn("index failed", "path", p, "error", err)
				failed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return IndexStats{}, fmt.Errorf("bazelnav: index %s: %w", root, err)
	}

	stats := IndexStats{
		Files:     len(paths),
		Failed:    int(failed.Load()),
		Documents: e.docs.Len(),
	}
	if e.cache != nil {
		n, err := e.cache.PruneMissing()
		if err != nil {
			return stats, fmt.Errorf("bazelnav: prune cache: %w", err)
		}
		stats.Pruned = n
	}

	e.logger.Info("directory indexed",
		"root", root,
		"files", stats.Files,
		"failed", stats.Failed,
		"documents", stats.Documents,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return stats, nil
}

// Watch re-indexes documents under root when they change on disk. It
// blocks until ctx is done and returns nil in that case.
func (e *Engine) Watch(ctx context.Context, root string) error {
	w, err := watch.NewWatcher(root, e.debounce, e.logger)
	if err != nil {
		return fmt.Errorf("bazelnav: watch %s: %w", root, err)
	}
	defer w.Close()

	batches := make(chan []watch.ChangeEvent)
	updater := watch.NewUpdater(e.docs, e.logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		updater.Run(ctx, batches)
	}()

	err = w.Run(ctx, batches)
	close(batches)
	<-done
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("bazelnav: watch %s: %w", root, err)
	}
	return nil
}
