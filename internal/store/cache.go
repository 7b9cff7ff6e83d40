package store

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jward/bazelnav/internal/index"
)

// Cache adapts a Store to the document store's cache hooks. An entry is
// only served when the file content, the resolver roots and the presence
// of every dependency file all match what was recorded.
type Cache struct {
	db          *Store
	fingerprint func() string
	logger      *slog.Logger
}

// NewCache wraps s. fingerprint reports the current roots fingerprint; it
// is called on every lookup because roots move as the user navigates.
func NewCache(s *Store, fingerprint func() string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Cache{db: s, fingerprint: fingerprint, logger: logger}
}

// Load returns the cached document for path if it is still valid.
func (c *Cache) Load(_ context.Context, path string, content []byte) (*index.IndexedDocument, []string, bool) {
	d, err := c.db.DocumentByPath(path)
	if err != nil {
		c.logger.Warn("cache read failed", "path", path, "error", err)
		return nil, nil, false
	}
	if d == nil || d.ContentHash != ContentHash(content) || d.RootsHash != c.fingerprint() {
		return nil, nil, false
	}
	for _, dep := range d.Deps {
		if _, err := os.Stat(dep); err != nil {
			return nil, nil, false
		}
	}
	return d.Doc, d.Deps, true
}

// Store records doc for path. Failures are logged; the cache is best effort.
func (c *Cache) Store(_ context.Context, path string, content []byte, doc *index.IndexedDocument, deps []string) {
	err := c.db.PutDocument(&Document{
		Path:        path,
		ContentHash: ContentHash(content),
		RootsHash:   c.fingerprint(),
		Doc:         doc,
		Deps:        deps,
		IndexedAt:   time.Now(),
	})
	if err != nil {
		c.logger.Warn("cache write failed", "path", path, "error", err)
	}
}

// PruneMissing drops entries whose file no longer exists and returns how
// many were removed.
func (c *Cache) PruneMissing() (int, error) {
	paths, err := c.db.Paths()
	if err != nil {
		return 0, err
	}
	var gone []string
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			gone = append(gone, p)
		}
	}
	if err := c.db.DeleteDocuments(gone); err != nil {
		return 0, err
	}
	return len(gone), nil
}
