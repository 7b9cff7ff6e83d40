package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jward/bazelnav/internal/index"
)

// DocumentStore is the part of the document store the updater drives.
type DocumentStore interface {
	GetDoc(path string) (*index.IndexedDocument, bool)
	RefreshDoc(ctx context.Context, path string) error
}

// Updater re-indexes documents reported by a Watcher. Only paths that are
// already indexed are refreshed; new files are picked up when something
// opens or loads them. Removed files keep their last index.
type Updater struct {
	docs   DocumentStore
	logger *slog.Logger
}

// NewUpdater creates an Updater over docs.
func NewUpdater(docs DocumentStore, logger *slog.Logger) *Updater {
	return &Updater{docs: docs, logger: logger}
}

// HandleChanges processes one batch and returns how many documents were
// refreshed.
func (u *Updater) HandleChanges(ctx context.Context, events []ChangeEvent) int {
	start := time.Now()
	refreshed := 0
	for _, ev := range events {
		if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
			u.logger.Debug("file removed, keeping index", "path", ev.Path)
			continue
		}
		if _, ok := u.docs.GetDoc(ev.Path); !ok {
			continue
		}
		if err := u.docs.RefreshDoc(ctx, ev.Path); err != nil {
			u.logger.Warn("refresh failed", "path", ev.Path, "err", err)
			continue
		}
		refreshed++
	}

	u.logger.Info("batch complete",
		"files", len(events),
		"refreshed", refreshed,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return refreshed
}

// Run feeds every batch from in to HandleChanges until ctx is done or in is
// closed.
func (u *Updater) Run(ctx context.Context, in <-chan []ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-in:
			if !ok {
				return
			}
			u.HandleChanges(ctx, batch)
		}
	}
}
