// Package watch drives incremental reindexing from a content export
// directory. Store plugins that cannot push webhooks drop one JSON file
// per content item into the directory; this adapter maps file events to
// content change events.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/answercart/answercart/internal/core/domain"
	"github.com/answercart/answercart/internal/core/ports/driving"
	"github.com/answercart/answercart/internal/logger"
)

// debounceWindow coalesces rapid consecutive writes to the same file.
const debounceWindow = 500 * time.Millisecond

// Watcher maps filesystem events in an export directory to indexer
// change notifications. File names encode the source identity as
// <type>-<id>.json, e.g. product-42.json.
type Watcher struct {
	indexer driving.Indexer
	dir     string
}

// New returns a watcher over dir.
func New(indexer driving.Indexer, dir string) *Watcher {
	return &Watcher{indexer: indexer, dir: dir}
}

// Run watches the directory until ctx is cancelled. Events for files
// that do not follow the naming convention are ignored.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	logger.Info("Watching %s for content changes", w.dir)

	pending := make(map[string]domain.ContentChangeEvent)
	timer := time.NewTimer(debounceWindow)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			change, ok := parseEvent(event)
			if !ok {
				continue
			}
			pending[change.SourceID] = change
			timer.Reset(debounceWindow)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watch error: %v", err)

		case <-timer.C:
			for _, change := range pending {
				w.dispatch(ctx, change)
			}
			pending = make(map[string]domain.ContentChangeEvent)
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, change domain.ContentChangeEvent) {
	logger.Debug("Dispatching change: %s %s", change.ChangeType, change.SourceID)
	if err := w.indexer.HandleContentChange(ctx, change); err != nil {
		logger.Warn("Failed to apply change for %s: %v", change.SourceID, err)
	}
}

// parseEvent converts a filesystem event into a content change event.
// The second return is false when the event should be ignored.
func parseEvent(event fsnotify.Event) (domain.ContentChangeEvent, bool) {
	sourceID, ok := parseName(event.Name)
	if !ok {
		return domain.ContentChangeEvent{}, false
	}

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		return domain.ContentChangeEvent{
			SourceID:   sourceID,
			ChangeType: domain.ChangeTypeRemoved,
		}, true
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		return domain.ContentChangeEvent{
			SourceID:   sourceID,
			ChangeType: domain.ChangeTypeUpdated,
		}, true
	default:
		return domain.ContentChangeEvent{}, false
	}
}

// parseName extracts the source identity from a file path following
// the <type>-<id>.json convention.
func parseName(path string) (sourceID string, ok bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".json") {
		return "", false
	}
	name := strings.TrimSuffix(base, ".json")

	idx := strings.IndexByte(name, '-')
	if idx <= 0 || idx == len(name)-1 {
		return "", false
	}
	if !domain.SourceType(name[:idx]).Valid() {
		return "", false
	}
	// File names use "-" where source IDs use ":" (product-42.json
	// identifies product:42).
	return name[:idx] + ":" + name[idx+1:], true
}
