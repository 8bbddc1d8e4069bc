package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/answercart/answercart/internal/chunker"
	"github.com/answercart/answercart/internal/core/domain"
	"github.com/answercart/answercart/internal/core/ports/driven"
	"github.com/answercart/answercart/internal/core/ports/driving"
	"github.com/answercart/answercart/internal/logger"
)

// Ensure Indexer implements the interface.
var _ driving.Indexer = (*Indexer)(nil)

// Indexing defaults.
const (
	DefaultScanPageSize = 50
	DefaultIndexWorkers = 4
)

// Indexer runs the knowledge base indexing pipeline:
// scan, chunk, embed, store. Sources are independent and fan out across
// a worker pool; chunk order within a source is preserved through the
// position field. Each source is replaced atomically in the store so a
// concurrent query never observes a half-old, half-new mix.
type Indexer struct {
	source   driven.ContentSource
	chunks   *chunker.Engine
	embedder *EmbeddingGateway
	store    driven.VectorStore

	pageSize int
	workers  int
}

// IndexerOption configures the indexer.
type IndexerOption func(*Indexer)

// WithPageSize sets the scan page size.
func WithPageSize(n int) IndexerOption {
	return func(ix *Indexer) {
		if n > 0 {
			ix.pageSize = n
		}
	}
}

// WithWorkers sets the per-source fan-out width.
func WithWorkers(n int) IndexerOption {
	return func(ix *Indexer) {
		if n > 0 {
			ix.workers = n
		}
	}
}

// NewIndexer creates the indexing pipeline.
func NewIndexer(
	source driven.ContentSource,
	chunks *chunker.Engine,
	embedder *EmbeddingGateway,
	store driven.VectorStore,
	opts ...IndexerOption,
) *Indexer {
	ix := &Indexer{
		source:   source,
		chunks:   chunks,
		embedder: embedder,
		store:    store,
		pageSize: DefaultScanPageSize,
		workers:  DefaultIndexWorkers,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Reindex scans the content store and rebuilds the index. One source
// failing to scan, chunk or embed never aborts the batch for the
// others; failures are collected in the report with reasons.
func (ix *Indexer) Reindex(ctx context.Context, filter *driving.ReindexFilter) (*domain.ReindexReport, error) {
	logger.Section("Reindex")
	start := time.Now()

	types := ix.source.Types()
	force := false
	if filter != nil {
		if len(filter.SourceTypes) > 0 {
			types = filter.SourceTypes
		}
		force = filter.ForceRescan
	}

	report := &domain.ReindexReport{Failures: make(map[string]string)}
	var mu sync.Mutex

	units := make(chan domain.ContentUnit)
	var wg sync.WaitGroup
	for i := 0; i < ix.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range units {
				outcome, err := ix.indexUnit(ctx, unit, force)
				mu.Lock()
				switch {
				case err != nil:
					report.Failed++
					report.Failures[unit.SourceID] = err.Error()
				case outcome == outcomeSkipped:
					report.Skipped++
				default:
					report.Processed++
				}
				mu.Unlock()
			}
		}()
	}

	scanErr := ix.scan(ctx, types, force, units)
	close(units)
	wg.Wait()

	report.Duration = time.Since(start)
	logger.Info("Reindex complete: processed=%d skipped=%d failed=%d in %s",
		report.Processed, report.Skipped, report.Failed, report.Duration)

	if scanErr != nil {
		return report, scanErr
	}
	return report, nil
}

// scan pulls all pages of every requested type onto the units channel.
// A type failing to scan is recorded but does not stop the others.
func (ix *Indexer) scan(ctx context.Context, types []domain.SourceType, force bool, units chan<- domain.ContentUnit) error {
	var errs []error

	for _, st := range types {
		offset := 0
		for {
			page, err := ix.source.Fetch(ctx, driven.FetchRequest{
				SourceType:  st,
				Limit:       ix.pageSize,
				Offset:      offset,
				ForceRescan: force,
			})
			if err != nil {
				logger.Warn("Scan failed for type %s: %v", st, err)
				errs = append(errs, fmt.Errorf("scan %s: %w", st, err))
				break
			}

			for _, unit := range page.Units {
				select {
				case units <- unit:
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			if !page.HasMore {
				break
			}
			offset = page.NextOffset
		}
	}

	return errors.Join(errs...)
}

// indexUnit outcomes.
type indexOutcome int

const (
	outcomeProcessed indexOutcome = iota
	outcomeSkipped
)

// indexUnit chunks, dedupes, embeds and atomically stores one source.
func (ix *Indexer) indexUnit(ctx context.Context, unit domain.ContentUnit, force bool) (indexOutcome, error) {
	chunks, err := ix.chunks.Chunk(unit)
	if err != nil {
		return 0, fmt.Errorf("chunk: %w", err)
	}

	if len(chunks) == 0 {
		// Content emptied out: drop whatever the index still holds.
		if _, err := ix.store.DeleteBySource(ctx, unit.SourceID); err != nil {
			return 0, fmt.Errorf("delete empty source: %w", err)
		}
		return outcomeProcessed, nil
	}

	for _, c := range chunks {
		if c.HardCut {
			logger.Warn("Source %s chunk %d hard-cut: single sentence exceeds chunk size", unit.SourceID, c.Position)
		}
	}

	if !force {
		unchanged, err := ix.isUnchanged(ctx, unit.SourceID, chunks)
		if err != nil {
			return 0, err
		}
		if unchanged {
			logger.Debug("Source %s unchanged, skipping", unit.SourceID)
			return outcomeSkipped, nil
		}
	}

	chunks, err = ix.dedupe(ctx, unit.SourceID, chunks)
	if err != nil {
		return 0, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}
	for i := range vectors {
		vectors[i].ChunkID = chunks[i].ID
	}

	if err := ix.store.ReplaceSource(ctx, unit.SourceID, chunks, vectors); err != nil {
		return 0, fmt.Errorf("store: %w", err)
	}

	logger.Debug("Source %s indexed: %d chunks", unit.SourceID, len(chunks))
	return outcomeProcessed, nil
}

// isUnchanged reports whether the stored hash set for a source already
// matches the freshly produced chunks, in which case reindexing it
// would be a no-op.
func (ix *Indexer) isUnchanged(ctx context.Context, sourceID string, chunks []domain.Chunk) (bool, error) {
	existing, err := ix.store.HashesBySource(ctx, sourceID)
	if err != nil {
		return false, fmt.Errorf("load hashes: %w", err)
	}
	if len(existing) == 0 {
		return false, nil
	}

	fresh := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		fresh[c.ContentHash] = true
	}
	if len(fresh) != len(existing) {
		return false, nil
	}
	for hash := range fresh {
		if !existing[hash] {
			return false, nil
		}
	}
	return true, nil
}

// dedupe drops chunks whose content hash already exists, either earlier
// in this batch or elsewhere in the index.
func (ix *Indexer) dedupe(ctx context.Context, sourceID string, chunks []domain.Chunk) ([]domain.Chunk, error) {
	seen := make(map[string]bool, len(chunks))
	kept := make([]domain.Chunk, 0, len(chunks))

	for _, c := range chunks {
		if seen[c.ContentHash] {
			logger.Debug("Dropping duplicate chunk %s (in-batch)", c.ID)
			continue
		}
		seen[c.ContentHash] = true

		exists, err := ix.store.HashExists(ctx, c.ContentHash, sourceID)
		if err != nil {
			return nil, fmt.Errorf("hash check: %w", err)
		}
		if exists {
			logger.Debug("Dropping duplicate chunk %s (already indexed)", c.ID)
			continue
		}
		kept = append(kept, c)
	}
	return kept, nil
}

// HandleContentChange reindexes or removes a single source in response
// to a store-side change event.
func (ix *Indexer) HandleContentChange(ctx context.Context, ev domain.ContentChangeEvent) error {
	logger.Info("Content change: %s %s", ev.ChangeType, ev.SourceID)

	if ev.ChangeType == domain.ChangeTypeRemoved {
		deleted, err := ix.store.DeleteBySource(ctx, ev.SourceID)
		if err != nil {
			return fmt.Errorf("delete source %s: %w", ev.SourceID, err)
		}
		logger.Debug("Removed %d chunks for %s", deleted, ev.SourceID)
		return nil
	}

	unit, err := ix.source.Get(ctx, ev.SourceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_, delErr := ix.store.DeleteBySource(ctx, ev.SourceID)
			return delErr
		}
		return fmt.Errorf("fetch source %s: %w", ev.SourceID, err)
	}

	if _, err := ix.indexUnit(ctx, *unit, true); err != nil {
		return fmt.Errorf("reindex source %s: %w", ev.SourceID, err)
	}
	return nil
}
