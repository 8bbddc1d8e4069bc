package driving

import (
	"context"

	"github.com/answercart/answercart/internal/core/domain"
)

// ReindexFilter narrows an indexing pass. A nil filter means all types.
type ReindexFilter struct {
	// SourceTypes limits the pass to these content types.
	SourceTypes []domain.SourceType

	// ForceRescan reindexes sources even when their content hashes are
	// unchanged.
	ForceRescan bool
}

// Indexer drives the knowledge base indexing pipeline.
type Indexer interface {
	// Reindex scans the content store and rebuilds the index. One
	// source failing never aborts the batch for the others; failures
	// are collected in the report.
	Reindex(ctx context.Context, filter *ReindexFilter) (*domain.ReindexReport, error)

	// HandleContentChange reindexes or removes a single source in
	// response to a store-side change event.
	HandleContentChange(ctx context.Context, ev domain.ContentChangeEvent) error
}
