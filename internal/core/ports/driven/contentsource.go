package driven

import (
	"context"

	"github.com/answercart/answercart/internal/core/domain"
)

// FetchRequest parameterises one page of a content scan.
type FetchRequest struct {
	// SourceType selects which kind of content to fetch.
	SourceType domain.SourceType

	// Limit is the maximum number of units per page.
	Limit int

	// Offset is the number of units to skip.
	Offset int

	// ForceRescan asks the store to return units even when it believes
	// they are unchanged since the last scan.
	ForceRescan bool
}

// ContentPage is one page of scan results.
type ContentPage struct {
	// Units are the content units in this page.
	Units []domain.ContentUnit

	// HasMore indicates another page is available at NextOffset.
	HasMore bool

	// NextOffset is the offset for the next page.
	NextOffset int
}

// ContentSource pulls raw content units from the external store
// (products, pages, policies, FAQs). The sequence is finite and
// restartable; pagination state lives entirely in the request.
//
// Implementations may include:
//   - WooCommerce/WordPress REST API
//   - In-memory fixtures for tests
type ContentSource interface {
	// Fetch returns one page of content units.
	Fetch(ctx context.Context, req FetchRequest) (*ContentPage, error)

	// Get retrieves a single unit by source ID, for targeted reindex
	// after a content change event. Returns domain.ErrNotFound when
	// the source no longer exists.
	Get(ctx context.Context, sourceID string) (*domain.ContentUnit, error)

	// Types lists the source types this store can serve.
	Types() []domain.SourceType

	// Close releases resources.
	Close() error
}
