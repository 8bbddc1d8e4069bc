package driving

import (
	"context"

	"github.com/answercart/answercart/internal/core/domain"
)

// Answerer is the single entry point the chat-facing caller needs for
// answering a shopper message. Failures degrade to textual fallbacks
// inside the pipeline; the returned error is reserved for programming
// mistakes (nil context, empty dependencies), not provider outages.
type Answerer interface {
	// Query answers a shopper question using the knowledge base.
	Query(ctx context.Context, text string, qc domain.QueryContext) (*domain.Answer, error)

	// QueryStream answers with incremental text deltas. The returned
	// answer carries metadata (request ID, used chunks, block state);
	// its Text field is filled only after the stream completes.
	QueryStream(ctx context.Context, text string, qc domain.QueryContext) (*domain.Answer, <-chan domain.TextDelta, error)
}
