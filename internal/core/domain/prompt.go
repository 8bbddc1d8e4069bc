package domain

import "time"

// ResponseMode selects the verbosity of a generated answer.
type ResponseMode string

// Response modes.
const (
	ResponseModeStandard ResponseMode = "standard"
	ResponseModeDetailed ResponseMode = "detailed"
	ResponseModeConcise  ResponseMode = "concise"
)

// PromptEnvelope is the fully assembled input to a generation call.
// It is built fresh per query and discarded after the call returns.
type PromptEnvelope struct {
	// SystemInstructions frames the assistant's role and constraints.
	SystemInstructions string

	// ContextChunks are the retrieved chunks in rerank order, already
	// bounded by the token budget.
	ContextChunks []Chunk

	// UserQuery is the shopper's question as screened.
	UserQuery string

	// ResponseMode selects answer verbosity.
	ResponseMode ResponseMode

	// ModelHint suggests a model to the provider chain (e.g. from the
	// shop's plan tier). Providers may ignore it.
	ModelHint string
}

// UsedChunkIDs returns the IDs of all context chunks in order.
func (e PromptEnvelope) UsedChunkIDs() []string {
	ids := make([]string, len(e.ContextChunks))
	for i, c := range e.ContextChunks {
		ids[i] = c.ID
	}
	return ids
}

// PlanPolicy bundles the per-request limits derived from the shop's
// plan tier. It is resolved once per request and passed explicitly, so
// plan branching never leaks into pipeline logic.
type PlanPolicy struct {
	// Tier is the plan name ("free", "pro", ...).
	Tier string

	// ModelHint is the preferred generation model for this tier.
	ModelHint string

	// TokenBudget caps the estimated size of the prompt context.
	TokenBudget int

	// MaxTokens caps the generated answer length.
	MaxTokens int

	// TopK is how many candidates to pull from the vector store.
	TopK int

	// ResponseMode is the tier's default verbosity.
	ResponseMode ResponseMode
}

// DefaultPlanPolicy returns conservative limits used when no tier
// configuration matches.
func DefaultPlanPolicy() PlanPolicy {
	return PlanPolicy{
		Tier:         "free",
		TokenBudget:  1500,
		MaxTokens:    512,
		TopK:         8,
		ResponseMode: ResponseModeStandard,
	}
}

// Answer is the query pipeline's result. The pipeline always produces
// a well-formed answer; outages and safety blocks degrade the text
// rather than surfacing as errors.
type Answer struct {
	// RequestID correlates log lines for one query.
	RequestID string

	// Text is the answer shown to the shopper.
	Text string

	// UsedChunkIDs lists the chunks that informed the answer.
	UsedChunkIDs []string

	// Blocked is true when the safety guard refused the query.
	Blocked bool

	// BlockReason is the machine-readable refusal reason code.
	BlockReason string

	// Degraded is true when the answer is a fallback produced during
	// a provider or store outage.
	Degraded bool

	// Provider names the generation provider that answered.
	Provider string
}

// TextDelta is one increment of a streamed answer. Deltas are emitted
// at sentence boundaries where possible.
type TextDelta struct {
	// Text is the incremental content.
	Text string

	// Done marks the final delta of the stream.
	Done bool

	// Err carries a terminal stream failure, nil otherwise.
	Err error
}

// ReindexReport summarises one indexing pass.
type ReindexReport struct {
	// Processed counts sources fully reindexed.
	Processed int

	// Skipped counts sources left untouched (unchanged content).
	Skipped int

	// Failed counts sources that errored. A failing source never
	// aborts the batch for the others.
	Failed int

	// Duration is the wall-clock time of the pass.
	Duration time.Duration

	// Failures maps source ID to the failure reason.
	Failures map[string]string
}
