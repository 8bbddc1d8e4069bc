package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/answercart/answercart/internal/core/domain"
	"github.com/answercart/answercart/internal/core/ports/driven"
	"github.com/answercart/answercart/internal/core/ports/driving"
	"github.com/answercart/answercart/internal/logger"
)

// Ensure Answerer implements the interface.
var _ driving.Answerer = (*Answerer)(nil)

// Shopper-facing fallback texts. Refusals are deliberately neutral and
// distinct from outage messages.
const (
	MsgRefusal        = "I can only help with questions about this store and its products. Is there something about our products or policies I can help you with?"
	MsgKBUnavailable  = "Our knowledge base is temporarily unavailable. Please try again in a few minutes."
	MsgServiceBusy    = "Our AI service is temporarily busy and I couldn't prepare an answer. Please try again shortly."
	MsgNothingFound   = "I couldn't find relevant information about that right now. Could you rephrase the question, or ask about our products and policies?"
	defaultSystemText = "You are a helpful shopping assistant for this store. Answer customer questions using only the store information provided. Be accurate, friendly and brief. If the information does not answer the question, say so honestly."
)

// PlanResolver maps a query's context to the plan limits that govern
// it. Resolved once per request so plan branching stays out of the
// pipeline stages.
type PlanResolver func(qc domain.QueryContext) domain.PlanPolicy

// Answerer runs the query pipeline: embed the question, search the
// vector store, rerank, assemble a token-budgeted context, screen for
// safety, and generate. It never lets a provider or store outage escape
// as an error; every failure path produces a well-formed degraded
// answer.
type Answerer struct {
	embedder *EmbeddingGateway
	store    driven.VectorStore
	reranker *Reranker
	builder  *ContextWindowBuilder
	safety   *SafetyGuard
	gateway  *GenerationGateway
	plans    PlanResolver
}

// NewAnswerer wires the query pipeline. A nil plan resolver grants
// every request the default policy.
func NewAnswerer(
	embedder *EmbeddingGateway,
	store driven.VectorStore,
	reranker *Reranker,
	builder *ContextWindowBuilder,
	safety *SafetyGuard,
	gateway *GenerationGateway,
	plans PlanResolver,
) *Answerer {
	if plans == nil {
		plans = func(domain.QueryContext) domain.PlanPolicy {
			return domain.DefaultPlanPolicy()
		}
	}
	return &Answerer{
		embedder: embedder,
		store:    store,
		reranker: reranker,
		builder:  builder,
		safety:   safety,
		gateway:  gateway,
		plans:    plans,
	}
}

// Query answers a shopper question using the knowledge base.
func (a *Answerer) Query(ctx context.Context, text string, qc domain.QueryContext) (*domain.Answer, error) {
	answer, envelope, policy, done := a.prepare(ctx, text, qc)
	if done {
		return answer, nil
	}

	generated, provider, err := a.gateway.Generate(ctx, *envelope, policy)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("Generation chain exhausted for request %s: %v", answer.RequestID, err)
		answer.Text = MsgServiceBusy
		answer.Degraded = true
		return answer, nil
	}

	answer.Text = generated
	answer.Provider = provider
	if provider == "canned" {
		answer.Degraded = true
	}
	return answer, nil
}

// QueryStream answers with incremental sentence deltas. The returned
// answer's Text is filled by the caller draining the stream; blocked
// and degraded answers arrive as a single delta followed by Done.
func (a *Answerer) QueryStream(ctx context.Context, text string, qc domain.QueryContext) (*domain.Answer, <-chan domain.TextDelta, error) {
	answer, envelope, policy, done := a.prepare(ctx, text, qc)
	if done {
		return answer, singleDelta(answer.Text), nil
	}

	deltas, provider, err := a.gateway.GenerateStream(ctx, *envelope, policy)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		logger.Warn("Generation chain exhausted for request %s: %v", answer.RequestID, err)
		answer.Degraded = true
		answer.Text = MsgServiceBusy
		return answer, singleDelta(MsgServiceBusy), nil
	}

	answer.Provider = provider
	if provider == "canned" {
		answer.Degraded = true
	}
	return answer, deltas, nil
}

// prepare runs every stage before generation. When done is true the
// answer is final (blocked, degraded or empty-query) and no generation
// call should be made.
func (a *Answerer) prepare(ctx context.Context, text string, qc domain.QueryContext) (answer *domain.Answer, envelope *domain.PromptEnvelope, policy domain.PlanPolicy, done bool) {
	requestID := uuid.New().String()
	answer = &domain.Answer{RequestID: requestID}
	policy = a.plans(qc)

	logger.Section("Query Execution")
	logger.Debug("Request %s: %q (plan=%s)", requestID, text, policy.Tier)

	text = strings.TrimSpace(text)
	if text == "" {
		answer.Text = MsgNothingFound
		return answer, nil, policy, true
	}

	// 1. Screen the raw query before spending any provider budget.
	if res := a.safety.ScreenQuery(text); !res.Allowed {
		logger.Info("Request %s blocked: %s", requestID, res.Reason)
		answer.Blocked = true
		answer.BlockReason = res.Reason
		answer.Text = MsgRefusal
		return answer, nil, policy, true
	}

	// 2. Embed the query. The deterministic fallback makes this fail
	// only when the context is cancelled.
	queryVector, err := a.embedder.EmbedQuery(ctx, text)
	if err != nil {
		logger.Warn("Request %s embedding failed: %v", requestID, err)
		answer.Degraded = true
		answer.Text = MsgKBUnavailable
		return answer, nil, policy, true
	}

	// 3. Similarity search, filtered to the shopper's locale when set.
	var filter *driven.QueryFilter
	if qc.Locale != "" {
		filter = &driven.QueryFilter{Language: qc.Locale}
	}
	candidates, err := a.store.Query(ctx, queryVector, policy.TopK, filter)
	if err != nil {
		logger.Warn("Request %s store query failed: %v", requestID, err)
		answer.Degraded = true
		answer.Text = MsgKBUnavailable
		return answer, nil, policy, true
	}
	logger.Debug("Request %s: %d candidates from store", requestID, len(candidates))

	// 4. Rerank and assemble the context window. Zero candidates is a
	// valid case: the envelope then carries no context and the
	// generator falls back to a generic prompt.
	reranked := a.reranker.Rerank(text, candidates, qc)
	contextChunks := a.builder.Build(reranked, policy.TokenBudget)

	env := domain.PromptEnvelope{
		SystemInstructions: defaultSystemText,
		ContextChunks:      contextChunks,
		UserQuery:          text,
		ResponseMode:       policy.ResponseMode,
		ModelHint:          policy.ModelHint,
	}
	answer.UsedChunkIDs = env.UsedChunkIDs()

	// 5. Screen the assembled prompt: indexed content can smuggle in
	// injection attempts.
	if res := a.safety.ScreenPrompt(env); !res.Allowed {
		logger.Info("Request %s prompt blocked: %s", requestID, res.Reason)
		answer.Blocked = true
		answer.BlockReason = res.Reason
		answer.Text = MsgRefusal
		answer.UsedChunkIDs = nil
		return answer, nil, policy, true
	}

	return answer, &env, policy, false
}

// singleDelta wraps a final text in a one-shot completed stream.
func singleDelta(text string) <-chan domain.TextDelta {
	out := make(chan domain.TextDelta, 2)
	out <- domain.TextDelta{Text: text}
	out <- domain.TextDelta{Done: true}
	close(out)
	return out
}

// StaticPlanResolver returns a resolver that maps the "plan" hint to a
// configured policy, defaulting when the tier is unknown.
func StaticPlanResolver(policies map[string]domain.PlanPolicy) PlanResolver {
	return func(qc domain.QueryContext) domain.PlanPolicy {
		tier := qc.Hints["plan"]
		if policy, ok := policies[tier]; ok {
			return policy
		}
		if policy, ok := policies["default"]; ok {
			return policy
		}
		return domain.DefaultPlanPolicy()
	}
}
