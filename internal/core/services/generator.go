package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/answercart/answercart/internal/core/domain"
	"github.com/answercart/answercart/internal/core/ports/driven"
	"github.com/answercart/answercart/internal/logger"
)

// DefaultAttemptTimeout bounds one provider attempt.
const DefaultAttemptTimeout = 30 * time.Second

// GenerationGateway sends the final prompt through an ordered provider
// chain. A timeout or server error advances to the next provider
// without surfacing an error; only a fully exhausted chain fails, and
// wiring a canned-response provider last makes that effectively
// unreachable.
type GenerationGateway struct {
	chain          []driven.GenerationProvider
	attemptTimeout time.Duration
	limiter        *rate.Limiter
}

// GeneratorOption configures the gateway.
type GeneratorOption func(*GenerationGateway)

// WithAttemptTimeout sets the per-provider attempt timeout.
func WithAttemptTimeout(d time.Duration) GeneratorOption {
	return func(g *GenerationGateway) {
		if d > 0 {
			g.attemptTimeout = d
		}
	}
}

// WithGenerateLimiter rate-limits provider calls.
func WithGenerateLimiter(l *rate.Limiter) GeneratorOption {
	return func(g *GenerationGateway) {
		g.limiter = l
	}
}

// NewGenerationGateway creates a gateway over the ordered chain.
func NewGenerationGateway(chain []driven.GenerationProvider, opts ...GeneratorOption) (*GenerationGateway, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("generation gateway: provider chain is empty")
	}

	g := &GenerationGateway{
		chain:          chain,
		attemptTimeout: DefaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate renders the envelope and walks the chain until a provider
// answers. Returns the text and the answering provider's name.
func (g *GenerationGateway) Generate(ctx context.Context, envelope domain.PromptEnvelope, policy domain.PlanPolicy) (string, string, error) {
	req := renderRequest(envelope, policy)

	for _, p := range g.chain {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		text, err := g.attempt(ctx, p, req)
		if err == nil {
			logger.Debug("Generation answered by %s (%d chars)", p.Name(), len(text))
			return text, p.Name(), nil
		}
		logger.Warn("Generation provider %s failed, advancing chain: %v", p.Name(), err)
	}

	return "", "", domain.ErrGenerationExhausted
}

// GenerateStream walks the chain like Generate but emits the answer as
// sentence-boundary text deltas. Providers that stream natively have
// their raw deltas coalesced at sentence boundaries; for the rest the
// full response is split after the fact. The channel is closed after
// the Done delta.
func (g *GenerationGateway) GenerateStream(ctx context.Context, envelope domain.PromptEnvelope, policy domain.PlanPolicy) (<-chan domain.TextDelta, string, error) {
	req := renderRequest(envelope, policy)

	for _, p := range g.chain {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}

		if sp, ok := p.(driven.StreamingProvider); ok {
			out, err := g.streamAttempt(ctx, sp, req)
			if err == nil {
				return out, p.Name(), nil
			}
			logger.Warn("Streaming provider %s failed, advancing chain: %v", p.Name(), err)
			continue
		}

		text, err := g.attempt(ctx, p, req)
		if err == nil {
			return synthesizeStream(ctx, text), p.Name(), nil
		}
		logger.Warn("Generation provider %s failed, advancing chain: %v", p.Name(), err)
	}

	return nil, "", domain.ErrGenerationExhausted
}

// attempt calls one provider under the attempt timeout.
func (g *GenerationGateway) attempt(ctx context.Context, p driven.GenerationProvider, req driven.GenerateRequest) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
	defer cancel()

	text, err := p.Generate(attemptCtx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("provider %s returned empty response", p.Name())
	}
	return text, nil
}

// streamAttempt starts a native provider stream and re-chunks its raw
// deltas at sentence boundaries to avoid mid-word flicker.
func (g *GenerationGateway) streamAttempt(ctx context.Context, p driven.StreamingProvider, req driven.GenerateRequest) (<-chan domain.TextDelta, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)

	deltas, errs := p.GenerateStream(attemptCtx, req)

	out := make(chan domain.TextDelta)
	go func() {
		defer close(out)
		defer cancel()

		var buf strings.Builder
		emit := func(text string, done bool) bool {
			select {
			case out <- domain.TextDelta{Text: text, Done: done}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for deltas != nil || errs != nil {
			select {
			case <-attemptCtx.Done():
				select {
				case out <- domain.TextDelta{Err: attemptCtx.Err(), Done: true}:
				case <-ctx.Done():
				}
				return

			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				if err != nil {
					select {
					case out <- domain.TextDelta{Err: err, Done: true}:
					case <-ctx.Done():
					}
					return
				}

			case delta, ok := <-deltas:
				if !ok {
					deltas = nil
					continue
				}
				buf.WriteString(delta)
				for {
					sentence, rest, found := cutSentence(buf.String())
					if !found {
						break
					}
					if !emit(sentence, false) {
						return
					}
					buf.Reset()
					buf.WriteString(rest)
				}
			}
		}

		if remainder := buf.String(); remainder != "" {
			if !emit(remainder, false) {
				return
			}
		}
		emit("", true)
	}()

	return out, nil
}

// synthesizeStream emits a complete response as sentence deltas.
func synthesizeStream(ctx context.Context, text string) <-chan domain.TextDelta {
	out := make(chan domain.TextDelta)
	go func() {
		defer close(out)

		rest := text
		for rest != "" {
			sentence, tail, found := cutSentence(rest)
			if !found {
				sentence, tail = rest, ""
			}
			select {
			case out <- domain.TextDelta{Text: sentence}:
			case <-ctx.Done():
				return
			}
			rest = tail
		}

		select {
		case out <- domain.TextDelta{Done: true}:
		case <-ctx.Done():
		}
	}()
	return out
}

// cutSentence splits off the first complete sentence, including its
// trailing whitespace, from text. found is false when no sentence
// terminator is present yet.
func cutSentence(text string) (sentence, rest string, found bool) {
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		// Require following whitespace (or more punctuation) so
		// decimals like "2.5" stay intact.
		if i+1 < len(text) && text[i+1] != ' ' && text[i+1] != '\n' && text[i+1] != '\t' {
			continue
		}
		end := i + 1
		for end < len(text) && (text[end] == ' ' || text[end] == '\n' || text[end] == '\t') {
			end++
		}
		if end == len(text) {
			// Terminator at the very end: might still be mid-stream.
			return "", text, false
		}
		return text[:end], text[end:], true
	}
	return "", text, false
}

// renderRequest flattens the envelope into a provider-neutral request.
func renderRequest(envelope domain.PromptEnvelope, policy domain.PlanPolicy) driven.GenerateRequest {
	var b strings.Builder

	if len(envelope.ContextChunks) > 0 {
		b.WriteString("Use the following store information to answer the customer's question.\n\n")
		for i, chunk := range envelope.ContextChunks {
			fmt.Fprintf(&b, "[%d] %s\n\n", i+1, chunk.Text)
		}
	} else {
		b.WriteString("No store information matched this question. Answer from general knowledge of the store, and say so when you are unsure.\n\n")
	}

	switch envelope.ResponseMode {
	case domain.ResponseModeConcise:
		b.WriteString("Answer in one or two short sentences.\n\n")
	case domain.ResponseModeDetailed:
		b.WriteString("Answer thoroughly, covering relevant details.\n\n")
	}

	b.WriteString("Customer question: ")
	b.WriteString(envelope.UserQuery)

	model := envelope.ModelHint
	if model == "" {
		model = policy.ModelHint
	}

	return driven.GenerateRequest{
		System:      envelope.SystemInstructions,
		Prompt:      b.String(),
		Model:       model,
		MaxTokens:   policy.MaxTokens,
		Temperature: 0.3,
	}
}
