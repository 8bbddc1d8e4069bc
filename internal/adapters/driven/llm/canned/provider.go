// Package canned provides a deterministic terminal fallback generation
// provider. It is wired last in the chain so the pipeline can always
// produce a useful answer even when every remote provider is down: it
// simply surfaces the retrieved store information verbatim.
package canned

import (
	"context"
	"regexp"
	"strings"

	"github.com/answercart/answercart/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.GenerationProvider = (*Provider)(nil)

// Provider answers from the retrieved context without calling any
// external service.
type Provider struct{}

// New creates the canned-response provider.
func New() *Provider {
	return &Provider{}
}

// Name identifies the provider.
func (p *Provider) Name() string {
	return "canned"
}

// contextBlock matches the numbered context entries rendered into the
// prompt ("[1] ...").
var contextBlock = regexp.MustCompile(`(?m)^\[\d+\]\s+(.+)$`)

// Generate extracts the retrieved store information from the prompt and
// presents it directly. With no context it degrades to an honest
// can't-answer message. It never fails.
func (p *Provider) Generate(_ context.Context, req driven.GenerateRequest) (string, error) {
	matches := contextBlock.FindAllStringSubmatch(req.Prompt, -1)
	if len(matches) == 0 {
		return "I couldn't reach our assistant service just now, and I don't have store information matching your question. Please try again shortly or contact the store directly.", nil
	}

	var b strings.Builder
	b.WriteString("Here's what I found in our store information:\n\n")
	for _, m := range matches {
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(m[1]))
		b.WriteString("\n")
	}
	b.WriteString("\nOur assistant service is temporarily busy, so this is shown as found. Please ask again shortly for a full answer.")
	return b.String(), nil
}

// Close releases resources.
func (p *Provider) Close() error {
	return nil
}
