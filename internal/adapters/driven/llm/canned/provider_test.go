package canned

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/answercart/answercart/internal/core/ports/driven"
)

func TestProvider_SurfacesContextBlocks(t *testing.T) {
	p := New()

	text, err := p.Generate(context.Background(), driven.GenerateRequest{
		Prompt: "Use the following store information to answer the customer's question.\n\n" +
			"[1] The shirt is machine washable.\n\n" +
			"[2] Returns accepted within 30 days.\n\n" +
			"Customer question: Can I wash it?",
	})
	require.NoError(t, err)

	assert.Contains(t, text, "- The shirt is machine washable.")
	assert.Contains(t, text, "- Returns accepted within 30 days.")
}

func TestProvider_NoContext(t *testing.T) {
	p := New()

	text, err := p.Generate(context.Background(), driven.GenerateRequest{
		Prompt: "No store information matched this question.\n\nCustomer question: Do you sell hats?",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, text)
	assert.NotContains(t, text, "- ")
}

func TestProvider_NeverFails(t *testing.T) {
	p := New()
	_, err := p.Generate(context.Background(), driven.GenerateRequest{})
	assert.NoError(t, err)
}

func TestProvider_Name(t *testing.T) {
	assert.Equal(t, "canned", New().Name())
}
