package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/answercart/answercart/internal/core/domain"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	p, err := New(Config{APIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, p.ModelID())
	assert.Equal(t, 1536, p.Dimensions())
	assert.Equal(t, "openai-embedding", p.Name())
}

func TestNew_ModelDimensions(t *testing.T) {
	p, err := New(Config{APIKey: "key", Model: "text-embedding-3-large"})
	require.NoError(t, err)
	assert.Equal(t, 3072, p.Dimensions())

	p, err = New(Config{APIKey: "key", Model: "custom-model", Dimensions: 128})
	require.NoError(t, err)
	assert.Equal(t, 128, p.Dimensions())
}

func TestEmbedBatch(t *testing.T) {
	var gotAuth string
	var gotReq embeddingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		// Respond out of order to check index handling.
		_, _ = w.Write([]byte(`{
			"data": [
				{"embedding": [0.0, 1.0], "index": 1},
				{"embedding": [1.0, 0.0], "index": 0}
			]
		}`))
	}))
	defer server.Close()

	p, err := New(Config{APIKey: "secret", BaseURL: server.URL, Dimensions: 2})
	require.NoError(t, err)

	got, err := p.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, DefaultModel, gotReq.Model)
	assert.Equal(t, []string{"first", "second"}, gotReq.Input)
	require.Len(t, got, 2)
	assert.Equal(t, []float32{1, 0}, got[0])
	assert.Equal(t, []float32{0, 1}, got[1])
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	p, err := New(Config{APIKey: "key"})
	require.NoError(t, err)

	got, err := p.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEmbedBatch_AuthErrorIsRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key", "type": "auth"}}`))
	}))
	defer server.Close()

	p, err := New(Config{APIKey: "bad", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = p.EmbedBatch(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderRejected)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestEmbedBatch_TransientErrorsStayRetryable(t *testing.T) {
	for name, status := range map[string]int{
		"rate limited": http.StatusTooManyRequests,
		"server error": http.StatusInternalServerError,
	} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error": {"message": "try later", "type": "transient"}}`))
			}))
			defer server.Close()

			p, err := New(Config{APIKey: "key", BaseURL: server.URL})
			require.NoError(t, err)

			_, err = p.EmbedBatch(context.Background(), []string{"text"})
			require.Error(t, err)
			assert.NotErrorIs(t, err, domain.ErrProviderRejected)
		})
	}
}

func TestEmbedBatch_MissingEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"embedding": [1.0], "index": 0}]}`))
	}))
	defer server.Close()

	p, err := New(Config{APIKey: "key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = p.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no embedding for input 1")
}

func TestEmbedBatch_OutOfRangeIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"embedding": [1.0], "index": 5}]}`))
	}))
	defer server.Close()

	p, err := New(Config{APIKey: "key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = p.EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out-of-range index")
}
