// Package file loads AnswerCart configuration from a TOML file.
package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/answercart/answercart/internal/core/domain"
)

// DefaultConfigPath is relative to the user home directory.
const DefaultConfigPath = ".answercart/config.toml"

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `toml:"driver"`

	// DataDir is where the SQLite database lives.
	DataDir string `toml:"data_dir"`
}

// ContentConfig configures the store content API.
type ContentConfig struct {
	// BaseURL is the store plugin API root.
	BaseURL string `toml:"base_url"`

	// TokenEnv names the environment variable holding the API token.
	TokenEnv string `toml:"token_env"`

	// PageSize is the scan page size.
	PageSize int `toml:"page_size"`
}

// EmbeddingConfig configures the embedding provider chain.
type EmbeddingConfig struct {
	// Provider is "openai" or "dummy".
	Provider string `toml:"provider"`

	// BaseURL overrides the provider API root.
	BaseURL string `toml:"base_url"`

	// Model is the embedding model identifier.
	Model string `toml:"model"`

	// APIKeyEnv names the environment variable holding the key.
	APIKeyEnv string `toml:"api_key_env"`

	// Dimensions is the vector size; must match the store.
	Dimensions int `toml:"dimensions"`

	// BatchCap caps one provider call's batch size.
	BatchCap int `toml:"batch_cap"`
}

// GenerationProviderConfig configures one provider in the chain.
type GenerationProviderConfig struct {
	// Kind is "openai", "anthropic" or "canned".
	Kind string `toml:"kind"`

	// BaseURL overrides the provider API root.
	BaseURL string `toml:"base_url"`

	// Model is the default model for this provider.
	Model string `toml:"model"`

	// APIKeyEnv names the environment variable holding the key.
	APIKeyEnv string `toml:"api_key_env"`
}

// GenerationConfig configures the generation chain.
type GenerationConfig struct {
	// Chain is the ordered provider list. A "canned" terminal entry is
	// appended automatically when missing.
	Chain []GenerationProviderConfig `toml:"chain"`

	// AttemptTimeoutSecs bounds one provider attempt.
	AttemptTimeoutSecs int `toml:"attempt_timeout_secs"`

	// RatePerSec limits provider calls. Zero disables limiting.
	RatePerSec float64 `toml:"rate_per_sec"`
}

// ChunkingConfig configures the chunking engine.
type ChunkingConfig struct {
	Size    int `toml:"size"`
	Overlap int `toml:"overlap"`
}

// RerankConfig configures the reranker.
type RerankConfig struct {
	SimilarityWeight    float64 `toml:"similarity_weight"`
	TypeRelevanceWeight float64 `toml:"type_relevance_weight"`
	FreshnessWeight     float64 `toml:"freshness_weight"`
	ContextMatchWeight  float64 `toml:"context_match_weight"`
	QualityWeight       float64 `toml:"quality_weight"`
	MinScore            float64 `toml:"min_score"`
}

// Weights converts the section to domain weights.
func (c RerankConfig) Weights() domain.RerankWeights {
	return domain.RerankWeights{
		Similarity:    c.SimilarityWeight,
		TypeRelevance: c.TypeRelevanceWeight,
		Freshness:     c.FreshnessWeight,
		ContextMatch:  c.ContextMatchWeight,
		Quality:       c.QualityWeight,
	}
}

// SafetyConfig configures the safety guard.
type SafetyConfig struct {
	// Tier is "strict", "moderate" or "relaxed".
	Tier string `toml:"tier"`

	// BlockCodeRequests toggles refusal of code generation requests.
	BlockCodeRequests bool `toml:"block_code_requests"`

	// Denylist adds extra blocked phrases.
	Denylist []string `toml:"denylist"`
}

// PlanConfig configures one plan tier's limits.
type PlanConfig struct {
	ModelHint    string `toml:"model_hint"`
	TokenBudget  int    `toml:"token_budget"`
	MaxTokens    int    `toml:"max_tokens"`
	TopK         int    `toml:"top_k"`
	ResponseMode string `toml:"response_mode"`
}

// Policy converts the section to a domain plan policy.
func (c PlanConfig) Policy(tier string) domain.PlanPolicy {
	policy := domain.DefaultPlanPolicy()
	policy.Tier = tier
	if c.ModelHint != "" {
		policy.ModelHint = c.ModelHint
	}
	if c.TokenBudget > 0 {
		policy.TokenBudget = c.TokenBudget
	}
	if c.MaxTokens > 0 {
		policy.MaxTokens = c.MaxTokens
	}
	if c.TopK > 0 {
		policy.TopK = c.TopK
	}
	if c.ResponseMode != "" {
		policy.ResponseMode = domain.ResponseMode(c.ResponseMode)
	}
	return policy
}

// Config is the root configuration.
type Config struct {
	Store      StoreConfig           `toml:"store"`
	Content    ContentConfig         `toml:"content"`
	Embedding  EmbeddingConfig       `toml:"embedding"`
	Generation GenerationConfig      `toml:"generation"`
	Chunking   ChunkingConfig        `toml:"chunking"`
	Rerank     RerankConfig          `toml:"rerank"`
	Safety     SafetyConfig          `toml:"safety"`
	Plans      map[string]PlanConfig `toml:"plans"`
}

// Load reads a config from path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		path = filepath.Join(home, DefaultConfigPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// Default returns the shipped configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Content.TokenEnv == "" {
		cfg.Content.TokenEnv = "ANSWERCART_STORE_TOKEN"
	}
	if cfg.Content.PageSize == 0 {
		cfg.Content.PageSize = 50
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "dummy"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.BatchCap == 0 {
		cfg.Embedding.BatchCap = 100
	}
	if len(cfg.Generation.Chain) == 0 {
		cfg.Generation.Chain = []GenerationProviderConfig{{Kind: "canned"}}
	}
	if cfg.Generation.Chain[len(cfg.Generation.Chain)-1].Kind != "canned" {
		cfg.Generation.Chain = append(cfg.Generation.Chain, GenerationProviderConfig{Kind: "canned"})
	}
	if cfg.Generation.AttemptTimeoutSecs == 0 {
		cfg.Generation.AttemptTimeoutSecs = 30
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = domain.DefaultChunkSize
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = domain.DefaultChunkOverlap
	}
	if cfg.Rerank.SimilarityWeight == 0 && cfg.Rerank.TypeRelevanceWeight == 0 {
		w := domain.DefaultRerankWeights()
		cfg.Rerank.SimilarityWeight = w.Similarity
		cfg.Rerank.TypeRelevanceWeight = w.TypeRelevance
		cfg.Rerank.FreshnessWeight = w.Freshness
		cfg.Rerank.ContextMatchWeight = w.ContextMatch
		cfg.Rerank.QualityWeight = w.Quality
	}
	if cfg.Rerank.MinScore == 0 {
		cfg.Rerank.MinScore = domain.MinRerankScore
	}
	if cfg.Safety.Tier == "" {
		cfg.Safety.Tier = "moderate"
		cfg.Safety.BlockCodeRequests = true
	}
	if cfg.Plans == nil {
		cfg.Plans = map[string]PlanConfig{
			"free": {TokenBudget: 1500, MaxTokens: 512, TopK: 8, ResponseMode: "standard"},
			"pro":  {TokenBudget: 3000, MaxTokens: 1024, TopK: 12, ResponseMode: "detailed"},
		}
	}
}
