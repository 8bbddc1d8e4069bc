// Package cli wires the AnswerCart pipeline behind cobra commands.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	configfile "github.com/answercart/answercart/internal/adapters/driven/config/file"
	memorycontent "github.com/answercart/answercart/internal/adapters/driven/content/memory"
	"github.com/answercart/answercart/internal/adapters/driven/content/woocommerce"
	embeddingdummy "github.com/answercart/answercart/internal/adapters/driven/embedding/dummy"
	embeddingopenai "github.com/answercart/answercart/internal/adapters/driven/embedding/openai"
	"github.com/answercart/answercart/internal/adapters/driven/llm/anthropic"
	"github.com/answercart/answercart/internal/adapters/driven/llm/canned"
	llmopenai "github.com/answercart/answercart/internal/adapters/driven/llm/openai"
	memorystore "github.com/answercart/answercart/internal/adapters/driven/vectorstore/memory"
	sqlitestore "github.com/answercart/answercart/internal/adapters/driven/vectorstore/sqlite"
	"github.com/answercart/answercart/internal/chunker"
	"github.com/answercart/answercart/internal/core/domain"
	"github.com/answercart/answercart/internal/core/ports/driven"
	"github.com/answercart/answercart/internal/core/services"
	"github.com/answercart/answercart/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "answercart",
	Short: "Store knowledge base indexing and question answering",
	Long: `AnswerCart turns store content (products, pages, policies, FAQs)
into an embedded knowledge base and answers shopper questions from it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	// Missing .env is fine; environment variables may come from anywhere.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.answercart/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// app holds the wired pipeline for one command invocation.
type app struct {
	cfg      *configfile.Config
	answerer *services.Answerer
	indexer  *services.Indexer
	store    driven.VectorStore
	source   driven.ContentSource
}

// Close releases the app's resources in reverse wiring order.
func (a *app) Close() {
	if a.source != nil {
		_ = a.source.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// buildApp is the composition root: it loads config and assembles the
// full pipeline from adapters and services.
func buildApp() (*app, error) {
	cfg, err := configfile.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	store, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}

	source, err := buildSource(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		_ = source.Close()
		_ = store.Close()
		return nil, err
	}

	engine, err := chunker.New(domain.ChunkConfig{
		ChunkSize: cfg.Chunking.Size,
		Overlap:   cfg.Chunking.Overlap,
	})
	if err != nil {
		_ = source.Close()
		_ = store.Close()
		return nil, fmt.Errorf("chunking config: %w", err)
	}

	reranker, err := services.NewReranker(
		services.WithWeights(cfg.Rerank.Weights()),
		services.WithMinScore(cfg.Rerank.MinScore),
	)
	if err != nil {
		_ = source.Close()
		_ = store.Close()
		return nil, fmt.Errorf("rerank config: %w", err)
	}

	safety := services.NewSafetyGuard(
		services.WithTier(services.SafetyTier(cfg.Safety.Tier)),
		services.WithCodeBlocking(cfg.Safety.BlockCodeRequests),
		services.WithDenylist(cfg.Safety.Denylist),
	)

	gateway, err := buildGenerator(cfg)
	if err != nil {
		_ = source.Close()
		_ = store.Close()
		return nil, err
	}

	policies := make(map[string]domain.PlanPolicy, len(cfg.Plans))
	for tier, plan := range cfg.Plans {
		policies[tier] = plan.Policy(tier)
	}

	indexer := services.NewIndexer(source, engine, embedder, store,
		services.WithPageSize(cfg.Content.PageSize),
	)
	answerer := services.NewAnswerer(
		embedder, store, reranker,
		services.NewContextWindowBuilder(),
		safety, gateway,
		services.StaticPlanResolver(policies),
	)

	return &app{
		cfg:      cfg,
		answerer: answerer,
		indexer:  indexer,
		store:    store,
		source:   source,
	}, nil
}

func buildStore(cfg *configfile.Config) (driven.VectorStore, error) {
	switch cfg.Store.Driver {
	case "memory":
		return memorystore.New(cfg.Embedding.Dimensions), nil
	case "sqlite":
		store, err := sqlitestore.New(cfg.Store.DataDir, cfg.Embedding.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("open vector store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func buildSource(cfg *configfile.Config) (driven.ContentSource, error) {
	if cfg.Content.BaseURL == "" {
		logger.Warn("No content base_url configured; using an empty in-memory source")
		return memorycontent.New(), nil
	}
	return woocommerce.New(woocommerce.Config{
		BaseURL: cfg.Content.BaseURL,
		Token:   os.Getenv(cfg.Content.TokenEnv),
	})
}

func buildEmbedder(cfg *configfile.Config) (*services.EmbeddingGateway, error) {
	fallback := embeddingdummy.New(cfg.Embedding.Dimensions)

	var chain []driven.EmbeddingProvider
	switch cfg.Embedding.Provider {
	case "dummy":
		// Fallback alone carries the load.
	case "openai":
		key := os.Getenv(cfg.Embedding.APIKeyEnv)
		if key == "" {
			logger.Warn("%s is not set; embedding falls back to deterministic vectors", cfg.Embedding.APIKeyEnv)
			break
		}
		provider, err := embeddingopenai.New(embeddingopenai.Config{
			APIKey:     key,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding provider: %w", err)
		}
		chain = append(chain, provider)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	return services.NewEmbeddingGateway(chain, fallback,
		services.WithBatchCap(cfg.Embedding.BatchCap),
	)
}

func buildGenerator(cfg *configfile.Config) (*services.GenerationGateway, error) {
	var chain []driven.GenerationProvider
	for _, pc := range cfg.Generation.Chain {
		provider, err := buildGenProvider(pc)
		if err != nil {
			return nil, err
		}
		if provider != nil {
			chain = append(chain, provider)
		}
	}

	opts := []services.GeneratorOption{
		services.WithAttemptTimeout(time.Duration(cfg.Generation.AttemptTimeoutSecs) * time.Second),
	}
	if cfg.Generation.RatePerSec > 0 {
		opts = append(opts, services.WithGenerateLimiter(
			rate.NewLimiter(rate.Limit(cfg.Generation.RatePerSec), 1),
		))
	}
	return services.NewGenerationGateway(chain, opts...)
}

// buildGenProvider returns nil (no error) when a provider is configured
// but its key is missing, so the chain degrades instead of failing.
func buildGenProvider(pc configfile.GenerationProviderConfig) (driven.GenerationProvider, error) {
	switch pc.Kind {
	case "canned":
		return canned.New(), nil
	case "openai":
		key := os.Getenv(keyEnv(pc.APIKeyEnv, "OPENAI_API_KEY"))
		if key == "" {
			logger.Warn("No API key for openai generation provider; skipping")
			return nil, nil
		}
		return llmopenai.New(llmopenai.Config{
			APIKey:  key,
			BaseURL: pc.BaseURL,
			Model:   pc.Model,
		})
	case "anthropic":
		key := os.Getenv(keyEnv(pc.APIKeyEnv, "ANTHROPIC_API_KEY"))
		if key == "" {
			logger.Warn("No API key for anthropic generation provider; skipping")
			return nil, nil
		}
		return anthropic.New(anthropic.Config{
			APIKey:  key,
			BaseURL: pc.BaseURL,
			Model:   pc.Model,
		})
	default:
		return nil, fmt.Errorf("unknown generation provider %q", pc.Kind)
	}
}

func keyEnv(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}
