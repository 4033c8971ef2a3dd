package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/code-sleuth/ike-wp/internal/manager/chunkers"
	"github.com/code-sleuth/ike-wp/internal/manager/embedders"
	"github.com/code-sleuth/ike-wp/internal/manager/importers"
	"github.com/code-sleuth/ike-wp/internal/manager/interfaces"
	"github.com/code-sleuth/ike-wp/internal/manager/llm"
	"github.com/code-sleuth/ike-wp/internal/manager/rag"
	"github.com/code-sleuth/ike-wp/internal/manager/repository"
	"github.com/code-sleuth/ike-wp/internal/manager/services"
	"github.com/code-sleuth/ike-wp/internal/manager/tokenizers"
	"github.com/code-sleuth/ike-wp/internal/manager/transformers"
	"github.com/code-sleuth/ike-wp/internal/manager/vectorstores"
	"github.com/code-sleuth/ike-wp/pkg/config"
	"github.com/code-sleuth/ike-wp/pkg/db"
	"github.com/code-sleuth/ike-wp/pkg/util"

	"github.com/rs/zerolog"
)

var ErrUnknownEmbeddingProvider = errors.New("unknown embedding provider")

// app holds the wired components shared by the commands.
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	database   *db.DB
	sites      *repository.SiteRepository
	embedder   interfaces.Embedder
	store      interfaces.VectorStore
	engine     *services.IngestionEngine
	controller *rag.ConversationController
}

// newApp loads configuration and wires the ingestion pipeline; withChat
// also wires the LLM and conversation controller.
func newApp(ctx context.Context, withChat bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := util.NewLogger(util.ParseLevel(cfg.LogLevel, zerolog.InfoLevel))
	a := &app{cfg: cfg, logger: logger}

	if cfg.VectorStore == vectorstores.KindLibSQL {
		a.database, err = db.Open(cfg.TursoURL, cfg.TursoAuthToken)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.sites = repository.NewSiteRepository(a.database)
		if err := a.sites.EnsureSchema(ctx); err != nil {
			a.close()
			return nil, err
		}
	}

	a.embedder, err = newEmbedder(cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	a.store, err = vectorstores.New(ctx, cfg.VectorStore, a.database, a.embedder.GetDimension())
	if err != nil {
		a.close()
		return nil, err
	}

	importer := importers.NewWPJSONImporter()
	importer.SetTimeout(cfg.HTTPTimeout)
	importer.SetPerPage(cfg.WPPerPage)
	importer.SetRateLimit(cfg.WPRequestsPerSecond)

	chunker, err := chunkers.NewTokenChunkerWithConfig(cfg.Tokenizer, cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		a.close()
		return nil, err
	}
	chunker.SetLogger(logger)

	a.engine = services.NewIngestionEngine(importer, transformers.NewHTMLExtractor(), chunker, a.embedder, a.store)
	a.engine.SetBatchSize(cfg.EmbeddingBatchSize)
	a.engine.SetMinContentLength(cfg.MinContentLength)
	a.engine.SetLogger(logger)
	if a.sites != nil {
		a.engine.SetSiteRegistry(a.sites)
	}

	if !withChat {
		return a, nil
	}

	client, err := llm.New(cfg.LLMProvider, llmAPIKey(cfg), cfg.LLMBaseURL)
	if err != nil {
		a.close()
		return nil, err
	}

	tokenizer, err := tokenizers.NewChatTokenizer(cfg.Tokenizer)
	if err != nil {
		a.close()
		return nil, err
	}

	a.controller = rag.NewConversationController(rag.NewRetriever(a.embedder, a.store), client, tokenizer, cfg.LLMModel)
	a.controller.SetLogger(logger)
	return a, nil
}

func (a *app) close() {
	if a.database == nil {
		return
	}
	if err := a.database.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close database connection")
	}
}

func newEmbedder(cfg *config.Config) (interfaces.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "voyage":
		embedder, err := embedders.NewVoyageEmbedderWithClient(cfg.EmbeddingModel, cfg.VoyageAPIKey, nil, "")
		if err != nil {
			return nil, err
		}
		return embedder, nil
	case "openai":
		embedder, err := embedders.NewOpenAIEmbedderWithClient(cfg.EmbeddingModel, cfg.OpenAIAPIKey, nil, "")
		if err != nil {
			return nil, err
		}
		return embedder, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEmbeddingProvider, cfg.EmbeddingProvider)
	}
}

func llmAPIKey(cfg *config.Config) string {
	if cfg.LLMProvider == llm.ProviderOpenAI {
		return cfg.OpenAIAPIKey
	}
	return cfg.MistralAPIKey
}
