package interfaces

import (
	"context"
	"iter"

	"github.com/code-sleuth/ike-wp/internal/manager/models"
)

// EmbeddingMode selects the embedding model's input type.
type EmbeddingMode string

const (
	EmbeddingModeDocument EmbeddingMode = "document"
	EmbeddingModeQuery    EmbeddingMode = "query"
)

// ContentSource discovers a WordPress REST API and streams its content.
type ContentSource interface {
	// FindAPIRoot resolves the REST API root advertised by a site
	FindAPIRoot(ctx context.Context, siteURL string) (string, error)

	// SupportsV2 reports whether the API root lists the wp/v2 namespace
	SupportsV2(ctx context.Context, apiRoot string) (bool, error)

	// FetchSiteContent yields pages, then posts, then comments
	FetchSiteContent(ctx context.Context, apiRoot string) iter.Seq2[models.ContentRecord, error]
}

// TextExtractor turns rendered HTML into plain text.
type TextExtractor interface {
	// ExtractText returns the visible text of an HTML fragment
	ExtractText(html string) string

	// CleanTitle returns a rendered title as plain text
	CleanTitle(rendered string) string
}

// Chunker splits extracted text into bounded, overlapping chunks.
type Chunker interface {
	// Split returns the chunks of text in order
	Split(text string) ([]string, error)

	// GetChunkingStrategy returns the strategy name used by this chunker
	GetChunkingStrategy() string
}

// Embedder generates vector embeddings for batches of texts.
type Embedder interface {
	// Embed returns one vector per text, in input order
	Embed(ctx context.Context, texts []string, mode EmbeddingMode) ([][]float32, error)

	// GetModelName returns the name of the embedding model
	GetModelName() string

	// GetDimension returns the dimension of the embedding vectors
	GetDimension() int
}

// VectorStore persists embeddings partitioned by namespace.
type VectorStore interface {
	// Upsert writes entries, overwriting any with the same id
	Upsert(ctx context.Context, namespace string, entries []models.VectorEntry) error

	// Query returns up to topK nearest entries, closest first
	Query(
		ctx context.Context,
		namespace string,
		vector []float32,
		topK int,
		includeMetadata bool,
	) ([]models.Match, error)

	// DeleteAll removes every entry in the namespace
	DeleteAll(ctx context.Context, namespace string) error
}

// CompletionRequest is a single chat completion call.
type CompletionRequest struct {
	Messages []models.ChatMessage
	Model    string
	// Temperature is nil to use the model default.
	Temperature *float32
	SafePrompt  bool
}

// LLM completes chat conversations.
type LLM interface {
	Complete(ctx context.Context, req *CompletionRequest) (*models.ChatMessage, error)
}

// Tokenizer counts the tokens a conversation occupies for a model.
type Tokenizer interface {
	CountTokens(messages []models.ChatMessage, model string) (int, error)
}

// SiteRegistry records which sites have been ingested.
type SiteRegistry interface {
	Upsert(ctx context.Context, site *models.Site) error
	Delete(ctx context.Context, host string) error
}
