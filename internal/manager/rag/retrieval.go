package rag

import (
	"context"
	"fmt"

	"github.com/code-sleuth/ike-wp/internal/manager/interfaces"
	"github.com/code-sleuth/ike-wp/pkg/util"

	"github.com/rs/zerolog"
)

// Retriever finds the stored chunks closest to a query.
type Retriever struct {
	embedder interfaces.Embedder
	store    interfaces.VectorStore
	logger   zerolog.Logger
}

// NewRetriever creates a retriever over store, embedding queries with embedder.
func NewRetriever(embedder interfaces.Embedder, store interfaces.VectorStore) *Retriever {
	return &Retriever{
		embedder: embedder,
		store:    store,
		logger:   util.NewLogger(zerolog.ErrorLevel),
	}
}

// RetrieveSimilar embeds query in query mode and returns up to k snippets
// formatted as "{title}, source: {link}\n{text}", closest first.
func (r *Retriever) RetrieveSimilar(ctx context.Context, query string, k int, namespace string) ([]string, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query}, interfaces.EmbeddingModeQuery)
	if err != nil {
		r.logger.Error().Err(err).Str("namespace", namespace).Msg("Failed to embed query")
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, ErrNoQueryEmbedding
	}

	matches, err := r.store.Query(ctx, namespace, vectors[0], k, true)
	if err != nil {
		r.logger.Error().Err(err).Str("namespace", namespace).Msg("Vector query failed")
		return nil, err
	}

	snippets := make([]string, 0, len(matches))
	for _, match := range matches {
		md := match.Metadata
		snippets = append(snippets, fmt.Sprintf("%s, source: %s\n%s", md.Title, md.Link, md.Text))
	}

	r.logger.Debug().Str("namespace", namespace).Int("snippets", len(snippets)).Msg("Retrieved snippets")
	return snippets, nil
}
