package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/code-sleuth/ike-wp/internal/manager/interfaces"
	"github.com/code-sleuth/ike-wp/internal/manager/models"
	"github.com/code-sleuth/ike-wp/internal/manager/testutil"
	"github.com/code-sleuth/ike-wp/internal/manager/vectorstores"
)

const testDimension = 8

func seededStore(t *testing.T, namespace string, entries ...models.VectorEntry) *vectorstores.MemoryStore {
	t.Helper()
	store := vectorstores.NewMemoryStore()
	if err := store.Upsert(context.Background(), namespace, entries); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	return store
}

func TestRetriever_RetrieveSimilar(t *testing.T) {
	query := "how do I reset my password?"
	store := seededStore(t, "example.com",
		models.VectorEntry{
			ID:     "pages/1#chunk0",
			Values: testutil.HashVector(query, testDimension),
			Metadata: models.VectorMetadata{
				Title: "Account help",
				Link:  "https://example.com/help",
				Text:  "Use the reset link on the login page.",
			},
		},
		models.VectorEntry{
			ID:     "posts/2#chunk0",
			Values: testutil.HashVector("something else", testDimension),
			Metadata: models.VectorMetadata{
				Title: "News",
				Link:  "https://example.com/news",
				Text:  "We launched.",
			},
		},
	)
	embedder := &testutil.FakeEmbedder{Dimension: testDimension}
	retriever := NewRetriever(embedder, store)

	tests := []struct {
		name          string
		k             int
		namespace     string
		expectedCount int
		description   string
	}{
		{
			name:          "top one",
			k:             1,
			namespace:     "example.com",
			expectedCount: 1,
			description:   "should return the closest snippet",
		},
		{
			name:          "more than stored",
			k:             5,
			namespace:     "example.com",
			expectedCount: 2,
			description:   "should return every snippet when k exceeds the namespace",
		},
		{
			name:          "empty namespace",
			k:             5,
			namespace:     "other.com",
			expectedCount: 0,
			description:   "should return nothing for an unknown namespace",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snippets, err := retriever.RetrieveSimilar(context.Background(), query, tt.k, tt.namespace)
			if err != nil {
				t.Fatalf("Unexpected error for test %s: %v", tt.description, err)
			}

			if len(snippets) != tt.expectedCount {
				t.Fatalf("Expected %d snippets, got %d for test: %s", tt.expectedCount, len(snippets), tt.description)
			}
			if tt.expectedCount > 0 {
				expected := "Account help, source: https://example.com/help\nUse the reset link on the login page."
				if snippets[0] != expected {
					t.Errorf("Expected first snippet %q, got %q", expected, snippets[0])
				}
			}
		})
	}

	for _, call := range embedder.Calls {
		if call.Mode != interfaces.EmbeddingModeQuery {
			t.Errorf("Expected query mode, got %s", call.Mode)
		}
	}
}

func TestRetriever_RetrieveSimilarErrors(t *testing.T) {
	errEmbed := errors.New("embed failed")
	retriever := NewRetriever(&testutil.FakeEmbedder{Err: errEmbed}, vectorstores.NewMemoryStore())

	if _, err := retriever.RetrieveSimilar(context.Background(), "q", 5, "example.com"); !errors.Is(err, errEmbed) {
		t.Errorf("Expected embed error, got %v", err)
	}

	retriever = NewRetriever(&testutil.FakeEmbedder{Dimension: testDimension}, vectorstores.NewMemoryStore())
	if _, err := retriever.RetrieveSimilar(context.Background(), "q", 0, "example.com"); !errors.Is(err, vectorstores.ErrInvalidTopK) {
		t.Errorf("Expected ErrInvalidTopK, got %v", err)
	}
}
