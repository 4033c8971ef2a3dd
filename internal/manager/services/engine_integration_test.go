package services

import (
	"context"
	"errors"
	"testing"

	"github.com/code-sleuth/ike-wp/internal/manager/importers"
	"github.com/code-sleuth/ike-wp/internal/manager/repository"
	"github.com/code-sleuth/ike-wp/internal/manager/testutil"
	"github.com/code-sleuth/ike-wp/internal/manager/transformers"
	"github.com/code-sleuth/ike-wp/internal/manager/vectorstores"
)

func TestIngestionEngine_LibSQL_Integration(t *testing.T) {
	database := testutil.OpenTestDB(t)
	ctx := context.Background()

	store := vectorstores.NewLibSQLStore(database, 3)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	sites := repository.NewSiteRepository(database)
	if err := sites.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	wp := testutil.NewWordPressServer(t, testutil.WordPressOptions{TotalPages: 1, FirstID: 1, LastID: 3})
	namespace, err := SiteNamespace(wp.URL)
	if err != nil {
		t.Fatalf("SiteNamespace failed: %v", err)
	}

	engine := NewIngestionEngine(
		importers.NewWPJSONImporter(),
		transformers.NewHTMLExtractor(),
		testutil.WordChunker{Words: 20},
		&testutil.FakeEmbedder{Dimension: 3, MaxBatchSize: DefaultBatchSize},
		store,
	)
	engine.SetSiteRegistry(sites)

	// The namespace is the loopback host, shared by every run against this database.
	if _, err := engine.DeleteDatabase(ctx, wp.URL); err != nil {
		t.Fatalf("DeleteDatabase failed: %v", err)
	}
	t.Cleanup(func() {
		_, _ = engine.DeleteDatabase(context.Background(), wp.URL)
	})

	status, err := engine.EnsureDatabase(ctx, wp.URL, true)
	if err != nil {
		t.Fatalf("EnsureDatabase failed: %v", err)
	}
	if !status.DatabasePresent || !status.DatabaseCreated {
		t.Fatalf("Expected the database to be created, got %+v", status)
	}

	// 3 collections x 2 items, 2 chunks each.
	matches, err := store.Query(ctx, namespace, []float32{0, 0, 0}, 100, true)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 12 {
		t.Errorf("Expected 12 stored chunks, got %d", len(matches))
	}

	site, err := sites.GetByHost(ctx, namespace)
	if err != nil {
		t.Fatalf("GetByHost failed: %v", err)
	}
	if site.ChunkCount != 12 || site.SiteURL != wp.URL {
		t.Errorf("Unexpected site record: %+v", site)
	}

	exists, err := engine.DatabaseExists(ctx, namespace)
	if err != nil || !exists {
		t.Fatalf("Expected database to exist, got %v (err %v)", exists, err)
	}

	if _, err := engine.DeleteDatabase(ctx, wp.URL); err != nil {
		t.Fatalf("DeleteDatabase failed: %v", err)
	}
	if _, err := sites.GetByHost(ctx, namespace); !errors.Is(err, repository.ErrSiteNotFound) {
		t.Errorf("Expected ErrSiteNotFound after delete, got %v", err)
	}
	exists, err = engine.DatabaseExists(ctx, namespace)
	if err != nil || exists {
		t.Errorf("Expected database to be gone, got %v (err %v)", exists, err)
	}
}
