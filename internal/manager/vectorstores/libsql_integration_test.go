package vectorstores

import (
	"context"
	"errors"
	"testing"

	"github.com/code-sleuth/ike-wp/internal/manager/models"
	"github.com/code-sleuth/ike-wp/internal/manager/testutil"

	"github.com/google/uuid"
)

func TestLibSQLStore_Integration(t *testing.T) {
	database := testutil.OpenTestDB(t)
	ctx := context.Background()

	store := NewLibSQLStore(database, 3)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	namespace := "test-" + uuid.NewString() + ".example.com"
	t.Cleanup(func() {
		_ = store.DeleteAll(context.Background(), namespace)
	})

	entries := []models.VectorEntry{
		entry("posts/1#chunk0", 1, 0, 0),
		entry("posts/2#chunk0", 0, 1, 0),
	}
	if err := store.Upsert(ctx, namespace, entries); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	// Same ids overwrite.
	if err := store.Upsert(ctx, namespace, entries); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	matches, err := store.Query(ctx, namespace, []float32{0, 0, 0}, 10, false)
	if err != nil {
		t.Fatalf("zero vector Query failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(matches))
	}

	matches, err = store.Query(ctx, namespace, []float32{0, 1, 0}, 1, true)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "posts/2#chunk0" {
		t.Fatalf("Expected posts/2#chunk0 first, got %+v", matches)
	}
	if matches[0].Metadata.Link != "https://example.com/posts/2#chunk0" {
		t.Errorf("Expected metadata to be returned, got %+v", matches[0].Metadata)
	}

	if err := store.Upsert(ctx, namespace, []models.VectorEntry{entry("bad", 1, 2)}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}

	if err := store.DeleteAll(ctx, namespace); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	matches, err = store.Query(ctx, namespace, []float32{0, 0, 0}, 1, false)
	if err != nil {
		t.Fatalf("Query after delete failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Expected no entries after delete, got %d", len(matches))
	}
}
