package vectorstores

import (
	"context"
	"fmt"

	"github.com/code-sleuth/ike-wp/internal/manager/interfaces"
	"github.com/code-sleuth/ike-wp/pkg/db"
)

const (
	KindLibSQL = "libsql"
	KindMemory = "memory"
)

// New builds the vector store named by kind. The libsql store needs a
// database connection and creates its schema before returning.
func New(ctx context.Context, kind string, database *db.DB, dimension int) (interfaces.VectorStore, error) {
	switch kind {
	case KindMemory:
		return NewMemoryStore(), nil
	case KindLibSQL, "":
		if database == nil {
			return nil, ErrDatabaseRequired
		}
		store := NewLibSQLStore(database, dimension)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, kind)
	}
}
