package vectorstores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/code-sleuth/ike-wp/internal/manager/interfaces"
	"github.com/code-sleuth/ike-wp/internal/manager/models"
	"github.com/code-sleuth/ike-wp/pkg/db"
	"github.com/code-sleuth/ike-wp/pkg/util"

	"github.com/rs/zerolog"
)

var _ interfaces.VectorStore = (*LibSQLStore)(nil)

// LibSQLStore keeps vectors in a libSQL table using native F32_BLOB columns.
type LibSQLStore struct {
	db        *db.DB
	dimension int
	logger    zerolog.Logger
}

// NewLibSQLStore creates a store whose vectors column holds dimension floats.
// Call EnsureSchema before first use.
func NewLibSQLStore(database *db.DB, dimension int) *LibSQLStore {
	logger := util.NewLogger(zerolog.ErrorLevel)
	return &LibSQLStore{
		db:        database,
		dimension: dimension,
		logger:    logger,
	}
}

// EnsureSchema creates the vectors table sized to the store dimension.
func (s *LibSQLStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS vectors (
			namespace TEXT NOT NULL,
			id TEXT NOT NULL,
			title TEXT NOT NULL,
			link TEXT NOT NULL,
			text TEXT NOT NULL,
			embedding F32_BLOB(%d) NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (namespace, id)
		)`, s.dimension),
		`CREATE INDEX IF NOT EXISTS idx_vectors_namespace ON vectors (namespace)`,
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			s.logger.Error().Err(err).Msg("Failed to create vectors schema")
			return err
		}
	}
	return nil
}

// Upsert writes entries into namespace in one transaction, replacing entries
// with the same id.
func (s *LibSQLStore) Upsert(ctx context.Context, namespace string, entries []models.VectorEntry) error {
	if namespace == "" {
		return ErrNamespaceRequired
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to begin transaction")
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO vectors (namespace, id, title, link, text, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?, vector32(?), datetime('now'))
		ON CONFLICT (namespace, id) DO UPDATE SET
			title = excluded.title,
			link = excluded.link,
			text = excluded.text,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at
	`

	for _, entry := range entries {
		if len(entry.Values) != s.dimension {
			s.logger.Error().Str("id", entry.ID).Int("dimension", len(entry.Values)).Msg("Vector dimension mismatch")
			return fmt.Errorf("%w: %s has %d values, want %d", ErrDimensionMismatch, entry.ID, len(entry.Values), s.dimension)
		}

		vector, err := json.Marshal(entry.Values)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, query, namespace, entry.ID, entry.Metadata.Title,
			entry.Metadata.Link, entry.Metadata.Text, string(vector))
		if err != nil {
			s.logger.Error().Err(err).Str("namespace", namespace).Str("id", entry.ID).Msg("Failed to upsert vector")
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error().Err(err).Str("namespace", namespace).Msg("Failed to commit vectors")
		return err
	}

	s.logger.Debug().Str("namespace", namespace).Int("entries", len(entries)).Msg("Upserted vectors")
	return nil
}

// Query returns the topK entries closest by cosine distance. A zero query
// vector has no direction, so entries are returned in id order with a zero score.
func (s *LibSQLStore) Query(
	ctx context.Context,
	namespace string,
	vector []float32,
	topK int,
	includeMetadata bool,
) ([]models.Match, error) {
	if namespace == "" {
		return nil, ErrNamespaceRequired
	}
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}

	var (
		query string
		args  []any
	)
	if isZero(vector) {
		query = `
			SELECT id, 0.0, title, link, text FROM vectors
			WHERE namespace = ? ORDER BY id LIMIT ?
		`
		args = []any{namespace, topK}
	} else {
		if len(vector) != s.dimension {
			return nil, ErrDimensionMismatch
		}
		encoded, err := json.Marshal(vector)
		if err != nil {
			return nil, err
		}
		query = `
			SELECT id, 1 - vector_distance_cos(embedding, vector32(?)) AS score, title, link, text
			FROM vectors WHERE namespace = ? ORDER BY score DESC, id LIMIT ?
		`
		args = []any{string(encoded), namespace, topK}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error().Err(err).Str("namespace", namespace).Msg("Failed to query vectors")
		return nil, err
	}
	defer rows.Close()

	matches := []models.Match{}
	for rows.Next() {
		var (
			match    models.Match
			score    float64
			metadata models.VectorMetadata
		)
		if err := rows.Scan(&match.ID, &score, &metadata.Title, &metadata.Link, &metadata.Text); err != nil {
			s.logger.Error().Err(err).Msg("Failed to scan vector match")
			return nil, err
		}
		match.Score = float32(score)
		if includeMetadata {
			match.Metadata = metadata
		}
		matches = append(matches, match)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

// DeleteAll removes every entry of namespace.
func (s *LibSQLStore) DeleteAll(ctx context.Context, namespace string) error {
	if namespace == "" {
		return ErrNamespaceRequired
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE namespace = ?`, namespace)
	if err != nil {
		s.logger.Error().Err(err).Str("namespace", namespace).Msg("Failed to delete namespace")
	}
	return err
}
