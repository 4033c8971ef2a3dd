package vectorstores

import (
	"context"
	"sort"
	"sync"

	"github.com/code-sleuth/ike-wp/internal/manager/interfaces"
	"github.com/code-sleuth/ike-wp/internal/manager/models"
	"github.com/code-sleuth/ike-wp/pkg/util"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

var _ interfaces.VectorStore = (*MemoryStore)(nil)

type memoryEntry struct {
	vector   *mat.VecDense
	norm     float64
	metadata models.VectorMetadata
}

// MemoryStore keeps namespaces in process memory and answers queries by
// brute-force cosine similarity.
type MemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]memoryEntry
	logger     zerolog.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		namespaces: make(map[string]map[string]memoryEntry),
		logger:     util.NewLogger(zerolog.ErrorLevel),
	}
}

// Upsert stores copies of entries in namespace, replacing entries with the same id.
func (m *MemoryStore) Upsert(_ context.Context, namespace string, entries []models.VectorEntry) error {
	if namespace == "" {
		return ErrNamespaceRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]memoryEntry)
		m.namespaces[namespace] = ns
	}

	for _, entry := range entries {
		vector := toVecDense(entry.Values)
		ns[entry.ID] = memoryEntry{
			vector:   vector,
			norm:     vecNorm(vector),
			metadata: entry.Metadata,
		}
	}

	m.logger.Debug().Str("namespace", namespace).Int("entries", len(entries)).Msg("Upserted vectors")
	return nil
}

// Query ranks entries by cosine similarity. A zero query vector has no
// direction, so entries are returned in id order with a zero score.
func (m *MemoryStore) Query(
	_ context.Context,
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

	m.mu.RLock()
	defer m.mu.RUnlock()

	ns := m.namespaces[namespace]
	if len(ns) == 0 {
		return []models.Match{}, nil
	}

	query := toVecDense(vector)
	queryNorm := vecNorm(query)
	zero := isZero(vector)

	matches := make([]models.Match, 0, len(ns))
	for id, entry := range ns {
		match := models.Match{ID: id}
		if !zero {
			if entry.vector.Len() != query.Len() {
				return nil, ErrDimensionMismatch
			}
			if entry.norm != 0 && queryNorm != 0 {
				match.Score = float32(mat.Dot(query, entry.vector) / (queryNorm * entry.norm))
			}
		}
		if includeMetadata {
			match.Metadata = entry.metadata
		}
		matches = append(matches, match)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteAll drops namespace.
func (m *MemoryStore) DeleteAll(_ context.Context, namespace string) error {
	if namespace == "" {
		return ErrNamespaceRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.namespaces, namespace)
	m.logger.Debug().Str("namespace", namespace).Msg("Deleted namespace")
	return nil
}

// Count returns the number of entries in namespace.
func (m *MemoryStore) Count(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.namespaces[namespace])
}

func toVecDense(values []float32) *mat.VecDense {
	data := make([]float64, len(values))
	for i, v := range values {
		data[i] = float64(v)
	}
	if len(data) == 0 {
		return &mat.VecDense{}
	}
	return mat.NewVecDense(len(data), data)
}

func vecNorm(v *mat.VecDense) float64 {
	if v.Len() == 0 {
		return 0
	}
	return mat.Norm(v, 2)
}
