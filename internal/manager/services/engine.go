package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/code-sleuth/ike-wp/internal/manager/interfaces"
	"github.com/code-sleuth/ike-wp/internal/manager/models"
	"github.com/code-sleuth/ike-wp/pkg/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BuildResult summarises one ingestion run.
type BuildResult struct {
	Namespace string `json:"namespace"`
	APIRoot   string `json:"api_root"`
	RunID     string `json:"run_id"`
	Strategy  string `json:"chunking_strategy"`
	Records   int    `json:"records"`
	Skipped   int    `json:"skipped"`
	Chunks    int    `json:"chunks"`
	Batches   int    `json:"batches"`
}

// DatabaseStatus is the outcome of EnsureDatabase.
type DatabaseStatus struct {
	Message         string `json:"message"`
	DatabasePresent bool   `json:"database_present"`
	DatabaseCreated bool   `json:"database_created"`
}

// IngestionEngine turns a WordPress site into a namespace of embedded chunks.
type IngestionEngine struct {
	source           interfaces.ContentSource
	extractor        interfaces.TextExtractor
	chunker          interfaces.Chunker
	embedder         interfaces.Embedder
	store            interfaces.VectorStore
	sites            interfaces.SiteRegistry
	batchSize        int
	minContentLength int
	logger           zerolog.Logger
}

// NewIngestionEngine creates a new ingestion engine.
func NewIngestionEngine(
	source interfaces.ContentSource,
	extractor interfaces.TextExtractor,
	chunker interfaces.Chunker,
	embedder interfaces.Embedder,
	store interfaces.VectorStore,
) *IngestionEngine {
	return &IngestionEngine{
		source:           source,
		extractor:        extractor,
		chunker:          chunker,
		embedder:         embedder,
		store:            store,
		batchSize:        DefaultBatchSize,
		minContentLength: DefaultMinContentLength,
		logger:           util.NewLogger(zerolog.InfoLevel),
	}
}

// SetSiteRegistry records successful runs and deletions in registry.
func (e *IngestionEngine) SetSiteRegistry(registry interfaces.SiteRegistry) {
	e.sites = registry
}

// SetBatchSize sets the number of chunks per embed/upsert call, capped at
// MaxBatchSize. Non-positive sizes are ignored.
func (e *IngestionEngine) SetBatchSize(size int) {
	if size > 0 {
		e.batchSize = min(size, MaxBatchSize)
	}
}

// SetMinContentLength sets the extracted text length at or below which records are dropped.
func (e *IngestionEngine) SetMinContentLength(length int) {
	if length >= 0 {
		e.minContentLength = length
	}
}

// SetLogger replaces the engine logger.
func (e *IngestionEngine) SetLogger(logger zerolog.Logger) {
	e.logger = logger
}

// SiteNamespace returns the hostname of siteURL, the namespace its vectors live in.
func SiteNamespace(siteURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(siteURL))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSiteURL, err)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidSiteURL, siteURL)
	}
	return host, nil
}

// BuildVectorDatabase ingests every page, post and comment of siteURL into
// the site's namespace. Records whose text is too short are skipped; chunks
// are embedded and upserted in fixed-size batches.
func (e *IngestionEngine) BuildVectorDatabase(ctx context.Context, siteURL string) (*BuildResult, error) {
	namespace, err := SiteNamespace(siteURL)
	if err != nil {
		e.logger.Error().Err(err).Str("site_url", siteURL).Msg("Invalid site URL")
		return nil, err
	}

	apiRoot, err := e.source.FindAPIRoot(ctx, siteURL)
	if err != nil {
		e.logger.Error().Err(err).Str("site_url", siteURL).Msg("API discovery failed")
		return nil, err
	}

	supported, err := e.source.SupportsV2(ctx, apiRoot)
	if err != nil {
		e.logger.Error().Err(err).Str("api_root", apiRoot).Msg("Failed to read API index")
		return nil, err
	}
	if !supported {
		e.logger.Error().Str("site_url", siteURL).Str("api_root", apiRoot).Msg("wp/v2 namespace not available")
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSite, siteURL)
	}

	result := &BuildResult{
		Namespace: namespace,
		APIRoot:   apiRoot,
		RunID:     uuid.New().String(),
		Strategy:  e.chunker.GetChunkingStrategy(),
	}
	logger := e.logger.With().Str("run_id", result.RunID).Str("namespace", namespace).Logger()
	logger.Info().
		Str("site_url", siteURL).
		Str("api_root", apiRoot).
		Str("chunking_strategy", result.Strategy).
		Str("embedding_model", e.embedder.GetModelName()).
		Msg("Starting ingestion")

	batch := make([]models.ChunkRecord, 0, e.batchSize)
	for record, err := range e.source.FetchSiteContent(ctx, apiRoot) {
		if err != nil {
			logger.Error().Err(err).Msg("Fetching site content failed")
			return nil, err
		}
		result.Records++

		text := e.extractor.ExtractText(record.Content)
		if utf8.RuneCountInString(text) <= e.minContentLength {
			result.Skipped++
			continue
		}

		chunks, err := e.chunker.Split(text)
		if err != nil {
			logger.Error().Err(err).Str("content_id", record.ID).Msg("Chunking failed")
			return nil, err
		}

		title := e.extractor.CleanTitle(record.Title)
		for idx, chunk := range chunks {
			batch = append(batch, models.ChunkRecord{
				ID:       record.ID,
				Type:     record.Type,
				Title:    title,
				Link:     record.Link,
				Chunk:    chunk,
				ChunkIdx: idx,
			})

			if len(batch) == e.batchSize {
				if err := e.flush(ctx, namespace, batch, result); err != nil {
					return nil, err
				}
				batch = batch[:0]
			}
		}
	}

	if len(batch) > 0 {
		if err := e.flush(ctx, namespace, batch, result); err != nil {
			return nil, err
		}
	}

	if e.sites != nil {
		site := &models.Site{
			Host:       namespace,
			SiteURL:    siteURL,
			APIRoot:    apiRoot,
			RunID:      result.RunID,
			ChunkCount: result.Chunks,
			IngestedAt: time.Now(),
		}
		if err := e.sites.Upsert(ctx, site); err != nil {
			logger.Error().Err(err).Msg("Failed to record site")
			return nil, err
		}
	}

	logger.Info().
		Int("records", result.Records).
		Int("skipped", result.Skipped).
		Int("chunks", result.Chunks).
		Int("batches", result.Batches).
		Msg("Ingestion finished")
	return result, nil
}

// flush embeds batch in document mode and upserts it into namespace.
func (e *IngestionEngine) flush(
	ctx context.Context,
	namespace string,
	batch []models.ChunkRecord,
	result *BuildResult,
) error {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.EmbeddingText()
	}

	vectors, err := e.embedder.Embed(ctx, texts, interfaces.EmbeddingModeDocument)
	if err != nil {
		e.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Embedding batch failed")
		return err
	}
	if len(vectors) != len(batch) {
		e.logger.Error().Int("batch_size", len(batch)).Int("vectors", len(vectors)).Msg("Embedding count mismatch")
		return ErrEmbeddingMismatch
	}

	entries := make([]models.VectorEntry, len(batch))
	for i, chunk := range batch {
		entries[i] = models.VectorEntry{
			ID:     chunk.VectorID(),
			Values: vectors[i],
			Metadata: models.VectorMetadata{
				Title: chunk.Title,
				Link:  chunk.Link,
				Text:  chunk.Chunk,
			},
		}
	}

	if err := e.store.Upsert(ctx, namespace, entries); err != nil {
		e.logger.Error().Err(err).Str("namespace", namespace).Int("batch_size", len(batch)).Msg("Upsert failed")
		return err
	}

	result.Batches++
	result.Chunks += len(batch)
	e.logger.Debug().Str("namespace", namespace).Int("batch_size", len(batch)).Msg("Flushed batch")
	return nil
}

// DatabaseExists probes namespace with a zero vector; any match means the
// site has been ingested.
func (e *IngestionEngine) DatabaseExists(ctx context.Context, namespace string) (bool, error) {
	probe := make([]float32, e.embedder.GetDimension())

	matches, err := e.store.Query(ctx, namespace, probe, 1, false)
	if err != nil {
		e.logger.Error().Err(err).Str("namespace", namespace).Msg("Existence probe failed")
		return false, err
	}

	if len(matches) > 1 {
		e.logger.Error().Str("namespace", namespace).Int("matches", len(matches)).Msg("Existence probe returned too many matches")
		return false, fmt.Errorf("%w: got %d", ErrAssertionViolation, len(matches))
	}
	return len(matches) == 1, nil
}

// EnsureDatabase reports whether siteURL has been ingested and builds it when
// absent and createIfNotPresent is set.
func (e *IngestionEngine) EnsureDatabase(
	ctx context.Context,
	siteURL string,
	createIfNotPresent bool,
) (*DatabaseStatus, error) {
	namespace, err := SiteNamespace(siteURL)
	if err != nil {
		return nil, err
	}

	exists, err := e.DatabaseExists(ctx, namespace)
	if err != nil {
		return nil, err
	}

	if exists {
		return &DatabaseStatus{
			Message:         fmt.Sprintf("Database already present for '%s'", namespace),
			DatabasePresent: true,
		}, nil
	}

	if !createIfNotPresent {
		return &DatabaseStatus{
			Message: fmt.Sprintf("Database not present for '%s'", namespace),
		}, nil
	}

	if _, err := e.BuildVectorDatabase(ctx, siteURL); err != nil {
		return nil, err
	}

	return &DatabaseStatus{
		Message:         fmt.Sprintf("Database created for '%s'", namespace),
		DatabasePresent: true,
		DatabaseCreated: true,
	}, nil
}

// DeleteDatabase removes every vector of siteURL's namespace and its registry row.
func (e *IngestionEngine) DeleteDatabase(ctx context.Context, siteURL string) (string, error) {
	namespace, err := SiteNamespace(siteURL)
	if err != nil {
		return "", err
	}

	if err := e.store.DeleteAll(ctx, namespace); err != nil {
		e.logger.Error().Err(err).Str("namespace", namespace).Msg("Failed to delete namespace")
		return "", err
	}

	if e.sites != nil {
		if err := e.sites.Delete(ctx, namespace); err != nil {
			e.logger.Error().Err(err).Str("namespace", namespace).Msg("Failed to delete site record")
			return "", err
		}
	}

	e.logger.Info().Str("namespace", namespace).Msg("Deleted database")
	return fmt.Sprintf("Database deleted for '%s'", namespace), nil
}
