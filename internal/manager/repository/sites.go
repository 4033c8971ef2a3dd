package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/code-sleuth/ike-wp/internal/manager/interfaces"
	"github.com/code-sleuth/ike-wp/internal/manager/models"
	"github.com/code-sleuth/ike-wp/pkg/db"
	"github.com/code-sleuth/ike-wp/pkg/util"

	"github.com/rs/zerolog"
)

const timeFormat = "2006-01-02T15:04:05Z"

var ErrSiteNotFound = errors.New("site not found")

var _ interfaces.SiteRegistry = (*SiteRepository)(nil)

type SiteRepository struct {
	db     *db.DB
	logger zerolog.Logger
}

// NewSiteRepository creates a new site repository.
func NewSiteRepository(database *db.DB) *SiteRepository {
	logger := util.NewLogger(zerolog.ErrorLevel)
	return &SiteRepository{
		db:     database,
		logger: logger,
	}
}

// EnsureSchema creates the sites table.
func (r *SiteRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS sites (
			host TEXT PRIMARY KEY,
			site_url TEXT NOT NULL,
			api_root TEXT NOT NULL,
			run_id TEXT NOT NULL,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			ingested_at TEXT NOT NULL
		)
	`
	_, err := r.db.ExecContext(ctx, query)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to create sites table")
	}
	return err
}

// Upsert records an ingestion run, replacing any previous run for the host.
func (r *SiteRepository) Upsert(ctx context.Context, site *models.Site) error {
	query := `
		INSERT INTO sites (host, site_url, api_root, run_id, chunk_count, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (host) DO UPDATE SET
			site_url = excluded.site_url,
			api_root = excluded.api_root,
			run_id = excluded.run_id,
			chunk_count = excluded.chunk_count,
			ingested_at = excluded.ingested_at
	`

	_, err := r.db.ExecContext(ctx, query, site.Host, site.SiteURL, site.APIRoot, site.RunID,
		site.ChunkCount, site.IngestedAt.UTC().Format(timeFormat))
	if err != nil {
		r.logger.Error().Err(err).Str("host", site.Host).Msg("Failed to upsert site")
	}
	return err
}

// GetByHost returns the site ingested under host, or ErrSiteNotFound.
func (r *SiteRepository) GetByHost(ctx context.Context, host string) (*models.Site, error) {
	query := `
		SELECT host, site_url, api_root, run_id, chunk_count, ingested_at
		FROM sites WHERE host = ?
	`
	row := r.db.QueryRowContext(ctx, query, host)

	site, err := scanSite(row)
	if errors.Is(err, sql.ErrNoRows) {
		r.logger.Error().Str("host", host).Msg("Site not found")
		return nil, ErrSiteNotFound
	}
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to get site")
		return nil, err
	}

	return site, nil
}

// List returns every ingested site, most recent first.
func (r *SiteRepository) List(ctx context.Context) ([]models.Site, error) {
	query := `
		SELECT host, site_url, api_root, run_id, chunk_count, ingested_at
		FROM sites ORDER BY ingested_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to list sites")
		return nil, err
	}
	defer rows.Close()

	var sites []models.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("Failed to scan site")
			return nil, err
		}
		sites = append(sites, *site)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return sites, nil
}

// Delete removes host from the registry. Missing hosts are not an error.
func (r *SiteRepository) Delete(ctx context.Context, host string) error {
	query := `DELETE FROM sites WHERE host = ?`
	_, err := r.db.ExecContext(ctx, query, host)
	if err != nil {
		r.logger.Error().Err(err).Str("host", host).Msg("Failed to delete site")
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSite(row scanner) (*models.Site, error) {
	var (
		site       models.Site
		ingestedAt string
	)
	err := row.Scan(&site.Host, &site.SiteURL, &site.APIRoot, &site.RunID, &site.ChunkCount, &ingestedAt)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(timeFormat, ingestedAt); err == nil {
		site.IngestedAt = t
	}
	return &site, nil
}
