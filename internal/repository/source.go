// Package repository implements PostgreSQL persistence for the ingestion
// pipeline's data model.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/godigest/internal/logger"
	"github.com/jonesrussell/godigest/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a write violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

const sourceColumns = `id, name, type, url, config, content_types, active,
	       last_fetch, last_status, fetch_interval, min_interval,
	       max_interval, fetch_count, created_at, updated_at`

type SourceRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewSourceRepository(db *sql.DB, log logger.Logger) *SourceRepository {
	return &SourceRepository{
		db:     db,
		logger: log,
	}
}

// GetByID returns one source.
func (r *SourceRepository) GetByID(ctx context.Context, id string) (*models.Source, error) {
	query := `
		SELECT ` + sourceColumns + `
		FROM sources
		WHERE id = $1
	`

	source, err := scanSource(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query source: %w", err)
	}
	return source, nil
}

// ListActive returns all active sources.
func (r *SourceRepository) ListActive(ctx context.Context) ([]models.Source, error) {
	query := `
		SELECT ` + sourceColumns + `
		FROM sources
		WHERE active = true
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active sources: %w", err)
	}
	defer rows.Close()

	return scanSourceRows(rows)
}

// List returns all sources.
func (r *SourceRepository) List(ctx context.Context) ([]models.Source, error) {
	query := `
		SELECT ` + sourceColumns + `
		FROM sources
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	return scanSourceRows(rows)
}

// UpdateFetchState persists a source's mutable fetch state after a fetch
// attempt. Configuration fields are left untouched.
func (r *SourceRepository) UpdateFetchState(ctx context.Context, source *models.Source) error {
	source.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE sources
		SET last_fetch = $2,
		    last_status = $3,
		    fetch_interval = $4,
		    fetch_count = $5,
		    updated_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		source.ID,
		source.LastFetch,
		source.LastStatus,
		source.FetchInterval,
		source.FetchCount,
		source.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update source fetch state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update source fetch state: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("source %s: %w", source.ID, ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*models.Source, error) {
	var source models.Source
	var lastFetch sql.NullTime
	var lastStatus sql.NullString

	if err := row.Scan(
		&source.ID,
		&source.Name,
		&source.Type,
		&source.URL,
		&source.Config,
		&source.ContentTypes,
		&source.Active,
		&lastFetch,
		&lastStatus,
		&source.FetchInterval,
		&source.MinInterval,
		&source.MaxInterval,
		&source.FetchCount,
		&source.CreatedAt,
		&source.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if lastFetch.Valid {
		t := lastFetch.Time
		source.LastFetch = &t
	}
	if lastStatus.Valid {
		source.LastStatus = models.FetchStatus(lastStatus.String)
	}

	return &source, nil
}

func scanSourceRows(rows *sql.Rows) ([]models.Source, error) {
	sources := make([]models.Source, 0)
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, *source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return sources, nil
}
