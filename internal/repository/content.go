package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jonesrussell/godigest/internal/logger"
	"github.com/jonesrussell/godigest/internal/models"
)

const itemColumns = `id, type, title, content, summary, source_url, source_id,
	       publish_date, ingestion_date, fingerprint, quality_score,
	       status, extra, created_at, updated_at`

// uniqueViolation is the PostgreSQL error code for a uniqueness conflict.
const uniqueViolation = "23505"

type ContentRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewContentRepository(db *sql.DB, log logger.Logger) *ContentRepository {
	return &ContentRepository{
		db:     db,
		logger: log,
	}
}

// Insert stores a new item, assigning its timestamps and, when absent, its
// ID. A uniqueness conflict on the live-fingerprint index is returned as
// ErrDuplicate: a concurrent writer already holds the fingerprint.
func (r *ContentRepository) Insert(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.CreatedAt = time.Now().UTC()
	item.UpdatedAt = item.CreatedAt
	if item.IngestionDate.IsZero() {
		item.IngestionDate = item.CreatedAt
	}

	query := `
		INSERT INTO content_items (
			id, type, title, content, summary, source_url, source_id,
			publish_date, ingestion_date, fingerprint, quality_score,
			status, extra, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.Type,
		item.Title,
		item.Content,
		item.Summary,
		item.SourceURL,
		item.SourceID,
		item.PublishDate,
		item.IngestionDate,
		item.Fingerprint,
		item.QualityScore,
		item.Status,
		item.Extra,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("insert content item %s: %w", item.SourceURL, ErrDuplicate)
		}
		return fmt.Errorf("insert content item: %w", err)
	}

	return nil
}

// Update rewrites an existing item's mutable fields.
func (r *ContentRepository) Update(ctx context.Context, item *models.Item) error {
	item.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE content_items
		SET title = $2,
		    content = $3,
		    summary = $4,
		    publish_date = $5,
		    fingerprint = $6,
		    quality_score = $7,
		    status = $8,
		    extra = $9,
		    updated_at = $10
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.Title,
		item.Content,
		item.Summary,
		item.PublishDate,
		item.Fingerprint,
		item.QualityScore,
		item.Status,
		item.Extra,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update content item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update content item: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("content item %s: %w", item.ID, ErrNotFound)
	}

	return nil
}

// GetByID returns one item.
func (r *ContentRepository) GetByID(ctx context.Context, id string) (*models.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM content_items
		WHERE id = $1
	`

	item, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("content item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query content item: %w", err)
	}
	return item, nil
}

// GetBySourceURL returns the live item for a source URL, or ErrNotFound.
func (r *ContentRepository) GetBySourceURL(ctx context.Context, sourceURL string) (*models.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM content_items
		WHERE source_url = $1 AND status != 'rejected'
		ORDER BY created_at DESC
		LIMIT 1
	`

	item, err := scanItem(r.db.QueryRowContext(ctx, query, sourceURL))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query content item by source url: %w", err)
	}
	return item, nil
}

// FindByTitleTerms returns items whose titles partially match any of the
// given terms, newest first. An empty contentType matches all types.
func (r *ContentRepository) FindByTitleTerms(
	ctx context.Context,
	terms []string,
	contentType models.ContentType,
	limit int,
) ([]models.Item, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + itemColumns + `
		FROM content_items
		WHERE status != 'rejected' AND title ILIKE ANY($1)
	`
	patterns := make([]string, len(terms))
	for i, term := range terms {
		patterns[i] = "%" + term + "%"
	}

	args := []any{pq.Array(patterns)}
	if contentType != "" {
		query += ` AND type = $2`
		args = append(args, contentType)
	}
	query += fmt.Sprintf(` ORDER BY ingestion_date DESC LIMIT %d`, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query content by title terms: %w", err)
	}
	defer rows.Close()

	return scanItemRows(rows)
}

func scanItem(row rowScanner) (*models.Item, error) {
	var item models.Item
	var summary, publishDate sql.NullString

	if err := row.Scan(
		&item.ID,
		&item.Type,
		&item.Title,
		&item.Content,
		&summary,
		&item.SourceURL,
		&item.SourceID,
		&publishDate,
		&item.IngestionDate,
		&item.Fingerprint,
		&item.QualityScore,
		&item.Status,
		&item.Extra,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}

	item.Summary = summary.String
	item.PublishDate = publishDate.String

	return &item, nil
}

func scanItemRows(rows *sql.Rows) ([]models.Item, error) {
	items := make([]models.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content items: %w", err)
	}
	return items, nil
}
