package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/godigest/internal/logger"
)

type IndexRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewIndexRepository(db *sql.DB, log logger.Logger) *IndexRepository {
	return &IndexRepository{
		db:     db,
		logger: log,
	}
}

// FindByFingerprint returns the content id indexed under fingerprint,
// excluding excludeID when non-empty. Returns ErrNotFound on a miss.
func (r *IndexRepository) FindByFingerprint(
	ctx context.Context,
	fingerprint, excludeID string,
) (string, error) {
	query := `
		SELECT content_id
		FROM content_index
		WHERE fingerprint = $1
	`
	args := []any{fingerprint}
	if excludeID != "" {
		query += ` AND content_id != $2`
		args = append(args, excludeID)
	}
	query += ` LIMIT 1`

	var contentID string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&contentID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query content index: %w", err)
	}

	return contentID, nil
}

// Upsert writes the index entry for a content id. The fingerprint column's
// unique constraint serializes concurrent writers of the same fingerprint:
// a conflicting insert for a different content id fails rather than
// producing two live entries.
func (r *IndexRepository) Upsert(
	ctx context.Context,
	contentID, fingerprint string,
	qualityScore int,
) error {
	query := `
		INSERT INTO content_index (content_id, fingerprint, quality_score, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (content_id) DO UPDATE
		SET fingerprint = EXCLUDED.fingerprint,
		    quality_score = EXCLUDED.quality_score
	`

	_, err := r.db.ExecContext(ctx, query, contentID, fingerprint, qualityScore, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert content index: %w", err)
	}

	return nil
}
