package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/godigest/internal/logger"
	"github.com/jonesrussell/godigest/internal/models"
)

type DuplicateRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewDuplicateRepository(db *sql.DB, log logger.Logger) *DuplicateRepository {
	return &DuplicateRepository{
		db:     db,
		logger: log,
	}
}

// Insert records a fingerprint collision. Resolution starts null.
func (r *DuplicateRepository) Insert(ctx context.Context, entry *models.DuplicateLogEntry) error {
	entry.ID = uuid.New().String()
	entry.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO duplicate_log (id, content_id, duplicate_id, fingerprint, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ContentID,
		entry.DuplicateID,
		entry.Fingerprint,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert duplicate log entry: %w", err)
	}

	return nil
}

// Resolve sets a pending entry's resolution. The WHERE clause restricts the
// update to unresolved rows so a resolution is set exactly once.
func (r *DuplicateRepository) Resolve(
	ctx context.Context,
	id string,
	resolution models.DuplicateResolution,
) error {
	query := `
		UPDATE duplicate_log
		SET resolution = $2, resolved_at = $3
		WHERE id = $1 AND resolution IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, resolution, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("resolve duplicate: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve duplicate: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("duplicate log entry %s pending: %w", id, ErrNotFound)
	}

	return nil
}

// ReportFilter narrows the duplicate report.
type ReportFilter struct {
	PendingOnly bool
	Fingerprint string
	Limit       int
}

const defaultReportLimit = 100

// List returns duplicate log entries matching the filter, newest first.
func (r *DuplicateRepository) List(
	ctx context.Context,
	filter ReportFilter,
) ([]models.DuplicateLogEntry, error) {
	query := `
		SELECT id, content_id, duplicate_id, fingerprint, resolution, created_at, resolved_at
		FROM duplicate_log
		WHERE 1=1
	`
	args := make([]any, 0, 2)
	if filter.PendingOnly {
		query += ` AND resolution IS NULL`
	}
	if filter.Fingerprint != "" {
		args = append(args, filter.Fingerprint)
		query += fmt.Sprintf(` AND fingerprint = $%d`, len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultReportLimit
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query duplicate log: %w", err)
	}
	defer rows.Close()

	entries := make([]models.DuplicateLogEntry, 0)
	for rows.Next() {
		var entry models.DuplicateLogEntry
		var resolution sql.NullString
		var resolvedAt sql.NullTime

		if scanErr := rows.Scan(
			&entry.ID,
			&entry.ContentID,
			&entry.DuplicateID,
			&entry.Fingerprint,
			&resolution,
			&entry.CreatedAt,
			&resolvedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("scan duplicate log entry: %w", scanErr)
		}

		if resolution.Valid {
			res := models.DuplicateResolution(resolution.String)
			entry.Resolution = &res
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time
			entry.ResolvedAt = &t
		}

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duplicate log: %w", err)
	}

	return entries, nil
}
