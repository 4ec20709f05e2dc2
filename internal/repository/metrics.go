package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jonesrussell/godigest/internal/logger"
	"github.com/jonesrussell/godigest/internal/models"
)

type MetricsRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewMetricsRepository(db *sql.DB, log logger.Logger) *MetricsRepository {
	return &MetricsRepository{
		db:     db,
		logger: log,
	}
}

// Accumulate adds the metric's counters into the (source, date) row,
// creating it on first write.
func (r *MetricsRepository) Accumulate(ctx context.Context, metric *models.SourceMetric) error {
	query := `
		INSERT INTO source_metrics (
			source_id, date, items_found, items_stored, items_rejected,
			processing_time_ms, error_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_id, date) DO UPDATE
		SET items_found = source_metrics.items_found + EXCLUDED.items_found,
		    items_stored = source_metrics.items_stored + EXCLUDED.items_stored,
		    items_rejected = source_metrics.items_rejected + EXCLUDED.items_rejected,
		    processing_time_ms = source_metrics.processing_time_ms + EXCLUDED.processing_time_ms,
		    error_count = source_metrics.error_count + EXCLUDED.error_count
	`

	_, err := r.db.ExecContext(ctx, query,
		metric.SourceID,
		metric.Date,
		metric.ItemsFound,
		metric.ItemsStored,
		metric.ItemsRejected,
		metric.ProcessingTime.Milliseconds(),
		metric.ErrorCount,
	)
	if err != nil {
		return fmt.Errorf("accumulate source metrics: %w", err)
	}

	return nil
}

// ForSource returns the metric rows for one source, newest date first.
func (r *MetricsRepository) ForSource(
	ctx context.Context,
	sourceID string,
	limit int,
) ([]models.SourceMetric, error) {
	query := `
		SELECT source_id, date, items_found, items_stored, items_rejected,
		       processing_time_ms, error_count
		FROM source_metrics
		WHERE source_id = $1
		ORDER BY date DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query source metrics: %w", err)
	}
	defer rows.Close()

	metrics := make([]models.SourceMetric, 0)
	for rows.Next() {
		var m models.SourceMetric
		var processingMs int64
		if scanErr := rows.Scan(
			&m.SourceID,
			&m.Date,
			&m.ItemsFound,
			&m.ItemsStored,
			&m.ItemsRejected,
			&processingMs,
			&m.ErrorCount,
		); scanErr != nil {
			return nil, fmt.Errorf("scan source metric: %w", scanErr)
		}
		m.ProcessingTime = time.Duration(processingMs) * time.Millisecond
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source metrics: %w", err)
	}

	return metrics, nil
}
