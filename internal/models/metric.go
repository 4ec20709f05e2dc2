package models

import "time"

// SourceMetric accumulates per-source ingestion counters for one day.
// One row exists per (source, date); counters are added to, never replaced.
type SourceMetric struct {
	SourceID       string        `json:"source_id"       db:"source_id"`
	Date           string        `json:"date"            db:"date"` // YYYY-MM-DD
	ItemsFound     int           `json:"items_found"     db:"items_found"`
	ItemsStored    int           `json:"items_stored"    db:"items_stored"`
	ItemsRejected  int           `json:"items_rejected"  db:"items_rejected"`
	ProcessingTime time.Duration `json:"processing_time" db:"processing_time"`
	ErrorCount     int           `json:"error_count"     db:"error_count"`
}

// MetricDate formats a timestamp as the metric row's date key.
func MetricDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
