package models

import "time"

// DuplicateResolution records how a fingerprint collision was settled.
type DuplicateResolution string

const (
	ResolutionKeptNew          DuplicateResolution = "kept_new"
	ResolutionKeptExisting     DuplicateResolution = "kept_existing"
	ResolutionIgnored          DuplicateResolution = "ignored"
	ResolutionManuallyResolved DuplicateResolution = "manually_resolved"
)

// Valid reports whether the resolution is one of the known values.
func (r DuplicateResolution) Valid() bool {
	switch r {
	case ResolutionKeptNew, ResolutionKeptExisting, ResolutionIgnored, ResolutionManuallyResolved:
		return true
	}
	return false
}

// DuplicateLogEntry is created whenever a new item's fingerprint collides
// with an existing index entry. Resolution starts nil (pending) and is set
// exactly once.
type DuplicateLogEntry struct {
	ID          string               `json:"id"           db:"id"`
	ContentID   string               `json:"content_id"   db:"content_id"`
	DuplicateID string               `json:"duplicate_id" db:"duplicate_id"`
	Fingerprint string               `json:"fingerprint"  db:"fingerprint"`
	Resolution  *DuplicateResolution `json:"resolution,omitempty" db:"resolution"`
	CreatedAt   time.Time            `json:"created_at"   db:"created_at"`
	ResolvedAt  *time.Time           `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Pending reports whether the entry still awaits resolution.
func (e *DuplicateLogEntry) Pending() bool {
	return e.Resolution == nil
}

// DuplicateGroup is one set of items sharing a fingerprint, as returned by
// the duplicate report.
type DuplicateGroup struct {
	Fingerprint string              `json:"fingerprint"`
	Entries     []DuplicateLogEntry `json:"entries"`
}
