// Package dedup detects and records duplicate content via the fingerprint
// index, with a fuzzy title-term fallback for near-duplicates.
package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/godigest/internal/logger"
	"github.com/jonesrussell/godigest/internal/models"
	"github.com/jonesrussell/godigest/internal/quality"
	"github.com/jonesrussell/godigest/internal/repository"
)

const defaultFuzzyLimit = 10

// ErrInvalidResolution is returned for an unrecognized resolution value.
var ErrInvalidResolution = errors.New("invalid duplicate resolution")

// Index is the fingerprint index the deduplicator consults and maintains.
type Index interface {
	FindByFingerprint(ctx context.Context, fingerprint, excludeID string) (string, error)
	Upsert(ctx context.Context, contentID, fingerprint string, qualityScore int) error
}

// ContentFinder locates stored items by title terms for fuzzy matching.
type ContentFinder interface {
	FindByTitleTerms(ctx context.Context, terms []string, contentType models.ContentType, limit int) ([]models.Item, error)
}

// DuplicateLog persists fingerprint collisions and their resolutions.
type DuplicateLog interface {
	Insert(ctx context.Context, entry *models.DuplicateLogEntry) error
	Resolve(ctx context.Context, id string, resolution models.DuplicateResolution) error
	List(ctx context.Context, filter repository.ReportFilter) ([]models.DuplicateLogEntry, error)
}

// Deduplicator owns duplicate detection and the duplicate log.
type Deduplicator struct {
	index   Index
	content ContentFinder
	log     DuplicateLog
	logger  logger.Logger
}

// New creates a deduplicator.
func New(index Index, content ContentFinder, dupLog DuplicateLog, log logger.Logger) *Deduplicator {
	return &Deduplicator{
		index:   index,
		content: content,
		log:     dupLog,
		logger:  log,
	}
}

// IsDuplicate checks the fingerprint index for an existing item. It returns
// the existing content id and true on a hit, and ("", false) on a miss.
//
// An index lookup failure is returned as an error: the caller must treat it
// as transient and retry the item rather than assume either uniqueness or
// duplication.
func (d *Deduplicator) IsDuplicate(
	ctx context.Context,
	fp, excludeID string,
) (string, bool, error) {
	contentID, err := d.index.FindByFingerprint(ctx, fp, excludeID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("fingerprint index lookup: %w", err)
	}
	return contentID, true, nil
}

// AddToIndex records an item's fingerprint and quality score.
func (d *Deduplicator) AddToIndex(
	ctx context.Context,
	contentID, fp string,
	qualityScore int,
) error {
	if err := d.index.Upsert(ctx, contentID, fp, qualityScore); err != nil {
		return fmt.Errorf("add to fingerprint index: %w", err)
	}
	return nil
}

// RecordCollision logs a fingerprint collision for later resolution.
// contentID is the item that hit the collision; duplicateID is the item
// already holding the fingerprint.
func (d *Deduplicator) RecordCollision(
	ctx context.Context,
	contentID, duplicateID, fp string,
) error {
	entry := &models.DuplicateLogEntry{
		ContentID:   contentID,
		DuplicateID: duplicateID,
		Fingerprint: fp,
	}
	if err := d.log.Insert(ctx, entry); err != nil {
		return fmt.Errorf("record duplicate collision: %w", err)
	}

	d.logger.Info("Duplicate fingerprint logged",
		logger.String("content_id", contentID),
		logger.String("duplicate_id", duplicateID),
		logger.String("fingerprint", fp),
	)
	return nil
}

// FindPotentialDuplicates returns stored items whose titles share
// significant terms with the given item, newest first. This is a fallback
// for near-duplicates that slipped past exact fingerprint matching; the
// pipeline always runs the exact check first and short-circuits on a hit.
func (d *Deduplicator) FindPotentialDuplicates(
	ctx context.Context,
	item *models.Item,
) ([]models.Item, error) {
	terms := quality.SignificantTerms(item.Title)
	if len(terms) == 0 {
		return nil, nil
	}

	candidates, err := d.content.FindByTitleTerms(ctx, terms, item.Type, defaultFuzzyLimit)
	if err != nil {
		return nil, fmt.Errorf("fuzzy duplicate search: %w", err)
	}

	// The item itself may already be stored.
	filtered := candidates[:0]
	for _, c := range candidates {
		if c.ID != item.ID {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

// GenerateReport groups duplicate log entries by fingerprint.
func (d *Deduplicator) GenerateReport(
	ctx context.Context,
	filter repository.ReportFilter,
) ([]models.DuplicateGroup, error) {
	entries, err := d.log.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("duplicate report: %w", err)
	}

	byFingerprint := make(map[string]int)
	groups := make([]models.DuplicateGroup, 0)
	for _, entry := range entries {
		idx, ok := byFingerprint[entry.Fingerprint]
		if !ok {
			idx = len(groups)
			byFingerprint[entry.Fingerprint] = idx
			groups = append(groups, models.DuplicateGroup{Fingerprint: entry.Fingerprint})
		}
		groups[idx].Entries = append(groups[idx].Entries, entry)
	}

	return groups, nil
}

// ResolveDuplicate sets a pending log entry's resolution exactly once.
func (d *Deduplicator) ResolveDuplicate(
	ctx context.Context,
	logID string,
	resolution models.DuplicateResolution,
) error {
	if !resolution.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidResolution, resolution)
	}
	if err := d.log.Resolve(ctx, logID, resolution); err != nil {
		return fmt.Errorf("resolve duplicate %s: %w", logID, err)
	}
	return nil
}
