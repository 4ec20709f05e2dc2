// Package pipeline runs each raw item through the per-item processing state
// machine: a sequence of gates ending in a stored item or a rejection with
// a reason code.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/godigest/internal/events"
	"github.com/jonesrussell/godigest/internal/fetch"
	"github.com/jonesrussell/godigest/internal/logger"
	"github.com/jonesrussell/godigest/internal/models"
	"github.com/jonesrussell/godigest/internal/store"
)

// RejectReason codes the gate at which an item terminated.
type RejectReason string

const (
	RejectInitialFilter  RejectReason = "initial_filter"
	RejectDuplicate      RejectReason = "duplicate"
	RejectLanguage       RejectReason = "language"
	RejectTooOld         RejectReason = "too_old"
	RejectEnhancedFailed RejectReason = "enhanced_processing_failed"
	RejectMissingField   RejectReason = "missing_required_field"
	// RejectInternalFault marks an unexpected fault caught at the item
	// boundary and converted into a rejection for that item only.
	RejectInternalFault RejectReason = "internal_fault"
)

// Outcome is the terminal state of one item's processing.
type Outcome struct {
	// ContentID is set on success (and on duplicate, pointing at the
	// existing record).
	ContentID string
	// Stored is true when the item reached terminal success.
	Stored bool
	// New is true when storing inserted a record rather than updating or
	// skipping.
	New bool
	// Rejected is true when the item terminated at a gate.
	Rejected bool
	Reason   RejectReason
	// Err is set for transient failures (index lookup, storage); the item
	// was neither stored nor rejected and may be retried on a later run.
	Err error
	// Duration is wall-clock time from intake to terminal state.
	Duration time.Duration
}

// Processor takes one raw item to a terminal state. Implementations never
// let a fault escape this boundary: every call produces an Outcome.
type Processor interface {
	Process(ctx context.Context, source *models.Source, raw fetch.RawItem) Outcome
}

// Storer is the persistence surface processors write through.
type Storer interface {
	Save(ctx context.Context, item *models.Item) (*store.Result, error)
}

// Fingerprinter derives the deduplication key.
type Fingerprinter interface {
	Fingerprint(item *models.Item) string
}

// DuplicateChecker is the exact-match duplicate gate.
type DuplicateChecker interface {
	IsDuplicate(ctx context.Context, fingerprint, excludeID string) (string, bool, error)
	RecordCollision(ctx context.Context, contentID, duplicateID, fingerprint string) error
}

// itemFromRaw normalizes a raw fetched item into a content record.
func itemFromRaw(source *models.Source, raw fetch.RawItem) *models.Item {
	itemType := raw.Type
	if itemType == "" {
		itemType = models.ContentTypeArticle
	}

	var extra models.JSONMap
	if len(raw.Extra) > 0 {
		extra = models.JSONMap(raw.Extra)
	}

	return &models.Item{
		ID:            uuid.New().String(),
		Type:          itemType,
		Title:         raw.Title,
		Content:       raw.Content,
		Summary:       raw.Summary,
		SourceURL:     raw.SourceURL,
		SourceID:      source.ID,
		PublishDate:   raw.PublishDate,
		IngestionDate: time.Now().UTC(),
		Status:        models.ItemStatusPending,
		Extra:         extra,
	}
}

func rejected(reason RejectReason, start time.Time) Outcome {
	return Outcome{
		Rejected: true,
		Reason:   reason,
		Duration: time.Since(start),
	}
}

func transient(err error, start time.Time) Outcome {
	return Outcome{
		Err:      err,
		Duration: time.Since(start),
	}
}

// emitRejection publishes a content_rejected event for the item.
func emitRejection(bus *events.Bus, item *models.Item, reason RejectReason) {
	if bus == nil {
		return
	}
	bus.Publish(events.Event{
		Type:      events.ContentRejected,
		SourceID:  item.SourceID,
		ContentID: item.ID,
		Title:     item.Title,
		SourceURL: item.SourceURL,
		Reason:    string(reason),
	})
}

// recoverOutcome converts a panic during item processing into a rejection
// outcome, keeping the run alive.
func recoverOutcome(
	log logger.Logger,
	bus *events.Bus,
	item *models.Item,
	start time.Time,
	outcome *Outcome,
) {
	r := recover()
	if r == nil {
		return
	}

	log.Error("Item processing fault",
		logger.String("source_url", item.SourceURL),
		logger.String("title", item.Title),
		logger.Any("panic", r),
	)
	emitRejection(bus, item, RejectInternalFault)
	*outcome = Outcome{
		Rejected: true,
		Reason:   RejectInternalFault,
		Err:      fmt.Errorf("item processing fault: %v", r),
		Duration: time.Since(start),
	}
}
