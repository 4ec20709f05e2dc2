// Package store persists normalized content records with update-vs-insert
// resolution and keeps the fingerprint index in step.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonesrussell/godigest/internal/events"
	"github.com/jonesrussell/godigest/internal/logger"
	"github.com/jonesrussell/godigest/internal/models"
	"github.com/jonesrussell/godigest/internal/repository"
)

// ErrMissingField is returned when a required field is absent. The error
// message names the field.
var ErrMissingField = errors.New("missing required field")

// ErrDuplicate is returned when an insert loses the live-fingerprint
// uniqueness race: a concurrent writer stored identical content between
// the lookup and the insert. The caller resolves the item as a duplicate
// of the winning record.
var ErrDuplicate = errors.New("duplicate content")

// Action describes what the store did with an item.
type Action string

const (
	ActionStored  Action = "stored"
	ActionUpdated Action = "updated"
	ActionSkipped Action = "skipped"
)

// Result is the outcome of a successful store call.
type Result struct {
	ContentID string
	Action    Action
}

// ContentRepo is the persistence surface the store writes through.
type ContentRepo interface {
	Insert(ctx context.Context, item *models.Item) error
	Update(ctx context.Context, item *models.Item) error
	GetBySourceURL(ctx context.Context, sourceURL string) (*models.Item, error)
}

// Indexer upserts the companion fingerprint index entry after a write.
type Indexer interface {
	AddToIndex(ctx context.Context, contentID, fingerprint string, qualityScore int) error
}

// Store writes content items and emits storage events.
type Store struct {
	content ContentRepo
	indexer Indexer
	bus     *events.Bus
	logger  logger.Logger
}

// New creates a content store.
func New(content ContentRepo, indexer Indexer, bus *events.Bus, log logger.Logger) *Store {
	return &Store{
		content: content,
		indexer: indexer,
		bus:     bus,
		logger:  log,
	}
}

// Save validates the item, resolves update-vs-insert by source URL, and
// writes through. Unchanged existing records are skipped without a write.
// The fingerprint index entry is upserted after any write, and on skips,
// so an index entry lost to an earlier failure is restored.
func (s *Store) Save(ctx context.Context, item *models.Item) (*Result, error) {
	if err := validate(item); err != nil {
		return nil, err
	}

	existing, err := s.content.GetBySourceURL(ctx, item.SourceURL)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.emitError(item, err)
		return nil, fmt.Errorf("lookup by source url: %w", err)
	}

	if existing != nil {
		return s.saveExisting(ctx, item, existing)
	}

	recordSize(item)
	if insertErr := s.content.Insert(ctx, item); insertErr != nil {
		if errors.Is(insertErr, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, item.SourceURL)
		}
		s.emitError(item, insertErr)
		return nil, fmt.Errorf("insert content: %w", insertErr)
	}

	if indexErr := s.updateIndex(ctx, item); indexErr != nil {
		return nil, indexErr
	}

	s.emit(events.ContentStored, item, string(ActionStored))
	return &Result{ContentID: item.ID, Action: ActionStored}, nil
}

func (s *Store) saveExisting(
	ctx context.Context,
	item *models.Item,
	existing *models.Item,
) (*Result, error) {
	if !changed(item, existing) {
		// Idempotent no-op for the record itself, but the index entry is
		// still upserted: a record whose earlier index write failed must
		// not stay unindexed.
		if indexErr := s.updateIndex(ctx, existing); indexErr != nil {
			return nil, indexErr
		}
		s.emit(events.StorageSkipped, existing, "unchanged")
		return &Result{ContentID: existing.ID, Action: ActionSkipped}, nil
	}

	item.ID = existing.ID
	item.CreatedAt = existing.CreatedAt
	recordSize(item)

	if updateErr := s.content.Update(ctx, item); updateErr != nil {
		s.emitError(item, updateErr)
		return nil, fmt.Errorf("update content: %w", updateErr)
	}

	if indexErr := s.updateIndex(ctx, item); indexErr != nil {
		return nil, indexErr
	}

	s.emit(events.ContentStored, item, string(ActionUpdated))
	return &Result{ContentID: item.ID, Action: ActionUpdated}, nil
}

func (s *Store) updateIndex(ctx context.Context, item *models.Item) error {
	if err := s.indexer.AddToIndex(ctx, item.ID, item.Fingerprint, item.QualityScore); err != nil {
		s.emitError(item, err)
		return fmt.Errorf("index content: %w", err)
	}
	return nil
}

func validate(item *models.Item) error {
	if strings.TrimSpace(item.Title) == "" {
		return fmt.Errorf("%w: title", ErrMissingField)
	}
	if strings.TrimSpace(item.Content) == "" {
		return fmt.Errorf("%w: content", ErrMissingField)
	}
	if strings.TrimSpace(item.SourceURL) == "" {
		return fmt.Errorf("%w: source_url", ErrMissingField)
	}
	return nil
}

// changed reports whether the incoming item differs from the stored record
// in any significant field.
func changed(item, existing *models.Item) bool {
	return item.Title != existing.Title ||
		item.Content != existing.Content ||
		item.Summary != existing.Summary ||
		item.PublishDate != existing.PublishDate ||
		item.Fingerprint != existing.Fingerprint ||
		item.QualityScore != existing.QualityScore
}

// recordSize stamps storage metadata into the item's extra bag.
func recordSize(item *models.Item) {
	if item.Extra == nil {
		item.Extra = models.JSONMap{}
	}
	item.Extra["content_bytes"] = len(item.Content)
	item.Extra["stored_type"] = string(item.Type)
	if item.IngestionDate.IsZero() {
		item.IngestionDate = time.Now().UTC()
	}
}

func (s *Store) emit(eventType events.Type, item *models.Item, reason string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type:      eventType,
		SourceID:  item.SourceID,
		ContentID: item.ID,
		Title:     item.Title,
		SourceURL: item.SourceURL,
		Reason:    reason,
	})
}

func (s *Store) emitError(item *models.Item, err error) {
	s.logger.Error("Storage failure",
		logger.String("source_url", item.SourceURL),
		logger.Error(err),
	)
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type:      events.StorageError,
		SourceID:  item.SourceID,
		ContentID: item.ID,
		Title:     item.Title,
		SourceURL: item.SourceURL,
		Reason:    err.Error(),
	})
}
