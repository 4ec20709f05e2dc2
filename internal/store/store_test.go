package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/godigest/internal/events"
	"github.com/jonesrussell/godigest/internal/models"
	"github.com/jonesrussell/godigest/internal/repository"
	"github.com/jonesrussell/godigest/internal/testhelpers"
)

type fakeContentRepo struct {
	existing  *models.Item
	lookupErr error
	inserted  *models.Item
	updated   *models.Item
	insertErr error
	updateErr error
}

func (f *fakeContentRepo) Insert(_ context.Context, item *models.Item) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	clone := *item
	f.inserted = &clone
	return nil
}

func (f *fakeContentRepo) Update(_ context.Context, item *models.Item) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	clone := *item
	f.updated = &clone
	return nil
}

func (f *fakeContentRepo) GetBySourceURL(_ context.Context, _ string) (*models.Item, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if f.existing == nil {
		return nil, repository.ErrNotFound
	}
	clone := *f.existing
	return &clone, nil
}

type fakeIndexer struct {
	calls int
	last  models.IndexEntry
	err   error
}

func (f *fakeIndexer) AddToIndex(_ context.Context, contentID, fp string, score int) error {
	if f.err != nil {
		return f.err
	}
	f.calls++
	f.last = models.IndexEntry{ContentID: contentID, Fingerprint: fp, QualityScore: score}
	return nil
}

func validItem() *models.Item {
	return &models.Item{
		ID:           "item-1",
		Type:         models.ContentTypeArticle,
		Title:        "Transit Plan Approved",
		Content:      "The council approved the plan.",
		SourceURL:    "https://example.com/news/transit",
		SourceID:     "src-1",
		Fingerprint:  "fp-1",
		QualityScore: 72,
		Status:       models.ItemStatusPublished,
	}
}

func collectEvents(bus *events.Bus) *[]events.Event {
	var seen []events.Event
	bus.Subscribe(func(e events.Event) {
		seen = append(seen, e)
	})
	return &seen
}

func TestSave_InsertsNewItem(t *testing.T) {
	content := &fakeContentRepo{}
	indexer := &fakeIndexer{}
	bus := events.NewBus()
	seen := collectEvents(bus)
	s := New(content, indexer, bus, testhelpers.NewTestLogger())

	result, err := s.Save(context.Background(), validItem())
	require.NoError(t, err)

	assert.Equal(t, ActionStored, result.Action)
	assert.Equal(t, "item-1", result.ContentID)
	require.NotNil(t, content.inserted)
	assert.Nil(t, content.updated)

	assert.Equal(t, 1, indexer.calls)
	assert.Equal(t, "fp-1", indexer.last.Fingerprint)
	assert.Equal(t, 72, indexer.last.QualityScore)

	require.Len(t, *seen, 1)
	assert.Equal(t, events.ContentStored, (*seen)[0].Type)
	assert.Equal(t, string(ActionStored), (*seen)[0].Reason)
}

func TestSave_StampsStorageMetadata(t *testing.T) {
	content := &fakeContentRepo{}
	s := New(content, &fakeIndexer{}, nil, testhelpers.NewTestLogger())

	item := validItem()
	_, err := s.Save(context.Background(), item)
	require.NoError(t, err)

	require.NotNil(t, content.inserted.Extra)
	assert.Equal(t, len(item.Content), content.inserted.Extra["content_bytes"])
	assert.Equal(t, "article", content.inserted.Extra["stored_type"])
	assert.False(t, content.inserted.IngestionDate.IsZero())
}

func TestSave_SkipsUnchangedItem(t *testing.T) {
	existing := validItem()
	existing.ID = "existing-id"
	content := &fakeContentRepo{existing: existing}
	indexer := &fakeIndexer{}
	bus := events.NewBus()
	seen := collectEvents(bus)
	s := New(content, indexer, bus, testhelpers.NewTestLogger())

	result, err := s.Save(context.Background(), validItem())
	require.NoError(t, err)

	assert.Equal(t, ActionSkipped, result.Action)
	assert.Equal(t, "existing-id", result.ContentID)
	assert.Nil(t, content.inserted)
	assert.Nil(t, content.updated)
	assert.Equal(t, 1, indexer.calls, "skips still upsert the index entry")
	assert.Equal(t, "existing-id", indexer.last.ContentID)

	require.Len(t, *seen, 1)
	assert.Equal(t, events.StorageSkipped, (*seen)[0].Type)
}

func TestSave_SkipRestoresMissingIndexEntry(t *testing.T) {
	content := &fakeContentRepo{}
	indexer := &fakeIndexer{err: errors.New("index offline")}
	s := New(content, indexer, nil, testhelpers.NewTestLogger())

	_, err := s.Save(context.Background(), validItem())
	require.Error(t, err)
	require.NotNil(t, content.inserted, "the record landed despite the index failure")

	// The record is now live but unindexed. A later identical ingest must
	// restore the index entry even though nothing else changes.
	content.existing = content.inserted
	indexer.err = nil

	result, err := s.Save(context.Background(), validItem())
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, result.Action)
	assert.Equal(t, 1, indexer.calls)
	assert.Equal(t, content.inserted.ID, indexer.last.ContentID)
	assert.Equal(t, "fp-1", indexer.last.Fingerprint)
}

func TestSave_InsertRaceReturnsDuplicate(t *testing.T) {
	content := &fakeContentRepo{
		insertErr: fmt.Errorf("insert content item: %w", repository.ErrDuplicate),
	}
	indexer := &fakeIndexer{}
	bus := events.NewBus()
	seen := collectEvents(bus)
	s := New(content, indexer, bus, testhelpers.NewTestLogger())

	_, err := s.Save(context.Background(), validItem())
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Zero(t, indexer.calls, "the losing writer must not touch the index")
	assert.Empty(t, *seen, "losing a uniqueness race is not a storage error")
}

func TestSave_UpdatesChangedItem(t *testing.T) {
	existing := validItem()
	existing.ID = "existing-id"
	existing.Content = "Older body text."
	existing.Fingerprint = "fp-old"
	content := &fakeContentRepo{existing: existing}
	indexer := &fakeIndexer{}
	bus := events.NewBus()
	seen := collectEvents(bus)
	s := New(content, indexer, bus, testhelpers.NewTestLogger())

	result, err := s.Save(context.Background(), validItem())
	require.NoError(t, err)

	assert.Equal(t, ActionUpdated, result.Action)
	assert.Equal(t, "existing-id", result.ContentID)
	require.NotNil(t, content.updated)
	assert.Equal(t, "existing-id", content.updated.ID,
		"updates keep the existing record's identity")
	assert.Nil(t, content.inserted)

	assert.Equal(t, 1, indexer.calls)
	assert.Equal(t, "existing-id", indexer.last.ContentID)
	assert.Equal(t, "fp-1", indexer.last.Fingerprint)

	require.Len(t, *seen, 1)
	assert.Equal(t, events.ContentStored, (*seen)[0].Type)
	assert.Equal(t, string(ActionUpdated), (*seen)[0].Reason)
}

func TestSave_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Item)
		field  string
	}{
		{"missing title", func(i *models.Item) { i.Title = "  " }, "title"},
		{"missing content", func(i *models.Item) { i.Content = "" }, "content"},
		{"missing source url", func(i *models.Item) { i.SourceURL = "" }, "source_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&fakeContentRepo{}, &fakeIndexer{}, nil, testhelpers.NewTestLogger())

			item := validItem()
			tt.mutate(item)

			_, err := s.Save(context.Background(), item)
			require.ErrorIs(t, err, ErrMissingField)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestSave_LookupFailure(t *testing.T) {
	content := &fakeContentRepo{lookupErr: errors.New("db down")}
	bus := events.NewBus()
	seen := collectEvents(bus)
	s := New(content, &fakeIndexer{}, bus, testhelpers.NewTestLogger())

	_, err := s.Save(context.Background(), validItem())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingField)

	require.Len(t, *seen, 1)
	assert.Equal(t, events.StorageError, (*seen)[0].Type)
}

func TestSave_IndexFailureSurfaces(t *testing.T) {
	content := &fakeContentRepo{}
	indexer := &fakeIndexer{err: errors.New("index offline")}
	s := New(content, indexer, nil, testhelpers.NewTestLogger())

	_, err := s.Save(context.Background(), validItem())
	require.Error(t, err)
	assert.NotNil(t, content.inserted, "the content write itself succeeded")
}
