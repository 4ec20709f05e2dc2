package models

import (
	"time"
)

// ContentType classifies an ingested item.
type ContentType string

const (
	ContentTypeArticle   ContentType = "article"
	ContentTypePodcast   ContentType = "podcast"
	ContentTypeFinancial ContentType = "financial"
	ContentTypeSocial    ContentType = "social"
	ContentTypeEvent     ContentType = "event"
)

// ItemStatus is the lifecycle status of an ingested item.
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusPublished ItemStatus = "published"
	ItemStatusRejected  ItemStatus = "rejected"
)

// Item is a normalized content record produced by the ingestion pipeline.
//
// Fingerprint is unique across live items: a second item with the same
// fingerprint is merged into the existing record or logged for duplicate
// resolution, never stored as an independent live record.
type Item struct {
	ID            string      `json:"id"             db:"id"`
	Type          ContentType `json:"type"           db:"type"`
	Title         string      `json:"title"          db:"title"`
	Content       string      `json:"content"        db:"content"`
	Summary       string      `json:"summary,omitempty" db:"summary"`
	SourceURL     string      `json:"source_url"     db:"source_url"`
	SourceID      string      `json:"source_id"      db:"source_id"`
	PublishDate   string      `json:"publish_date,omitempty" db:"publish_date"`
	IngestionDate time.Time   `json:"ingestion_date" db:"ingestion_date"`
	Fingerprint   string      `json:"fingerprint"    db:"fingerprint"`
	QualityScore  int         `json:"quality_score"  db:"quality_score"`
	Status        ItemStatus  `json:"status"         db:"status"`
	Extra         JSONMap     `json:"extra,omitempty" db:"extra"`
	CreatedAt     time.Time   `json:"created_at"     db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"     db:"updated_at"`
}

// IndexEntry maps an item to its fingerprint and quality score for fast
// duplicate lookup. One-to-one with Item, unique on both columns.
type IndexEntry struct {
	ContentID    string    `json:"content_id"    db:"content_id"`
	Fingerprint  string    `json:"fingerprint"   db:"fingerprint"`
	QualityScore int       `json:"quality_score" db:"quality_score"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"`
}

// PublishDateTime parses the item's publish date. The bool result is false
// when the date is absent or unparseable.
func (i *Item) PublishDateTime() (time.Time, bool) {
	if i.PublishDate == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
		time.RFC1123Z,
		time.RFC1123,
	} {
		if t, err := time.Parse(layout, i.PublishDate); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AgeDays returns the item's age in whole days relative to now, or -1 when
// the publish date is unknown.
func (i *Item) AgeDays(now time.Time) int {
	published, ok := i.PublishDateTime()
	if !ok {
		return -1
	}
	if published.After(now) {
		return 0
	}
	return int(now.Sub(published).Hours() / 24)
}
