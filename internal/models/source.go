// Package models defines the persistent data model for the content
// ingestion pipeline.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SourceType identifies how a source's content is fetched.
type SourceType string

const (
	SourceTypeFeed   SourceType = "feed"
	SourceTypeAPI    SourceType = "api"
	SourceTypeScrape SourceType = "scrape"
)

// Valid reports whether the source type is one of the known values.
func (t SourceType) Valid() bool {
	switch t {
	case SourceTypeFeed, SourceTypeAPI, SourceTypeScrape:
		return true
	}
	return false
}

// FetchStatus records the outcome of a source's most recent fetch attempt.
type FetchStatus string

const (
	FetchStatusSuccess FetchStatus = "success"
	FetchStatusFailed  FetchStatus = "failed"
)

// Source represents a configured content source and its fetch state.
//
// The pipeline never creates or deletes sources; it only mutates fetch
// state (LastFetch, LastStatus, FetchInterval, FetchCount) after each
// fetch attempt.
type Source struct {
	ID           string      `json:"id"            db:"id"`
	Name         string      `json:"name"          db:"name"`
	Type         SourceType  `json:"type"          db:"type"`
	URL          string      `json:"url"           db:"url"`
	Config       JSONMap     `json:"config"        db:"config"`
	ContentTypes StringArray `json:"content_types" db:"content_types"`
	Active       bool        `json:"active"        db:"active"`
	LastFetch    *time.Time  `json:"last_fetch,omitempty" db:"last_fetch"`
	LastStatus   FetchStatus `json:"last_status,omitempty" db:"last_status"`
	// Intervals are stored in seconds; the invariant
	// MinInterval <= FetchInterval <= MaxInterval always holds.
	FetchInterval int64     `json:"fetch_interval" db:"fetch_interval"`
	MinInterval   int64     `json:"min_interval"   db:"min_interval"`
	MaxInterval   int64     `json:"max_interval"   db:"max_interval"`
	FetchCount    int64     `json:"fetch_count"    db:"fetch_count"`
	CreatedAt     time.Time `json:"created_at"     db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"     db:"updated_at"`
}

// ClampInterval forces the fetch interval back inside its bounds.
func (s *Source) ClampInterval() {
	if s.FetchInterval < s.MinInterval {
		s.FetchInterval = s.MinInterval
	}
	if s.FetchInterval > s.MaxInterval {
		s.FetchInterval = s.MaxInterval
	}
}

// Due reports whether the source should be fetched at the given time.
// A source that has never been fetched is always due.
func (s *Source) Due(now time.Time) bool {
	if !s.Active {
		return false
	}
	if s.LastFetch == nil {
		return true
	}
	next := s.LastFetch.Add(time.Duration(s.FetchInterval) * time.Second)
	return !now.Before(next)
}

// AcceptsContentType reports whether the source accepts items of the given
// type. An empty ContentTypes set accepts everything.
func (s *Source) AcceptsContentType(ct ContentType) bool {
	if len(s.ContentTypes) == 0 {
		return true
	}
	for _, accepted := range s.ContentTypes {
		if accepted == string(ct) {
			return true
		}
	}
	return false
}

// StringArray is a JSON-encoded string slice column.
type StringArray []string

// Value implements driver.Valuer for database storage.
func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner for database retrieval.
func (a *StringArray) Scan(value any) error {
	if value == nil {
		*a = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("scan StringArray: unexpected type %T", value)
	}
	return json.Unmarshal(bytes, a)
}

// JSONMap is an opaque key-value configuration column.
type JSONMap map[string]any

// Value implements driver.Valuer for database storage.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for database retrieval.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("scan JSONMap: unexpected type %T", value)
	}
	return json.Unmarshal(bytes, m)
}
