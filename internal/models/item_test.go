package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItem_PublishDateTime(t *testing.T) {
	tests := []struct {
		name string
		date string
		ok   bool
	}{
		{"rfc3339", "2026-08-20T10:30:00Z", true},
		{"sql style", "2026-08-20 10:30:00", true},
		{"date only", "2026-08-20", true},
		{"rfc1123z", "Thu, 20 Aug 2026 10:30:00 +0000", true},
		{"empty", "", false},
		{"garbage", "not a date", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := Item{PublishDate: tt.date}
			parsed, ok := item.PublishDateTime()
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, 2026, parsed.Year())
				assert.Equal(t, time.August, parsed.Month())
			}
		})
	}
}

func TestItem_AgeDays(t *testing.T) {
	now := time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		date string
		want int
	}{
		{"unknown date", "", -1},
		{"unparseable date", "yesterday-ish", -1},
		{"same day", "2026-08-21T06:00:00Z", 0},
		{"ten days old", "2026-08-11T12:00:00Z", 10},
		{"future date clamps to zero", "2026-09-01T00:00:00Z", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := Item{PublishDate: tt.date}
			assert.Equal(t, tt.want, item.AgeDays(now))
		})
	}
}

func TestDuplicateLogEntry_Pending(t *testing.T) {
	entry := DuplicateLogEntry{}
	require.True(t, entry.Pending())

	res := ResolutionKeptExisting
	entry.Resolution = &res
	assert.False(t, entry.Pending())
}

func TestDuplicateResolution_Valid(t *testing.T) {
	for _, res := range []DuplicateResolution{
		ResolutionKeptNew, ResolutionKeptExisting, ResolutionIgnored, ResolutionManuallyResolved,
	} {
		assert.True(t, res.Valid(), string(res))
	}
	assert.False(t, DuplicateResolution("deleted").Valid())
	assert.False(t, DuplicateResolution("").Valid())
}
