package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/godigest/internal/models"
	"github.com/jonesrussell/godigest/internal/testhelpers"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Blog</title>
    <link>https://example.com</link>
    <language>en-US</language>
    <item>
      <title>First Post</title>
      <link>https://example.com/first</link>
      <description>Short summary.</description>
      <pubDate>Thu, 20 Aug 2026 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Guid Only</title>
      <guid>https://example.com/guid-only</guid>
      <description>Body from description.</description>
    </item>
    <item>
      <title>No Link At All</title>
      <guid isPermaLink="false">internal-id-42</guid>
    </item>
  </channel>
</rss>`

func feedSource(url string) *models.Source {
	return &models.Source{ID: "src-1", Type: models.SourceTypeFeed, URL: url}
}

func TestFeedAdapter_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	adapter := NewFeedAdapter(server.Client(), testhelpers.NewTestLogger())
	items, err := adapter.Fetch(context.Background(), feedSource(server.URL))
	require.NoError(t, err)
	require.Len(t, items, 2, "the entry without a usable link is skipped")

	first := items[0]
	assert.Equal(t, models.ContentTypeArticle, first.Type)
	assert.Equal(t, "First Post", first.Title)
	assert.Equal(t, "https://example.com/first", first.SourceURL)
	assert.Equal(t, "Short summary.", first.Summary)
	assert.Equal(t, "Short summary.", first.Content, "content falls back to the description")
	published, parseErr := time.Parse(time.RFC3339, first.PublishDate)
	require.NoError(t, parseErr)
	assert.Equal(t, 2026, published.Year())
	assert.Equal(t, "en-US", first.Extra["language"])

	assert.Equal(t, "https://example.com/guid-only", items[1].SourceURL,
		"GUID serves as the link when it is a URL")
	assert.Empty(t, items[1].PublishDate)
}

func TestFeedAdapter_Fetch_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := NewFeedAdapter(server.Client(), testhelpers.NewTestLogger())
	_, err := adapter.Fetch(context.Background(), feedSource(server.URL))
	assert.ErrorContains(t, err, "unexpected status 503")
}

func TestFeedAdapter_Fetch_InvalidFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not a feed"))
	}))
	defer server.Close()

	adapter := NewFeedAdapter(server.Client(), testhelpers.NewTestLogger())
	_, err := adapter.Fetch(context.Background(), feedSource(server.URL))
	assert.Error(t, err)
}

func TestFeedAdapter_Fetch_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	adapter := NewFeedAdapter(server.Client(), testhelpers.NewTestLogger())
	_, err := adapter.Fetch(ctx, feedSource(server.URL))
	assert.Error(t, err)
}

func TestExtractLink(t *testing.T) {
	tests := []struct {
		name  string
		entry *gofeed.Item
		want  string
	}{
		{"link preferred", &gofeed.Item{Link: "https://a.test/x", GUID: "https://a.test/y"}, "https://a.test/x"},
		{"guid url fallback", &gofeed.Item{GUID: "https://a.test/y"}, "https://a.test/y"},
		{"opaque guid rejected", &gofeed.Item{GUID: "tag:a.test,2026:1"}, ""},
		{"nothing usable", &gofeed.Item{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractLink(tt.entry))
		})
	}
}
