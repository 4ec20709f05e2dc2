package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/jonesrussell/godigest/internal/logger"
	"github.com/jonesrussell/godigest/internal/models"
)

// httpPrefix is the scheme prefix used to decide whether a GUID is a URL.
const httpPrefix = "http"

// maxFeedBody caps how much of a feed response is read.
const maxFeedBody = 10 << 20

// FeedAdapter fetches RSS and Atom feeds.
type FeedAdapter struct {
	client *http.Client
	logger logger.Logger
}

// NewFeedAdapter creates a feed adapter. client may be nil; a default is
// used.
func NewFeedAdapter(client *http.Client, log logger.Logger) *FeedAdapter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &FeedAdapter{
		client: client,
		logger: log,
	}
}

// Fetch downloads and parses the source's feed. Entries without a usable
// link are silently skipped.
func (a *FeedAdapter) Fetch(ctx context.Context, source *models.Source) ([]RawItem, error) {
	body, err := a.download(ctx, source.URL)
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", source.URL, err)
	}

	items := make([]RawItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		link := extractLink(entry)
		if link == "" {
			continue
		}

		content := entry.Content
		if content == "" {
			content = entry.Description
		}

		item := RawItem{
			Type:        models.ContentTypeArticle,
			Title:       entry.Title,
			Content:     content,
			Summary:     entry.Description,
			SourceURL:   link,
			PublishDate: formatPublished(entry.PublishedParsed),
		}
		if parsed.Language != "" {
			item.Extra = map[string]any{"language": parsed.Language}
		}
		items = append(items, item)
	}

	a.logger.Debug("Feed fetched",
		logger.String("source_id", source.ID),
		logger.String("url", source.URL),
		logger.Int("entries", len(items)),
	)
	return items, nil
}

func (a *FeedAdapter) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build feed request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch feed %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch feed %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
	if err != nil {
		return "", fmt.Errorf("read feed %s: %w", url, err)
	}
	return string(body), nil
}

// extractLink returns the best available URL from a feed entry. It prefers
// the explicit Link field, falling back to the GUID if it looks like an
// HTTP URL.
func extractLink(entry *gofeed.Item) string {
	if entry.Link != "" {
		return entry.Link
	}
	if strings.HasPrefix(entry.GUID, httpPrefix) {
		return entry.GUID
	}
	return ""
}

func formatPublished(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
