package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonesrussell/godigest/internal/logger"
	"github.com/jonesrussell/godigest/internal/models"
)

// apiItem is the wire shape API sources return, one object per item.
type apiItem struct {
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Summary     string         `json:"summary"`
	URL         string         `json:"url"`
	PublishDate string         `json:"publish_date"`
	Extra       map[string]any `json:"extra"`
}

// APIAdapter fetches JSON item arrays from API sources.
type APIAdapter struct {
	client *http.Client
	logger logger.Logger
}

// NewAPIAdapter creates an API adapter. client may be nil; a default is
// used.
func NewAPIAdapter(client *http.Client, log logger.Logger) *APIAdapter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &APIAdapter{
		client: client,
		logger: log,
	}
}

// Fetch retrieves the source endpoint and decodes its item array. An
// optional api_key in the source config is sent as a bearer token.
func (a *APIAdapter) Fetch(ctx context.Context, source *models.Source) ([]RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build api request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if key, ok := source.Config["api_key"].(string); ok && key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch api %s: %w", source.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch api %s: unexpected status %d", source.URL, resp.StatusCode)
	}

	var wire []apiItem
	if decodeErr := json.NewDecoder(resp.Body).Decode(&wire); decodeErr != nil {
		return nil, fmt.Errorf("decode api response %s: %w", source.URL, decodeErr)
	}

	items := make([]RawItem, 0, len(wire))
	for _, w := range wire {
		items = append(items, RawItem{
			Type:        models.ContentType(w.Type),
			Title:       w.Title,
			Content:     w.Content,
			Summary:     w.Summary,
			SourceURL:   w.URL,
			PublishDate: w.PublishDate,
			Extra:       w.Extra,
		})
	}

	a.logger.Debug("API source fetched",
		logger.String("source_id", source.ID),
		logger.String("url", source.URL),
		logger.Int("items", len(items)),
	)
	return items, nil
}
