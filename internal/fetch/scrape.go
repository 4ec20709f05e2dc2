package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	colly "github.com/gocolly/colly/v2"

	"github.com/jonesrussell/godigest/internal/logger"
	"github.com/jonesrussell/godigest/internal/models"
)

const (
	scrapeMaxDepth    = 2
	scrapeUserAgent   = "godigest/1.0"
	scrapeParallelism = 2
)

// nonContentSelectors lists elements stripped before body text extraction.
const nonContentSelectors = "script, style, nav, header, footer"

// ScrapeAdapter crawls a source's site and extracts article pages. Pages
// without an <article> element are treated as navigation and only followed,
// not ingested.
type ScrapeAdapter struct {
	logger logger.Logger
}

// NewScrapeAdapter creates a scrape adapter.
func NewScrapeAdapter(log logger.Logger) *ScrapeAdapter {
	return &ScrapeAdapter{logger: log}
}

// Fetch crawls the source URL's domain to a fixed depth.
func (a *ScrapeAdapter) Fetch(ctx context.Context, source *models.Source) ([]RawItem, error) {
	seed, err := url.Parse(source.URL)
	if err != nil {
		return nil, fmt.Errorf("parse source url %s: %w", source.URL, err)
	}

	collector := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.AllowedDomains(seed.Hostname()),
		colly.MaxDepth(scrapeMaxDepth),
		colly.UserAgent(scrapeUserAgent),
	)
	if limitErr := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: scrapeParallelism,
	}); limitErr != nil {
		return nil, fmt.Errorf("configure scrape limits: %w", limitErr)
	}

	var (
		mu    sync.Mutex
		items []RawItem
	)

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if ctx.Err() != nil {
			return
		}
		// Visit errors (off-domain, revisit, depth) are expected here.
		_ = e.Request.Visit(e.Attr("href"))
	})

	collector.OnHTML("html", func(e *colly.HTMLElement) {
		item, ok := extractArticle(e.DOM, e.Request.URL.String())
		if !ok {
			return
		}
		mu.Lock()
		items = append(items, item)
		mu.Unlock()
	})

	collector.OnError(func(r *colly.Response, visitErr error) {
		a.logger.Debug("Scrape request failed",
			logger.String("source_id", source.ID),
			logger.String("url", r.Request.URL.String()),
			logger.Error(visitErr),
		)
	})

	if visitErr := collector.Visit(source.URL); visitErr != nil {
		return nil, fmt.Errorf("scrape %s: %w", source.URL, visitErr)
	}
	collector.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("scrape %s: %w", source.URL, ctxErr)
	}

	a.logger.Debug("Scrape finished",
		logger.String("source_id", source.ID),
		logger.String("url", source.URL),
		logger.Int("articles", len(items)),
	)
	return items, nil
}

// extractArticle pulls an article out of a page. Only pages carrying an
// <article> element produce an item.
func extractArticle(sel *goquery.Selection, pageURL string) (RawItem, bool) {
	article := sel.Find("article").First()
	if article.Length() == 0 {
		return RawItem{}, false
	}

	article.Find(nonContentSelectors).Remove()
	body := strings.TrimSpace(article.Text())
	title := extractPageTitle(sel)
	if body == "" || title == "" {
		return RawItem{}, false
	}

	item := RawItem{
		Type:      models.ContentTypeArticle,
		Title:     title,
		Content:   body,
		Summary:   extractMetaContent(sel, "meta[name='description']", "meta[property='og:description']"),
		SourceURL: pageURL,
	}

	if published, ok := sel.Find("meta[property='article:published_time']").Attr("content"); ok {
		item.PublishDate = strings.TrimSpace(published)
	}
	if author := extractMetaContent(sel, "meta[name='author']", ""); author != "" {
		item.Extra = map[string]any{"author": author}
	}
	return item, true
}

// extractPageTitle prefers <title>, falling back to og:title.
func extractPageTitle(sel *goquery.Selection) string {
	if title := strings.TrimSpace(sel.Find("title").First().Text()); title != "" {
		return title
	}
	if ogTitle, ok := sel.Find("meta[property='og:title']").Attr("content"); ok {
		return strings.TrimSpace(ogTitle)
	}
	return ""
}

func extractMetaContent(sel *goquery.Selection, primary, fallback string) string {
	if content, ok := sel.Find(primary).Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	if fallback == "" {
		return ""
	}
	if content, ok := sel.Find(fallback).Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}
