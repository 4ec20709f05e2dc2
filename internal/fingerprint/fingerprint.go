// Package fingerprint derives the deduplication key for ingested content.
//
// The fingerprint is a SHA-256 digest over five normalized fields joined
// with a fixed delimiter. Normalization is deterministic and idempotent so
// that re-ingesting the same logical content (different casing, tracking
// parameters, or whitespace) produces the same fingerprint.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/godigest/internal/models"
)

// delimiter separates the normalized fields in the canonical string. It is
// not expected to survive normalization inside any field.
const delimiter = "||"

// trackingParams are query parameters stripped from source URLs before
// hashing.
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
}

// Generator computes content fingerprints.
type Generator struct{}

// NewGenerator creates a fingerprint generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Fingerprint returns the hex-encoded SHA-256 fingerprint for the item.
// Missing fields normalize to the empty string rather than being omitted,
// preserving positional determinism.
func (g *Generator) Fingerprint(item *models.Item) string {
	canonical := strings.Join([]string{
		NormalizeTitle(item.Title),
		NormalizeBody(item.Content),
		NormalizeURL(item.SourceURL),
		NormalizeDate(item),
		strings.ToLower(strings.TrimSpace(item.SourceID)),
	}, delimiter)

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// NormalizeTitle lowercases and trims a title.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// NormalizeBody strips HTML tags, collapses whitespace, and lowercases the
// content body.
func NormalizeBody(body string) string {
	return strings.ToLower(CollapseWhitespace(StripHTML(body)))
}

// StripHTML removes markup from an HTML fragment, returning its text
// content. Input without markup passes through unchanged.
func StripHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return doc.Text()
}

// CollapseWhitespace trims and squeezes runs of whitespace to single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeURL lowercases a URL, strips known tracking parameters
// (utm_* plus fbclid/gclid), and reserializes the remaining query
// deterministically.
func NormalizeURL(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if lowered == "" {
		return ""
	}

	u, err := url.Parse(lowered)
	if err != nil {
		return lowered
	}

	query := u.Query()
	for param := range query {
		if trackingParams[param] || strings.HasPrefix(param, "utm_") {
			query.Del(param)
		}
	}
	// Encode sorts keys, making reserialization order-independent.
	u.RawQuery = query.Encode()

	return u.String()
}

// NormalizeDate reduces a publish date to its UTC YYYY-MM-DD day when
// parseable, else the lowercased raw string. Converting to UTC first keeps
// the same instant published under different zone offsets on one day.
func NormalizeDate(item *models.Item) string {
	if t, ok := item.PublishDateTime(); ok {
		return t.UTC().Format("2006-01-02")
	}
	return strings.ToLower(strings.TrimSpace(item.PublishDate))
}
