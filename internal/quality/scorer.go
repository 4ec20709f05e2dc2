// Package quality grades ingested content on a weighted 0-100 scale.
//
// A single heuristic is too brittle across heterogeneous content types, so
// the score decomposes into five weighted categories (completeness,
// readability, relevance, freshness, enrichment), each built from
// independently scored rules. Category score is the earned fraction of the
// category's maximum points; the overall score is the weighted sum of
// category percentages.
package quality

import (
	"math"
	"sort"
	"time"

	"github.com/jonesrussell/godigest/internal/models"
)

// Category weights, in percent. They sum to 100.
const (
	weightCompleteness = 30
	weightReadability  = 20
	weightRelevance    = 25
	weightFreshness    = 15
	weightEnrichment   = 10
)

// DefaultThreshold is the default minimum passing score.
const DefaultThreshold = 40

// Score category labels.
const (
	CategoryExcellent = "excellent"
	CategoryGood      = "good"
	CategoryAverage   = "average"
	CategoryPoor      = "poor"
	CategoryVeryPoor  = "very_poor"
)

const maxSuggestions = 5

// RuleResult is the outcome of one scoring rule.
type RuleResult struct {
	Name       string `json:"name"`
	Points     int    `json:"points"`
	MaxPoints  int    `json:"max_points"`
	Passed     bool   `json:"passed"`
	Suggestion string `json:"suggestion,omitempty"`
}

// CategoryResult aggregates the rules of one category.
type CategoryResult struct {
	Weight     int          `json:"weight"`
	Percentage float64      `json:"percentage"`
	Rules      []RuleResult `json:"rules"`
}

// Assessment is the full result of scoring one item.
type Assessment struct {
	Score       int                       `json:"score"`
	Category    string                    `json:"category"`
	Breakdown   map[string]CategoryResult `json:"breakdown"`
	Suggestions []string                  `json:"suggestions"`
}

// PassesThreshold reports whether the assessment meets the minimum score.
func (a *Assessment) PassesThreshold(minScore int) bool {
	return a.Score >= minScore
}

// Scorer computes quality assessments.
type Scorer struct {
	now func() time.Time
}

// NewScorer creates a quality scorer.
func NewScorer() *Scorer {
	return &Scorer{now: time.Now}
}

// Assess scores the item. The result is deterministic for a fixed clock:
// the same item always yields the same score.
func (s *Scorer) Assess(item *models.Item) *Assessment {
	body := plainBody(item.Content)
	now := s.now()

	breakdown := map[string]CategoryResult{
		"completeness": categoryResult(weightCompleteness, completenessRules(item, body)),
		"readability":  categoryResult(weightReadability, readabilityRules(item, body)),
		"relevance":    categoryResult(weightRelevance, relevanceRules(item, body)),
		"freshness":    categoryResult(weightFreshness, freshnessRules(item, now)),
		"enrichment":   categoryResult(weightEnrichment, enrichmentRules(item)),
	}

	var score float64
	for _, cat := range breakdown {
		score += cat.Percentage * float64(cat.Weight) / 100
	}

	rounded := int(math.Round(score))
	if rounded < 0 {
		rounded = 0
	}
	if rounded > 100 {
		rounded = 100
	}

	return &Assessment{
		Score:       rounded,
		Category:    scoreCategory(rounded),
		Breakdown:   breakdown,
		Suggestions: collectSuggestions(breakdown),
	}
}

func categoryResult(weight int, rules []RuleResult) CategoryResult {
	var earned, possible int
	for _, r := range rules {
		earned += r.Points
		possible += r.MaxPoints
	}

	pct := 0.0
	if possible > 0 {
		pct = float64(earned) / float64(possible) * 100
	}

	return CategoryResult{
		Weight:     weight,
		Percentage: pct,
		Rules:      rules,
	}
}

func scoreCategory(score int) string {
	switch {
	case score >= 90:
		return CategoryExcellent
	case score >= 70:
		return CategoryGood
	case score >= 50:
		return CategoryAverage
	case score >= 30:
		return CategoryPoor
	default:
		return CategoryVeryPoor
	}
}

// collectSuggestions gathers suggestions from failing rules, deduplicated
// and capped. Categories are visited in sorted order so the output is
// stable.
func collectSuggestions(breakdown map[string]CategoryResult) []string {
	names := make([]string, 0, len(breakdown))
	for name := range breakdown {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]bool)
	suggestions := make([]string, 0, maxSuggestions)

	for _, name := range names {
		for _, rule := range breakdown[name].Rules {
			if rule.Passed || rule.Suggestion == "" || seen[rule.Suggestion] {
				continue
			}
			seen[rule.Suggestion] = true
			suggestions = append(suggestions, rule.Suggestion)
			if len(suggestions) == maxSuggestions {
				return suggestions
			}
		}
	}

	return suggestions
}
