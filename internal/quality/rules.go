package quality

import (
	"strings"
	"time"

	"github.com/jonesrussell/godigest/internal/fingerprint"
	"github.com/jonesrussell/godigest/internal/models"
)

const (
	minTitleLength = 5
	maxTitleLength = 100
	minBodyLength  = 150

	minSentences       = 3
	maxAvgSentenceLen  = 30
	minTitleTermLength = 3
)

func plainBody(content string) string {
	return fingerprint.CollapseWhitespace(fingerprint.StripHTML(content))
}

func rule(name string, passed bool, points int, suggestion string) RuleResult {
	r := RuleResult{
		Name:       name,
		MaxPoints:  points,
		Passed:     passed,
		Suggestion: suggestion,
	}
	if passed {
		r.Points = points
	}
	return r
}

func completenessRules(item *models.Item, body string) []RuleResult {
	titleLen := len(strings.TrimSpace(item.Title))
	_, dateOK := item.PublishDateTime()

	return []RuleResult{
		rule("title_present", titleLen > 0, 10,
			"add a title"),
		rule("title_length", titleLen >= minTitleLength && titleLen <= maxTitleLength, 5,
			"keep the title between 5 and 100 characters"),
		rule("body_length", len(body) >= minBodyLength, 10,
			"expand the body to at least 150 characters"),
		rule("summary_present", strings.TrimSpace(item.Summary) != "", 5,
			"add a summary"),
		rule("source_url_present", strings.TrimSpace(item.SourceURL) != "", 5,
			"record the source URL"),
		rule("publish_date_present", dateOK, 5,
			"record a parseable publish date"),
	}
}

func readabilityRules(item *models.Item, body string) []RuleResult {
	sentences := splitSentences(body)
	avgLen := averageSentenceLength(sentences)
	title := strings.TrimSpace(item.Title)

	return []RuleResult{
		rule("sentence_count", len(sentences) >= minSentences, 10,
			"write at least three full sentences"),
		rule("sentence_length", len(sentences) > 0 && avgLen <= maxAvgSentenceLen, 5,
			"shorten sentences to under 30 words on average"),
		rule("paragraph_structure", hasParagraphs(item.Content), 5,
			"break the body into paragraphs"),
		rule("title_case", title != "" && title != strings.ToUpper(title), 5,
			"avoid an all-caps title"),
	}
}

func relevanceRules(item *models.Item, body string) []RuleResult {
	terms := SignificantTerms(item.Title)
	matched := 0
	loweredBody := strings.ToLower(body)
	for _, term := range terms {
		if strings.Contains(loweredBody, term) {
			matched++
		}
	}

	halfMatch := len(terms) > 0 && matched*2 >= len(terms)
	anyMatch := matched > 0

	return []RuleResult{
		rule("title_body_overlap", halfMatch, 15,
			"make the body cover the topics named in the title"),
		rule("title_term_present", anyMatch, 5,
			"mention the title's subject in the body"),
		rule("content_type_present", item.Type != "", 5,
			"classify the content type"),
	}
}

// freshnessDecay maps age-in-days thresholds to points. Monotonically
// decreasing with age.
var freshnessDecay = []struct {
	maxAgeDays int
	points     int
}{
	{1, 15},
	{7, 12},
	{30, 8},
	{90, 4},
	{365, 2},
}

const freshnessMaxPoints = 15

func freshnessRules(item *models.Item, now time.Time) []RuleResult {
	age := item.AgeDays(now)

	r := RuleResult{
		Name:       "recency",
		MaxPoints:  freshnessMaxPoints,
		Suggestion: "prefer recently published content",
	}

	if age >= 0 {
		for _, band := range freshnessDecay {
			if age <= band.maxAgeDays {
				r.Points = band.points
				break
			}
		}
	}
	r.Passed = r.Points == freshnessMaxPoints

	return []RuleResult{r}
}

func enrichmentRules(item *models.Item) []RuleResult {
	content := strings.ToLower(item.Content)
	summary := strings.TrimSpace(item.Summary)
	bodyStart := plainBody(item.Content)

	distinctSummary := summary != "" && !strings.HasPrefix(bodyStart, summary)

	return []RuleResult{
		rule("has_images", strings.Contains(content, "<img"), 3,
			"include an image"),
		rule("has_links", strings.Contains(content, "<a "), 2,
			"link to related material"),
		rule("structured_markup", hasStructuredMarkup(content), 2,
			"include structured markup"),
		rule("distinct_summary", distinctSummary, 3,
			"write a summary that is not the opening of the body"),
	}
}

func hasStructuredMarkup(content string) bool {
	return strings.Contains(content, "application/ld+json") ||
		strings.Contains(content, "schema.org") ||
		strings.Contains(content, "itemscope")
}

func hasParagraphs(content string) bool {
	if strings.Count(strings.ToLower(content), "<p") >= 2 {
		return true
	}
	return strings.Contains(content, "\n\n")
}

func splitSentences(body string) []string {
	parts := strings.FieldsFunc(body, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})

	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			sentences = append(sentences, strings.TrimSpace(p))
		}
	}
	return sentences
}

func averageSentenceLength(sentences []string) int {
	if len(sentences) == 0 {
		return 0
	}
	words := 0
	for _, s := range sentences {
		words += len(strings.Fields(s))
	}
	return words / len(sentences)
}

// stopwords excluded from significant title terms.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"has": true, "his": true, "how": true, "its": true, "new": true,
	"now": true, "who": true, "why": true, "with": true, "this": true,
	"that": true, "from": true, "they": true, "will": true, "have": true,
	"what": true, "when": true, "where": true, "your": true, "said": true,
	"says": true, "into": true, "over": true, "after": true, "about": true,
}

// SignificantTerms extracts lowercase title terms longer than two
// characters, with punctuation stripped and stopwords removed.
func SignificantTerms(title string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == ' ', r >= 0x80:
			return r
		default:
			return ' '
		}
	}, strings.ToLower(title))

	var terms []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) >= minTitleTermLength && !stopwords[word] {
			terms = append(terms, word)
		}
	}
	return terms
}
