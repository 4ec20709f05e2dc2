// Package enrich defines the optional content enrichment capability.
// Absence of a provider never blocks the pipeline.
package enrich

import "context"

// Provider augments content with derived data (summaries, entities).
type Provider interface {
	// Summarize returns a short summary of the text.
	Summarize(ctx context.Context, text string) (string, error)
	// ExtractEntities returns named entities found in the text.
	ExtractEntities(ctx context.Context, text string) ([]string, error)
}
