package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/jonesrussell/godigest/internal/events"
	"github.com/jonesrussell/godigest/internal/fetch"
	"github.com/jonesrussell/godigest/internal/logger"
	"github.com/jonesrussell/godigest/internal/models"
)

// HookResult is the structured result an external processing hook returns.
type HookResult struct {
	Success   bool     `json:"success"`
	ContentID string   `json:"content_id,omitempty"`
	Message   string   `json:"message,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// Hook is the pluggable processing delegate for the enhanced pipeline. It
// owns the entire normalize → score → store sequence, including whatever
// duplicate, language, and freshness gating it chooses to apply.
type Hook interface {
	Process(ctx context.Context, source *models.Source, item *models.Item) (*HookResult, error)
}

// Enhanced delegates item processing to an external hook. Its internal
// gating is opaque; the pipeline contract still holds: a content id on
// success, an observable rejection event on failure, no fault escaping the
// item boundary.
type Enhanced struct {
	hook   Hook
	bus    *events.Bus
	logger logger.Logger
}

// NewEnhanced creates the enhanced pipeline.
func NewEnhanced(hook Hook, bus *events.Bus, log logger.Logger) *Enhanced {
	return &Enhanced{
		hook:   hook,
		bus:    bus,
		logger: log,
	}
}

// Process hands one raw item to the hook.
func (p *Enhanced) Process(
	ctx context.Context,
	source *models.Source,
	raw fetch.RawItem,
) (outcome Outcome) {
	start := time.Now()
	item := itemFromRaw(source, raw)
	defer recoverOutcome(p.logger, p.bus, item, start, &outcome)

	// The initial source filter still applies before delegation.
	if !source.AcceptsContentType(item.Type) ||
		(strings.TrimSpace(item.Title) == "" && strings.TrimSpace(item.Content) == "") {
		emitRejection(p.bus, item, RejectInitialFilter)
		return rejected(RejectInitialFilter, start)
	}

	result, err := p.hook.Process(ctx, source, item)
	if err != nil {
		// Hook transport failure: retryable, not a rejection.
		return transient(err, start)
	}

	if !result.Success {
		p.logger.Info("Enhanced processing rejected item",
			logger.String("source_url", item.SourceURL),
			logger.String("message", result.Message),
			logger.Strings("errors", result.Errors),
		)
		emitRejection(p.bus, item, RejectEnhancedFailed)
		return rejected(RejectEnhancedFailed, start)
	}

	return Outcome{
		ContentID: result.ContentID,
		Stored:    true,
		New:       true,
		Duration:  time.Since(start),
	}
}
