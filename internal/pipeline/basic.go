package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonesrussell/godigest/internal/config"
	"github.com/jonesrussell/godigest/internal/enrich"
	"github.com/jonesrussell/godigest/internal/events"
	"github.com/jonesrussell/godigest/internal/fetch"
	"github.com/jonesrussell/godigest/internal/logger"
	"github.com/jonesrussell/godigest/internal/models"
	"github.com/jonesrussell/godigest/internal/quality"
	"github.com/jonesrussell/godigest/internal/store"
)

// Basic is the fixed-gate pipeline: filter → normalize → dedup → language →
// freshness → enrich → score → store. Each gate short-circuits on failure
// with a rejection reason; transient failures surface as Outcome.Err for
// retry on a later run.
type Basic struct {
	cfg         config.PipelineConfig
	fingerprint Fingerprinter
	dedup       DuplicateChecker
	scorer      *quality.Scorer
	store       Storer
	enricher    enrich.Provider
	bus         *events.Bus
	logger      logger.Logger
}

// NewBasic creates the basic pipeline. enricher may be nil.
func NewBasic(
	cfg config.PipelineConfig,
	fp Fingerprinter,
	dedup DuplicateChecker,
	scorer *quality.Scorer,
	storer Storer,
	enricher enrich.Provider,
	bus *events.Bus,
	log logger.Logger,
) *Basic {
	return &Basic{
		cfg:         cfg,
		fingerprint: fp,
		dedup:       dedup,
		scorer:      scorer,
		store:       storer,
		enricher:    enricher,
		bus:         bus,
		logger:      log,
	}
}

// Process runs one raw item through the gate sequence.
func (p *Basic) Process(
	ctx context.Context,
	source *models.Source,
	raw fetch.RawItem,
) (outcome Outcome) {
	start := time.Now()
	item := itemFromRaw(source, raw)
	defer recoverOutcome(p.logger, p.bus, item, start, &outcome)

	// Gate: initial filter.
	if !p.passesInitialFilter(source, item) {
		emitRejection(p.bus, item, RejectInitialFilter)
		return rejected(RejectInitialFilter, start)
	}

	// Normalize before fingerprinting so equivalent content collides.
	item.Title = strings.TrimSpace(item.Title)
	item.Fingerprint = p.fingerprint.Fingerprint(item)

	// Gate: exact duplicate check. Runs before the fuzzy fallback and
	// short-circuits on a hit.
	existingID, isDup, err := p.dedup.IsDuplicate(ctx, item.Fingerprint, "")
	if err != nil {
		// Storage unavailable: neither uniqueness nor duplication may be
		// assumed. Surface for retry.
		return transient(err, start)
	}
	if isDup {
		return p.rejectDuplicate(ctx, item, existingID, start)
	}

	// Gate: language. The basic pipeline is hard-restricted to one locale;
	// items without a language tag pass.
	if !p.passesLanguage(item) {
		emitRejection(p.bus, item, RejectLanguage)
		return rejected(RejectLanguage, start)
	}

	// Gate: freshness, hard-capped at the configured day threshold.
	if age := item.AgeDays(time.Now()); age > p.cfg.MaxAgeDays {
		emitRejection(p.bus, item, RejectTooOld)
		return rejected(RejectTooOld, start)
	}

	p.maybeEnrich(ctx, item)

	// Gate: score. Low quality does not reject; it keeps the item out of
	// the published set.
	assessment := p.scorer.Assess(item)
	item.QualityScore = assessment.Score
	if assessment.PassesThreshold(p.cfg.QualityThreshold) {
		item.Status = models.ItemStatusPublished
	}

	// Gate: store.
	result, err := p.store.Save(ctx, item)
	if errors.Is(err, store.ErrMissingField) {
		emitRejection(p.bus, item, RejectMissingField)
		return rejected(RejectMissingField, start)
	}
	if errors.Is(err, store.ErrDuplicate) {
		// The insert lost the fingerprint uniqueness race to a concurrent
		// writer. The winner's record stands; this item resolves as a
		// duplicate of it.
		existingID, isDup, raceErr := p.dedup.IsDuplicate(ctx, item.Fingerprint, item.ID)
		if raceErr != nil || !isDup {
			// The winner has not written its index entry yet. Retry the
			// item on a later run, once the index catches up.
			return transient(err, start)
		}
		return p.rejectDuplicate(ctx, item, existingID, start)
	}
	if err != nil {
		return transient(err, start)
	}

	return Outcome{
		ContentID: result.ContentID,
		Stored:    true,
		New:       result.Action == store.ActionStored,
		Duration:  time.Since(start),
	}
}

// rejectDuplicate logs the collision against the existing record and
// terminates the item. Collision logging is best-effort; the rejection
// itself never depends on it.
func (p *Basic) rejectDuplicate(
	ctx context.Context,
	item *models.Item,
	existingID string,
	start time.Time,
) Outcome {
	if logErr := p.dedup.RecordCollision(ctx, item.ID, existingID, item.Fingerprint); logErr != nil {
		p.logger.Warn("Failed to log duplicate collision",
			logger.String("fingerprint", item.Fingerprint),
			logger.Error(logErr),
		)
	}
	emitRejection(p.bus, item, RejectDuplicate)
	out := rejected(RejectDuplicate, start)
	out.ContentID = existingID
	return out
}

// passesInitialFilter rejects items the source does not accept or that are
// too empty to process.
func (p *Basic) passesInitialFilter(source *models.Source, item *models.Item) bool {
	if !source.AcceptsContentType(item.Type) {
		return false
	}
	return strings.TrimSpace(item.Title) != "" || strings.TrimSpace(item.Content) != ""
}

func (p *Basic) passesLanguage(item *models.Item) bool {
	lang, ok := item.Extra["language"].(string)
	if !ok || lang == "" {
		return true
	}
	return strings.EqualFold(strings.SplitN(lang, "-", 2)[0], p.cfg.Language)
}

// maybeEnrich applies the optional enrichment provider. Enrichment failure
// never blocks the item.
func (p *Basic) maybeEnrich(ctx context.Context, item *models.Item) {
	if p.enricher == nil {
		return
	}

	if item.Summary == "" {
		summary, err := p.enricher.Summarize(ctx, item.Content)
		if err != nil {
			p.logger.Warn("Summarization failed",
				logger.String("source_url", item.SourceURL),
				logger.Error(err),
			)
		} else {
			item.Summary = summary
		}
	}

	entities, err := p.enricher.ExtractEntities(ctx, item.Content)
	if err != nil {
		p.logger.Warn("Entity extraction failed",
			logger.String("source_url", item.SourceURL),
			logger.Error(err),
		)
		return
	}
	if len(entities) > 0 {
		if item.Extra == nil {
			item.Extra = models.JSONMap{}
		}
		item.Extra["entities"] = entities
	}
}
