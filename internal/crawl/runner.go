// Package crawl executes crawl runs: fetching due sources through their
// adapters with bounded concurrency and feeding each raw item through the
// processing pipeline.
package crawl

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/godigest/internal/config"
	"github.com/jonesrussell/godigest/internal/fetch"
	"github.com/jonesrussell/godigest/internal/logger"
	"github.com/jonesrussell/godigest/internal/models"
	"github.com/jonesrussell/godigest/internal/pipeline"
	"github.com/jonesrussell/godigest/internal/sources"
)

// MetricsRepo accumulates per-source daily counters.
type MetricsRepo interface {
	Accumulate(ctx context.Context, metric *models.SourceMetric) error
}

// SourceOutcome is the per-source result of one run.
type SourceOutcome struct {
	SourceID string             `json:"source_id"`
	Name     string             `json:"name"`
	Stats    sources.FetchStats `json:"stats"`
	// FetchErr is set when the source's fetch itself failed; item-level
	// errors are counted in Stats.ErrorCount instead.
	FetchErr error `json:"-"`
}

// RunSummary aggregates one crawl run.
type RunSummary struct {
	RunID     uuid.UUID       `json:"run_id"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Sources   []SourceOutcome `json:"sources"`
	Found     int             `json:"found"`
	Stored    int             `json:"stored"`
	Rejected  int             `json:"rejected"`
	Errors    int             `json:"errors"`
	Cancelled bool            `json:"cancelled"`
}

// Runner dispatches crawl runs.
type Runner struct {
	manager   *sources.Manager
	adapters  *fetch.Registry
	processor pipeline.Processor
	metrics   MetricsRepo
	cfg       config.CrawlConfig
	logger    logger.Logger
}

// NewRunner creates a crawl runner.
func NewRunner(
	manager *sources.Manager,
	adapters *fetch.Registry,
	processor pipeline.Processor,
	metrics MetricsRepo,
	cfg config.CrawlConfig,
	log logger.Logger,
) *Runner {
	return &Runner{
		manager:   manager,
		adapters:  adapters,
		processor: processor,
		metrics:   metrics,
		cfg:       cfg,
		logger:    log,
	}
}

// RunDue crawls every source that is due, optionally restricted to the
// given source types (the scheduler's frequency buckets pre-filter by
// type; the due check remains the authoritative gate).
func (r *Runner) RunDue(ctx context.Context, types []models.SourceType) (*RunSummary, error) {
	due, err := r.manager.GetDueSources(ctx, time.Now())
	if err != nil {
		return nil, err
	}

	if len(types) > 0 {
		due = filterByType(due, types)
	}

	return r.run(ctx, due), nil
}

// RunManual crawls an explicit selection, bypassing frequency buckets and
// the due check. With ids set, exactly those sources run; otherwise all
// active sources of the given types run. Empty filters run everything
// active.
func (r *Runner) RunManual(
	ctx context.Context,
	types []models.SourceType,
	ids []string,
) (*RunSummary, error) {
	active, err := r.manager.LoadActiveSources(ctx)
	if err != nil {
		return nil, err
	}

	selected := active
	if len(ids) > 0 {
		wanted := make(map[string]bool, len(ids))
		for _, id := range ids {
			wanted[id] = true
		}
		selected = selected[:0:0]
		for _, s := range active {
			if wanted[s.ID] {
				selected = append(selected, s)
			}
		}
	} else if len(types) > 0 {
		selected = filterByType(selected, types)
	}

	return r.run(ctx, selected), nil
}

// run fetches the given sources with a bounded worker pool. Cancellation
// stops dispatching new sources; in-flight fetches finish or abort through
// their own contexts, and partially-processed items are simply not stored.
func (r *Runner) run(ctx context.Context, crawlSources []models.Source) *RunSummary {
	summary := &RunSummary{
		RunID:     uuid.New(),
		StartedAt: time.Now().UTC(),
	}

	r.logger.Info("Crawl run starting",
		logger.String("run_id", summary.RunID.String()),
		logger.Int("sources", len(crawlSources)),
	)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, r.cfg.Workers)
	)

	for i := range crawlSources {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			summary.Cancelled = true
		}
		if summary.Cancelled {
			break
		}

		source := crawlSources[i]
		wg.Add(1)
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()

			outcome := r.crawlSource(ctx, &source)

			mu.Lock()
			summary.Sources = append(summary.Sources, outcome)
			summary.Found += outcome.Stats.ItemsFound
			summary.Stored += outcome.Stats.ItemsStored
			summary.Rejected += outcome.Stats.ItemsRejected
			summary.Errors += outcome.Stats.ErrorCount
			mu.Unlock()
		}()
	}

	wg.Wait()
	summary.Duration = time.Since(summary.StartedAt)

	r.logger.Info("Crawl run finished",
		logger.String("run_id", summary.RunID.String()),
		logger.Int("sources", len(summary.Sources)),
		logger.Int("found", summary.Found),
		logger.Int("stored", summary.Stored),
		logger.Int("rejected", summary.Rejected),
		logger.Int("errors", summary.Errors),
		logger.Bool("cancelled", summary.Cancelled),
		logger.Duration("duration", summary.Duration),
	)

	return summary
}

// crawlSource fetches one source and processes its items. The fetch is
// time-bounded; a fetch failure is a failed attempt, never fatal to the
// run.
func (r *Runner) crawlSource(ctx context.Context, source *models.Source) SourceOutcome {
	outcome := SourceOutcome{
		SourceID: source.ID,
		Name:     source.Name,
	}
	start := time.Now()

	adapter, err := r.adapters.For(source.Type)
	if err != nil {
		outcome.FetchErr = err
		outcome.Stats.ErrorCount++
		r.finishSource(source, &outcome, false, start)
		return outcome
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	items, err := adapter.Fetch(fetchCtx, source)
	cancel()
	if err != nil {
		outcome.FetchErr = err
		outcome.Stats.ErrorCount++
		r.logger.Warn("Source fetch failed",
			logger.String("source_id", source.ID),
			logger.String("source_name", source.Name),
			logger.Error(err),
		)
		r.finishSource(source, &outcome, false, start)
		return outcome
	}

	outcome.Stats.ItemsFound = len(items)

	for _, raw := range items {
		// Stop processing on cancellation: unprocessed items are simply
		// not stored and will reappear on the next run.
		if ctx.Err() != nil {
			break
		}

		result := r.processor.Process(ctx, source, raw)
		switch {
		case result.Err != nil:
			outcome.Stats.ErrorCount++
		case result.Rejected:
			outcome.Stats.ItemsRejected++
		case result.Stored:
			outcome.Stats.ItemsStored++
			if result.New {
				outcome.Stats.ItemsNew++
			}
		}
	}

	r.finishSource(source, &outcome, true, start)
	return outcome
}

// finishSource records the attempt against the source and accumulates the
// day's metrics. Failures here are logged and absorbed; one source's
// bookkeeping must not abort the run.
func (r *Runner) finishSource(
	source *models.Source,
	outcome *SourceOutcome,
	success bool,
	start time.Time,
) {
	outcome.Stats.Duration = time.Since(start)

	// Source state updates survive run cancellation.
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.FetchTimeout)
	defer cancel()

	if err := r.manager.UpdateSourceStatus(ctx, source.ID, success, outcome.Stats); err != nil {
		r.logger.Error("Failed to update source status",
			logger.String("source_id", source.ID),
			logger.Error(err),
		)
	}

	metric := &models.SourceMetric{
		SourceID:       source.ID,
		Date:           models.MetricDate(start),
		ItemsFound:     outcome.Stats.ItemsFound,
		ItemsStored:    outcome.Stats.ItemsStored,
		ItemsRejected:  outcome.Stats.ItemsRejected,
		ProcessingTime: outcome.Stats.Duration,
		ErrorCount:     outcome.Stats.ErrorCount,
	}
	if err := r.metrics.Accumulate(ctx, metric); err != nil {
		r.logger.Error("Failed to record source metrics",
			logger.String("source_id", source.ID),
			logger.Error(err),
		)
	}
}

func filterByType(list []models.Source, types []models.SourceType) []models.Source {
	wanted := make(map[models.SourceType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	filtered := make([]models.Source, 0, len(list))
	for _, s := range list {
		if wanted[s.Type] {
			filtered = append(filtered, s)
		}
	}
	return filtered
}
