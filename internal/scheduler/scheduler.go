// Package scheduler triggers crawl runs on a cadence. Sources are bucketed
// into frequency classes by type; each bucket gets its own periodic
// trigger, staggered to avoid simultaneous fetch bursts.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/godigest/internal/config"
	"github.com/jonesrussell/godigest/internal/crawl"
	"github.com/jonesrussell/godigest/internal/logger"
	"github.com/jonesrussell/godigest/internal/models"
)

// Frequency is a coarse scheduling class for source types.
type Frequency string

const (
	FreqHourly     Frequency = "hourly"
	FreqTwiceDaily Frequency = "twice_daily"
	FreqDaily      Frequency = "daily"
	FreqWeekly     Frequency = "weekly"
)

// bucketOrder fixes the stagger order of the frequency buckets.
var bucketOrder = []Frequency{FreqHourly, FreqTwiceDaily, FreqDaily, FreqWeekly}

// Valid reports whether the frequency is recognized.
func (f Frequency) Valid() bool {
	switch f {
	case FreqHourly, FreqTwiceDaily, FreqDaily, FreqWeekly:
		return true
	}
	return false
}

// defaultFrequencies maps source types to their default buckets. Feeds and
// APIs poll hourly; scraping defaults to daily to respect target sites.
var defaultFrequencies = map[models.SourceType]Frequency{
	models.SourceTypeFeed:   FreqHourly,
	models.SourceTypeAPI:    FreqHourly,
	models.SourceTypeScrape: FreqDaily,
}

// Scheduler owns the periodic triggers and the manual entrypoint.
type Scheduler struct {
	runner  *crawl.Runner
	cfg     config.SchedulerConfig
	logger  logger.Logger
	cron    *cron.Cron
	entries []cron.EntryID

	mu          sync.Mutex
	frequencies map[models.SourceType]Frequency

	// runMu serializes crawl runs; a trigger firing while a run is in
	// flight is skipped, not queued.
	runMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler. Frequency overrides from configuration are
// applied over the per-type defaults.
func New(runner *crawl.Runner, cfg config.SchedulerConfig, log logger.Logger) (*Scheduler, error) {
	frequencies := make(map[models.SourceType]Frequency, len(defaultFrequencies))
	for sourceType, freq := range defaultFrequencies {
		frequencies[sourceType] = freq
	}
	for sourceType, freq := range cfg.Frequencies {
		st := models.SourceType(sourceType)
		f := Frequency(freq)
		if !st.Valid() {
			return nil, fmt.Errorf("frequency override: unknown source type %q", sourceType)
		}
		if !f.Valid() {
			return nil, fmt.Errorf("frequency override: unknown frequency %q", freq)
		}
		frequencies[st] = f
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		runner:      runner,
		cfg:         cfg,
		logger:      log,
		cron:        cron.New(),
		frequencies: frequencies,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// RegisterPeriodicTriggers installs one cron entry per frequency bucket,
// each offset from the previous by the configured stagger, and starts the
// cron loop.
func (s *Scheduler) RegisterPeriodicTriggers() error {
	for i, freq := range bucketOrder {
		offset := time.Duration(i) * s.cfg.Stagger
		spec := cronSpec(freq, offset)

		bucket := freq
		id, err := s.cron.AddFunc(spec, func() {
			s.OnTrigger(bucket)
		})
		if err != nil {
			return fmt.Errorf("register %s trigger: %w", freq, err)
		}
		s.entries = append(s.entries, id)

		s.logger.Info("Periodic trigger registered",
			logger.String("frequency", string(freq)),
			logger.String("cron", spec),
		)
	}

	s.cron.Start()
	return nil
}

// OnTrigger handles one frequency bucket firing: it resolves the source
// types in that bucket and runs the due-check-gated crawl for them. The
// bucket is a coarse pre-filter; the due check is the authoritative gate.
func (s *Scheduler) OnTrigger(bucket Frequency) {
	types := s.typesForFrequency(bucket)
	if len(types) == 0 {
		return
	}

	if !s.runMu.TryLock() {
		s.logger.Warn("Skipping trigger, crawl run already in flight",
			logger.String("frequency", string(bucket)),
		)
		return
	}
	defer s.runMu.Unlock()

	if _, err := s.runner.RunDue(s.ctx, types); err != nil {
		s.logger.Error("Scheduled crawl run failed",
			logger.String("frequency", string(bucket)),
			logger.Error(err),
		)
	}
}

// RunManualCrawl runs an on-demand crawl, bypassing frequency buckets.
// It returns an operator-facing outcome message.
func (s *Scheduler) RunManualCrawl(
	ctx context.Context,
	types []models.SourceType,
	ids []string,
) (*crawl.RunSummary, bool, string) {
	if !s.runMu.TryLock() {
		return nil, false, "a crawl run is already in flight"
	}
	defer s.runMu.Unlock()

	summary, err := s.runner.RunManual(ctx, types, ids)
	if err != nil {
		return nil, false, fmt.Sprintf("crawl failed: %v", err)
	}

	msg := fmt.Sprintf("crawled %d sources: %d found, %d stored, %d rejected, %d errors",
		len(summary.Sources), summary.Found, summary.Stored, summary.Rejected, summary.Errors)
	return summary, true, msg
}

// UpdateSourceTypeFrequency rebinds a source type to a frequency bucket.
// Unrecognized values are rejected, not clamped.
func (s *Scheduler) UpdateSourceTypeFrequency(sourceType models.SourceType, freq Frequency) error {
	if !sourceType.Valid() {
		return fmt.Errorf("unknown source type %q", sourceType)
	}
	if !freq.Valid() {
		return fmt.Errorf("unknown frequency %q", freq)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.frequencies[sourceType] = freq
	return nil
}

// ClearAllTriggers stops the cron loop and removes every registered entry.
func (s *Scheduler) ClearAllTriggers() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	for _, id := range s.entries {
		s.cron.Remove(id)
	}
	s.entries = nil
}

// Shutdown cancels any active run and clears triggers.
func (s *Scheduler) Shutdown() {
	s.cancel()
	s.ClearAllTriggers()
}

func (s *Scheduler) typesForFrequency(freq Frequency) []models.SourceType {
	s.mu.Lock()
	defer s.mu.Unlock()

	var types []models.SourceType
	for sourceType, f := range s.frequencies {
		if f == freq {
			types = append(types, sourceType)
		}
	}
	return types
}

// cronSpec builds the cron expression for a bucket, shifted by the stagger
// offset so buckets never fire simultaneously.
func cronSpec(freq Frequency, offset time.Duration) string {
	minute := int(offset.Minutes()) % 60

	switch freq {
	case FreqHourly:
		return fmt.Sprintf("%d * * * *", minute)
	case FreqTwiceDaily:
		return fmt.Sprintf("%d 1,13 * * *", minute)
	case FreqDaily:
		return fmt.Sprintf("%d 2 * * *", minute)
	case FreqWeekly:
		return fmt.Sprintf("%d 3 * * 0", minute)
	default:
		return fmt.Sprintf("%d * * * *", minute)
	}
}
