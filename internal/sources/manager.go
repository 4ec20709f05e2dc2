// Package sources owns the set of content sources, their fetch state, and
// adaptive fetch-interval calculation.
package sources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/godigest/internal/config"
	"github.com/jonesrussell/godigest/internal/logger"
	"github.com/jonesrussell/godigest/internal/models"
)

// Repo is the persistence surface the manager reads and mutates sources
// through. The pipeline never creates or deletes sources.
type Repo interface {
	ListActive(ctx context.Context) ([]models.Source, error)
	GetByID(ctx context.Context, id string) (*models.Source, error)
	UpdateFetchState(ctx context.Context, source *models.Source) error
}

// FetchStats summarizes one fetch attempt against a source.
type FetchStats struct {
	ItemsFound    int
	ItemsNew      int
	ItemsStored   int
	ItemsRejected int
	ErrorCount    int
	Duration      time.Duration
}

// Manager owns source fetch state. Status updates are serialized per
// source id; sources are independent of each other, so no global lock is
// held across them.
type Manager struct {
	repo   Repo
	cfg    config.SourcesConfig
	logger logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a source manager.
func NewManager(repo Repo, cfg config.SourcesConfig, log logger.Logger) *Manager {
	return &Manager{
		repo:   repo,
		cfg:    cfg,
		logger: log,
		locks:  make(map[string]*sync.Mutex),
	}
}

// LoadActiveSources returns all active sources.
func (m *Manager) LoadActiveSources(ctx context.Context) ([]models.Source, error) {
	return m.repo.ListActive(ctx)
}

// GetSource returns one source.
func (m *Manager) GetSource(ctx context.Context, id string) (*models.Source, error) {
	return m.repo.GetByID(ctx, id)
}

// GetDueSources returns the active sources whose fetch interval has
// elapsed at now. A source with last_fetch + fetch_interval > now is never
// included.
func (m *Manager) GetDueSources(ctx context.Context, now time.Time) ([]models.Source, error) {
	active, err := m.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active sources: %w", err)
	}

	due := make([]models.Source, 0, len(active))
	for _, source := range active {
		if source.Due(now) {
			due = append(due, source)
		}
	}
	return due, nil
}

// UpdateSourceStatus records a fetch attempt's outcome and recomputes the
// source's next interval. fetch_count increments on every attempt, success
// or failure.
func (m *Manager) UpdateSourceStatus(
	ctx context.Context,
	sourceID string,
	success bool,
	stats FetchStats,
) error {
	lock := m.sourceLock(sourceID)
	lock.Lock()
	defer lock.Unlock()

	source, err := m.repo.GetByID(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("load source %s: %w", sourceID, err)
	}

	now := time.Now().UTC()
	source.LastFetch = &now
	source.FetchCount++
	if success {
		source.LastStatus = models.FetchStatusSuccess
		source.FetchInterval = m.NextInterval(source, stats)
	} else {
		source.LastStatus = models.FetchStatusFailed
		// Transient fetch errors retry on the next due cycle; the
		// interval is left alone.
	}
	source.ClampInterval()

	if err := m.repo.UpdateFetchState(ctx, source); err != nil {
		return fmt.Errorf("persist source %s fetch state: %w", sourceID, err)
	}

	m.logger.Debug("Source status updated",
		logger.String("source_id", sourceID),
		logger.Bool("success", success),
		logger.Int("items_found", stats.ItemsFound),
		logger.Int("items_new", stats.ItemsNew),
		logger.Int64("fetch_interval_s", source.FetchInterval),
	)
	return nil
}

// NextInterval applies the multiplicative-increase/decrease controller:
// a source that yielded items but nothing new backs off; a source hot with
// new items is polled more often. The result always stays inside the
// source's [min, max] bounds.
func (m *Manager) NextInterval(source *models.Source, stats FetchStats) int64 {
	interval := source.FetchInterval

	switch {
	case stats.ItemsFound > 0 && stats.ItemsNew == 0:
		interval = int64(float64(interval) * m.cfg.BackOffFactor)
	case stats.ItemsNew > m.cfg.HotThreshold:
		interval = int64(float64(interval) * m.cfg.SpeedUpFactor)
	}

	if interval < source.MinInterval {
		interval = source.MinInterval
	}
	if interval > source.MaxInterval {
		interval = source.MaxInterval
	}
	return interval
}

func (m *Manager) sourceLock(sourceID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[sourceID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[sourceID] = lock
	}
	return lock
}
