package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/godigest/internal/config"
	"github.com/jonesrussell/godigest/internal/crawl"
	"github.com/jonesrussell/godigest/internal/dedup"
	"github.com/jonesrussell/godigest/internal/fetch"
	"github.com/jonesrussell/godigest/internal/models"
	"github.com/jonesrussell/godigest/internal/pipeline"
	"github.com/jonesrussell/godigest/internal/repository"
	"github.com/jonesrussell/godigest/internal/scheduler"
	"github.com/jonesrussell/godigest/internal/sources"
	"github.com/jonesrussell/godigest/internal/testhelpers"
)

type fakeSourceRepo struct {
	sources map[string]*models.Source
}

func (f *fakeSourceRepo) ListActive(context.Context) ([]models.Source, error) {
	list := make([]models.Source, 0, len(f.sources))
	for _, s := range f.sources {
		if s.Active {
			list = append(list, *s)
		}
	}
	return list, nil
}

func (f *fakeSourceRepo) GetByID(_ context.Context, id string) (*models.Source, error) {
	s, ok := f.sources[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (f *fakeSourceRepo) UpdateFetchState(_ context.Context, source *models.Source) error {
	stored, ok := f.sources[source.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.LastFetch = source.LastFetch
	stored.LastStatus = source.LastStatus
	stored.FetchInterval = source.FetchInterval
	stored.FetchCount = source.FetchCount
	return nil
}

type fakeAdapter struct{ items []fetch.RawItem }

func (f *fakeAdapter) Fetch(context.Context, *models.Source) ([]fetch.RawItem, error) {
	return f.items, nil
}

type storeAllProcessor struct{}

func (storeAllProcessor) Process(context.Context, *models.Source, fetch.RawItem) pipeline.Outcome {
	return pipeline.Outcome{ContentID: "item-1", Stored: true, New: true}
}

type fakeIndex struct{}

func (fakeIndex) FindByFingerprint(context.Context, string, string) (string, error) {
	return "", repository.ErrNotFound
}

func (fakeIndex) Upsert(context.Context, string, string, int) error { return nil }

type fakeFinder struct {
	items []models.Item
	terms []string
}

func (f *fakeFinder) FindByTitleTerms(_ context.Context, terms []string, _ models.ContentType, _ int) ([]models.Item, error) {
	f.terms = terms
	return f.items, nil
}

type fakeDupLog struct {
	entries  []models.DuplicateLogEntry
	resolved map[string]models.DuplicateResolution
}

func (f *fakeDupLog) Insert(_ context.Context, entry *models.DuplicateLogEntry) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeDupLog) Resolve(_ context.Context, id string, res models.DuplicateResolution) error {
	for _, e := range f.entries {
		if e.ID == id && e.Pending() {
			f.resolved[id] = res
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeDupLog) List(_ context.Context, _ repository.ReportFilter) ([]models.DuplicateLogEntry, error) {
	return f.entries, nil
}

type apiFixture struct {
	router *gin.Engine
	repo   *fakeSourceRepo
	dupLog *fakeDupLog
	finder *fakeFinder
	dbMock sqlmock.Sqlmock
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	log := testhelpers.NewTestLogger()

	repo := &fakeSourceRepo{sources: map[string]*models.Source{
		"src-1": {
			ID:            "src-1",
			Name:          "Example Feed",
			Type:          models.SourceTypeFeed,
			URL:           "https://example.com/feed",
			Active:        true,
			FetchInterval: 3600,
			MinInterval:   1800,
			MaxInterval:   86400,
		},
	}}
	manager := sources.NewManager(repo, config.SourcesConfig{
		MinInterval:     30 * time.Minute,
		MaxInterval:     24 * time.Hour,
		DefaultInterval: time.Hour,
		HotThreshold:    5,
		SpeedUpFactor:   0.8,
		BackOffFactor:   1.5,
	}, log)

	registry := fetch.NewRegistry()
	registry.Register(models.SourceTypeFeed, &fakeAdapter{items: []fetch.RawItem{
		{Type: models.ContentTypeArticle, Title: "Post", Content: "Body.", SourceURL: "https://example.com/p"},
	}})

	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	dbMock.MatchExpectationsInOrder(false)
	metrics := repository.NewMetricsRepository(db, log)

	runner := crawl.NewRunner(manager, registry, storeAllProcessor{}, metrics,
		config.CrawlConfig{Workers: 2, FetchTimeout: 5 * time.Second}, log)

	dupLog := &fakeDupLog{resolved: make(map[string]models.DuplicateResolution)}
	finder := &fakeFinder{}
	deduplicator := dedup.New(fakeIndex{}, finder, dupLog, log)

	sched, err := scheduler.New(runner, config.SchedulerConfig{}, log)
	require.NoError(t, err)

	handler := NewHandler(sched, manager, deduplicator, metrics, log)
	return &apiFixture{
		router: NewRouter(handler, log, false),
		repo:   repo,
		dupLog: dupLog,
		finder: finder,
		dbMock: dbMock,
	}
}

func (f *apiFixture) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestListSources(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/sources", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["count"])
}

func TestTriggerCrawl(t *testing.T) {
	f := newAPIFixture(t)
	f.dbMock.ExpectExec(regexp.QuoteMeta("INSERT INTO source_metrics")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := f.do(http.MethodPost, "/api/v1/crawl", `{"source_ids": ["src-1"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	summary, ok := body["summary"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, summary["found"])
	assert.EqualValues(t, 1, summary["stored"])

	assert.Equal(t, models.FetchStatusSuccess, f.repo.sources["src-1"].LastStatus)
}

func TestTriggerCrawl_EmptyBody(t *testing.T) {
	f := newAPIFixture(t)
	f.dbMock.ExpectExec(regexp.QuoteMeta("INSERT INTO source_metrics")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := f.do(http.MethodPost, "/api/v1/crawl", "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestTriggerCrawl_UnknownSourceType(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/crawl", `{"source_types": ["rss"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerCrawl_MalformedBody(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/crawl", `{"source_ids": "not-an-array"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSourceMetrics(t *testing.T) {
	f := newAPIFixture(t)
	f.dbMock.ExpectQuery(regexp.QuoteMeta("FROM source_metrics")).
		WithArgs("src-1", 7).
		WillReturnRows(sqlmock.NewRows([]string{
			"source_id", "date", "items_found", "items_stored", "items_rejected",
			"processing_time_ms", "error_count",
		}).AddRow("src-1", "2026-08-24", 10, 7, 3, int64(1500), 0))

	rec := f.do(http.MethodGet, "/api/v1/sources/src-1/metrics?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "src-1", body["source_id"])
	metrics, ok := body["metrics"].([]any)
	require.True(t, ok)
	assert.Len(t, metrics, 1)
}

func TestSourceMetrics_InvalidDays(t *testing.T) {
	f := newAPIFixture(t)

	for _, days := range []string{"zero", "0", "-3"} {
		rec := f.do(http.MethodGet, "/api/v1/sources/src-1/metrics?days="+days, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, days)
	}
}

func TestDuplicateReport(t *testing.T) {
	f := newAPIFixture(t)
	f.dupLog.entries = []models.DuplicateLogEntry{
		{ID: "dup-1", ContentID: "new-1", DuplicateID: "old-1", Fingerprint: "fp-a"},
		{ID: "dup-2", ContentID: "new-2", DuplicateID: "old-2", Fingerprint: "fp-a"},
	}

	rec := f.do(http.MethodGet, "/api/v1/duplicates?pending=true", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["count"], "both entries share one fingerprint group")
}

func TestDuplicateReport_InvalidLimit(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/duplicates?limit=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDuplicateCandidates(t *testing.T) {
	f := newAPIFixture(t)
	f.finder.items = []models.Item{
		{ID: "item-1", Title: "Transit Plan Approved by Council"},
		{ID: "item-2", Title: "Council Transit Vote Recap"},
	}

	rec := f.do(http.MethodGet, "/api/v1/duplicates/candidates?title=Transit+Plan+Approved", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["count"])
	assert.Contains(t, f.finder.terms, "transit",
		"the lookup runs on the title's significant terms")
}

func TestDuplicateCandidates_MissingTitle(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/duplicates/candidates", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveDuplicate(t *testing.T) {
	f := newAPIFixture(t)
	f.dupLog.entries = []models.DuplicateLogEntry{
		{ID: "dup-1", ContentID: "new-1", DuplicateID: "old-1", Fingerprint: "fp-a"},
	}

	rec := f.do(http.MethodPost, "/api/v1/duplicates/dup-1/resolve",
		`{"resolution": "kept_existing"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.ResolutionKeptExisting, f.dupLog.resolved["dup-1"])
}

func TestResolveDuplicate_UnknownResolution(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/duplicates/dup-1/resolve",
		`{"resolution": "coin_flip"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveDuplicate_NotFound(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/duplicates/missing/resolve",
		`{"resolution": "ignored"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
