package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
server:
  host: "127.0.0.1"
  port: 8060
database:
  host: "localhost"
  user: "godigest"
  dbname: "godigest"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 4, cfg.Crawl.Workers)
	assert.Equal(t, 30*time.Second, cfg.Crawl.FetchTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Sources.MinInterval)
	assert.Equal(t, 24*time.Hour, cfg.Sources.MaxInterval)
	assert.Equal(t, time.Hour, cfg.Sources.DefaultInterval)
	assert.Equal(t, 5, cfg.Sources.HotThreshold)
	assert.InDelta(t, 0.8, cfg.Sources.SpeedUpFactor, 1e-9)
	assert.InDelta(t, 1.5, cfg.Sources.BackOffFactor, 1e-9)
	assert.Equal(t, PipelineBasic, cfg.Pipeline.Variant)
	assert.Equal(t, 40, cfg.Pipeline.QualityThreshold)
	assert.Equal(t, "en", cfg.Pipeline.Language)
	assert.Equal(t, 30, cfg.Pipeline.MaxAgeDays)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.Stagger)
}

func TestLoad_YAMLValuesKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML+`
crawl:
  workers: 8
pipeline:
  variant: enhanced
  quality_threshold: 60
scheduler:
  stagger: 10m
  frequencies:
    scrape: weekly
`))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Crawl.Workers)
	assert.Equal(t, PipelineEnhanced, cfg.Pipeline.Variant)
	assert.Equal(t, 60, cfg.Pipeline.QualityThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.Stagger)
	assert.Equal(t, "weekly", cfg.Scheduler.Frequencies["scrape"])
}

func TestLoad_EnvOverridesWin(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("PIPELINE_VARIANT", "enhanced")
	t.Setenv("CRAWL_FETCH_TIMEOUT", "45s")
	t.Setenv("APP_DEBUG", "true")

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, PipelineEnhanced, cfg.Pipeline.Variant)
	assert.Equal(t, 45*time.Second, cfg.Crawl.FetchTimeout)
	assert.True(t, cfg.Debug)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		extra string
	}{
		{
			name: "min interval above max",
			extra: `
sources:
  min_interval: 48h
  max_interval: 24h
`,
		},
		{
			name: "default interval outside bounds",
			extra: `
sources:
  min_interval: 1h
  max_interval: 2h
  default_interval: 10h
`,
		},
		{
			name: "speed up factor not below one",
			extra: `
sources:
  speed_up_factor: 1.2
`,
		},
		{
			name: "back off factor not above one",
			extra: `
sources:
  back_off_factor: 0.5
`,
		},
		{
			name: "unknown pipeline variant",
			extra: `
pipeline:
  variant: turbo
`,
		},
		{
			name: "quality threshold out of range",
			extra: `
pipeline:
  quality_threshold: 150
`,
		},
		{
			name: "unknown scheduler frequency",
			extra: `
scheduler:
  frequencies:
    feed: yearly
`,
		},
		{
			name: "unknown scheduler source type",
			extra: `
scheduler:
  frequencies:
    rss: hourly
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, minimalYAML+tt.extra))
			assert.Error(t, err)
		})
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing database host", `
server:
  host: "127.0.0.1"
  port: 8060
database:
  user: "u"
  dbname: "d"
`},
		{"missing database user", `
server:
  host: "127.0.0.1"
  port: 8060
database:
  host: "localhost"
  dbname: "d"
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "config.yml", GetConfigPath("config.yml"))

	t.Setenv("CONFIG_PATH", "/etc/godigest/config.yml")
	assert.Equal(t, "/etc/godigest/config.yml", GetConfigPath("config.yml"))
}
