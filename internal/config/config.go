package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	defaultServerPort      = 8060
	defaultServerTimeout   = 30
	defaultDatabasePort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5
	defaultRedisAddress    = "localhost:6379"

	defaultFetchTimeout     = 30 * time.Second
	defaultWorkers          = 4
	defaultMinInterval      = 30 * time.Minute
	defaultMaxInterval      = 24 * time.Hour
	defaultFetchInterval    = time.Hour
	defaultHotThreshold     = 5
	defaultSpeedUpFactor    = 0.8
	defaultBackOffFactor    = 1.5
	defaultQualityThreshold = 40
	defaultLanguage         = "en"
	defaultMaxAgeDays       = 30
	defaultStagger          = 5 * time.Minute
)

// PipelineVariant selects which per-item processing pipeline runs.
type PipelineVariant string

const (
	// PipelineBasic runs the fixed gate sequence with explicit language and
	// freshness checks.
	PipelineBasic PipelineVariant = "basic"
	// PipelineEnhanced delegates normalize/score/store to an external
	// processing hook.
	PipelineEnhanced PipelineVariant = "enhanced"
)

// Config is the root service configuration.
type Config struct {
	Debug     bool            `env:"APP_DEBUG" yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Crawl     CrawlConfig     `yaml:"crawl"`
	Sources   SourcesConfig   `yaml:"sources"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Host         string        `env:"SERVER_HOST" yaml:"host"`
	Port         int           `env:"SERVER_PORT" yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST"     yaml:"host"`
	Port            int           `env:"DB_PORT"     yaml:"port"`
	User            string        `env:"DB_USER"     yaml:"user"`
	Password        string        `env:"DB_PASSWORD" yaml:"password"`
	DBName          string        `env:"DB_NAME"     yaml:"dbname"`
	SSLMode         string        `env:"DB_SSLMODE"  yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds Redis connection configuration for event mirroring.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS"        yaml:"address"`
	Password string `env:"REDIS_PASSWORD"       yaml:"password"`
	DB       int    `env:"REDIS_DB"             yaml:"db"`
	Enabled  bool   `env:"REDIS_EVENTS_ENABLED" yaml:"enabled"`
}

// CrawlConfig bounds a single crawl run.
type CrawlConfig struct {
	// Workers is the number of sources fetched concurrently.
	Workers int `env:"CRAWL_WORKERS" yaml:"workers"`
	// FetchTimeout bounds one source's fetch.
	FetchTimeout time.Duration `env:"CRAWL_FETCH_TIMEOUT" yaml:"fetch_timeout"`
}

// SourcesConfig holds the adaptive fetch-interval controller parameters.
type SourcesConfig struct {
	MinInterval     time.Duration `yaml:"min_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	DefaultInterval time.Duration `yaml:"default_interval"`
	// HotThreshold is the new-item count above which a source is polled
	// more often.
	HotThreshold int `yaml:"hot_threshold"`
	// SpeedUpFactor multiplies the interval when a source is hot (< 1).
	SpeedUpFactor float64 `yaml:"speed_up_factor"`
	// BackOffFactor multiplies the interval when a source yields nothing
	// new (> 1).
	BackOffFactor float64 `yaml:"back_off_factor"`
}

// PipelineConfig selects and tunes the per-item processing pipeline.
type PipelineConfig struct {
	Variant          PipelineVariant `env:"PIPELINE_VARIANT" yaml:"variant"`
	QualityThreshold int             `yaml:"quality_threshold"`
	// Language restricts the basic pipeline to a single locale.
	Language string `yaml:"language"`
	// MaxAgeDays rejects items older than this in the basic pipeline.
	MaxAgeDays int `yaml:"max_age_days"`
}

// SchedulerConfig holds frequency-bucket settings.
type SchedulerConfig struct {
	// Frequencies overrides the per-source-type default frequency bucket.
	// Keys are source types (feed/api/scrape), values are bucket names
	// (hourly/twice_daily/daily/weekly).
	Frequencies map[string]string `yaml:"frequencies"`
	// Stagger is the offset between consecutive bucket triggers.
	Stagger time.Duration `yaml:"stagger"`
}

func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if c.Server.Port <= 0 {
		return errors.New("server.port is required and must be positive")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.Port <= 0 {
		return errors.New("database.port is required and must be positive")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if c.Crawl.Workers <= 0 {
		return errors.New("crawl.workers must be positive")
	}
	if c.Crawl.FetchTimeout <= 0 {
		return errors.New("crawl.fetch_timeout must be positive")
	}
	if err := c.Sources.validate(); err != nil {
		return err
	}
	if err := c.Pipeline.validate(); err != nil {
		return err
	}
	return c.Scheduler.validate()
}

func (s *SourcesConfig) validate() error {
	if s.MinInterval <= 0 {
		return errors.New("sources.min_interval must be positive")
	}
	if s.MinInterval > s.MaxInterval {
		return fmt.Errorf("sources.min_interval %s exceeds max_interval %s",
			s.MinInterval, s.MaxInterval)
	}
	if s.DefaultInterval < s.MinInterval || s.DefaultInterval > s.MaxInterval {
		return fmt.Errorf("sources.default_interval %s outside [%s, %s]",
			s.DefaultInterval, s.MinInterval, s.MaxInterval)
	}
	if s.SpeedUpFactor <= 0 || s.SpeedUpFactor >= 1 {
		return fmt.Errorf("sources.speed_up_factor %v must be in (0, 1)", s.SpeedUpFactor)
	}
	if s.BackOffFactor <= 1 {
		return fmt.Errorf("sources.back_off_factor %v must be greater than 1", s.BackOffFactor)
	}
	if s.HotThreshold < 1 {
		return errors.New("sources.hot_threshold must be at least 1")
	}
	return nil
}

func (p *PipelineConfig) validate() error {
	switch p.Variant {
	case PipelineBasic, PipelineEnhanced:
	default:
		return fmt.Errorf("pipeline.variant %q is not recognized", p.Variant)
	}
	if p.QualityThreshold < 0 || p.QualityThreshold > 100 {
		return fmt.Errorf("pipeline.quality_threshold %d outside [0, 100]", p.QualityThreshold)
	}
	if p.MaxAgeDays <= 0 {
		return errors.New("pipeline.max_age_days must be positive")
	}
	return nil
}

func (s *SchedulerConfig) validate() error {
	for sourceType, bucket := range s.Frequencies {
		switch sourceType {
		case "feed", "api", "scrape":
		default:
			return fmt.Errorf("scheduler.frequencies: unknown source type %q", sourceType)
		}
		switch bucket {
		case "hourly", "twice_daily", "daily", "weekly":
		default:
			return fmt.Errorf("scheduler.frequencies: unknown frequency %q", bucket)
		}
	}
	if s.Stagger < 0 {
		return errors.New("scheduler.stagger must not be negative")
	}
	return nil
}

// Load reads the YAML config at path, applies defaults and env overrides,
// and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := loadFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	setDefaults(&cfg)

	// Re-apply env overrides after defaults (env always wins).
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultServerTimeout * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultServerTimeout * time.Second
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = defaultDatabasePort
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = defaultConnMaxLifetime * time.Minute
	}
	if cfg.Redis.Address == "" {
		cfg.Redis.Address = defaultRedisAddress
	}
	if cfg.Crawl.Workers == 0 {
		cfg.Crawl.Workers = defaultWorkers
	}
	if cfg.Crawl.FetchTimeout == 0 {
		cfg.Crawl.FetchTimeout = defaultFetchTimeout
	}
	if cfg.Sources.MinInterval == 0 {
		cfg.Sources.MinInterval = defaultMinInterval
	}
	if cfg.Sources.MaxInterval == 0 {
		cfg.Sources.MaxInterval = defaultMaxInterval
	}
	if cfg.Sources.DefaultInterval == 0 {
		cfg.Sources.DefaultInterval = defaultFetchInterval
	}
	if cfg.Sources.HotThreshold == 0 {
		cfg.Sources.HotThreshold = defaultHotThreshold
	}
	if cfg.Sources.SpeedUpFactor == 0 {
		cfg.Sources.SpeedUpFactor = defaultSpeedUpFactor
	}
	if cfg.Sources.BackOffFactor == 0 {
		cfg.Sources.BackOffFactor = defaultBackOffFactor
	}
	if cfg.Pipeline.Variant == "" {
		cfg.Pipeline.Variant = PipelineBasic
	}
	if cfg.Pipeline.QualityThreshold == 0 {
		cfg.Pipeline.QualityThreshold = defaultQualityThreshold
	}
	if cfg.Pipeline.Language == "" {
		cfg.Pipeline.Language = defaultLanguage
	}
	if cfg.Pipeline.MaxAgeDays == 0 {
		cfg.Pipeline.MaxAgeDays = defaultMaxAgeDays
	}
	if cfg.Scheduler.Stagger == 0 {
		cfg.Scheduler.Stagger = defaultStagger
	}
}
