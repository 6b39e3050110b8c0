// Package config loads the newsrag configuration from YAML. A loaded Config is
// validated once and treated as immutable afterwards.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/newsrag/core"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Category modes.
const (
	ModePages    = "pages"
	ModeLoadMore = "load_more"
)

// Ledger backends.
const (
	LedgerBadger = "badger"
	LedgerRedis  = "redis"
)

// Asset store kinds.
const (
	AssetsLocal = "local"
	AssetsS3    = "s3"
)

// DefaultLinkSelector finds article links on listing pages.
const DefaultLinkSelector = "article > div:nth-of-type(2) > a:nth-of-type(2)"

type Config struct {
	Scraping  Scraping  `yaml:"scraping"`
	Models    Models    `yaml:"models"`
	Database  Database  `yaml:"database"`
	Assets    Assets    `yaml:"assets"`
	Ingestion Ingestion `yaml:"ingestion"`
	Retrieval Retrieval `yaml:"retrieval"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

type Scraping struct {
	BaseURL         string        `yaml:"base_url"`
	UserAgent       string        `yaml:"user_agent"`
	Categories      []Category    `yaml:"categories"`
	Feeds           []string      `yaml:"feeds"`
	MaxArticles     int           `yaml:"max_articles"`
	Delay           time.Duration `yaml:"delay"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay"`
	TitleSelector   string        `yaml:"title_selector"`
	ContentSelector string        `yaml:"content_selector"`
	LoadMoreText    string        `yaml:"load_more_text"`
	Browser         bool          `yaml:"browser"`
}

// Category is one listing walked by the scrape job.
type Category struct {
	Path         string `yaml:"path"`
	Mode         string `yaml:"mode"`
	LinkSelector string `yaml:"link_selector"`
}

// Selector returns the link selector, falling back to DefaultLinkSelector.
func (c Category) Selector() string {
	if c.LinkSelector == "" {
		return DefaultLinkSelector
	}
	return c.LinkSelector
}

type Models struct {
	EmbeddingHost   string        `yaml:"embedding_host"`
	TextModel       string        `yaml:"text_model"`
	ImageModel      string        `yaml:"image_model"`
	CompletionHost  string        `yaml:"completion_host"`
	CompletionModel string        `yaml:"completion_model"`
	APIKeyEnv       string        `yaml:"api_key_env"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxTextChars    int           `yaml:"max_text_chars"`
	MaxImageBytes   int           `yaml:"max_image_bytes"`
	MaxTokens       int           `yaml:"max_tokens"`
	Temperature     float64       `yaml:"temperature"`
}

// APIKey reads the key from the configured environment variable.
func (m Models) APIKey() string {
	if m.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(m.APIKeyEnv)
}

type Database struct {
	Path         string `yaml:"path"`
	ArticlesPath string `yaml:"articles_path"`
	Ledger       string `yaml:"ledger"`
	Redis        Redis  `yaml:"redis"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

type Assets struct {
	Kind         string `yaml:"kind"`
	Dir          string `yaml:"dir"`
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Prefix       string `yaml:"prefix"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

type Ingestion struct {
	PoolSize         int     `yaml:"pool_size"`
	BatchSize        int     `yaml:"batch_size"`
	MaxFailureRatio  float64 `yaml:"max_failure_ratio"`
	MinFailureSample int     `yaml:"min_failure_sample"`
}

type Retrieval struct {
	ResultCount         int     `yaml:"result_count"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	ContextResults      int     `yaml:"context_results"`
	Grouped             bool    `yaml:"grouped"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Parse(nil)
	if err != nil {
		panic(fmt.Sprintf("invalid embedded default config: %v", err))
	}
	return cfg
}

// Load reads a config YAML file layered over the defaults. An empty path
// yields the defaults. A .env file in the working directory is loaded first
// so that api_key_env can name a variable defined there.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: loading .env: %w", core.ErrConfiguration, err)
	}

	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading config: %w", core.ErrConfiguration, err)
		}
	}
	return Parse(data)
}

// Parse decodes YAML bytes over the embedded defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(DefaultConfigYAML, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing defaults: %w", core.ErrConfiguration, err)
	}
	if len(data) > 0 {
		// Lists replace rather than merge, so a file that sets categories owns them.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config: %w", core.ErrConfiguration, err)
		}
	}
	cfg.Scraping.BaseURL = strings.TrimRight(cfg.Scraping.BaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values no component can work with.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	s := c.Scraping
	check(s.BaseURL != "", "scraping.base_url is required")
	check(s.MaxArticles > 0, "scraping.max_articles must be positive")
	check(s.Delay >= 0, "scraping.delay must not be negative")
	check(s.RequestTimeout > 0, "scraping.request_timeout must be positive")
	check(s.MaxRetries >= 0, "scraping.max_retries must not be negative")
	check(s.RetryBaseDelay >= 0, "scraping.retry_base_delay must not be negative")
	for i, cat := range s.Categories {
		check(cat.Mode == ModePages || cat.Mode == ModeLoadMore,
			"scraping.categories[%d].mode must be %q or %q, got %q", i, ModePages, ModeLoadMore, cat.Mode)
	}

	m := c.Models
	check(m.EmbeddingHost != "", "models.embedding_host is required")
	check(m.TextModel != "", "models.text_model is required")
	check(m.ImageModel != "", "models.image_model is required")
	check(m.CompletionModel != "", "models.completion_model is required")
	check(m.Timeout > 0, "models.timeout must be positive")
	check(m.MaxTextChars > 0, "models.max_text_chars must be positive")
	check(m.MaxImageBytes > 0, "models.max_image_bytes must be positive")
	check(m.MaxTokens > 0, "models.max_tokens must be positive")
	check(m.Temperature >= 0 && m.Temperature <= 2, "models.temperature must be within [0, 2]")

	d := c.Database
	check(d.Path != "", "database.path is required")
	check(d.ArticlesPath != "", "database.articles_path is required")
	check(d.Ledger == LedgerBadger || d.Ledger == LedgerRedis,
		"database.ledger must be %q or %q, got %q", LedgerBadger, LedgerRedis, d.Ledger)
	if d.Ledger == LedgerRedis {
		check(d.Redis.Addr != "", "database.redis.addr is required for the redis ledger")
	}

	a := c.Assets
	switch a.Kind {
	case AssetsLocal:
		check(a.Dir != "", "assets.dir is required for local assets")
	case AssetsS3:
		check(a.Bucket != "", "assets.bucket is required for s3 assets")
	default:
		errs = append(errs, fmt.Errorf("assets.kind must be %q or %q, got %q", AssetsLocal, AssetsS3, a.Kind))
	}

	in := c.Ingestion
	check(in.PoolSize > 0, "ingestion.pool_size must be positive")
	check(in.BatchSize > 0, "ingestion.batch_size must be positive")
	check(in.MaxFailureRatio > 0 && in.MaxFailureRatio <= 1, "ingestion.max_failure_ratio must be within (0, 1]")
	check(in.MinFailureSample >= 0, "ingestion.min_failure_sample must not be negative")

	r := c.Retrieval
	check(r.ResultCount > 0, "retrieval.result_count must be positive")
	check(r.SimilarityThreshold >= 0 && r.SimilarityThreshold <= 1, "retrieval.similarity_threshold must be within [0, 1]")
	check(r.ContextResults > 0, "retrieval.context_results must be positive")

	check(c.Server.Addr != "", "server.addr is required")

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", core.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// ContextLimit returns how many retrieved results feed the synthesizer.
func (r Retrieval) ContextLimit() int {
	if r.ContextResults > r.ResultCount {
		return r.ResultCount
	}
	return r.ContextResults
}
