package model

import "time"

// Config is the full runtime configuration. Values come from flags,
// RISKRADAR_* environment variables, and ~/.riskradar/config.yaml,
// highest priority first.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Filter      FilterConfig      `yaml:"filter" mapstructure:"filter"`
	Dedup       DedupConfig       `yaml:"dedup" mapstructure:"dedup"`
	Score       ScoreConfig       `yaml:"score" mapstructure:"score"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Database    DatabaseConfig    `yaml:"database" mapstructure:"database"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
}

// HTTPConfig controls outbound feed fetching.
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	CheckRobots  bool          `yaml:"check_robots" mapstructure:"check_robots"`
}

// ConcurrencyConfig caps parallelism. The hosting environment has hard
// memory/time ceilings, so every knob here is a hard cap, not a hint.
type ConcurrencyConfig struct {
	FeedWorkers       int           `yaml:"feed_workers" mapstructure:"feed_workers"`
	MaxItemsPerFeed   int           `yaml:"max_items_per_feed" mapstructure:"max_items_per_feed"`
	ClassifyBatchSize int           `yaml:"classify_batch_size" mapstructure:"classify_batch_size"`
	BatchDelay        time.Duration `yaml:"batch_delay" mapstructure:"batch_delay"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// FilterConfig controls the intake filter.
type FilterConfig struct {
	MaxAge            time.Duration `yaml:"max_age" mapstructure:"max_age"`
	NonLatinThreshold float64       `yaml:"non_latin_threshold" mapstructure:"non_latin_threshold"`
	MaxSummaryLen     int           `yaml:"max_summary_len" mapstructure:"max_summary_len"`
}

// DedupConfig controls near-duplicate detection.
type DedupConfig struct {
	TTL                 time.Duration `yaml:"ttl" mapstructure:"ttl"`
	SimilarityThreshold float64       `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	RecentWindow        int           `yaml:"recent_window" mapstructure:"recent_window"`
}

// ScoreConfig controls pre-AI relevance scoring.
type ScoreConfig struct {
	Threshold int  `yaml:"threshold" mapstructure:"threshold"`
	Enabled   bool `yaml:"enabled" mapstructure:"enabled"`
}

// CacheConfig controls the two-layer classification cache.
type CacheConfig struct {
	TTL              time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MemoryTTL        time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	MinCategoryScore int           `yaml:"min_category_score" mapstructure:"min_category_score"`
}

// LLMConfig configures the AI classifier provider.
type LLMConfig struct {
	Provider      string        `yaml:"provider" mapstructure:"provider"`
	Model         string        `yaml:"model" mapstructure:"model"`
	APIKey        string        `yaml:"-" mapstructure:"api_key"`
	BaseURL       string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens     int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	MinConfidence int           `yaml:"min_confidence" mapstructure:"min_confidence"` // 0..100
}

// DatabaseConfig points at the Postgres store. Empty URL selects the
// in-memory store (local runs and tests).
type DatabaseConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// ServerConfig configures the HTTP trigger endpoint.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      10 * time.Second,
			UserAgent:    "RiskRadar/1.0 (+https://github.com/oseghale/riskradar)",
			MaxBodyBytes: 2_000_000,
			CheckRobots:  true,
		},
		Concurrency: ConcurrencyConfig{
			FeedWorkers:       3,
			MaxItemsPerFeed:   10,
			ClassifyBatchSize: 2,
			BatchDelay:        1500 * time.Millisecond,
			RequestsPerSecond: 1,
		},
		Filter: FilterConfig{
			MaxAge:            7 * 24 * time.Hour,
			NonLatinThreshold: 0.4,
			MaxSummaryLen:     500,
		},
		Dedup: DedupConfig{
			TTL:                 7 * 24 * time.Hour,
			SimilarityThreshold: 0.7,
			RecentWindow:        100,
		},
		Score: ScoreConfig{
			Threshold: 30,
			Enabled:   true,
		},
		Cache: CacheConfig{
			TTL:              7 * 24 * time.Hour,
			MemoryTTL:        10 * time.Minute,
			MinCategoryScore: 50,
		},
		LLM: LLMConfig{
			Provider:      "openai",
			Model:         "gpt-4o-mini",
			Timeout:       30 * time.Second,
			MaxTokens:     1500,
			MinConfidence: 60,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}
