package config

// Config is the root configuration for the harvest engine.
type Config struct {
	Jira     JiraConfig               `yaml:"jira"`
	Scrape   ScrapeConfig             `yaml:"scrape"`
	Output   OutputConfig             `yaml:"output"`
	Cache    CacheConfig              `yaml:"cache"`
	Projects map[string]ProjectConfig `yaml:"projects"`
}

// JiraConfig contains settings for the Jira instance being scraped. The
// defaults target the public Apache Software Foundation tracker; point
// BaseURL elsewhere for self-hosted instances.
type JiraConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`

	// RateLimit is the minimum spacing between requests, in seconds.
	// Fractional values are allowed; zero disables rate limiting.
	RateLimit float64 `yaml:"rate_limit"`

	// Timeout is the per-request timeout in seconds.
	Timeout int `yaml:"timeout"`

	MaxRetries int `yaml:"max_retries"`
}

// ScrapeConfig controls the orchestration of a run.
type ScrapeConfig struct {
	Concurrency int    `yaml:"concurrency"`
	PageSize    int    `yaml:"page_size"`
	SaveEvery   int    `yaml:"save_every"`
	StateFile   string `yaml:"state_file"`
}

// OutputConfig controls where the dataset is written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// CacheConfig enables the optional Redis response cache when RedisAddr
// is set. TTL is in seconds.
type CacheConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	TTL       int    `yaml:"ttl"`
}

// ProjectConfig contains per-project overrides. A project-specific limit
// is useful when one tracker dwarfs the others in a combined dataset.
type ProjectConfig struct {
	Limit int `yaml:"limit"`
}

// DefaultConfig returns a Config with defaults suitable for scraping the
// public Apache Jira without tripping its rate limits.
func DefaultConfig() *Config {
	return &Config{
		Jira: JiraConfig{
			BaseURL:    "https://issues.apache.org/jira",
			UserAgent:  "jira-harvest/1.0 (dataset builder)",
			RateLimit:  1.0,
			Timeout:    30,
			MaxRetries: 5,
		},
		Scrape: ScrapeConfig{
			Concurrency: 5,
			PageSize:    50,
			SaveEvery:   20,
			StateFile:   "scrape_state.json",
		},
		Output: OutputConfig{
			Dir: "dataset",
		},
		Cache: CacheConfig{
			TTL: 300,
		},
		Projects: make(map[string]ProjectConfig),
	}
}
