// Package config provides configuration management for the harvest engine
// with support for multiple configuration sources and a well-defined
// precedence order.
//
// Configuration sources (in precedence order, highest to lowest):
//  1. Command-line flags
//  2. Environment variables
//  3. Configuration file
//  4. Built-in defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration and applies sources in precedence order. If
// configPath is provided, it loads from that specific file. Otherwise, it
// searches standard locations:
//   - .jira-harvest.yaml (current directory)
//   - .jira-harvest.yml (current directory)
//   - ~/.jira-harvest/config.yaml
//
// Environment variables are applied after the config file. Returns an
// error if the specified config file cannot be loaded, but succeeds with
// defaults when no file exists in the standard locations.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		defaultPaths := []string{
			".jira-harvest.yaml",
			".jira-harvest.yml",
			filepath.Join(os.Getenv("HOME"), ".jira-harvest", "config.yaml"),
		}
		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := loadFile(path, cfg); err != nil {
					return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
				}
				break
			}
		}
	}

	applyEnvOverrides(cfg)

	cfg.Scrape.StateFile = expandPath(cfg.Scrape.StateFile)
	cfg.Output.Dir = expandPath(cfg.Output.Dir)

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if baseURL := os.Getenv("JIRA_BASE_URL"); baseURL != "" {
		cfg.Jira.BaseURL = baseURL
	}
	if userAgent := os.Getenv("JIRA_USER_AGENT"); userAgent != "" {
		cfg.Jira.UserAgent = userAgent
	}
	if rateLimit := os.Getenv("HARVEST_RATE_LIMIT"); rateLimit != "" {
		if v, err := strconv.ParseFloat(rateLimit, 64); err == nil && v >= 0 {
			cfg.Jira.RateLimit = v
		}
	}
	if concurrency := os.Getenv("HARVEST_CONCURRENCY"); concurrency != "" {
		if v, err := parsePositiveInt(concurrency); err == nil {
			cfg.Scrape.Concurrency = v
		}
	}
	if stateFile := os.Getenv("HARVEST_STATE_FILE"); stateFile != "" {
		cfg.Scrape.StateFile = stateFile
	}
	if outputDir := os.Getenv("HARVEST_OUTPUT_DIR"); outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if redisAddr := os.Getenv("HARVEST_REDIS_ADDR"); redisAddr != "" {
		cfg.Cache.RedisAddr = redisAddr
	}
}

// expandPath expands ~ and environment variables in paths.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home := os.Getenv("HOME")
		path = filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

func parsePositiveInt(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse integer from '%s': %w", s, err)
	}
	if i <= 0 {
		return 0, fmt.Errorf("value must be positive, got: %d", i)
	}
	return i, nil
}

// RateLimitInterval returns the configured request spacing as a duration.
func (c *Config) RateLimitInterval() time.Duration {
	return time.Duration(c.Jira.RateLimit * float64(time.Second))
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Jira.Timeout) * time.Second
}

// CacheTTL returns the response cache lifetime as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Second
}

// GetLimit returns the effective per-project issue limit: the project
// override when configured, otherwise fallback.
func (c *Config) GetLimit(project string, fallback int) int {
	if pc, ok := c.Projects[project]; ok && pc.Limit > 0 {
		return pc.Limit
	}
	return fallback
}

// Validate checks the configuration for values the engine cannot run
// with. This should be called after loading to catch bad settings early.
func (c *Config) Validate() error {
	if c.Jira.BaseURL == "" {
		return fmt.Errorf("jira base URL cannot be empty")
	}
	if c.Jira.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.Jira.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got: %g", c.Jira.RateLimit)
	}
	if c.Jira.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive, got: %d", c.Jira.MaxRetries)
	}
	if c.Scrape.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got: %d", c.Scrape.Concurrency)
	}
	if c.Scrape.PageSize <= 0 || c.Scrape.PageSize > 1000 {
		return fmt.Errorf("page size must be in (0, 1000], got: %d", c.Scrape.PageSize)
	}
	if c.Scrape.StateFile == "" {
		return fmt.Errorf("state file path cannot be empty")
	}
	return nil
}
