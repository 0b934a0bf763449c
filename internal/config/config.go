// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration for the scraping core.
type Config struct {
	DatabasePath string
	LogLevel     string
	ListenAddr   string

	ProvidersEnabled ProvidersEnabled

	MaxKeywordsPerRun    int
	MaxTotalURLsPerRun   int
	RunBudget            time.Duration

	CircuitThreshold int
	CircuitCooldown  time.Duration

	RateHTMLRPS float64
	RateAPIRPS  float64
	RateRSSRPS  float64

	FuzzyDedupEnabled   bool
	FuzzyDedupThreshold int
	FuzzyDedupDayWindow int

	DefaultLanguages []string

	GNewsAPIKey    string
	SerpAPIKey     string
	RelevanceKey   string
	RelevanceModel string

	StaleLockWindow time.Duration
}

// ProvidersEnabled toggles each Provider independently.
type ProvidersEnabled struct {
	GNews        bool
	SerpAPI      bool
	RSS          bool
	Configurable bool
}

// Load reads configuration from environment variables, applying the
// defaults from spec §6.2 and §4.2-§4.4.
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath: envOrDefault("DATABASE_PATH", "./data/scraper.db"),
		LogLevel:     envOrDefault("LOG_LEVEL", "info"),
		ListenAddr:   envOrDefault("LISTEN_ADDR", ":8080"),

		MaxKeywordsPerRun:  50,
		MaxTotalURLsPerRun: 200,
		RunBudget:          15 * time.Minute,

		CircuitThreshold: 8,
		CircuitCooldown:  10 * time.Minute,

		RateHTMLRPS: 1.5,
		RateAPIRPS:  3.0,
		RateRSSRPS:  2.0,

		FuzzyDedupEnabled:   true,
		FuzzyDedupThreshold: 92,
		FuzzyDedupDayWindow: 2,

		StaleLockWindow: 180 * time.Minute,
	}

	cfg.ProvidersEnabled.GNews = envBool("SCRAPING_PROVIDER_GNEWS_ENABLED", true)
	cfg.ProvidersEnabled.SerpAPI = envBool("SCRAPING_PROVIDER_SERPAPI_ENABLED", true)
	cfg.ProvidersEnabled.RSS = envBool("SCRAPING_PROVIDER_RSS_ENABLED", true)
	cfg.ProvidersEnabled.Configurable = envBool("SCRAPING_PROVIDER_CONFIGURABLE_ENABLED", true)

	var err error
	if cfg.MaxKeywordsPerRun, err = envInt("SCRAPING_MAX_KEYWORDS_PER_RUN", cfg.MaxKeywordsPerRun); err != nil {
		return nil, err
	}
	if cfg.MaxTotalURLsPerRun, err = envInt("SCRAPING_MAX_TOTAL_URLS_PER_RUN", cfg.MaxTotalURLsPerRun); err != nil {
		return nil, err
	}
	if cfg.CircuitThreshold, err = envInt("SCRAPING_BLIND_DOMAIN_CIRCUIT_THRESHOLD", cfg.CircuitThreshold); err != nil {
		return nil, err
	}
	if cfg.RateHTMLRPS, err = envFloat("SCRAPING_RATE_HTML_RPS", cfg.RateHTMLRPS); err != nil {
		return nil, err
	}
	if cfg.RateAPIRPS, err = envFloat("SCRAPING_RATE_API_RPS", cfg.RateAPIRPS); err != nil {
		return nil, err
	}
	if cfg.RateRSSRPS, err = envFloat("SCRAPING_RATE_RSS_RPS", cfg.RateRSSRPS); err != nil {
		return nil, err
	}
	cfg.FuzzyDedupEnabled = envBool("SCRAPING_FUZZY_DEDUP_ENABLED", cfg.FuzzyDedupEnabled)
	if cfg.FuzzyDedupThreshold, err = envInt("SCRAPING_FUZZY_DEDUP_THRESHOLD", cfg.FuzzyDedupThreshold); err != nil {
		return nil, err
	}
	if cfg.FuzzyDedupDayWindow, err = envInt("SCRAPING_FUZZY_DEDUP_DAY_WINDOW", cfg.FuzzyDedupDayWindow); err != nil {
		return nil, err
	}

	if raw := os.Getenv("SCRAPING_DEFAULT_LANGUAGES"); raw != "" {
		for _, lang := range strings.Split(raw, ",") {
			lang = strings.TrimSpace(lang)
			if lang != "" {
				cfg.DefaultLanguages = append(cfg.DefaultLanguages, lang)
			}
		}
	}

	cfg.GNewsAPIKey = os.Getenv("GNEWS_API_KEY")
	cfg.SerpAPIKey = os.Getenv("SERPAPI_API_KEY")
	cfg.RelevanceKey = os.Getenv("RELEVANCE_API_KEY")
	cfg.RelevanceModel = envOrDefault("RELEVANCE_MODEL", "deepseek-chat")

	// Providers with no credential are disabled regardless of the toggle.
	if cfg.GNewsAPIKey == "" {
		cfg.ProvidersEnabled.GNews = false
	}
	if cfg.SerpAPIKey == "" {
		cfg.ProvidersEnabled.SerpAPI = false
	}

	return cfg, nil
}

// RelevanceFilterEnabled reports whether the optional relevance filter has
// credentials configured. Fail-open semantics (spec §4.9) mean its absence
// never blocks a run; it simply short-circuits to "keep everything".
func (c *Config) RelevanceFilterEnabled() bool {
	return c.RelevanceKey != ""
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}
