// Package config loads application configuration from environment, .env,
// and an optional YAML file via viper, following the project's established
// precedence: flags (bound by the caller) > env vars > config file > defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       App       `mapstructure:"app"`
	Providers Providers `mapstructure:"providers"`
	AI        AI        `mapstructure:"ai"`
	Pipeline  Pipeline  `mapstructure:"pipeline"`
	Logging   Logging   `mapstructure:"logging"`
	CLI       CLI       `mapstructure:"cli"`
	Recorder  Recorder  `mapstructure:"recorder"`
}

// App holds general application configuration.
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// Providers holds per-provider credentials, base URLs, rate limits, and
// domain allow-lists for the four C1 adapters.
type Providers struct {
	PubMed  PubMedConfig  `mapstructure:"pubmed"`
	Exa     ExaConfig     `mapstructure:"exa"`
	Tavily  TavilyConfig  `mapstructure:"tavily"`
	NewsAPI NewsAPIConfig `mapstructure:"newsapi"`
}

// PubMedConfig configures the NCBI Entrez E-utilities adapter.
type PubMedConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	APIKey           string        `mapstructure:"api_key"` // optional, raises the rate limit
	MinCallInterval  time.Duration `mapstructure:"min_call_interval"`
	MaxResultsPerCall int          `mapstructure:"max_results_per_call"`
}

// ExaConfig configures the Exa neural/keyword search-and-contents adapter.
type ExaConfig struct {
	APIKey        string   `mapstructure:"api_key"`
	BaseURL       string   `mapstructure:"base_url"`
	DomainAllow   []string `mapstructure:"domain_allow"`
	DefaultMaxHits int     `mapstructure:"default_max_hits"`
}

// TavilyConfig configures the Tavily advanced-search adapter.
type TavilyConfig struct {
	APIKey      string   `mapstructure:"api_key"`
	BaseURL     string   `mapstructure:"base_url"`
	DomainAllow []string `mapstructure:"domain_allow"`
	SearchDepth string   `mapstructure:"search_depth"`
}

// NewsAPIConfig configures the NewsAPI "everything" endpoint adapter.
type NewsAPIConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	Language    string `mapstructure:"language"`
	MaxReachDays int   `mapstructure:"max_reach_days"` // provider's maximum lookback window
}

// AI holds the Gemini model configuration for the two LLM-backed stages.
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig configures both LLM tiers used by the pipeline: a cheap
// model for date extraction (C4) and a stronger model for relevance
// analysis (C6).
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`

	DateModel       string        `mapstructure:"date_model"`
	DateTemperature float32       `mapstructure:"date_temperature"`
	DateMaxTokens   int32         `mapstructure:"date_max_tokens"`
	DateTimeout     time.Duration `mapstructure:"date_timeout"`

	RelevanceModel       string        `mapstructure:"relevance_model"`
	RelevanceTemperature float32       `mapstructure:"relevance_temperature"`
	RelevanceMaxTokens   int32         `mapstructure:"relevance_max_tokens"`
	RelevanceTimeout     time.Duration `mapstructure:"relevance_timeout"`
}

// Pipeline holds the cross-cutting knobs shared by C2 through C9.
type Pipeline struct {
	DedupThreshold float64       `mapstructure:"dedup_threshold"`
	MinScore       int           `mapstructure:"min_score"`

	DateConcurrency       int `mapstructure:"date_concurrency"`       // P: date resolver worker count
	RelevanceConcurrency  int `mapstructure:"relevance_concurrency"`  // M: relevance analyzer worker count
	ProviderConcurrency   int `mapstructure:"provider_concurrency"`   // cross-provider fan-out width

	SoftDeadline time.Duration `mapstructure:"soft_deadline"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`

	RetryMaxAttempts int           `mapstructure:"retry_max_attempts"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`
}

// Logging holds logging configuration.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// CLI holds CLI-specific configuration.
type CLI struct {
	DefaultMode     string `mapstructure:"default_mode"`
	DefaultProviders []string `mapstructure:"default_providers"`
}

// Recorder configures the C10 append-only metadata log. DatabasePath is
// loaded but not read by the recorder: the CLI opens the log at
// <app.data_dir>/pharmawatch.db.
type Recorder struct {
	DatabasePath string `mapstructure:"database_path"`
}

var globalConfig *Config

// Load reads configuration from (in increasing precedence) defaults, an
// optional config file, .env, and environment variables prefixed
// PHARMAWATCH_.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("warning: error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".pharmawatch")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	viper.SetEnvPrefix("PHARMAWATCH")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

// Get returns the global configuration, loading it with defaults if
// necessary.
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("failed to load configuration: %v", err))
		}
		return cfg
	}
	return globalConfig
}

// Reset clears the global configuration. Used by tests that need a fresh
// load.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

func setDefaults() {
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".pharmawatch-cache")

	// Credentials have empty defaults so viper.Unmarshal picks them up from
	// PHARMAWATCH_* environment variables as well as from the config file.
	viper.SetDefault("ai.gemini.api_key", "")
	viper.SetDefault("providers.pubmed.api_key", "")
	viper.SetDefault("providers.exa.api_key", "")
	viper.SetDefault("providers.tavily.api_key", "")
	viper.SetDefault("providers.newsapi.api_key", "")

	viper.SetDefault("providers.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	viper.SetDefault("providers.pubmed.min_call_interval", "350ms")
	viper.SetDefault("providers.pubmed.max_results_per_call", 50)

	viper.SetDefault("providers.exa.base_url", "https://api.exa.ai")
	viper.SetDefault("providers.exa.default_max_hits", 25)

	viper.SetDefault("providers.tavily.base_url", "https://api.tavily.com")
	viper.SetDefault("providers.tavily.search_depth", "advanced")

	viper.SetDefault("providers.newsapi.base_url", "https://newsapi.org/v2")
	viper.SetDefault("providers.newsapi.language", "en")
	viper.SetDefault("providers.newsapi.max_reach_days", 30)

	viper.SetDefault("ai.gemini.date_model", "gemini-flash-lite-latest")
	viper.SetDefault("ai.gemini.date_temperature", 0.0)
	viper.SetDefault("ai.gemini.date_max_tokens", int32(64))
	viper.SetDefault("ai.gemini.date_timeout", "10s")

	viper.SetDefault("ai.gemini.relevance_model", "gemini-2.0-flash")
	viper.SetDefault("ai.gemini.relevance_temperature", 0.1)
	viper.SetDefault("ai.gemini.relevance_max_tokens", int32(2048))
	viper.SetDefault("ai.gemini.relevance_timeout", "30s")

	viper.SetDefault("pipeline.dedup_threshold", 0.75)
	viper.SetDefault("pipeline.min_score", 40)
	viper.SetDefault("pipeline.date_concurrency", 8)
	viper.SetDefault("pipeline.relevance_concurrency", 5)
	viper.SetDefault("pipeline.provider_concurrency", 4)
	viper.SetDefault("pipeline.soft_deadline", "5m")
	viper.SetDefault("pipeline.http_timeout", "30s")
	viper.SetDefault("pipeline.retry_max_attempts", 3)
	viper.SetDefault("pipeline.retry_base_delay", "250ms")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	viper.SetDefault("cli.default_mode", "standard")
	viper.SetDefault("cli.default_providers", []string{"pubmed", "exa", "tavily", "newsapi"})

	viper.SetDefault("recorder.database_path", ".pharmawatch-cache/runs.db")
}

func validateConfig(cfg *Config) error {
	var errs []string

	if cfg.AI.Gemini.APIKey == "" {
		errs = append(errs, "Gemini API key is required. Set PHARMAWATCH_AI_GEMINI_API_KEY or ai.gemini.api_key in config file.")
	}
	if cfg.Pipeline.DedupThreshold <= 0 || cfg.Pipeline.DedupThreshold > 1 {
		errs = append(errs, fmt.Sprintf("pipeline.dedup_threshold must be in (0,1], got %v", cfg.Pipeline.DedupThreshold))
	}
	if cfg.Pipeline.MinScore < 0 || cfg.Pipeline.MinScore > 100 {
		errs = append(errs, fmt.Sprintf("pipeline.min_score must be in [0,100], got %d", cfg.Pipeline.MinScore))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
