package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stockanalyzer/internal/forecast"
	"stockanalyzer/internal/symbols"
	"stockanalyzer/pkg/model"
)

// Config represents the application configuration
type Config struct {
	API       APIConfig         `yaml:"api"`
	Fetch     FetchConfig       `yaml:"fetch"`
	Exchanges map[string]string `yaml:"exchanges"` // exchange -> symbol suffix
	Universe  UniverseConfig    `yaml:"universe"`
	Analysis  AnalysisConfig    `yaml:"analysis"`
	Cache     CacheConfig       `yaml:"cache"`
	Store     StoreConfig       `yaml:"store"`
	Server    ServerConfig      `yaml:"server"`
	Schedule  ScheduleConfig    `yaml:"schedule"`
}

// APIConfig holds API provider configurations
type APIConfig struct {
	Yahoo        ProviderConfig `yaml:"yahoo"`
	Finnhub      ProviderConfig `yaml:"finnhub"`
	AlphaVantage ProviderConfig `yaml:"alphavantage"`
	Order        []string       `yaml:"order"` // fallback order by provider name
}

// ProviderConfig holds individual provider settings
type ProviderConfig struct {
	Key       string `yaml:"key"`
	RateLimit int    `yaml:"rate_limit"` // requests per minute
	Disabled  bool   `yaml:"disabled"`
}

// FetchConfig holds fetch worker settings
type FetchConfig struct {
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"` // per ticker
}

// UniverseConfig lists selectable tickers and the default selection
type UniverseConfig struct {
	Stocks   []model.Stock `yaml:"stocks"`
	Defaults []string      `yaml:"defaults"`
	Exchange string        `yaml:"exchange"` // applied to bare tickers
}

// AnalysisConfig holds run defaults
type AnalysisConfig struct {
	DefaultStart  string  `yaml:"default_start"` // YYYY-MM-DD
	Horizon       int     `yaml:"horizon"`       // 0 disables forecasting
	Strategy      string  `yaml:"strategy"`
	IntervalWidth float64 `yaml:"interval_width"`
}

// CacheConfig holds result cache settings
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// StoreConfig holds run history settings
type StoreConfig struct {
	Path    string `yaml:"path"`
	Enabled bool   `yaml:"enabled"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ScheduleConfig holds the cache warm-up job
type ScheduleConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Spec      string   `yaml:"spec"` // cron with seconds field
	Watchlist []string `yaml:"watchlist"`
	Period    string   `yaml:"period"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	exchanges := make(map[string]string, len(symbols.DefaultSuffixes))
	for k, v := range symbols.DefaultSuffixes {
		exchanges[k] = v
	}

	return &Config{
		API: APIConfig{
			Yahoo: ProviderConfig{
				RateLimit: 30,
			},
			Finnhub: ProviderConfig{
				Key:       os.Getenv("FINNHUB_API_KEY"),
				RateLimit: 60,
			},
			AlphaVantage: ProviderConfig{
				Key:       os.Getenv("ALPHAVANTAGE_API_KEY"),
				RateLimit: 5,
			},
			Order: []string{"yahoo", "finnhub", "alphavantage"},
		},
		Fetch: FetchConfig{
			Workers: 5,
			Timeout: 20 * time.Second,
		},
		Exchanges: exchanges,
		Universe: UniverseConfig{
			Stocks:   append([]model.Stock(nil), symbols.DefaultStocks...),
			Defaults: append([]string(nil), symbols.DefaultSelection...),
			Exchange: "US",
		},
		Analysis: AnalysisConfig{
			DefaultStart:  "2023-01-01",
			Horizon:       0,
			Strategy:      forecast.StrategyARIMA,
			IntervalWidth: 0.80,
		},
		Cache: CacheConfig{
			TTL: time.Hour,
		},
		Store: StoreConfig{
			Path:    "stockanalyzer.db",
			Enabled: true,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Schedule: ScheduleConfig{
			Enabled:   false,
			Spec:      "0 0 * * * *",
			Watchlist: append([]string(nil), symbols.DefaultSelection...),
			Period:    "1y",
		},
	}
}

// LoadDotEnv loads KEY=VALUE pairs from a .env file into the process
// environment. Variables already set are kept. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Use defaults if file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables if set
func (c *Config) applyEnv() error {
	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		c.API.Finnhub.Key = key
	}
	if key := os.Getenv("ALPHAVANTAGE_API_KEY"); key != "" {
		c.API.AlphaVantage.Key = key
	}
	if path := os.Getenv("STOCKANALYZER_DB"); path != "" {
		c.Store.Path = path
	}
	if port := os.Getenv("STOCKANALYZER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("STOCKANALYZER_PORT: %w", err)
		}
		c.Server.Port = p
	}
	return nil
}

// DefaultStartDate parses Analysis.DefaultStart
func (c *Config) DefaultStartDate() (time.Time, error) {
	return time.Parse(model.DateLayout, c.Analysis.DefaultStart)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.API.Yahoo.Disabled && c.API.Finnhub.Key == "" && c.API.AlphaVantage.Key == "" {
		return fmt.Errorf("no usable provider: enable yahoo or set FINNHUB_API_KEY / ALPHAVANTAGE_API_KEY")
	}
	for _, name := range c.API.Order {
		switch name {
		case "yahoo", "finnhub", "alphavantage":
		default:
			return fmt.Errorf("unknown provider %q in api.order", name)
		}
	}
	if c.Fetch.Workers < 1 {
		return fmt.Errorf("fetch.workers must be at least 1")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if _, ok := c.Exchanges["US"]; !ok {
		return fmt.Errorf("exchanges must define US")
	}
	if _, err := c.DefaultStartDate(); err != nil {
		return fmt.Errorf("analysis.default_start: %w", err)
	}
	if h := c.Analysis.Horizon; h != 0 {
		if err := forecast.ValidateHorizon(h); err != nil {
			return fmt.Errorf("analysis.horizon: %w", err)
		}
	}
	if _, err := forecast.Get(c.Analysis.Strategy, forecast.DefaultOptions()); err != nil {
		return fmt.Errorf("analysis.strategy: %w", err)
	}
	if w := c.Analysis.IntervalWidth; w <= 0 || w >= 1 {
		return fmt.Errorf("analysis.interval_width must be in (0, 1)")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store.path is required when the store is enabled")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535")
	}
	if c.Schedule.Enabled && c.Schedule.Spec == "" {
		return fmt.Errorf("schedule.spec is required when the schedule is enabled")
	}
	return nil
}
