package application

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ExchangeRateConfig configures the rate source.
type ExchangeRateConfig struct {
	URL      string        `yaml:"url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ExportConfig configures spreadsheet, PDF and CSV exports.
type ExportConfig struct {
	DateLayout string `yaml:"date_layout"`
	Title      string `yaml:"title"`
}

// Config defines ledger configuration.
type Config struct {
	ExchangeRate           ExchangeRateConfig `yaml:"exchange_rate"`
	DefaultRejectionReason string             `yaml:"default_rejection_reason"`
	RateHistoryLimit       int                `yaml:"rate_history_limit"`
	Export                 ExportConfig       `yaml:"export"`
}

// LoadConfig loads config from env, then overlays LEDGER_CONFIG when set.
func LoadConfig() (Config, error) {
	cfg := Config{
		ExchangeRate: ExchangeRateConfig{
			URL:      getenvDefault("EXCHANGE_RATE_URL", "https://api.bluelytics.com.ar/v2/latest"),
			CacheTTL: getenvDuration("EXCHANGE_RATE_CACHE_TTL", 60*time.Minute),
			Timeout:  getenvDuration("EXCHANGE_RATE_TIMEOUT", 10*time.Second),
		},
		DefaultRejectionReason: "Rejected by admin",
		RateHistoryLimit:       getenvIntDefault("EXCHANGE_RATE_HISTORY_LIMIT", 100),
		Export: ExportConfig{
			DateLayout: "2006-01-02",
			Title:      "Project ledger",
		},
	}

	if path := os.Getenv("LEDGER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.ExchangeRate.URL == "" {
		return cfg, errors.New("ledger config: exchange rate url required")
	}
	if cfg.ExchangeRate.CacheTTL <= 0 {
		cfg.ExchangeRate.CacheTTL = 60 * time.Minute
	}
	if cfg.ExchangeRate.Timeout <= 0 {
		cfg.ExchangeRate.Timeout = 10 * time.Second
	}
	if cfg.RateHistoryLimit <= 0 {
		cfg.RateHistoryLimit = 100
	}
	if cfg.Export.DateLayout == "" {
		cfg.Export.DateLayout = "2006-01-02"
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
