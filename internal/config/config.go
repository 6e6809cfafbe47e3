package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables recognized at startup.
const (
	envOpenAIAPIKey  = "OPENAI_API_KEY"
	envOpenAIModel   = "OPENAI_MODEL"
	envOpenAIBaseURL = "OPENAI_BASE_URL"

	envCoinGeckoAPIKey = "COINGECKO_API_KEY"
	envCoinCapAPIKey   = "COINCAP_API_KEY"

	envProvider = "CRYPTO_SCOUT_PROVIDER"
	envCurrency = "CRYPTO_SCOUT_CURRENCY"
)

const (
	defaultModel    = "gpt-4o-mini"
	defaultProvider = "coincap"
	defaultCurrency = "usd"
)

// Provider names accepted in CRYPTO_SCOUT_PROVIDER.
const (
	ProviderCoinGecko = "coingecko"
	ProviderCoinCap   = "coincap"
)

// Config holds all environment-sourced settings.
type Config struct {
	// Provider selects the market data source.
	Provider string
	// Currency is the quote currency for market data.
	Currency string
	// CoinGeckoAPIKey and CoinCapAPIKey are optional upstream credentials.
	CoinGeckoAPIKey string
	CoinCapAPIKey   string

	// OpenAIAPIKey is required; startup fails without it.
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
}

// Load reads configuration from the environment. A missing chat credential
// is an error the caller must treat as fatal.
func Load() (Config, error) {
	cfg := Config{
		Provider:        strings.ToLower(strings.TrimSpace(os.Getenv(envProvider))),
		Currency:        strings.ToLower(strings.TrimSpace(os.Getenv(envCurrency))),
		CoinGeckoAPIKey: strings.TrimSpace(os.Getenv(envCoinGeckoAPIKey)),
		CoinCapAPIKey:   strings.TrimSpace(os.Getenv(envCoinCapAPIKey)),
		OpenAIAPIKey:    strings.TrimSpace(os.Getenv(envOpenAIAPIKey)),
		OpenAIModel:     strings.TrimSpace(os.Getenv(envOpenAIModel)),
		OpenAIBaseURL:   strings.TrimSpace(os.Getenv(envOpenAIBaseURL)),
	}

	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("%s not set", envOpenAIAPIKey)
	}
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = defaultModel
	}
	if cfg.Provider == "" {
		cfg.Provider = defaultProvider
	}
	if cfg.Provider != ProviderCoinGecko && cfg.Provider != ProviderCoinCap {
		return Config{}, fmt.Errorf("%s must be %q or %q, got %q",
			envProvider, ProviderCoinGecko, ProviderCoinCap, cfg.Provider)
	}
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	return cfg, nil
}
