package cryptoscout

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Options controls Core initialization.
type Options struct {
	// Provider is the market data source, selected at composition time.
	Provider DataProvider
	// AI configures the chat-completion upstream; ignored when Completion
	// is injected directly.
	AI     AIConfig
	Logger *slog.Logger
	// Currency is the quote currency for all market data (default "usd").
	Currency string
	// RecommendationTTL bounds how long the last recommendation grounds
	// chat turns (default 30m, the slower market cache cadence).
	RecommendationTTL time.Duration
	// Completion overrides the AI client (testing).
	Completion completionClient
}

// Core wires the data provider, recommender and chat grounding cache
// behind the operations the HTTP layer exposes. Construct one per process
// and share it across requests.
type Core struct {
	provider    DataProvider
	logger      *slog.Logger
	currency    string
	completion  completionClient
	recommender *recommender
	lastReco    *recommendationCache
}

// New initializes a Core using the provided options.
func New(opts Options) (*Core, error) {
	if opts.Provider == nil {
		return nil, errors.New("data provider is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	currency := normalizeCurrency(opts.Currency)
	if currency == "" {
		currency = "usd"
	}

	completion := opts.Completion
	if completion == nil {
		client, err := newAIClient(opts.AI, logger)
		if err != nil {
			return nil, err
		}
		completion = client
	}

	return &Core{
		provider:    opts.Provider,
		logger:      logger,
		currency:    currency,
		completion:  completion,
		recommender: newRecommender(completion, logger),
		lastReco:    newRecommendationCache(opts.RecommendationTTL),
	}, nil
}

// ProviderName returns the active data source name.
func (c *Core) ProviderName() string {
	return c.provider.Name()
}

// GetTopAssets returns the top assets sorted ascending by market-cap rank.
func (c *Core) GetTopAssets(ctx context.Context) ([]Asset, error) {
	return c.provider.GetTopAssets(ctx, c.currency)
}

// GetSparkline returns daily prices for one asset in chronological order.
// Any fetch failure yields an empty series; callers treat empty as
// "unavailable", not as an error.
func (c *Core) GetSparkline(ctx context.Context, id string, days int) []Price {
	prices, err := c.provider.GetSparkline(ctx, id, c.currency, days)
	if err != nil {
		c.logger.Warn("sparkline fetch failed", "id", id, "days", days, "err", err)
		return []Price{}
	}
	if prices == nil {
		prices = []Price{}
	}
	return prices
}

// Recommend fetches the current batch and produces a shortlist
// recommendation. The result is also cached as chat grounding. Only the
// batch fetch can fail; model problems degrade to the heuristic inside.
func (c *Core) Recommend(ctx context.Context, take int) (*RecommendationResult, error) {
	assets, err := c.GetTopAssets(ctx)
	if err != nil {
		return nil, err
	}
	result := c.recommender.Recommend(ctx, assets, take)
	c.lastReco.set(result)
	return result, nil
}
