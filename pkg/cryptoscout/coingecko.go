package cryptoscout

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

const defaultCoinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGeckoOptions controls CoinGeckoProvider initialization.
type CoinGeckoOptions struct {
	// APIKey is an optional demo API key sent as x-cg-demo-api-key.
	APIKey     string
	BaseURL    string
	Logger     *slog.Logger
	HTTPClient HTTPDoer // Optional: inject custom client for testing
}

// CoinGeckoProvider serves market data from the CoinGecko REST API.
// CoinGecko reports market-cap rank and one-year change natively, so a
// top-assets batch is a single cheap call and caches for a short TTL.
type CoinGeckoProvider struct {
	apiKey  string
	baseURL string
	logger  *slog.Logger
	client  HTTPDoer

	markets    *resultCache[[]Asset]
	sparklines *resultCache[[]Price]
}

// NewCoinGecko creates a CoinGecko-backed data provider.
func NewCoinGecko(opts CoinGeckoOptions) *CoinGeckoProvider {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultCoinGeckoBaseURL
	}
	return &CoinGeckoProvider{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		logger:     logger,
		client:     client,
		markets:    newResultCache[[]Asset](),
		sparklines: newResultCache[[]Price](),
	}
}

// Name implements DataProvider.
func (p *CoinGeckoProvider) Name() string { return "coingecko" }

type cgMarket struct {
	ID                      string   `json:"id"`
	Symbol                  string   `json:"symbol"`
	Name                    string   `json:"name"`
	Image                   string   `json:"image"`
	CurrentPrice            *float64 `json:"current_price"`
	MarketCapRank           *int     `json:"market_cap_rank"`
	PriceChangePercentage1y *float64 `json:"price_change_percentage_1y_in_currency"`
}

type cgMarketChart struct {
	Prices [][2]float64 `json:"prices"`
}

// GetTopAssets implements DataProvider.
func (p *CoinGeckoProvider) GetTopAssets(ctx context.Context, currency string) ([]Asset, error) {
	currency = normalizeCurrency(currency)
	if currency == "" {
		return nil, ErrInvalidCurrency
	}

	key := "markets|" + currency
	if cached, ok := p.markets.get(key); ok {
		return cached, nil
	}

	items, err := p.fetchMarkets(ctx, currency, upstreamMaxLimit)
	if err != nil {
		return nil, err
	}

	assets := make([]Asset, 0, len(items))
	for _, m := range items {
		price := Price{}
		if m.CurrentPrice != nil {
			price = NewPrice(*m.CurrentPrice)
		}
		rank := rankUnknown
		if m.MarketCapRank != nil && *m.MarketCapRank > 0 {
			rank = *m.MarketCapRank
		}
		var pct1y *Price
		if m.PriceChangePercentage1y != nil {
			v := NewPrice(*m.PriceChangePercentage1y)
			pct1y = &v
		}
		assets = append(assets, Asset{
			ID:                      m.ID,
			Symbol:                  strings.ToLower(m.Symbol),
			Name:                    m.Name,
			Image:                   m.Image,
			CurrentPrice:            price,
			MarketCapRank:           rank,
			PriceChangePercentage1y: pct1y,
		})
	}
	sortAssetsByRank(assets)

	p.markets.set(key, assets, coinGeckoMarketTTL)
	return assets, nil
}

// fetchMarkets is the stateless batch fetch; all memoization lives in the
// caching layer above it.
func (p *CoinGeckoProvider) fetchMarkets(ctx context.Context, currency string, limit int) ([]cgMarket, error) {
	endpoint := fmt.Sprintf(
		"%s/coins/markets?vs_currency=%s&order=market_cap_desc&per_page=%d&page=1&price_change_percentage=1y&locale=en",
		p.baseURL, url.QueryEscape(currency), clampLimit(limit),
	)
	var items []cgMarket
	if err := fetchJSON(ctx, p.client, p.logger, endpoint, p.headers(), &items); err != nil {
		return nil, fmt.Errorf("coingecko markets: %w", err)
	}
	return items, nil
}

// GetSparkline implements DataProvider.
func (p *CoinGeckoProvider) GetSparkline(ctx context.Context, id, currency string, days int) ([]Price, error) {
	currency = normalizeCurrency(currency)
	if currency == "" {
		return nil, ErrInvalidCurrency
	}
	if days <= 0 {
		days = 365
	}

	key := fmt.Sprintf("spark|%s|%s|%d", id, currency, days)
	if cached, ok := p.sparklines.get(key); ok {
		return cached, nil
	}

	endpoint := fmt.Sprintf(
		"%s/coins/%s/market_chart?vs_currency=%s&days=%d&interval=daily",
		p.baseURL, url.PathEscape(id), url.QueryEscape(currency), days,
	)
	var chart cgMarketChart
	if err := fetchJSON(ctx, p.client, p.logger, endpoint, p.headers(), &chart); err != nil {
		return nil, fmt.Errorf("coingecko market chart: %w", err)
	}

	// Upstream points are [timestamp, price] pairs already in
	// chronological order.
	prices := make([]Price, 0, len(chart.Prices))
	for _, point := range chart.Prices {
		prices = append(prices, NewPrice(point[1]))
	}

	p.sparklines.set(key, prices, sparklineTTL)
	return prices, nil
}

func (p *CoinGeckoProvider) headers() map[string]string {
	if p.apiKey == "" {
		return nil
	}
	return map[string]string{"x-cg-demo-api-key": p.apiKey}
}

func normalizeCurrency(currency string) string {
	return strings.ToLower(strings.TrimSpace(currency))
}

// sortAssetsByRank orders ascending by market-cap rank. The sort is stable
// so assets with equal rank (including the unranked sentinel) keep their
// upstream order.
func sortAssetsByRank(assets []Asset) {
	sort.SliceStable(assets, func(i, j int) bool {
		return assets[i].MarketCapRank < assets[j].MarketCapRank
	})
}
