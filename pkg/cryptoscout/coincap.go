package cryptoscout

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const defaultCoinCapBaseURL = "https://api.coincap.io/v2"

// rankFallback is CoinCap's sentinel for an unparsable rank string.
const rankFallback = 10_000

// historyConcurrency bounds in-flight per-asset history requests so a
// 100-asset batch does not open 100 simultaneous connections.
const historyConcurrency = 6

// historyWindow is the lookback used to derive one-year change.
const historyWindow = 365 * 24 * time.Hour

// CoinCapOptions controls CoinCapProvider initialization.
type CoinCapOptions struct {
	// APIKey is an optional bearer token for higher rate limits.
	APIKey     string
	BaseURL    string
	Logger     *slog.Logger
	HTTPClient HTTPDoer // Optional: inject custom client for testing
	// Concurrency overrides the history fan-out bound (testing only).
	Concurrency int
}

// CoinCapProvider serves market data from the CoinCap REST API.
// CoinCap has no native one-year change, so each top-assets batch fans out
// one daily-history request per asset (bounded by a semaphore) and derives
// the change from the earliest and latest closes. The batch caches for a
// long TTL to amortize that fan-out.
type CoinCapProvider struct {
	apiKey      string
	baseURL     string
	logger      *slog.Logger
	client      HTTPDoer
	concurrency int64

	markets    *resultCache[[]Asset]
	sparklines *resultCache[[]Price]
}

// NewCoinCap creates a CoinCap-backed data provider.
func NewCoinCap(opts CoinCapOptions) *CoinCapProvider {
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
		baseURL = defaultCoinCapBaseURL
	}
	concurrency := int64(opts.Concurrency)
	if concurrency <= 0 {
		concurrency = historyConcurrency
	}
	return &CoinCapProvider{
		apiKey:      strings.TrimSpace(opts.APIKey),
		baseURL:     baseURL,
		logger:      logger,
		client:      client,
		concurrency: concurrency,
		markets:     newResultCache[[]Asset](),
		sparklines:  newResultCache[[]Price](),
	}
}

// Name implements DataProvider.
func (p *CoinCapProvider) Name() string { return "coincap" }

type ccAsset struct {
	ID       string `json:"id"`
	Rank     string `json:"rank"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	PriceUSD string `json:"priceUsd"`
}

type ccAssetsResponse struct {
	Data []ccAsset `json:"data"`
}

type ccHistoryPoint struct {
	PriceUSD string `json:"priceUsd"`
	Time     int64  `json:"time"`
}

type ccHistoryResponse struct {
	Data []ccHistoryPoint `json:"data"`
}

// GetTopAssets implements DataProvider. CoinCap quotes in USD only; the
// currency argument participates in validation and the cache key but does
// not change the upstream query.
func (p *CoinCapProvider) GetTopAssets(ctx context.Context, currency string) ([]Asset, error) {
	currency = normalizeCurrency(currency)
	if currency == "" {
		return nil, ErrInvalidCurrency
	}

	key := "markets|" + currency
	if cached, ok := p.markets.get(key); ok {
		return cached, nil
	}

	batch, err := p.fetchAssets(ctx, upstreamMaxLimit)
	if err != nil {
		return nil, err
	}

	end := time.Now()
	start := end.Add(-historyWindow)

	// Fan out one history request per asset. Each goroutine writes only its
	// own index-keyed slot, so the final sort is the only ordering step.
	assets := make([]Asset, len(batch))
	sem := semaphore.NewWeighted(p.concurrency)
	var wg sync.WaitGroup
	for i, raw := range batch {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("coincap history fan-out: %w", err)
		}
		wg.Add(1)
		go func(i int, raw ccAsset) {
			defer wg.Done()
			defer sem.Release(1)
			assets[i] = p.normalizeAsset(ctx, raw, start, end)
		}(i, raw)
	}
	wg.Wait()
	sortAssetsByRank(assets)

	p.markets.set(key, assets, coinCapMarketTTL)
	return assets, nil
}

// normalizeAsset maps one raw listing to an Asset, deriving the one-year
// change from daily history. A history failure degrades only this asset's
// change field to unknown.
func (p *CoinCapProvider) normalizeAsset(ctx context.Context, raw ccAsset, start, end time.Time) Asset {
	price, err := NewPriceFromString(raw.PriceUSD)
	if err != nil {
		price = Price{}
	}
	rank, err := strconv.Atoi(raw.Rank)
	if err != nil || rank <= 0 {
		rank = rankFallback
	}

	var pct1y *Price
	points, err := p.fetchHistory(ctx, raw.ID, start, end)
	if err != nil {
		p.logger.Debug("coincap history failed", "id", raw.ID, "err", err)
	} else if derived, ok := deriveYearChange(points); ok {
		pct1y = &derived
	}

	symbol := strings.ToLower(raw.Symbol)
	return Asset{
		ID:                      raw.ID,
		Symbol:                  symbol,
		Name:                    raw.Name,
		Image:                   fmt.Sprintf("https://assets.coincap.io/assets/icons/%s@2x.png", symbol),
		CurrentPrice:            price,
		MarketCapRank:           rank,
		PriceChangePercentage1y: pct1y,
	}
}

// deriveYearChange computes the percentage change between the earliest and
// latest close. Series with fewer than 3 points or a non-positive first
// close yield no value rather than a division by zero.
func deriveYearChange(points []ccHistoryPoint) (Price, bool) {
	if len(points) < 3 {
		return Price{}, false
	}
	first, err := NewPriceFromString(points[0].PriceUSD)
	if err != nil || !first.IsPositive() {
		return Price{}, false
	}
	last, err := NewPriceFromString(points[len(points)-1].PriceUSD)
	if err != nil {
		return Price{}, false
	}
	return pctChange(first, last), true
}

func (p *CoinCapProvider) fetchAssets(ctx context.Context, limit int) ([]ccAsset, error) {
	endpoint := fmt.Sprintf("%s/assets?limit=%d", p.baseURL, clampLimit(limit))
	var payload ccAssetsResponse
	if err := fetchJSON(ctx, p.client, p.logger, endpoint, p.headers(), &payload); err != nil {
		return nil, fmt.Errorf("coincap assets: %w", err)
	}
	return payload.Data, nil
}

func (p *CoinCapProvider) fetchHistory(ctx context.Context, id string, start, end time.Time) ([]ccHistoryPoint, error) {
	endpoint := fmt.Sprintf(
		"%s/assets/%s/history?interval=d1&start=%d&end=%d",
		p.baseURL, url.PathEscape(id), start.UnixMilli(), end.UnixMilli(),
	)
	var payload ccHistoryResponse
	if err := fetchJSON(ctx, p.client, p.logger, endpoint, p.headers(), &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// GetSparkline implements DataProvider. Prices are USD regardless of
// currency (CoinCap is USD-native).
func (p *CoinCapProvider) GetSparkline(ctx context.Context, id, currency string, days int) ([]Price, error) {
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

	end := time.Now()
	start := end.Add(-time.Duration(days) * 24 * time.Hour)
	points, err := p.fetchHistory(ctx, id, start, end)
	if err != nil {
		return nil, fmt.Errorf("coincap sparkline: %w", err)
	}

	prices := make([]Price, 0, len(points))
	for _, point := range points {
		price, err := NewPriceFromString(point.PriceUSD)
		if err != nil {
			continue
		}
		prices = append(prices, price)
	}

	p.sparklines.set(key, prices, sparklineTTL)
	return prices, nil
}

func (p *CoinCapProvider) headers() map[string]string {
	if p.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}
