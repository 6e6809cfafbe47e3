package cryptoscout

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
)

const cgMarketsBody = `[
  {"id":"ethereum","symbol":"ETH","name":"Ethereum","image":"https://img/eth.png",
   "current_price":3500.5,"market_cap_rank":2,"price_change_percentage_1y_in_currency":42.1},
  {"id":"mystery","symbol":"MYS","name":"Mystery","image":"https://img/mys.png",
   "current_price":null,"market_cap_rank":null,"price_change_percentage_1y_in_currency":null},
  {"id":"bitcoin","symbol":"BTC","name":"Bitcoin","image":"https://img/btc.png",
   "current_price":65000,"market_cap_rank":1,"price_change_percentage_1y_in_currency":-5.25}
]`

func newTestCoinGecko(doer HTTPDoer) *CoinGeckoProvider {
	return NewCoinGecko(CoinGeckoOptions{
		BaseURL:    "https://gecko.test",
		Logger:     testLogger(),
		HTTPClient: doer,
	})
}

func TestCoinGeckoGetTopAssetsNormalizes(t *testing.T) {
	p := newTestCoinGecko(doerFunc(func(req *http.Request) (*http.Response, error) {
		if !strings.Contains(req.URL.String(), "/coins/markets?vs_currency=usd") {
			t.Errorf("unexpected url %s", req.URL)
		}
		if !strings.Contains(req.URL.RawQuery, "price_change_percentage=1y") {
			t.Errorf("missing 1y change param: %s", req.URL.RawQuery)
		}
		return jsonResponse(http.StatusOK, cgMarketsBody), nil
	}))

	assets, err := p.GetTopAssets(context.Background(), "USD")
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 3 {
		t.Fatalf("got %d assets, want 3", len(assets))
	}

	// Sorted ascending by rank, unranked last.
	if assets[0].ID != "bitcoin" || assets[1].ID != "ethereum" || assets[2].ID != "mystery" {
		t.Fatalf("order = %s, %s, %s", assets[0].ID, assets[1].ID, assets[2].ID)
	}
	if assets[0].Symbol != "btc" {
		t.Errorf("symbol not lowercased: %q", assets[0].Symbol)
	}
	if assets[2].MarketCapRank != rankUnknown {
		t.Errorf("unranked rank = %d, want sentinel", assets[2].MarketCapRank)
	}
	if assets[2].PriceChangePercentage1y != nil {
		t.Error("expected nil change for asset without 1y data")
	}
	if assets[1].PriceChangePercentage1y == nil {
		t.Fatal("expected 1y change for ethereum")
	}
	if !assets[1].PriceChangePercentage1y.Equal(NewPrice(42.1).Decimal) {
		t.Errorf("eth change = %s, want 42.1", assets[1].PriceChangePercentage1y)
	}
}

func TestCoinGeckoGetTopAssetsCaches(t *testing.T) {
	var calls atomic.Int32
	p := newTestCoinGecko(doerFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return jsonResponse(http.StatusOK, cgMarketsBody), nil
	}))

	for i := 0; i < 3; i++ {
		if _, err := p.GetTopAssets(context.Background(), "usd"); err != nil {
			t.Fatal(err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("upstream calls = %d, want 1", got)
	}
}

func TestCoinGeckoGetTopAssetsUpstreamError(t *testing.T) {
	p := newTestCoinGecko(doerFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusServiceUnavailable, `{"error":"down"}`), nil
	}))

	_, err := p.GetTopAssets(context.Background(), "usd")
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected *UpstreamError, got %v", err)
	}
	if upstream.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", upstream.StatusCode)
	}
}

func TestCoinGeckoInvalidCurrency(t *testing.T) {
	p := newTestCoinGecko(doerFunc(func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	}))

	if _, err := p.GetTopAssets(context.Background(), "  "); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("err = %v, want ErrInvalidCurrency", err)
	}
	if _, err := p.GetSparkline(context.Background(), "bitcoin", "", 30); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("err = %v, want ErrInvalidCurrency", err)
	}
}

func TestCoinGeckoAPIKeyHeader(t *testing.T) {
	p := NewCoinGecko(CoinGeckoOptions{
		APIKey:  "demo-key",
		BaseURL: "https://gecko.test",
		Logger:  testLogger(),
		HTTPClient: doerFunc(func(req *http.Request) (*http.Response, error) {
			if got := req.Header.Get("x-cg-demo-api-key"); got != "demo-key" {
				t.Errorf("x-cg-demo-api-key = %q", got)
			}
			return jsonResponse(http.StatusOK, `[]`), nil
		}),
	})
	if _, err := p.GetTopAssets(context.Background(), "usd"); err != nil {
		t.Fatal(err)
	}
}

func TestCoinGeckoGetSparkline(t *testing.T) {
	var calls atomic.Int32
	p := newTestCoinGecko(doerFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		wantPath := "/coins/bitcoin/market_chart"
		if !strings.Contains(req.URL.Path, wantPath) {
			t.Errorf("path = %s, want %s", req.URL.Path, wantPath)
		}
		if !strings.Contains(req.URL.RawQuery, "days=30") {
			t.Errorf("query = %s", req.URL.RawQuery)
		}
		return jsonResponse(http.StatusOK,
			`{"prices":[[1700000000000,100.5],[1700086400000,101.25],[1700172800000,99.0]]}`), nil
	}))

	prices, err := p.GetSparkline(context.Background(), "bitcoin", "usd", 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(prices) != 3 {
		t.Fatalf("got %d prices, want 3", len(prices))
	}
	if !prices[0].Equal(NewPrice(100.5).Decimal) || !prices[2].Equal(NewPrice(99.0).Decimal) {
		t.Errorf("prices out of order: %v", prices)
	}

	// Second identical request is a cache hit.
	if _, err := p.GetSparkline(context.Background(), "bitcoin", "usd", 30); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("upstream calls = %d, want 1", got)
	}
}

func TestSortAssetsByRankStable(t *testing.T) {
	assets := []Asset{
		{ID: "a", MarketCapRank: rankUnknown},
		{ID: "b", MarketCapRank: 2},
		{ID: "c", MarketCapRank: rankUnknown},
		{ID: "d", MarketCapRank: 1},
	}
	sortAssetsByRank(assets)

	got := []string{assets[0].ID, assets[1].ID, assets[2].ID, assets[3].ID}
	want := []string{"d", "b", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
