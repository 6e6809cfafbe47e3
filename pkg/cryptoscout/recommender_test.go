package cryptoscout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"testing"
)

// stubCompletion scripts the model reply for recommender and chat tests.
type stubCompletion struct {
	reply string
	err   error

	calls      atomic.Int32
	lastSystem string
	lastMsgs   []ChatMessage
}

func (s *stubCompletion) Complete(_ context.Context, system string, msgs []ChatMessage) (string, error) {
	s.calls.Add(1)
	s.lastSystem = system
	s.lastMsgs = msgs
	return s.reply, s.err
}

// growthAssets builds n assets with a known 1y change, descending from the
// first: asset i has change (n-i)*10 percent.
func growthAssets(n int) []Asset {
	assets := make([]Asset, 0, n)
	for i := 0; i < n; i++ {
		pct := NewPrice(float64(n-i) * 10)
		assets = append(assets, Asset{
			ID:                      fmt.Sprintf("coin%d", i),
			Symbol:                  fmt.Sprintf("c%d", i),
			Name:                    fmt.Sprintf("Coin %d", i),
			MarketCapRank:           i + 1,
			CurrentPrice:            NewPrice(100),
			PriceChangePercentage1y: &pct,
		})
	}
	return assets
}

func TestClampTake(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, defaultTake},
		{-5, minTake},
		{1, 1},
		{10, 10},
		{99, maxTake},
	}
	for _, tt := range tests {
		if got := clampTake(tt.in); got != tt.want {
			t.Errorf("clampTake(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRecommendEmptyPoolSkipsModel(t *testing.T) {
	stub := &stubCompletion{reply: "should not be called"}
	r := newRecommender(stub, testLogger())

	// Assets exist but none has 1y data.
	assets := []Asset{{ID: "a", Symbol: "a"}, {ID: "b", Symbol: "b"}}
	result := r.Recommend(context.Background(), assets, 3)

	if stub.calls.Load() != 0 {
		t.Error("expected no model call for an empty shortlist")
	}
	if len(result.Top) != 0 {
		t.Errorf("picks = %d, want 0", len(result.Top))
	}
	if result.Notes != noPerformanceDataNote {
		t.Errorf("notes = %q", result.Notes)
	}
}

func TestRecommendDirectParse(t *testing.T) {
	stub := &stubCompletion{
		reply: `{"top":[{"symbol":"btc","weight":0.6,"why":"leader"},{"symbol":"eth","weight":0.4,"why":"smart contracts"}],"notes":"volatile market"}`,
	}
	r := newRecommender(stub, testLogger())

	result := r.Recommend(context.Background(), growthAssets(5), 2)
	if len(result.Top) != 2 {
		t.Fatalf("picks = %d, want 2", len(result.Top))
	}
	if result.Top[0].Symbol != "btc" || result.Top[0].Weight != 0.6 {
		t.Errorf("first pick = %+v", result.Top[0])
	}
	if result.Notes != "volatile market" {
		t.Errorf("notes = %q", result.Notes)
	}
}

func TestRecommendExtractsWrappedJSON(t *testing.T) {
	stub := &stubCompletion{
		reply: "Sure! Here are my picks:\n{\"top\":[{\"symbol\":\"btc\",\"weight\":1,\"why\":\"only pick\"}],\"notes\":\"n\"}\nHope that helps.",
	}
	r := newRecommender(stub, testLogger())

	result := r.Recommend(context.Background(), growthAssets(5), 1)
	if len(result.Top) != 1 || result.Top[0].Symbol != "btc" {
		t.Fatalf("result = %+v", result)
	}
}

func TestRecommendGarbageFallsBackToHeuristic(t *testing.T) {
	stub := &stubCompletion{reply: "I cannot answer that in JSON, sorry."}
	r := newRecommender(stub, testLogger())

	take := 4
	result := r.Recommend(context.Background(), growthAssets(8), take)
	if len(result.Top) != take {
		t.Fatalf("picks = %d, want %d", len(result.Top), take)
	}
	// Heuristic picks follow shortlist order: highest 1y growth first.
	if result.Top[0].Symbol != "c0" || result.Top[1].Symbol != "c1" {
		t.Errorf("pick order = %s, %s", result.Top[0].Symbol, result.Top[1].Symbol)
	}
	for _, pick := range result.Top {
		if math.Abs(pick.Weight-1.0/float64(take)) > 1e-9 {
			t.Errorf("weight = %v, want %v", pick.Weight, 1.0/float64(take))
		}
	}
	if !strings.Contains(result.Notes, "non-JSON") {
		t.Errorf("notes = %q, want a non-JSON fallback note", result.Notes)
	}
}

func TestRecommendModelErrorFallsBackToHeuristic(t *testing.T) {
	stub := &stubCompletion{err: errors.New("model unavailable")}
	r := newRecommender(stub, testLogger())

	result := r.Recommend(context.Background(), growthAssets(5), 2)
	if len(result.Top) != 2 {
		t.Fatalf("picks = %d, want 2", len(result.Top))
	}
	if !strings.Contains(result.Notes, "Model call failed") {
		t.Errorf("notes = %q, want a model-failure note", result.Notes)
	}
}

func TestRecommendHeuristicCapsAtPoolSize(t *testing.T) {
	stub := &stubCompletion{reply: "not json"}
	r := newRecommender(stub, testLogger())

	result := r.Recommend(context.Background(), growthAssets(2), 5)
	if len(result.Top) != 2 {
		t.Fatalf("picks = %d, want pool size 2", len(result.Top))
	}
}

func TestRecommendShortlistSortedAndCapped(t *testing.T) {
	// 25 assets in ascending growth order; the prompt must carry the top 20
	// in descending order.
	assets := growthAssets(25)
	for i, j := 0, len(assets)-1; i < j; i, j = i+1, j-1 {
		assets[i], assets[j] = assets[j], assets[i]
	}

	shortlist := buildShortlist(assets)
	if len(shortlist) != shortlistSize {
		t.Fatalf("shortlist = %d entries, want %d", len(shortlist), shortlistSize)
	}
	if shortlist[0].Symbol != "c0" {
		t.Errorf("first entry = %s, want the highest-growth asset", shortlist[0].Symbol)
	}
	for i := 1; i < len(shortlist); i++ {
		if shortlist[i].Change1yPct.GreaterThan(shortlist[i-1].Change1yPct.Decimal) {
			t.Fatalf("shortlist not sorted descending at %d", i)
		}
	}
}

func TestRecommendPromptMentionsTake(t *testing.T) {
	stub := &stubCompletion{reply: `{"top":[{"symbol":"c0","weight":1,"why":"x"}],"notes":""}`}
	r := newRecommender(stub, testLogger())

	r.Recommend(context.Background(), growthAssets(5), 2)
	if len(stub.lastMsgs) != 1 || stub.lastMsgs[0].Role != RoleUser {
		t.Fatalf("msgs = %+v", stub.lastMsgs)
	}
	if !strings.Contains(stub.lastMsgs[0].Content, "Pick the best 2") {
		t.Errorf("prompt missing take: %q", stub.lastMsgs[0].Content)
	}
	if !strings.Contains(stub.lastSystem, "STRICT JSON") {
		t.Errorf("system prompt = %q", stub.lastSystem)
	}
}

func TestExtractFirstJSONObject(t *testing.T) {
	tests := []struct{ in, want string }{
		{`{"a":1}`, `{"a":1}`},
		{`noise {"a":{"b":2}} trailing {"c":3}`, `{"a":{"b":2}}`},
		{"no json here", ""},
		{"{unbalanced", ""},
	}
	for _, tt := range tests {
		if got := extractFirstJSONObject(tt.in); got != tt.want {
			t.Errorf("extractFirstJSONObject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
