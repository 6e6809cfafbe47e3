package cryptoscout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
)

const (
	// shortlistSize is the candidate pool handed to the model.
	shortlistSize = 20

	defaultTake = 3
	minTake     = 1
	maxTake     = 10
)

const recommendSystemPrompt = `You are a cautious crypto analyst. Recommend coins to *consider* (not financial advice).
Prefer larger caps with strong 1y growth; avoid low-liquidity memecoins unless top-50 by market cap.
Output STRICT JSON ONLY. Do not wrap in code fences. Do not include commentary.
JSON SHAPE:
{
  "top": [ { "symbol": "btc", "weight": 0.3, "why": "short reason" } ],
  "notes": "1-2 line risk note"
}
Weights should sum ~1. Keep "symbol" lowercase. Keep explanations concise.`

const (
	noPerformanceDataNote = "No 1-year performance data available from the data source right now."
	heuristicRiskNote     = "Past performance does not guarantee future results; diversify, use position sizing, and review fundamentals and risk."
)

// Pick is one recommended coin with its suggested portfolio weight.
type Pick struct {
	Symbol string  `json:"symbol"`
	Weight float64 `json:"weight"`
	Why    string  `json:"why"`
}

// RecommendationResult is an ordered shortlist of picks plus a risk note.
type RecommendationResult struct {
	Top   []Pick `json:"top"`
	Notes string `json:"notes"`
}

// shortlistEntry is the reduced asset view serialized into the model
// prompt. It exists only for the duration of one recommend call.
type shortlistEntry struct {
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	MarketCapRank int    `json:"marketCapRank"`
	Price         Price  `json:"price"`
	Change1yPct   Price  `json:"change1yPct"`
}

type recommender struct {
	completion completionClient
	logger     *slog.Logger
}

func newRecommender(completion completionClient, logger *slog.Logger) *recommender {
	if logger == nil {
		logger = slog.Default()
	}
	return &recommender{completion: completion, logger: logger}
}

// Recommend builds a ranked shortlist from assets and asks the model to
// pick the best take. Model and parse failures fall back to a deterministic
// heuristic; the caller always receives a result, never an error.
func (r *recommender) Recommend(ctx context.Context, assets []Asset, take int) *RecommendationResult {
	take = clampTake(take)

	shortlist := buildShortlist(assets)
	if len(shortlist) == 0 {
		return &RecommendationResult{Top: []Pick{}, Notes: noPerformanceDataNote}
	}

	userPrompt, err := buildRecommendUserPrompt(shortlist, take)
	if err != nil {
		r.logger.Warn("recommend prompt build failed", "err", err)
		return heuristicResult(shortlist, take, "Model call failed; using heuristic picks.")
	}

	text, err := r.completion.Complete(ctx, recommendSystemPrompt, []ChatMessage{
		{Role: RoleUser, Content: userPrompt},
	})
	if err != nil {
		r.logger.Warn("recommend model call failed", "err", err)
		return heuristicResult(shortlist, take, "Model call failed; using heuristic picks.")
	}

	// Fallback chain: direct parse, then first balanced JSON object pulled
	// out of noisy text, then the heuristic.
	if parsed, ok := parseRecommendation(text); ok && len(parsed.Top) > 0 {
		return parsed
	}
	if inner := extractFirstJSONObject(text); inner != "" {
		if parsed, ok := parseRecommendation(inner); ok && len(parsed.Top) > 0 {
			return parsed
		}
	}
	r.logger.Warn("recommend model output unparseable", "len", len(text))
	return heuristicResult(shortlist, take, "Model returned non-JSON or empty picks; using heuristic picks.")
}

func clampTake(take int) int {
	if take == 0 {
		return defaultTake
	}
	if take < minTake {
		return minTake
	}
	if take > maxTake {
		return maxTake
	}
	return take
}

// buildShortlist filters to assets with a known one-year change, sorts
// descending by that change and keeps the top shortlistSize.
func buildShortlist(assets []Asset) []shortlistEntry {
	known := make([]Asset, 0, len(assets))
	for _, a := range assets {
		if a.PriceChangePercentage1y != nil {
			known = append(known, a)
		}
	}
	sort.SliceStable(known, func(i, j int) bool {
		return known[i].PriceChangePercentage1y.GreaterThan(known[j].PriceChangePercentage1y.Decimal)
	})
	if len(known) > shortlistSize {
		known = known[:shortlistSize]
	}

	shortlist := make([]shortlistEntry, 0, len(known))
	for _, a := range known {
		shortlist = append(shortlist, shortlistEntry{
			Name:          a.Name,
			Symbol:        a.Symbol,
			MarketCapRank: a.MarketCapRank,
			Price:         a.CurrentPrice,
			Change1yPct:   *a.PriceChangePercentage1y,
		})
	}
	return shortlist
}

func buildRecommendUserPrompt(shortlist []shortlistEntry, take int) (string, error) {
	payload, err := json.Marshal(shortlist)
	if err != nil {
		return "", fmt.Errorf("marshal shortlist: %w", err)
	}
	return fmt.Sprintf(`Here is a shortlist (sorted by 1-year growth). Symbols are lowercase:

%s

Pick the best %d and justify briefly. Output only JSON per the shape above.`, payload, take), nil
}

func parseRecommendation(text string) (*RecommendationResult, bool) {
	var result RecommendationResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, false
	}
	if result.Top == nil {
		result.Top = []Pick{}
	}
	return &result, true
}

// extractFirstJSONObject returns the first balanced {...} substring of s,
// or "" when none exists.
func extractFirstJSONObject(s string) string {
	start := -1
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// heuristicResult is the deterministic model-free fallback: the first take
// shortlist entries with equal weights and a templated justification.
func heuristicResult(shortlist []shortlistEntry, take int, reason string) *RecommendationResult {
	if take > len(shortlist) {
		take = len(shortlist)
	}
	picks := make([]Pick, 0, take)
	for _, entry := range shortlist[:take] {
		picks = append(picks, Pick{
			Symbol: entry.Symbol,
			Weight: 1.0 / float64(take),
			Why:    fmt.Sprintf("Strong 1y growth; consider liquidity and risk. (%s)", entry.Name),
		})
	}
	return &RecommendationResult{
		Top:   picks,
		Notes: reason + " " + heuristicRiskNote,
	}
}
