package llm

import (
	"context"
	"strings"

	"StockNewsScanner/internal/domain"
	"StockNewsScanner/internal/ports"
)

var (
	bullishWords  = []string{"beats", "tops", "rises", "surges", "jumps", "soars", "outperforms", "upgraded"}
	bearishWords  = []string{"misses", "falls", "drops", "declines", "downgraded", "warns", "cuts", "sinks"}
	emphasisWords = []string{"earnings", "guidance", "forecast", "outlook", "revenue"}
)

// Raw importance above this maps to a full-confidence score.
const maxRawScore = 10

// KeywordClassifier is an offline heuristic strategy: keyword counts
// decide polarity and importance. It shares the Classifier contract
// with the model-backed strategy and serves as its no-API fallback.
type KeywordClassifier struct{}

var _ ports.Classifier = KeywordClassifier{}

// Classify scores the headline alone; the body is ignored on purpose,
// matching the heuristic's design.
func (KeywordClassifier) Classify(_ context.Context, headline, _, _ string) (domain.Analysis, error) {
	lowered := strings.ToLower(headline)

	var bulls, bears int
	var reasons []string
	for _, word := range bullishWords {
		if n := strings.Count(lowered, word); n > 0 {
			bulls += n
			reasons = append(reasons, "keyword: "+word)
		}
	}
	for _, word := range bearishWords {
		if n := strings.Count(lowered, word); n > 0 {
			bears += n
			reasons = append(reasons, "keyword: "+word)
		}
	}

	raw := 2 * (bulls + bears)
	for _, word := range emphasisWords {
		if strings.Contains(lowered, word) {
			raw++
			reasons = append(reasons, "mentions "+word)
		}
	}

	// Polarity requires a strict majority of two, like the scorer it
	// replaces; anything weaker stays neutral.
	polarity := domain.Neutral
	switch {
	case bulls > bears+1:
		polarity = domain.Bullish
	case bears > bulls+1:
		polarity = domain.Bearish
	}

	if raw > maxRawScore {
		raw = maxRawScore
	}
	if len(reasons) == 0 {
		reasons = []string{"no move keywords found"}
	}

	return domain.Analysis{
		Polarity: polarity,
		Score:    float64(raw) / maxRawScore,
		Reasons:  reasons,
	}, nil
}
