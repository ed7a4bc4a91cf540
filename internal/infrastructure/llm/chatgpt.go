package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"StockNewsScanner/internal/config"
	"StockNewsScanner/internal/domain"
	"StockNewsScanner/internal/ports"
	"StockNewsScanner/internal/retry"
)

const maxBodyChars = 3000

// ChatGPTClassifier scores headlines for trading relevance through an
// OpenAI-compatible chat-completions API.
type ChatGPTClassifier struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
	policy       retry.Policy
}

var _ ports.Classifier = (*ChatGPTClassifier)(nil)

// NewChatGPTClassifier builds a classifier from configuration.
func NewChatGPTClassifier(cfg config.ChatGPTConfig) *ChatGPTClassifier {
	return &ChatGPTClassifier{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: safePrompt(cfg.SystemPrompt),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		policy: retry.Policy{MaxAttempts: 3, BaseDelay: time.Second},
	}
}

func neutralFallback() domain.Analysis {
	return domain.Analysis{
		Polarity: domain.Neutral,
		Score:    0,
		Reasons:  []string{"analysis unavailable"},
	}
}

// Classify asks the model for polarity, confidence, and reasons.
// Transient API failures are retried with exponential backoff; on
// exhaustion or an unparseable reply the deterministic neutral fallback
// is returned with nil error. Classification never fails the pipeline.
func (c *ChatGPTClassifier) Classify(ctx context.Context, headline, ticker, body string) (domain.Analysis, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return neutralFallback(), nil
	}

	body = truncate(body, maxBodyChars)

	var raw string
	err := c.policy.Do(ctx, func() error {
		var completeErr error
		raw, completeErr = c.complete(ctx, buildPrompt(headline, ticker, body))
		return completeErr
	})
	if err != nil {
		return neutralFallback(), nil
	}

	analysis, ok := parseAnalysis(raw)
	if !ok {
		return neutralFallback(), nil
	}
	return analysis, nil
}

func (c *ChatGPTClassifier) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": c.systemPrompt},
			{"role": "user", "content": prompt},
		},
		"max_tokens":  500,
		"temperature": 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &retry.StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(detail))}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// parseAnalysis extracts the JSON object from the model reply and
// coerces it into the contract: polarity in the enum, score clamped to
// [0,1], reasons never empty.
func parseAnalysis(raw string) (domain.Analysis, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return domain.Analysis{}, false
	}

	var parsed struct {
		Sentiment  string   `json:"sentiment"`
		Confidence float64  `json:"confidence_score"`
		Reasons    []string `json:"importance_reasons"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return domain.Analysis{}, false
	}

	score := parsed.Confidence
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	reasons := parsed.Reasons
	if len(reasons) == 0 {
		reasons = []string{"no reasons provided"}
	}

	return domain.Analysis{
		Polarity: domain.ParsePolarity(parsed.Sentiment),
		Score:    score,
		Reasons:  reasons,
	}, true
}

func buildPrompt(headline, ticker, body string) string {
	return fmt.Sprintf(`Analyze this stock news article for trading relevance:

Headline: %q
Stock Ticker: %s

Article Content:
%s

Provide:
1. Sentiment: BULLISH, BEARISH, or NEUTRAL
2. Confidence Score: 0.0 to 1.0
3. Importance Reasons: 2-4 specific reasons why this news matters for traders

Format your response as JSON:
{
    "sentiment": "BULLISH/BEARISH/NEUTRAL",
    "confidence_score": 0.0,
    "importance_reasons": ["reason1", "reason2"]
}

Focus on earnings impact, regulatory changes, market-moving catalysts,
guidance changes, analyst actions, and strategic announcements. Consider
the full article context, not just the headline.`, headline, ticker, body)
}

// truncate bounds s to limit bytes without splitting a rune, so the
// prompt never carries invalid UTF-8.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are a financial news analyst specializing in stock market sentiment analysis."
	}
	return prompt
}
