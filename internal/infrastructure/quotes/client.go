package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"StockNewsScanner/internal/ports"
)

// Client validates ticker symbols against a quote API. Verdicts, both
// positive and negative, are cached for the process lifetime: a symbol
// once classified invalid is never revalidated in the same run.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]bool
}

var _ ports.TickerValidator = (*Client)(nil)

// NewClient creates a reusable validator client.
func NewClient(endpoint, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		cache:    make(map[string]bool),
	}
}

// Valid reports whether the symbol is a tradable listed equity.
func (c *Client) Valid(ctx context.Context, symbol string) bool {
	if symbol == "" {
		return false
	}

	c.mu.Lock()
	if verdict, ok := c.cache[symbol]; ok {
		c.mu.Unlock()
		return verdict
	}
	c.mu.Unlock()

	verdict := c.lookup(ctx, symbol)

	c.mu.Lock()
	c.cache[symbol] = verdict
	c.mu.Unlock()

	if !verdict && c.logger != nil {
		c.logger.Debug("ticker rejected", "symbol", symbol)
	}
	return verdict
}

func (c *Client) lookup(ctx context.Context, symbol string) bool {
	reqURL := fmt.Sprintf("%s?symbol=%s", c.endpoint, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("quote lookup failed", "symbol", symbol, "error", err)
		}
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var payload struct {
		Symbol    string `json:"symbol"`
		QuoteType string `json:"quoteType"`
		ShortName string `json:"shortName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false
	}

	// ETFs and indices are excluded by quote type; a missing name means
	// the symbol does not resolve to a real listing.
	return payload.QuoteType == "EQUITY" && payload.ShortName != ""
}
