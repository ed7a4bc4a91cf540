package article

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"StockNewsScanner/internal/ports"
	"StockNewsScanner/internal/retry"
)

const (
	defaultMaxChars = 4000
	userAgent       = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Selectors tried in order for the article body; generic containers last.
var articleSelectors = []string{
	"article",
	".article-content",
	".article-body",
	".story-body",
	".post-content",
	".entry-content",
	".article-text",
	".story-content",
	`[data-module="ArticleBody"]`,
	".ArticleBody-articleBody",
	"main",
	"body",
}

// Fetcher downloads article pages and extracts readable text for the
// classifier, bounded to a character budget.
type Fetcher struct {
	client   *http.Client
	policy   retry.Policy
	maxChars int
}

var _ ports.ArticleFetcher = (*Fetcher)(nil)

// NewFetcher wires an HTTP client; the timeout defaults to 15s.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{
		client:   client,
		policy:   retry.Policy{MaxAttempts: 2, BaseDelay: time.Second},
		maxChars: defaultMaxChars,
	}
}

// FetchBody returns cleaned article text. An empty result with nil
// error means the page is unavailable (paywalled, blocked, empty) and
// the caller should fall back to the headline.
func (f *Fetcher) FetchBody(ctx context.Context, pageURL string) (string, error) {
	var text string
	err := f.policy.Do(ctx, func() error {
		var fetchErr error
		text, fetchErr = f.fetch(ctx, pageURL)
		return fetchErr
	})
	if err != nil {
		return "", fmt.Errorf("fetch article %s: %w", pageURL, err)
	}
	return text, nil
}

func (f *Fetcher) fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request article: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Paywalled or blocked; headline-only fallback upstream.
		return "", nil
	case resp.StatusCode != http.StatusOK:
		return "", &retry.StatusError{Status: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse article: %w", err)
	}

	doc.Find("script, style, nav, header, footer, aside").Remove()

	var text string
	for _, sel := range articleSelectors {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			text = collapseWhitespace(node.Text())
			if text != "" {
				break
			}
		}
	}

	return truncate(text, f.maxChars), nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate bounds s to limit bytes without splitting a rune.
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
