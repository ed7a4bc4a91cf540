package parser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"StockNewsScanner/internal/domain"
	"StockNewsScanner/internal/scanner"
)

// RSSScanner pulls entries from RSS/Atom feeds.
type RSSScanner struct {
	parser *gofeed.Parser
}

// NewRSSScanner wires an HTTP client; the timeout defaults to 20s.
func NewRSSScanner(client *http.Client) *RSSScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	p := gofeed.NewParser()
	p.Client = client
	p.UserAgent = "StockNewsScanner/1.0"
	return &RSSScanner{parser: p}
}

// Name identifies the strategy inside the registry.
func (r *RSSScanner) Name() string {
	return "rss"
}

// Scan fetches one feed and returns its entries, newest first as the
// feed presents them, capped to MaxEntries.
func (r *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.FeedItem, error) {
	if req.Feed.URL == "" {
		return nil, fmt.Errorf("feed %s has no url", req.Feed.Name)
	}

	parsed, err := r.parser.ParseURLWithContext(req.Feed.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", req.Feed.Name, err)
	}

	entries := parsed.Items
	if req.MaxEntries > 0 && len(entries) > req.MaxEntries {
		entries = entries[:req.MaxEntries]
	}

	items := make([]domain.FeedItem, 0, len(entries))
	for _, entry := range entries {
		title := cleanTitle(entry.Title)
		if title == "" || entry.Link == "" {
			continue
		}

		published := time.Now().UTC()
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		}

		items = append(items, domain.FeedItem{
			Title:       title,
			Link:        entry.Link,
			PublishedAt: published,
			Feed:        req.Feed.Name,
			Channel:     req.Feed.Channel,
		})
	}

	return items, nil
}

func cleanTitle(title string) string {
	return strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
}
