package parser

import (
	"context"
	"fmt"
	"log/slog"

	"StockNewsScanner/internal/config"
	"StockNewsScanner/internal/domain"
	"StockNewsScanner/internal/ports"
	"StockNewsScanner/internal/scanner"
)

// StrategySource implements NewsSource via registered scanner strategies.
// A failing feed contributes zero items and never fails the whole scan.
type StrategySource struct {
	registry   *scanner.Registry
	feeds      []config.FeedConfig
	maxEntries int
	logger     *slog.Logger
}

var _ ports.NewsSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with config-defined feeds.
func NewStrategySource(reg *scanner.Registry, feeds []config.FeedConfig, maxEntries int, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry:   reg,
		feeds:      feeds,
		maxEntries: maxEntries,
		logger:     log,
	}
}

// FetchLatest iterates over configured feeds and executes their scanners,
// aggregating entries in feed order.
func (s *StrategySource) FetchLatest(ctx context.Context) ([]domain.FeedItem, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("fetch latest", "feeds", len(s.feeds))

	var aggregated []domain.FeedItem
	for _, feed := range s.feeds {
		strategy, err := s.registry.Resolve(feed.Scanner)
		if err != nil {
			s.warn("feed skipped", "feed", feed.Name, "error", err)
			continue
		}

		req := scanner.Request{
			Feed:       scanner.Feed{Name: feed.Name, URL: feed.URL, Channel: feed.Channel},
			MaxEntries: s.maxEntries,
		}

		items, err := strategy.Scan(ctx, req)
		if err != nil {
			s.warn("feed fetch failed", "feed", feed.Name, "error", err)
			continue
		}

		s.debug("feed produced entries", "feed", feed.Name, "count", len(items))
		aggregated = append(aggregated, items...)
	}

	s.debug("scan pass done", "total_entries", len(aggregated))
	return aggregated, nil
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
