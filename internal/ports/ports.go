package ports

import (
	"context"
	"time"

	"StockNewsScanner/internal/domain"
)

// NewsSource pulls fresh headlines from all configured feeds.
type NewsSource interface {
	FetchLatest(ctx context.Context) ([]domain.FeedItem, error)
}

// ArticleFetcher downloads full article text for classification input.
// An empty result with nil error means the page was unavailable and the
// caller should fall back to the headline alone.
type ArticleFetcher interface {
	FetchBody(ctx context.Context, url string) (string, error)
}

// Classifier scores a headline for trading relevance. Implementations
// must degrade to a neutral zero-confidence verdict instead of failing
// the pipeline.
type Classifier interface {
	Classify(ctx context.Context, headline, ticker, body string) (domain.Analysis, error)
}

// TickerValidator decides whether a symbol is a tradable listed equity.
// Verdicts are cached for the process lifetime.
type TickerValidator interface {
	Valid(ctx context.Context, symbol string) bool
}

// DedupLedger records article identities already ingested.
type DedupLedger interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// SentLedger records headlines already delivered in a digest.
type SentLedger interface {
	Sent(ctx context.Context, headline string) (bool, error)
	MarkSent(ctx context.Context, headlines []string) error
}

// StateStore persists restart-safe pipeline state as independent records.
// A missing record loads as empty/default, never as an error.
type StateStore interface {
	LoadEvents(ctx context.Context) ([]domain.NewsEvent, error)
	SaveEvents(ctx context.Context, events []domain.NewsEvent) error
	LoadScheduler(ctx context.Context) (domain.SchedulerState, error)
	SaveScheduler(ctx context.Context, state domain.SchedulerState) error
}

// Notifier delivers a digest message to a named channel.
type Notifier interface {
	Send(ctx context.Context, channel, text string) error
}

// Scheduler controls when the driver loop ticks.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
