package usecase

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"StockNewsScanner/internal/digest"
	"StockNewsScanner/internal/domain"
	"StockNewsScanner/internal/gate"
	"StockNewsScanner/internal/ports"
	"StockNewsScanner/internal/sched"
	"StockNewsScanner/internal/store"
	"StockNewsScanner/internal/ticker"
)

// Settings tunes the pipeline's cadence and limits.
type Settings struct {
	TopK           int
	ReportInterval time.Duration
	Retention      time.Duration
	ItemDelay      time.Duration
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.NewsSource
	Articles   ports.ArticleFetcher
	Classifier ports.Classifier
	Validator  ports.TickerValidator
	Dedup      *gate.Dedup
	Rate       *gate.RateGate
	Store      *store.Store
	Sent       ports.SentLedger
	State      ports.StateStore
	Notifier   ports.Notifier
	Modes      *sched.Scheduler
	Settings   Settings
	Logger     *slog.Logger
}

// Pipeline is the single-worker driver: scan, classify, gate, store,
// and report. All shared state sits behind one mutex; overlapping ticks
// serialize on it, so readers always see a consistent snapshot.
type Pipeline struct {
	source     ports.NewsSource
	articles   ports.ArticleFetcher
	classifier ports.Classifier
	validator  ports.TickerValidator
	dedup      *gate.Dedup
	rate       *gate.RateGate
	store      *store.Store
	sent       ports.SentLedger
	state      ports.StateStore
	notifier   ports.Notifier
	modes      *sched.Scheduler
	settings   Settings
	logger     *slog.Logger

	mu         sync.Mutex
	lastReport time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	settings := deps.Settings
	if settings.TopK <= 0 {
		settings.TopK = 5
	}
	if settings.ReportInterval <= 0 {
		settings.ReportInterval = 5 * time.Minute
	}
	if settings.Retention <= 0 {
		settings.Retention = 5 * time.Minute
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:     deps.Source,
		articles:   deps.Articles,
		classifier: deps.Classifier,
		validator:  deps.Validator,
		dedup:      deps.Dedup,
		rate:       deps.Rate,
		store:      deps.Store,
		sent:       deps.Sent,
		state:      deps.State,
		notifier:   deps.Notifier,
		modes:      deps.Modes,
		settings:   settings,
		logger:     logger,
	}
}

// Restore hydrates the event store and scheduler record from persisted
// state. Missing records start empty; read failures are logged and the
// pipeline continues with in-memory state.
func (p *Pipeline) Restore(ctx context.Context) {
	if p.state == nil {
		return
	}

	events, err := p.state.LoadEvents(ctx)
	if err != nil {
		p.logger.Error("load events snapshot", "error", err)
	} else if len(events) > 0 {
		p.store.Restore(events)
		p.logger.Info("restored events", "count", p.store.Len())
	}

	schedState, err := p.state.LoadScheduler(ctx)
	if err != nil {
		p.logger.Error("load scheduler state", "error", err)
		return
	}
	p.modes.Restore(schedState)
	if !schedState.LastWakeUp.IsZero() {
		p.logger.Info("restored scheduler state", "lastWakeUp", schedState.LastWakeUp)
	}
}

// Tick is one pass of the driver loop. No single feed, article,
// classification, or delivery failure aborts it.
func (p *Pipeline) Tick(ctx context.Context, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.modes.Tick(now) {
	case sched.WakeUp:
		p.logger.Info("waking up", "collected", p.modes.SleepEvents())
		if err := p.sendWakeUp(ctx, now); err != nil {
			p.logger.Error("wake-up report failed, will retry next cycle", "error", err)
		}
	case sched.ToSleep:
		p.logger.Info("entering sleep mode, collecting only")
	}

	p.scan(ctx, now)

	if p.modes.RetentionAllowed(now) {
		if removed := p.store.EvictOlderThan(now.Add(-p.settings.Retention)); removed > 0 {
			p.logger.Debug("evicted stale events", "count", removed, "kept", p.store.Len())
		}
	}

	if p.modes.Mode() == sched.ModeNormal {
		if p.lastReport.IsZero() || now.Sub(p.lastReport) >= p.settings.ReportInterval {
			p.sendReport(ctx, now)
			p.lastReport = now
		}
	} else {
		p.logger.Debug("sleeping", "collected", p.modes.SleepEvents())
	}

	if p.modes.BriefDue(now) {
		p.logger.Info("daily brief trigger")
		if err := p.sendWakeUp(ctx, now); err != nil {
			p.logger.Error("daily brief failed, will retry next cycle", "error", err)
		} else {
			p.modes.CommitBrief(now)
			p.persistScheduler(ctx)
		}
	}
}

// Events returns a consistent snapshot of the store, for operator
// tooling that wants to inspect the current queue.
func (p *Pipeline) Events() []domain.NewsEvent {
	return p.store.Snapshot()
}

// ReportNow forces a trading report outside the normal cadence.
func (p *Pipeline) ReportNow(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendReport(ctx, time.Now())
}

// Shutdown persists all state records before exit.
func (p *Pipeline) Shutdown(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == nil {
		return
	}
	if err := p.state.SaveEvents(ctx, p.store.Snapshot()); err != nil {
		p.logger.Error("persist events on shutdown", "error", err)
	}
	p.persistScheduler(ctx)
}

func (p *Pipeline) scan(ctx context.Context, now time.Time) {
	if p.source == nil {
		return
	}

	items, err := p.source.FetchLatest(ctx)
	if err != nil {
		p.logger.Error("feed scan failed", "error", err)
		return
	}

	accepted := 0
	for _, item := range items {
		event, ok := p.ingest(ctx, item, now)
		if !ok {
			continue
		}

		p.store.Append(event)
		if p.modes.Mode() == sched.ModeSleep {
			p.modes.RecordSleepEvent()
		}
		accepted++

		// Small pause between classifier calls to respect upstream
		// rate limits.
		if p.settings.ItemDelay > 0 {
			time.Sleep(p.settings.ItemDelay)
		}
	}

	if accepted > 0 && p.state != nil {
		if err := p.state.SaveEvents(ctx, p.store.Snapshot()); err != nil {
			p.logger.Error("persist events", "error", err)
		}
	}
	p.logger.Debug("scan complete", "entries", len(items), "accepted", accepted)
}

// ingest runs one feed entry through dedup, extraction, validation, and
// classification. A false return is a filter outcome, not an error.
func (p *Pipeline) ingest(ctx context.Context, item domain.FeedItem, now time.Time) (domain.NewsEvent, bool) {
	fresh, err := p.dedup.Admit(ctx, item.Title, item.Link)
	if err != nil {
		p.logger.Error("dedup ledger", "error", err)
		return domain.NewsEvent{}, false
	}
	if !fresh {
		return domain.NewsEvent{}, false
	}

	symbol, found := ticker.Extract(item.Title)
	if !found {
		return domain.NewsEvent{}, false
	}
	if p.validator != nil && !p.validator.Valid(ctx, symbol) {
		return domain.NewsEvent{}, false
	}

	body := ""
	if p.articles != nil {
		body, err = p.articles.FetchBody(ctx, item.Link)
		if err != nil {
			p.logger.Warn("article fetch failed, using headline", "url", item.Link, "error", err)
		}
	}
	if body == "" {
		body = item.Title
	}

	analysis, err := p.classifier.Classify(ctx, item.Title, symbol, body)
	if err != nil {
		// Classifiers degrade internally; this is a last-resort guard.
		p.logger.Error("classification failed", "headline", item.Title, "error", err)
		analysis = domain.Analysis{Polarity: domain.Neutral, Reasons: []string{"analysis unavailable"}}
	}

	channel := item.Channel
	if channel == "" {
		channel = domain.ChannelMarket
	}

	return domain.NewsEvent{
		Headline:    item.Title,
		Ticker:      symbol,
		BodyExcerpt: body,
		Polarity:    analysis.Polarity,
		Score:       analysis.Score,
		Reasons:     analysis.Reasons,
		Timestamp:   now,
		SourceURL:   item.Link,
		SourceFeed:  item.Feed,
		Channel:     channel,
	}, true
}

// sendReport delivers the periodic trading digest, one message per
// channel. Sent-ledger and rate-gate commits happen only after the
// channel's send succeeded; a failed send releases its rate
// reservations and stays eligible next cycle.
func (p *Pipeline) sendReport(ctx context.Context, now time.Time) {
	if p.notifier == nil {
		return
	}

	selected := digest.Select(p.store.Snapshot(), p.settings.TopK, time.Time{}, p.sentFilter(ctx), p.validFilter(ctx))
	if len(selected) == 0 {
		return
	}

	byChannel := map[string][]domain.NewsEvent{}
	for _, event := range selected {
		if p.rate != nil && !p.rate.Allow(now, event.Ticker, event.Channel) {
			p.logger.Debug("rate limited", "ticker", event.Ticker, "channel", event.Channel)
			continue
		}
		byChannel[event.Channel] = append(byChannel[event.Channel], event)
	}

	for _, channel := range sortedKeys(byChannel) {
		events := byChannel[channel]
		if err := p.notifier.Send(ctx, channel, digest.Format(events, now)); err != nil {
			p.logger.Error("report delivery failed", "channel", channel, "error", err)
			if p.rate != nil {
				for _, event := range events {
					p.rate.Release(event.Ticker)
				}
			}
			continue
		}
		p.commitDelivery(ctx, now, channel, events)
		p.logger.Info("report sent", "channel", channel, "events", len(events))
	}
}

// sendWakeUp delivers the morning brief covering events since the last
// wake-up. An empty digest still advances the wake-up marker; a failed
// send leaves it untouched for retry.
func (p *Pipeline) sendWakeUp(ctx context.Context, now time.Time) error {
	since := p.modes.WakeLookback(now)
	selected := digest.Select(p.store.Snapshot(), p.settings.TopK, since, p.sentFilter(ctx), p.validFilter(ctx))

	if len(selected) == 0 {
		p.logger.Info("no overnight events to report")
		p.modes.CommitWakeUp(now)
		p.persistScheduler(ctx)
		return nil
	}

	if err := p.notifier.Send(ctx, domain.ChannelMarket, digest.FormatWakeUp(selected, now)); err != nil {
		return err
	}

	p.commitDelivery(ctx, now, domain.ChannelMarket, selected)
	p.modes.CommitWakeUp(now)
	p.persistScheduler(ctx)
	p.logger.Info("morning report sent", "events", len(selected))
	return nil
}

func (p *Pipeline) commitDelivery(ctx context.Context, now time.Time, channel string, events []domain.NewsEvent) {
	headlines := make([]string, 0, len(events))
	for _, event := range events {
		headlines = append(headlines, event.Headline)
		if p.rate != nil {
			p.rate.Commit(now, event.Ticker, channel)
		}
	}
	if p.sent != nil {
		if err := p.sent.MarkSent(ctx, headlines); err != nil {
			p.logger.Error("persist sent ledger", "error", err)
		}
	}
}

func (p *Pipeline) persistScheduler(ctx context.Context) {
	if p.state == nil {
		return
	}
	if err := p.state.SaveScheduler(ctx, p.modes.State()); err != nil {
		p.logger.Error("persist scheduler state", "error", err)
	}
}

func (p *Pipeline) sentFilter(ctx context.Context) func(string) bool {
	if p.sent == nil {
		return nil
	}
	return func(headline string) bool {
		sent, err := p.sent.Sent(ctx, headline)
		if err != nil {
			p.logger.Error("sent ledger lookup", "error", err)
			return false
		}
		return sent
	}
}

func (p *Pipeline) validFilter(ctx context.Context) func(string) bool {
	if p.validator == nil {
		return nil
	}
	return func(symbol string) bool {
		return p.validator.Valid(ctx, symbol)
	}
}

func sortedKeys(m map[string][]domain.NewsEvent) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
