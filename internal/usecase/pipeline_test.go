package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockNewsScanner/internal/domain"
	"StockNewsScanner/internal/gate"
	"StockNewsScanner/internal/sched"
	"StockNewsScanner/internal/store"
)

type stubSource struct {
	items []domain.FeedItem
	err   error
}

func (s *stubSource) FetchLatest(context.Context) ([]domain.FeedItem, error) {
	return s.items, s.err
}

type stubClassifier struct {
	analysis domain.Analysis
	err      error
}

func (s *stubClassifier) Classify(context.Context, string, string, string) (domain.Analysis, error) {
	return s.analysis, s.err
}

type stubValidator struct {
	reject map[string]bool
}

func (s *stubValidator) Valid(_ context.Context, symbol string) bool {
	return !s.reject[symbol]
}

type memLedger struct {
	items map[string]struct{}
}

func newMemLedger() *memLedger {
	return &memLedger{items: map[string]struct{}{}}
}

func (l *memLedger) Seen(_ context.Context, key string) (bool, error) {
	_, ok := l.items[key]
	return ok, nil
}

func (l *memLedger) Mark(_ context.Context, key string) error {
	l.items[key] = struct{}{}
	return nil
}

func (l *memLedger) Sent(ctx context.Context, headline string) (bool, error) {
	return l.Seen(ctx, headline)
}

func (l *memLedger) MarkSent(_ context.Context, headlines []string) error {
	for _, headline := range headlines {
		l.items[headline] = struct{}{}
	}
	return nil
}

type memState struct {
	events     []domain.NewsEvent
	scheduler  domain.SchedulerState
	eventSaves int
	schedSaves int
}

func (m *memState) LoadEvents(context.Context) ([]domain.NewsEvent, error) {
	return m.events, nil
}

func (m *memState) SaveEvents(_ context.Context, events []domain.NewsEvent) error {
	m.events = events
	m.eventSaves++
	return nil
}

func (m *memState) LoadScheduler(context.Context) (domain.SchedulerState, error) {
	return m.scheduler, nil
}

func (m *memState) SaveScheduler(_ context.Context, state domain.SchedulerState) error {
	m.scheduler = state
	m.schedSaves++
	return nil
}

type sentMessage struct {
	channel string
	text    string
}

type stubNotifier struct {
	sent     []sentMessage
	failures int
}

func (n *stubNotifier) Send(_ context.Context, channel, text string) error {
	if n.failures > 0 {
		n.failures--
		return errors.New("telegram unavailable")
	}
	n.sent = append(n.sent, sentMessage{channel: channel, text: text})
	return nil
}

type fixture struct {
	pipeline *Pipeline
	source   *stubSource
	notifier *stubNotifier
	sent     *memLedger
	state    *memState
}

func bullishItem(headline, link string) domain.FeedItem {
	return domain.FeedItem{
		Title:   headline,
		Link:    link,
		Feed:    "market-wire",
		Channel: domain.ChannelMarket,
	}
}

func newFixture(t *testing.T, modeCfg sched.Config) *fixture {
	t.Helper()

	if modeCfg.Location == nil {
		modeCfg.Location = time.UTC
	}
	source := &stubSource{}
	notifier := &stubNotifier{}
	sent := newMemLedger()
	state := &memState{}

	pipeline := NewPipeline(PipelineDeps{
		Source:     source,
		Classifier: &stubClassifier{analysis: domain.Analysis{Polarity: domain.Bullish, Score: 0.8, Reasons: []string{"earnings beat"}}},
		Validator:  &stubValidator{},
		Dedup:      gate.NewDedup(newMemLedger()),
		Rate:       gate.NewRateGate(30*time.Minute, 10),
		Store:      store.New(100),
		Sent:       sent,
		State:      state,
		Notifier:   notifier,
		Modes:      sched.New(modeCfg),
		Settings: Settings{
			TopK:           5,
			ReportInterval: 5 * time.Minute,
			Retention:      5 * time.Minute,
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	return &fixture{
		pipeline: pipeline,
		source:   source,
		notifier: notifier,
		sent:     sent,
		state:    state,
	}
}

func TestTickIngestsAndReports(t *testing.T) {
	t.Parallel()

	f := newFixture(t, sched.Config{})
	f.source.items = []domain.FeedItem{
		bullishItem("Acme Corp beats on $ACME, guidance raised", "https://example.com/acme"),
	}
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	f.pipeline.Tick(context.Background(), now)

	events := f.pipeline.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "ACME", events[0].Ticker)
	assert.Equal(t, domain.Bullish, events[0].Polarity)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, domain.ChannelMarket, f.notifier.sent[0].channel)
	assert.Contains(t, f.notifier.sent[0].text, "$ACME")

	marked, err := f.sent.Sent(context.Background(), events[0].Headline)
	require.NoError(t, err)
	assert.True(t, marked)
	assert.Positive(t, f.state.eventSaves)
}

func TestTickDedupAcrossCycles(t *testing.T) {
	t.Parallel()

	f := newFixture(t, sched.Config{})
	f.source.items = []domain.FeedItem{
		bullishItem("Acme Corp beats on $ACME, guidance raised", "https://example.com/acme"),
	}
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	f.pipeline.Tick(context.Background(), now)
	f.pipeline.Tick(context.Background(), now.Add(time.Minute))

	assert.Len(t, f.pipeline.Events(), 1)
}

func TestTickFiltersHeadlinesWithoutTickers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, sched.Config{})
	f.source.items = []domain.FeedItem{
		bullishItem("markets close mixed on quiet trading day", "https://example.com/quiet"),
	}

	f.pipeline.Tick(context.Background(), time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC))

	assert.Empty(t, f.pipeline.Events())
	assert.Empty(t, f.notifier.sent)
}

func TestTickFiltersInvalidTickers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, sched.Config{})
	f.source.items = []domain.FeedItem{
		bullishItem("Traders pile into $FAKE ahead of earnings", "https://example.com/fake"),
	}
	validator := &stubValidator{reject: map[string]bool{"FAKE": true}}
	f.pipeline.validator = validator

	f.pipeline.Tick(context.Background(), time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC))

	assert.Empty(t, f.pipeline.Events())
}

func TestReportSilentWhenNothingEligible(t *testing.T) {
	t.Parallel()

	f := newFixture(t, sched.Config{})
	f.pipeline.classifier = &stubClassifier{analysis: domain.Analysis{Polarity: domain.Neutral, Reasons: []string{"no signal"}}}
	f.source.items = []domain.FeedItem{
		bullishItem("Acme Corp beats on $ACME, guidance raised", "https://example.com/acme"),
	}

	f.pipeline.Tick(context.Background(), time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC))

	// Neutral events are stored for inspection but never delivered.
	assert.Len(t, f.pipeline.Events(), 1)
	assert.Empty(t, f.notifier.sent)
}

func TestFailedSendRetriesNextInterval(t *testing.T) {
	t.Parallel()

	f := newFixture(t, sched.Config{})
	f.notifier.failures = 1
	f.source.items = []domain.FeedItem{
		bullishItem("Acme Corp beats on $ACME, guidance raised", "https://example.com/acme"),
	}
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	f.pipeline.Tick(ctx, now)
	assert.Empty(t, f.notifier.sent)

	// The sent ledger stays unmarked after the failure, so the event is
	// still eligible once the next report window opens.
	marked, err := f.sent.Sent(ctx, "Acme Corp beats on $ACME, guidance raised")
	require.NoError(t, err)
	assert.False(t, marked)

	f.source.items = nil
	f.pipeline.Tick(ctx, now.Add(5*time.Minute))
	require.Len(t, f.notifier.sent, 1)
	assert.Contains(t, f.notifier.sent[0].text, "$ACME")
}

func TestReportNotRepeatedForSentEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t, sched.Config{})
	f.source.items = []domain.FeedItem{
		bullishItem("Acme Corp beats on $ACME, guidance raised", "https://example.com/acme"),
	}
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	f.pipeline.Tick(ctx, now)
	f.source.items = nil
	f.pipeline.Tick(ctx, now.Add(5*time.Minute))

	assert.Len(t, f.notifier.sent, 1)
}

func TestReportHonorsCooldownWithinOneBatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, sched.Config{})
	f.source.items = []domain.FeedItem{
		bullishItem("Acme Corp beats on $ACME, guidance raised", "https://example.com/acme-1"),
		bullishItem("$ACME surges after analyst upgrade", "https://example.com/acme-2"),
	}
	ctx := context.Background()

	f.pipeline.Tick(ctx, time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC))

	// Both events are stored, but only one ACME alert may go out; the
	// second is held by the ticker cooldown even inside a single digest.
	assert.Len(t, f.pipeline.Events(), 2)
	require.Len(t, f.notifier.sent, 1)
	assert.Contains(t, f.notifier.sent[0].text, "Top 1 Events")
	assert.Equal(t, 1, strings.Count(f.notifier.sent[0].text, "Confidence:"))

	// The suppressed headline stays unsent and eligible for later.
	sentFirst, err := f.sent.Sent(ctx, "Acme Corp beats on $ACME, guidance raised")
	require.NoError(t, err)
	sentSecond, err := f.sent.Sent(ctx, "$ACME surges after analyst upgrade")
	require.NoError(t, err)
	assert.NotEqual(t, sentFirst, sentSecond)
}

func TestFailedSendReleasesRateReservations(t *testing.T) {
	t.Parallel()

	f := newFixture(t, sched.Config{})
	f.notifier.failures = 1
	f.source.items = []domain.FeedItem{
		bullishItem("Acme Corp beats on $ACME, guidance raised", "https://example.com/acme"),
	}
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	f.pipeline.Tick(ctx, now)
	require.Empty(t, f.notifier.sent)

	// The failed send must not leave a reservation holding the ticker,
	// or the retry in the next window would be rate-limited away.
	f.source.items = nil
	f.pipeline.Tick(ctx, now.Add(5*time.Minute))
	require.Len(t, f.notifier.sent, 1)
	assert.Contains(t, f.notifier.sent[0].text, "$ACME")
}

func TestReportRoutesPerChannel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, sched.Config{})
	f.source.items = []domain.FeedItem{
		bullishItem("Acme Corp beats on $ACME, guidance raised", "https://example.com/acme"),
		{
			Title:   "Biotech upstart (GENE) tops trial endpoints",
			Link:    "https://example.com/gene",
			Feed:    "biotech-wire",
			Channel: domain.ChannelBiotech,
		},
	}

	f.pipeline.Tick(context.Background(), time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC))

	require.Len(t, f.notifier.sent, 2)
	channels := []string{f.notifier.sent[0].channel, f.notifier.sent[1].channel}
	assert.Contains(t, channels, domain.ChannelMarket)
	assert.Contains(t, channels, domain.ChannelBiotech)
}

func TestSleepModeCollectsWithoutSending(t *testing.T) {
	t.Parallel()

	f := newFixture(t, sched.Config{
		Enabled:   true,
		StartHour: 21,
		EndHour:   7,
		Weekends:  true,
		BriefHour: 7,
	})
	f.source.items = []domain.FeedItem{
		bullishItem("Acme Corp beats on $ACME, guidance raised", "https://example.com/acme"),
	}

	// Monday 23:00, deep inside the sleep window.
	f.pipeline.Tick(context.Background(), time.Date(2026, time.March, 2, 23, 0, 0, 0, time.UTC))

	assert.Len(t, f.pipeline.Events(), 1)
	assert.Empty(t, f.notifier.sent)
}

func TestWakeUpDeliversOvernightBrief(t *testing.T) {
	t.Parallel()

	f := newFixture(t, sched.Config{
		Enabled:   true,
		StartHour: 21,
		EndHour:   7,
		Weekends:  true,
		BriefHour: 7,
	})
	f.source.items = []domain.FeedItem{
		bullishItem("Acme Corp beats on $ACME, guidance raised", "https://example.com/acme"),
	}
	ctx := context.Background()

	f.pipeline.Tick(ctx, time.Date(2026, time.March, 2, 23, 0, 0, 0, time.UTC))
	require.Empty(t, f.notifier.sent)

	f.source.items = nil
	f.pipeline.Tick(ctx, time.Date(2026, time.March, 3, 7, 5, 0, 0, time.UTC))

	require.NotEmpty(t, f.notifier.sent)
	assert.Equal(t, domain.ChannelMarket, f.notifier.sent[0].channel)
	assert.Contains(t, f.notifier.sent[0].text, "Good Morning")
	assert.Contains(t, f.notifier.sent[0].text, "$ACME")

	// The wake-up marker persists so a restart does not replay the brief.
	assert.False(t, f.state.scheduler.LastWakeUp.IsZero())
}

func TestFailedWakeUpKeepsMarkerForRetry(t *testing.T) {
	t.Parallel()

	f := newFixture(t, sched.Config{
		Enabled:   true,
		StartHour: 21,
		EndHour:   7,
		Weekends:  true,
		BriefHour: 8,
	})
	f.source.items = []domain.FeedItem{
		bullishItem("Acme Corp beats on $ACME, guidance raised", "https://example.com/acme"),
	}
	ctx := context.Background()

	f.pipeline.Tick(ctx, time.Date(2026, time.March, 2, 23, 0, 0, 0, time.UTC))

	f.notifier.failures = 2
	f.source.items = nil
	f.pipeline.Tick(ctx, time.Date(2026, time.March, 3, 7, 5, 0, 0, time.UTC))
	assert.Empty(t, f.notifier.sent)
	assert.True(t, f.state.scheduler.LastWakeUp.IsZero())
}

func TestRestoreHydratesStoreAndScheduler(t *testing.T) {
	t.Parallel()

	f := newFixture(t, sched.Config{})
	lastWake := time.Date(2026, time.March, 2, 7, 0, 0, 0, time.UTC)
	f.state.events = []domain.NewsEvent{
		{Headline: "persisted", Ticker: "ACME", Polarity: domain.Bullish, Score: 0.5, Timestamp: lastWake},
	}
	f.state.scheduler = domain.SchedulerState{LastWakeUp: lastWake, LastBriefDate: "2026-03-02"}

	f.pipeline.Restore(context.Background())

	events := f.pipeline.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "persisted", events[0].Headline)
	assert.True(t, f.pipeline.modes.State().LastWakeUp.Equal(lastWake))
}

func TestShutdownPersistsState(t *testing.T) {
	t.Parallel()

	f := newFixture(t, sched.Config{})
	f.source.items = []domain.FeedItem{
		bullishItem("Acme Corp beats on $ACME, guidance raised", "https://example.com/acme"),
	}
	ctx := context.Background()

	f.pipeline.Tick(ctx, time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC))
	f.pipeline.Shutdown(ctx)

	require.Len(t, f.state.events, 1)
	assert.Positive(t, f.state.schedSaves)
}

func TestScanSurvivesSourceFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, sched.Config{})
	f.source.err = errors.New("all feeds down")

	f.pipeline.Tick(context.Background(), time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC))

	assert.Empty(t, f.pipeline.Events())
}

func TestRetentionEvictsStaleEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t, sched.Config{})
	f.source.items = []domain.FeedItem{
		bullishItem("Acme Corp beats on $ACME, guidance raised", "https://example.com/acme"),
	}
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	f.pipeline.Tick(ctx, now)
	require.Len(t, f.pipeline.Events(), 1)

	f.source.items = nil
	f.pipeline.Tick(ctx, now.Add(10*time.Minute))
	assert.Empty(t, f.pipeline.Events())
}

func TestFallbackBodyIsHeadline(t *testing.T) {
	t.Parallel()

	f := newFixture(t, sched.Config{})
	f.source.items = []domain.FeedItem{
		bullishItem("Acme Corp beats on $ACME, guidance raised", "https://example.com/acme"),
	}

	// No article fetcher configured at all: the classifier still gets
	// the headline as its body.
	f.pipeline.Tick(context.Background(), time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC))

	events := f.pipeline.Events()
	require.Len(t, events, 1)
	assert.True(t, strings.HasPrefix(events[0].BodyExcerpt, "Acme Corp beats"))
}
