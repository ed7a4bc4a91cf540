package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockNewsScanner/internal/domain"
)

func TestEventsRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewFiles(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	events := []domain.NewsEvent{
		{
			Headline:  "Acme beats",
			Ticker:    "ACME",
			Polarity:  domain.Bullish,
			Score:     0.8,
			Reasons:   []string{"earnings beat"},
			Timestamp: time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC),
			SourceURL: "https://example.com/acme",
			Channel:   domain.ChannelMarket,
		},
	}
	require.NoError(t, store.SaveEvents(ctx, events))

	loaded, err := store.LoadEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, events, loaded)
}

func TestLoadEventsMissingFile(t *testing.T) {
	t.Parallel()

	store, err := NewFiles(t.TempDir())
	require.NoError(t, err)

	loaded, err := store.LoadEvents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSchedulerRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewFiles(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	saved := domain.SchedulerState{
		LastWakeUp:    time.Date(2026, time.March, 2, 7, 0, 0, 0, time.UTC),
		LastBriefDate: "2026-03-02",
	}
	require.NoError(t, store.SaveScheduler(ctx, saved))

	loaded, err := store.LoadScheduler(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.LastWakeUp.Equal(saved.LastWakeUp))
	assert.Equal(t, saved.LastBriefDate, loaded.LastBriefDate)
}

func TestLoadSchedulerMissingFile(t *testing.T) {
	t.Parallel()

	store, err := NewFiles(t.TempDir())
	require.NoError(t, err)

	loaded, err := store.LoadScheduler(context.Background())
	require.NoError(t, err)
	assert.True(t, loaded.LastWakeUp.IsZero())
	assert.Empty(t, loaded.LastBriefDate)
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewFiles(dir)
	require.NoError(t, err)

	require.NoError(t, store.SaveScheduler(context.Background(), domain.SchedulerState{LastBriefDate: "2026-03-02"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotEqual(t, ".tmp", filepath.Ext(entry.Name()))
	}
}

func TestLoadEventsCorruptFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewFiles(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "events.json"), []byte("{half a rec"), 0o644))

	_, err = store.LoadEvents(context.Background())
	assert.Error(t, err)
}
