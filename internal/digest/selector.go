package digest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"StockNewsScanner/internal/domain"
)

// Select picks the top-k reportable events: bullish/bearish only, valid
// tickers only, not already sent, and (when since is non-zero) not older
// than since. Ranked by descending score, ties broken by recency.
// Returns fewer than k when fewer are eligible; an empty result means
// the caller must send nothing.
func Select(events []domain.NewsEvent, k int, since time.Time, sent func(string) bool, valid func(string) bool) []domain.NewsEvent {
	eligible := make([]domain.NewsEvent, 0, len(events))
	for _, event := range events {
		if event.Polarity == domain.Neutral {
			continue
		}
		if !since.IsZero() && event.Timestamp.Before(since) {
			continue
		}
		if sent != nil && sent(event.Headline) {
			continue
		}
		if valid != nil && !valid(event.Ticker) {
			continue
		}
		eligible = append(eligible, event)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Score != eligible[j].Score {
			return eligible[i].Score > eligible[j].Score
		}
		return eligible[i].Timestamp.After(eligible[j].Timestamp)
	})

	if k > 0 && len(eligible) > k {
		eligible = eligible[:k]
	}
	return eligible
}

// Format builds the periodic trading-alert message.
func Format(events []domain.NewsEvent, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 *Trading Alert - Top %d Events*\n\n", len(events))
	writeEntries(&b, events)
	fmt.Fprintf(&b, "_Report generated at %s_", now.Format("15:04:05"))
	return b.String()
}

// FormatWakeUp builds the morning brief sent on wake-up.
func FormatWakeUp(events []domain.NewsEvent, now time.Time) string {
	var b strings.Builder
	b.WriteString("🌅 Good Morning! Top Overnight Stock Events:\n\n")
	writeEntries(&b, events)
	fmt.Fprintf(&b, "_Generated at %s_", now.Format("15:04"))
	return b.String()
}

func writeEntries(b *strings.Builder, events []domain.NewsEvent) {
	for i, event := range events {
		emoji := "🟢"
		if event.Polarity == domain.Bearish {
			emoji = "🔴"
		}
		fmt.Fprintf(b, "%d. %s *%s* $%s\n", i+1, emoji, event.Polarity, event.Ticker)
		fmt.Fprintf(b, "   %s\n", event.Headline)
		fmt.Fprintf(b, "   Confidence: %.0f%%\n", event.Score*100)
		fmt.Fprintf(b, "   Reasons: %s\n", strings.Join(event.Reasons, ", "))
		fmt.Fprintf(b, "   [Source](%s)\n\n", event.SourceURL)
	}
}
