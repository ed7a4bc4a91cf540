package domain

import (
	"strings"
	"time"
)

// Channel names used to route digests to chats.
const (
	ChannelMarket  = "market"
	ChannelBiotech = "biotech"
)

// Polarity is the three-valued trading implication of a headline.
type Polarity string

const (
	Bullish Polarity = "BULLISH"
	Bearish Polarity = "BEARISH"
	Neutral Polarity = "NEUTRAL"
)

// ParsePolarity coerces arbitrary classifier output into the enum.
// Anything unrecognized maps to Neutral.
func ParsePolarity(value string) Polarity {
	switch Polarity(strings.ToUpper(strings.TrimSpace(value))) {
	case Bullish:
		return Bullish
	case Bearish:
		return Bearish
	default:
		return Neutral
	}
}

// FeedItem is a raw feed entry before any pipeline processing.
type FeedItem struct {
	Title       string
	Link        string
	PublishedAt time.Time
	Feed        string
	Channel     string
}

// NewsEvent is an accepted, scored headline. Immutable once created.
type NewsEvent struct {
	Headline    string    `json:"headline"`
	Ticker      string    `json:"ticker"`
	BodyExcerpt string    `json:"bodyExcerpt"`
	Polarity    Polarity  `json:"polarity"`
	Score       float64   `json:"score"`
	Reasons     []string  `json:"reasons"`
	Timestamp   time.Time `json:"timestamp"`
	SourceURL   string    `json:"sourceUrl"`
	SourceFeed  string    `json:"sourceFeed"`
	Channel     string    `json:"channel"`
}

// Analysis is a classifier verdict for a single headline.
type Analysis struct {
	Polarity Polarity
	Score    float64
	Reasons  []string
}

// SchedulerState is the durable scheduler record. LastBriefDate holds a
// YYYY-MM-DD local date so the daily brief fires once per calendar day
// across ticks and restarts.
type SchedulerState struct {
	LastWakeUp    time.Time `json:"lastWakeUp"`
	LastBriefDate string    `json:"lastBriefDate"`
}
