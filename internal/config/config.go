package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone      = "America/New_York"
	configPathEnv        = "STOCK_SCANNER_CONFIG"
	databaseDSNEnv       = "DATABASE_DSN"
	openAIAPIKeyEnv      = "OPENAI_API_KEY"
	chatGPTModelEnv      = "CHATGPT_MODEL"
	telegramTokenEnv     = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv    = "TELEGRAM_CHAT_ID"
	telegramBiotechEnv   = "TELEGRAM_BIOTECH_CHAT_ID"
	quotesEndpointEnv    = "QUOTES_API_URL"
	quotesAPIKeyEnv      = "QUOTES_API_KEY"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Sleep         SleepConfig        `yaml:"sleep"`
	Notifications NotificationConfig `yaml:"notifications"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Quotes        QuotesConfig       `yaml:"quotes"`
	State         StateConfig        `yaml:"state"`
	Feeds         []FeedConfig       `yaml:"feeds"`
}

// LoggingConfig controls console log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes the optional Postgres ledger backend.
// An empty DSN keeps the ledgers in local JSON files.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SchedulerConfig defines how often the driver loop ticks.
type SchedulerConfig struct {
	ScanInterval time.Duration  `yaml:"scanInterval"`
	Timezone     string         `yaml:"timezone"`
	location     *time.Location `yaml:"-"`
}

// Location resolves the configured timezone to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// PipelineConfig tunes the event pipeline itself.
type PipelineConfig struct {
	ReportInterval    time.Duration `yaml:"reportInterval"`
	Retention         time.Duration `yaml:"retention"`
	Capacity          int           `yaml:"capacity"`
	TopK              int           `yaml:"topK"`
	MaxEntriesPerScan int           `yaml:"maxEntriesPerScan"`
	ItemDelay         time.Duration `yaml:"itemDelay"`
	TickerCooldown    time.Duration `yaml:"tickerCooldown"`
	HourlyCap         int           `yaml:"hourlyCap"`
	Classifier        string        `yaml:"classifier"`
}

// SleepConfig defines the nightly collection-only window.
type SleepConfig struct {
	Enabled   bool `yaml:"enabled"`
	StartHour int  `yaml:"startHour"`
	EndHour   int  `yaml:"endHour"`
	Weekends  bool `yaml:"weekends"`
	BriefHour int  `yaml:"briefHour"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken      string `yaml:"botToken"`
	ChatID        string `yaml:"chatId"`
	BiotechChatID string `yaml:"biotechChatId"`
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// QuotesConfig describes the quote API used for ticker validation.
// An empty endpoint disables validation.
type QuotesConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// StateConfig points at the directory holding persisted JSON records.
type StateConfig struct {
	Dir string `yaml:"dir"`
}

// FeedConfig describes a single feed with its scanner strategy and the
// channel its alerts are routed to.
type FeedConfig struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Scanner string `yaml:"scanner"`
	Channel string `yaml:"channel"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Feeds) == 0 {
		cfg.Feeds = defaultConfig().Feeds
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(telegramBiotechEnv); v != "" {
		c.Notifications.Telegram.BiotechChatID = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
	}

	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.ChatGPT.Model = v
	}

	if v := os.Getenv(quotesEndpointEnv); v != "" {
		c.Quotes.Endpoint = v
	}

	if v := os.Getenv(quotesAPIKeyEnv); v != "" {
		c.Quotes.APIKey = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Scheduler.ScanInterval > 0 {
		base.Scheduler.ScanInterval = override.Scheduler.ScanInterval
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Pipeline.ReportInterval > 0 {
		base.Pipeline.ReportInterval = override.Pipeline.ReportInterval
	}
	if override.Pipeline.Retention > 0 {
		base.Pipeline.Retention = override.Pipeline.Retention
	}
	if override.Pipeline.Capacity > 0 {
		base.Pipeline.Capacity = override.Pipeline.Capacity
	}
	if override.Pipeline.TopK > 0 {
		base.Pipeline.TopK = override.Pipeline.TopK
	}
	if override.Pipeline.MaxEntriesPerScan > 0 {
		base.Pipeline.MaxEntriesPerScan = override.Pipeline.MaxEntriesPerScan
	}
	if override.Pipeline.ItemDelay > 0 {
		base.Pipeline.ItemDelay = override.Pipeline.ItemDelay
	}
	if override.Pipeline.TickerCooldown > 0 {
		base.Pipeline.TickerCooldown = override.Pipeline.TickerCooldown
	}
	if override.Pipeline.HourlyCap > 0 {
		base.Pipeline.HourlyCap = override.Pipeline.HourlyCap
	}
	if override.Pipeline.Classifier != "" {
		base.Pipeline.Classifier = override.Pipeline.Classifier
	}

	if override.Sleep != (SleepConfig{}) {
		base.Sleep = override.Sleep
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.BiotechChatID != "" {
		base.Notifications.Telegram.BiotechChatID = override.Notifications.Telegram.BiotechChatID
	}

	if override.ChatGPT.Endpoint != "" {
		base.ChatGPT.Endpoint = override.ChatGPT.Endpoint
	}
	if override.ChatGPT.Model != "" {
		base.ChatGPT.Model = override.ChatGPT.Model
	}
	if override.ChatGPT.APIKey != "" {
		base.ChatGPT.APIKey = override.ChatGPT.APIKey
	}
	if override.ChatGPT.SystemPrompt != "" {
		base.ChatGPT.SystemPrompt = override.ChatGPT.SystemPrompt
	}

	if override.Quotes.Endpoint != "" {
		base.Quotes.Endpoint = override.Quotes.Endpoint
	}
	if override.Quotes.APIKey != "" {
		base.Quotes.APIKey = override.Quotes.APIKey
	}

	if override.State.Dir != "" {
		base.State = override.State
	}

	if len(override.Feeds) > 0 {
		base.Feeds = override.Feeds
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{DSN: ""},
		Scheduler: SchedulerConfig{
			ScanInterval: time.Minute,
			Timezone:     defaultTimezone,
			location:     tz,
		},
		Pipeline: PipelineConfig{
			ReportInterval:    5 * time.Minute,
			Retention:         5 * time.Minute,
			Capacity:          100,
			TopK:              5,
			MaxEntriesPerScan: 20,
			ItemDelay:         2 * time.Second,
			TickerCooldown:    30 * time.Minute,
			HourlyCap:         6,
			Classifier:        "chatgpt",
		},
		Sleep: SleepConfig{
			Enabled:   true,
			StartHour: 21,
			EndHour:   7,
			Weekends:  true,
			BriefHour: 7,
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BotToken: "", ChatID: "", BiotechChatID: ""},
		},
		ChatGPT: ChatGPTConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-3.5-turbo",
			APIKey:       "",
			SystemPrompt: "You are a financial news analyst specializing in stock market sentiment analysis.",
		},
		Quotes: QuotesConfig{Endpoint: "", APIKey: ""},
		State:  StateConfig{Dir: "data"},
		Feeds: []FeedConfig{
			{Name: "cnbc-top", URL: "https://www.cnbc.com/id/15839135/device/rss/rss.html", Scanner: "rss", Channel: "market"},
			{Name: "marketwatch-top", URL: "https://www.marketwatch.com/rss/topstories", Scanner: "rss", Channel: "market"},
			{Name: "investing-news", URL: "https://www.investing.com/rss/news.rss", Scanner: "rss", Channel: "market"},
			{Name: "fiercebiotech", URL: "https://www.fiercebiotech.com/rss.xml", Scanner: "rss", Channel: "biotech"},
			{Name: "biospace", URL: "https://www.biospace.com/rss", Scanner: "rss", Channel: "biotech"},
		},
	}
}
