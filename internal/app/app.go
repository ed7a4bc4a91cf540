package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	_ "github.com/lib/pq"

	"StockNewsScanner/internal/config"
	"StockNewsScanner/internal/gate"
	"StockNewsScanner/internal/infrastructure/article"
	"StockNewsScanner/internal/infrastructure/llm"
	"StockNewsScanner/internal/infrastructure/parser"
	"StockNewsScanner/internal/infrastructure/quotes"
	"StockNewsScanner/internal/infrastructure/scheduler"
	"StockNewsScanner/internal/infrastructure/state"
	"StockNewsScanner/internal/infrastructure/storage"
	"StockNewsScanner/internal/infrastructure/telegram"
	"StockNewsScanner/internal/logging"
	"StockNewsScanner/internal/ports"
	"StockNewsScanner/internal/scanner"
	"StockNewsScanner/internal/sched"
	"StockNewsScanner/internal/store"
	"StockNewsScanner/internal/usecase"
)

// Application wires configuration to the pipeline and its lifecycle.
type Application struct {
	cfg      config.Config
	pipeline *usecase.Pipeline
	runner   *usecase.Runner
	logger   *slog.Logger
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewRSSScanner(nil))
	source := parser.NewStrategySource(registry, cfg.Feeds, cfg.Pipeline.MaxEntriesPerScan,
		baseLogger.With("component", "source"))

	var classifier ports.Classifier = llm.KeywordClassifier{}
	if cfg.Pipeline.Classifier == "chatgpt" && cfg.ChatGPT.APIKey != "" {
		classifier = llm.NewChatGPTClassifier(cfg.ChatGPT)
	} else if cfg.Pipeline.Classifier == "chatgpt" {
		baseLogger.Warn("no ChatGPT API key, falling back to keyword classifier")
	}

	var validator ports.TickerValidator
	if cfg.Quotes.Endpoint != "" {
		validator = quotes.NewClient(cfg.Quotes.Endpoint, cfg.Quotes.APIKey,
			baseLogger.With("component", "quotes"))
	}

	files, err := state.NewFiles(cfg.State.Dir)
	if err != nil {
		return nil, fmt.Errorf("state store: %w", err)
	}

	dedupLedger, sentLedger, err := buildLedgers(cfg)
	if err != nil {
		return nil, err
	}

	modes := sched.New(sched.Config{
		Enabled:   cfg.Sleep.Enabled,
		StartHour: cfg.Sleep.StartHour,
		EndHour:   cfg.Sleep.EndHour,
		Weekends:  cfg.Sleep.Weekends,
		BriefHour: cfg.Sleep.BriefHour,
		Location:  cfg.Scheduler.Location(),
	})

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Articles:   article.NewFetcher(nil),
		Classifier: classifier,
		Validator:  validator,
		Dedup:      gate.NewDedup(dedupLedger),
		Rate:       gate.NewRateGate(cfg.Pipeline.TickerCooldown, cfg.Pipeline.HourlyCap),
		Store:      store.New(cfg.Pipeline.Capacity),
		Sent:       sentLedger,
		State:      files,
		Notifier:   telegram.NewNotifier(cfg.Notifications.Telegram, baseLogger.With("component", "telegram")),
		Modes:      modes,
		Settings: usecase.Settings{
			TopK:           cfg.Pipeline.TopK,
			ReportInterval: cfg.Pipeline.ReportInterval,
			Retention:      cfg.Pipeline.Retention,
			ItemDelay:      cfg.Pipeline.ItemDelay,
		},
		Logger: baseLogger.With("component", "pipeline"),
	})

	driver := scheduler.NewCronScheduler(cfg.Scheduler.ScanInterval, cfg.Scheduler.Location())

	return &Application{
		cfg:      cfg,
		pipeline: pipeline,
		runner:   usecase.NewRunner(driver, pipeline),
		logger:   baseLogger,
	}, nil
}

// buildLedgers picks the ledger backend: Postgres when a DSN is
// configured, local JSON files otherwise.
func buildLedgers(cfg config.Config) (ports.DedupLedger, ports.SentLedger, error) {
	if cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		ledger := storage.NewPostgresLedger(db)
		return ledger, ledger, nil
	}

	dedup, err := state.NewSetLedger(filepath.Join(cfg.State.Dir, "processed_articles.json"))
	if err != nil {
		return nil, nil, fmt.Errorf("dedup ledger: %w", err)
	}
	sent, err := state.NewSetLedger(filepath.Join(cfg.State.Dir, "sent_headlines.json"))
	if err != nil {
		return nil, nil, fmt.Errorf("sent ledger: %w", err)
	}
	return dedup, sent, nil
}

// Run restores persisted state, starts the driver loop, and blocks
// until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	a.pipeline.Restore(ctx)

	a.logger.Info("scanner starting",
		"scanInterval", a.cfg.Scheduler.ScanInterval,
		"reportInterval", a.cfg.Pipeline.ReportInterval,
		"feeds", len(a.cfg.Feeds),
		"sleepEnabled", a.cfg.Sleep.Enabled)

	if err := a.runner.Start(ctx); err != nil {
		return fmt.Errorf("start driver: %w", err)
	}

	<-ctx.Done()

	a.logger.Info("shutting down")
	stopCtx := context.Background()
	if err := a.runner.Stop(stopCtx); err != nil {
		a.logger.Error("stop driver", "error", err)
	}
	a.pipeline.Shutdown(stopCtx)
	return nil
}
