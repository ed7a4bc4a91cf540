package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"StockNewsScanner/internal/ports"
)

// PostgresLedger stores the dedup and sent ledgers in Postgres, for
// deployments where local JSON files are not durable enough. Expected
// schema:
//
//	CREATE TABLE processed_articles (article_key TEXT PRIMARY KEY, created_at TIMESTAMPTZ DEFAULT NOW());
//	CREATE TABLE sent_headlines (headline TEXT PRIMARY KEY, created_at TIMESTAMPTZ DEFAULT NOW());
type PostgresLedger struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var (
	_ ports.DedupLedger = (*PostgresLedger)(nil)
	_ ports.SentLedger  = (*PostgresLedger)(nil)
)

// NewPostgresLedger wires a sql.DB implementation.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Seen reports whether the article identity is already recorded.
func (l *PostgresLedger) Seen(ctx context.Context, key string) (bool, error) {
	return l.exists(ctx, "processed_articles", "article_key", key)
}

// Mark records an article identity.
func (l *PostgresLedger) Mark(ctx context.Context, key string) error {
	query, args, err := l.builder.
		Insert("processed_articles").
		Columns("article_key").
		Values(key).
		Suffix("ON CONFLICT (article_key) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert article key: %w", err)
	}
	return nil
}

// Sent reports whether the headline was already delivered.
func (l *PostgresLedger) Sent(ctx context.Context, headline string) (bool, error) {
	return l.exists(ctx, "sent_headlines", "headline", headline)
}

// MarkSent records delivered headlines.
func (l *PostgresLedger) MarkSent(ctx context.Context, headlines []string) error {
	if len(headlines) == 0 {
		return nil
	}

	insert := l.builder.
		Insert("sent_headlines").
		Columns("headline").
		Suffix("ON CONFLICT (headline) DO NOTHING")
	for _, headline := range headlines {
		insert = insert.Values(headline)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert sent headlines: %w", err)
	}
	return nil
}

func (l *PostgresLedger) exists(ctx context.Context, table, column, value string) (bool, error) {
	query, args, err := l.builder.
		Select("1").
		From(table).
		Where(sq.Eq{column: value}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = l.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query %s: %w", table, err)
	}
	return true, nil
}
