package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"StockNewsScanner/internal/config"
	"StockNewsScanner/internal/ports"
	"StockNewsScanner/internal/retry"
)

const defaultAPIBase = "https://api.telegram.org"

// Notifier sends digests to Telegram chats via the bot API, with
// bounded retries on transient failures. Auth and validation errors
// (4xx) fail fast instead of retrying.
type Notifier struct {
	botToken string
	chats    map[string]string
	apiBase  string
	client   *http.Client
	policy   retry.Policy
	logger   *slog.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers the bot token and per-channel chat identifiers.
func NewNotifier(cfg config.TelegramConfig, logger *slog.Logger) *Notifier {
	chats := map[string]string{}
	if cfg.ChatID != "" {
		chats["market"] = cfg.ChatID
	}
	if cfg.BiotechChatID != "" {
		chats["biotech"] = cfg.BiotechChatID
	}
	return &Notifier{
		botToken: cfg.BotToken,
		chats:    chats,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 15 * time.Second},
		policy:   retry.Policy{MaxAttempts: 3, BaseDelay: time.Second},
		logger:   logger,
	}
}

// Send posts a Markdown message to the chat mapped to channel. Channels
// without a dedicated chat fall back to the market chat.
func (n *Notifier) Send(ctx context.Context, channel, text string) error {
	if n.botToken == "" || len(n.chats) == 0 {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	chatID, ok := n.chats[channel]
	if !ok {
		chatID = n.chats["market"]
	}
	if chatID == "" {
		return fmt.Errorf("no chat configured for channel %s", channel)
	}

	err := n.policy.Do(ctx, func() error {
		return n.post(ctx, chatID, text)
	})
	if err != nil {
		return fmt.Errorf("send to channel %s: %w", channel, err)
	}

	if n.logger != nil {
		n.logger.Info("message delivered", "channel", channel)
	}
	return nil
}

func (n *Notifier) post(ctx context.Context, chatID, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &retry.StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(detail))}
	}
	return nil
}
