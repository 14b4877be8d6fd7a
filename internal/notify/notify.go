// Package notify delivers guardian alerts over the configured channel.
// Delivery failures are logged, never fatal; an alert must not break the
// poll loop.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ethereumdegen/stark-guardian/internal/httpx"
	"github.com/rs/zerolog"
)

const (
	ChannelConsole  = "console"
	ChannelWebhook  = "webhook"
	ChannelTelegram = "telegram"
)

type Config struct {
	Channel    string
	WebhookURL string

	// Telegram credentials, usually sourced from the environment.
	TelegramBotToken string
	TelegramChatID   string
}

// withEnvFallback fills telegram credentials from the environment when unset.
func (c Config) withEnvFallback() Config {
	if c.TelegramBotToken == "" {
		c.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if c.TelegramChatID == "" {
		c.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")
	}
	return c
}

type Notifier struct {
	http *httpx.Client
	cfg  Config
	log  zerolog.Logger
	out  io.Writer
}

func New(httpClient *httpx.Client, cfg Config, log zerolog.Logger) *Notifier {
	if cfg.Channel == "" {
		cfg.Channel = ChannelConsole
	}
	return &Notifier{http: httpClient, cfg: cfg.withEnvFallback(), log: log, out: os.Stdout}
}

// Send delivers message over the configured channel. Unknown channels fall
// back to console with a warning.
func (n *Notifier) Send(ctx context.Context, message string) {
	switch n.cfg.Channel {
	case ChannelConsole:
		fmt.Fprintln(n.out, message)
	case ChannelWebhook:
		n.sendWebhook(ctx, message)
	case ChannelTelegram:
		n.sendTelegram(ctx, message)
	default:
		n.log.Warn().Str("channel", n.cfg.Channel).Msg("unknown notification channel, printing to console")
		fmt.Fprintln(n.out, message)
	}
}

func (n *Notifier) sendWebhook(ctx context.Context, message string) {
	if n.cfg.WebhookURL == "" {
		n.log.Warn().Msg("webhook channel selected but no webhook url configured")
		return
	}
	payload := map[string]string{"text": message}
	if err := n.http.PostJSON(ctx, n.cfg.WebhookURL, payload, nil); err != nil {
		n.log.Error().Err(err).Msg("webhook notification failed")
	}
}

func (n *Notifier) sendTelegram(ctx context.Context, message string) {
	if n.cfg.TelegramBotToken == "" || n.cfg.TelegramChatID == "" {
		n.log.Warn().Msg("telegram channel selected but TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID not set")
		return
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.cfg.TelegramBotToken)
	payload := map[string]string{
		"chat_id":    n.cfg.TelegramChatID,
		"text":       message,
		"parse_mode": "Markdown",
	}
	if err := n.http.PostJSON(ctx, url, payload, nil); err != nil {
		n.log.Error().Err(err).Msg("telegram notification failed")
	}
}
