// Package notifier delivers messages and receives commands over the
// Telegram Bot API.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const defaultBaseURL = "https://api.telegram.org"

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BaseURL  string
	BotToken string
	ChatID   string
	Client   *http.Client

	poller *retryablehttp.Client
	log    *slog.Logger
}

// Option configures a TelegramNotifier.
type Option func(*TelegramNotifier)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *TelegramNotifier) {
		t.log = l
	}
}

// WithBaseURL points the notifier at a different Bot API host.
func WithBaseURL(u string) Option {
	return func(t *TelegramNotifier) {
		t.BaseURL = u
	}
}

// NewTelegramNotifier creates a notifier with optional proxy support. chatID
// is both the delivery target and the only chat allowed to issue commands.
func NewTelegramNotifier(botToken, chatID, proxyURL string, opts ...Option) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	t := &TelegramNotifier{
		BaseURL:  defaultBaseURL,
		BotToken: botToken,
		ChatID:   chatID,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.poller = retryablehttp.NewClient()
	t.poller.RetryMax = 3
	t.poller.RetryWaitMin = time.Second
	t.poller.RetryWaitMax = 10 * time.Second
	t.poller.HTTPClient = &http.Client{
		Timeout:   pollTimeout + 5*time.Second,
		Transport: transport,
	}
	t.poller.Logger = leveledLogger{log: t.log, token: botToken}
	return t
}

func (t *TelegramNotifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.BaseURL, t.BotToken, method)
}

// Send delivers text to the configured chat. Delivery is attempted once;
// a failure is returned to the caller and not retried.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	return t.sendTo(ctx, t.ChatID, text)
}

func (t *TelegramNotifier) sendTo(ctx context.Context, chatID, text string) error {
	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", t.redact(err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
