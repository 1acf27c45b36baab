// Package notify delivers cycle summaries to operators.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Notifier receives human-readable status messages. Delivery is best
// effort; failures must never affect the scan loop.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Telegram posts messages to a chat via the Bot API.
type Telegram struct {
	botToken string
	chatID   string
	client   *http.Client
	baseURL  string
	logger   *slog.Logger
}

// NewTelegram returns a notifier for the given bot credentials, or nil
// when either credential is missing so callers can skip notification
// entirely.
func NewTelegram(botToken, chatID string, logger *slog.Logger) *Telegram {
	if botToken == "" || chatID == "" {
		return nil
	}
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 15 * time.Second},
		baseURL:  "https://api.telegram.org",
		logger:   logger,
	}
}

// Notify sends one message. Errors are logged and swallowed.
func (t *Telegram) Notify(ctx context.Context, message string) {
	if t == nil || message == "" {
		return
	}

	body, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    message,
	})
	if err != nil {
		t.logger.Warn("telegram payload marshal failed", "error", err)
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.logger.Warn("telegram request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Warn("telegram notification failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.logger.Warn("telegram notification rejected", "status", resp.StatusCode)
	}
}
