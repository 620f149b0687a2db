package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/approval-sentinel/internal/config"
	"github.com/approval-sentinel/internal/logging"
)

// TelegramNotifier delivers digests through the Telegram Bot API
type TelegramNotifier struct {
	cfg    config.TelegramConfig
	client *http.Client
	log    *logging.Logger
}

// NewTelegramNotifier creates a Telegram digest sink
func NewTelegramNotifier(cfg config.TelegramConfig, log *logging.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log.Named("notify.telegram"),
	}
}

// SendScanDigest posts a compact digest message to the recipient's chat.
// Skipped silently when the bot token or the recipient chat ID is absent.
func (t *TelegramNotifier) SendScanDigest(ctx context.Context, rcpt Recipient, digest Digest) error {
	if t.cfg.BotToken == "" || rcpt.TelegramChatID == "" {
		return nil
	}

	text := fmt.Sprintf("⚠️ %d approval event(s) on %s for %s (blocks %d-%d)",
		digest.TotalEvents, digest.Chain, digest.WalletAddress, digest.FromBlock, digest.ToBlock)
	for _, e := range digest.Events {
		text += fmt.Sprintf("\n• %s %s → %s, risk %d (%s)",
			e.Kind, e.TokenAddress, e.Spender, e.RiskScore, e.RiskLevel)
	}
	if digest.MoreCount > 0 {
		text += fmt.Sprintf("\n…and %d more", digest.MoreCount)
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id": rcpt.TelegramChatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // response body close in defer

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API returned %d: %s", resp.StatusCode, string(body))
	}

	t.log.WithFields(map[string]any{
		"chatId": rcpt.TelegramChatID,
		"events": len(digest.Events),
	}).Info("telegram digest sent")
	return nil
}
