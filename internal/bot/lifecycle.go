package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Poller is the long-polling part of the Bot API client
type Poller interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type webhookInfoGetter interface {
	GetWebhookInfo() (tgbotapi.WebhookInfo, error)
}

// StartPolling removes any webhook and handles updates until ctx is done
func (b *Bot) StartPolling(ctx context.Context) error {
	poller, ok := b.api.(Poller)
	if !ok {
		return fmt.Errorf("API client does not support polling")
	}
	b.logger.Info("Starting bot in polling mode")

	// Remove webhook (if any was set previously)
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.Warn("Failed to delete webhook", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := poller.GetUpdatesChan(u)
	defer poller.StopReceivingUpdates()

	b.logger.Info("Bot started successfully. Waiting for updates...")
	b.handleUpdates(ctx, updates)
	return nil
}

// handleUpdates processes updates one at a time, the way Telegram hands them out
func (b *Bot) handleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-updates:
			if !ok {
				return
			}
			update, err := FromTelegram(raw)
			if err != nil {
				b.logger.Debug("Ignoring update", zap.Int("update_id", raw.UpdateID), zap.Error(err))
				continue
			}
			// Errors are logged by Process; polling has no redelivery
			_ = b.Process(ctx, update)
		}
	}
}

// StartWebhook registers <baseURL>/<token> with Telegram
func (b *Bot) StartWebhook(baseURL, token string) error {
	link := strings.TrimRight(baseURL, "/") + "/" + token
	b.logger.Info("Setting up webhook", zap.String("webhook_url", baseURL))

	webhookConfig, err := tgbotapi.NewWebhook(link)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	webhookConfig.MaxConnections = 40

	if _, err := b.api.Request(webhookConfig); err != nil {
		b.logger.Error("Failed to set webhook", zap.Error(err), zap.String("webhook_url", baseURL))
		return err
	}

	// Get webhook info to verify
	if getter, ok := b.api.(webhookInfoGetter); ok {
		info, err := getter.GetWebhookInfo()
		if err != nil {
			b.logger.Warn("Failed to get webhook info", zap.Error(err))
		} else {
			b.logger.Info("Webhook set successfully",
				zap.Int("pending_updates", info.PendingUpdateCount),
				zap.String("last_error", info.LastErrorMessage),
			)
		}
	}

	b.logger.Info("Bot configured for webhook mode")
	return nil
}
