package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// NewBot creates a new Telegram bot
func NewBot(token string, opts Options) (*Bot, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		opts.Logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	opts.Logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))
	return New(api, opts), nil
}

// New creates a bot on top of an existing API client
func New(api Sender, opts Options) *Bot {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	b := &Bot{
		api:      api,
		db:       opts.DB,
		states:   opts.States,
		logger:   opts.Logger,
		echo:     opts.EchoFallback,
		dedupTTL: opts.DedupTTL,
	}
	b.router = b.routes()
	return b
}

// GetAPI returns the bot API client
func (b *Bot) GetAPI() Sender {
	return b.api
}
