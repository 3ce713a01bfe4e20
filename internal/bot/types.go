package bot

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"shopbot/internal/state"
	"shopbot/internal/storage"
)

// Sender is the part of the Bot API client the bot talks through.
// *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot represents the Telegram bot wrapper
type Bot struct {
	api      Sender
	db       storage.Storage
	states   state.Store
	router   *Router
	locks    userLocks
	logger   *zap.Logger
	echo     bool
	dedupTTL time.Duration
}

// Options configures a Bot
type Options struct {
	DB     storage.Storage
	States state.Store
	Logger *zap.Logger

	// EchoFallback repeats unrouted text back to the user instead of ignoring it
	EchoFallback bool
	// DedupTTL is how long update ids are remembered; zero disables de-duplication
	DedupTTL time.Duration
}
