package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"shopbot/internal/metrics"
)

// Button is one inline keyboard button
type Button struct {
	Label string
	Data  string
}

// send makes exactly one attempt. Failures are logged and counted; the
// update that caused the reply still counts as handled.
func (b *Bot) send(c tgbotapi.Chattable, method string, chatID int64) {
	if b.api == nil {
		return // For testing
	}
	if _, err := b.api.Send(c); err != nil {
		metrics.IncSendFailure(method)
		b.logger.Error("Failed to send",
			zap.String("method", method),
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text), "sendMessage", chatID)
}

func (b *Bot) sendReplyKeyboard(chatID int64, text string, rows [][]string) {
	keyboard := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		keyboard = append(keyboard, tgbotapi.NewKeyboardButtonRow(buttons...))
	}
	markup := tgbotapi.NewReplyKeyboard(keyboard...)
	markup.ResizeKeyboard = true

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	b.send(msg, "sendMessage", chatID)
}

func (b *Bot) sendInlineKeyboard(chatID int64, text string, rows [][]Button) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = inlineKeyboard(rows)
	b.send(msg, "sendMessage", chatID)
}

func (b *Bot) sendPhoto(chatID int64, photoURL, caption string, rows [][]Button) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
	photo.Caption = caption
	if len(rows) > 0 {
		photo.ReplyMarkup = inlineKeyboard(rows)
	}
	b.send(photo, "sendPhoto", chatID)
}

// answerCallback stops the button's loading spinner
func (b *Bot) answerCallback(callbackID, text string) {
	if b.api == nil {
		return // For testing
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		metrics.IncSendFailure("answerCallbackQuery")
		b.logger.Warn("Failed to answer callback query",
			zap.String("callback_id", callbackID),
			zap.Error(err),
		)
	}
}

func inlineKeyboard(rows [][]Button) tgbotapi.InlineKeyboardMarkup {
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data))
		}
		keyboard = append(keyboard, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}
