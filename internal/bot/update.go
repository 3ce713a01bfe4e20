package bot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var (
	// ErrMalformedUpdate is returned when the body is not JSON or lacks the fields routing needs
	ErrMalformedUpdate = errors.New("malformed update")
	// ErrUnsupportedUpdate is returned for update types the bot does not handle
	ErrUnsupportedUpdate = errors.New("unsupported update")
)

// Kind tags an Update
type Kind string

const (
	KindMessage  Kind = "message"
	KindCallback Kind = "callback"
)

// Update is the decoded form of one inbound event
type Update struct {
	ID       int
	Kind     Kind
	ChatID   int64
	UserID   int64
	Username string

	// Message fields
	Text    string
	Command string // lower-cased command token without the slash, empty for plain text
	Args    string

	// Callback fields
	CallbackID   string
	CallbackData string
	MessageID    int // message the pressed button belongs to, 0 if unknown
}

// IsCommand reports whether the update is a message starting with a command token
func (u *Update) IsCommand() bool {
	return u.Kind == KindMessage && u.Command != ""
}

// Decode parses a webhook body into an Update
func Decode(body []byte) (*Update, error) {
	var raw tgbotapi.Update
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
	}
	return FromTelegram(raw)
}

// FromTelegram converts a Bot API update into an Update
func FromTelegram(raw tgbotapi.Update) (*Update, error) {
	switch {
	case raw.Message != nil:
		return fromMessage(raw.UpdateID, raw.Message)
	case raw.CallbackQuery != nil:
		return fromCallback(raw.UpdateID, raw.CallbackQuery)
	case raw.UpdateID == 0:
		return nil, fmt.Errorf("%w: no update_id", ErrMalformedUpdate)
	default:
		return nil, fmt.Errorf("%w: update %d", ErrUnsupportedUpdate, raw.UpdateID)
	}
}

func fromMessage(id int, m *tgbotapi.Message) (*Update, error) {
	if m.Chat == nil {
		return nil, fmt.Errorf("%w: message without chat", ErrMalformedUpdate)
	}
	if m.From == nil {
		return nil, fmt.Errorf("%w: message without sender", ErrMalformedUpdate)
	}

	u := &Update{
		ID:        id,
		Kind:      KindMessage,
		ChatID:    m.Chat.ID,
		UserID:    m.From.ID,
		Username:  m.From.UserName,
		Text:      m.Text,
		MessageID: m.MessageID,
	}
	u.Command, u.Args = parseCommand(m.Text)
	return u, nil
}

func fromCallback(id int, q *tgbotapi.CallbackQuery) (*Update, error) {
	if q.ID == "" || q.From == nil {
		return nil, fmt.Errorf("%w: callback without id or sender", ErrMalformedUpdate)
	}
	if q.Data == "" {
		return nil, fmt.Errorf("%w: callback without data", ErrMalformedUpdate)
	}

	u := &Update{
		ID:           id,
		Kind:         KindCallback,
		ChatID:       q.From.ID,
		UserID:       q.From.ID,
		Username:     q.From.UserName,
		CallbackID:   q.ID,
		CallbackData: q.Data,
	}
	// Private chat ids equal the user id, so the sender is a safe default
	if q.Message != nil {
		u.MessageID = q.Message.MessageID
		if q.Message.Chat != nil {
			u.ChatID = q.Message.Chat.ID
		}
	}
	return u, nil
}

// parseCommand splits "/Start@shop_bot foo bar" into ("start", "foo bar")
func parseCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	token, args := text[1:], ""
	if i := strings.IndexFunc(token, unicode.IsSpace); i >= 0 {
		token, args = token[:i], token[i+1:]
	}
	token, _, _ = strings.Cut(token, "@")
	token = strings.ToLower(token)
	if token == "" {
		return "", ""
	}
	return token, strings.TrimSpace(args)
}
