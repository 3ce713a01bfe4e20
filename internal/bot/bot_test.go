package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopbot/internal/state"
	"shopbot/internal/storage"
	"shopbot/internal/storage/stubs"
)

// fakeSender records outbound calls instead of talking to Telegram
type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.sendErr
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// texts returns the text of every message sent so far
func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.PhotoConfig:
			out = append(out, m.Caption)
		}
	}
	return out
}

func (f *fakeSender) last() tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
	f.requests = nil
}

type testBot struct {
	*Bot
	db     *stubs.MockDB
	states *state.MemoryStore
	sender *fakeSender
}

func newTestBot(t *testing.T, opts Options) *testBot {
	t.Helper()

	db := stubs.NewMockDB()
	require.NoError(t, db.Initialize(context.Background()))
	states := state.NewMemoryStore(time.Minute)
	sender := &fakeSender{}

	opts.DB = db
	opts.States = states
	opts.Logger = zap.NewNop() // Use nop logger for tests

	return &testBot{Bot: New(sender, opts), db: db, states: states, sender: sender}
}

var nextUpdateID = 1000

func textUpdate(userID int64, text string) *Update {
	nextUpdateID++
	u := &Update{
		ID:       nextUpdateID,
		Kind:     KindMessage,
		ChatID:   userID,
		UserID:   userID,
		Username: "shopper",
		Text:     text,
	}
	u.Command, u.Args = parseCommand(text)
	return u
}

func callbackUpdate(userID int64, data string) *Update {
	nextUpdateID++
	return &Update{
		ID:           nextUpdateID,
		Kind:         KindCallback,
		ChatID:       userID,
		UserID:       userID,
		CallbackID:   "cb-" + data,
		CallbackData: data,
	}
}

func TestBot_CategoryCallback(t *testing.T) {
	tb := newTestBot(t, Options{})
	ctx := context.Background()
	userID := int64(42)

	require.NoError(t, tb.Process(ctx, callbackUpdate(userID, "cat_electronics")))

	texts := tb.sender.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Phone")
	assert.Contains(t, texts[0], "Laptop")

	msg, ok := tb.sender.last().(tgbotapi.MessageConfig)
	require.True(t, ok)
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 3)
	assert.Equal(t, "prod_phone", *markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "prod_laptop", *markup.InlineKeyboard[1][0].CallbackData)

	favorites, err := tb.db.GetFavorites(ctx, userID)
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, "Electronics Category", favorites[0].Item)

	// The button spinner is answered exactly once
	require.Len(t, tb.sender.requests, 1)
	answer, ok := tb.sender.requests[0].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.Equal(t, "cb-cat_electronics", answer.CallbackQueryID)
}

func TestBot_NewOrderConversation(t *testing.T) {
	tb := newTestBot(t, Options{EchoFallback: true})
	ctx := context.Background()
	userID := int64(7)

	require.NoError(t, tb.Process(ctx, textUpdate(userID, "/start")))
	user, err := tb.db.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "shopper", user.Username)

	msg, ok := tb.sender.last().(tgbotapi.MessageConfig)
	require.True(t, ok)
	keyboard, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, keyboard.ResizeKeyboard)
	assert.Equal(t, menuNewOrder, keyboard.Keyboard[0][1].Text)

	require.NoError(t, tb.Process(ctx, textUpdate(userID, "🛒 New Orders")))
	assert.Equal(t, "Enter product name:", tb.sender.texts()[len(tb.sender.texts())-1])

	require.NoError(t, tb.Process(ctx, textUpdate(userID, "Blue Shirt")))

	orders, err := tb.db.GetOrders(ctx, userID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "Blue Shirt", orders[0].Item)
	assert.Equal(t, "✅ Order placed: Blue Shirt", tb.sender.texts()[len(tb.sender.texts())-1])

	// The continuation slot is cleared afterward
	_, pending, err := tb.states.TakePending(ctx, userID)
	require.NoError(t, err)
	assert.False(t, pending)

	// So the next plain text falls through to the echo fallback
	require.NoError(t, tb.Process(ctx, textUpdate(userID, "Blue Shirt")))
	orders, err = tb.db.GetOrders(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, "Blue Shirt", tb.sender.texts()[len(tb.sender.texts())-1])
}

func TestBot_OrderItemRequiresText(t *testing.T) {
	tb := newTestBot(t, Options{})
	ctx := context.Background()

	require.NoError(t, tb.Process(ctx, textUpdate(1, menuNewOrder)))
	require.NoError(t, tb.Process(ctx, textUpdate(1, "   ")))

	orders, err := tb.db.GetOrders(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, orders)

	// Re-armed: the next message is still taken as the product name
	require.NoError(t, tb.Process(ctx, textUpdate(1, "Jeans")))
	orders, err = tb.db.GetOrders(ctx, 1)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "Jeans", orders[0].Item)
}

func TestBot_CommandCancelsConversation(t *testing.T) {
	tb := newTestBot(t, Options{})
	ctx := context.Background()

	require.NoError(t, tb.Process(ctx, textUpdate(1, menuNewOrder)))
	require.NoError(t, tb.Process(ctx, textUpdate(1, "/cancel")))
	require.NoError(t, tb.Process(ctx, textUpdate(1, "Laptop")))

	orders, err := tb.db.GetOrders(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Contains(t, tb.sender.texts(), "Cancelled.")
}

func TestBot_CommandsNeverReachFallback(t *testing.T) {
	tb := newTestBot(t, Options{EchoFallback: true})
	ctx := context.Background()

	for _, cmd := range []string{"/start", "/help", "/catalog", "/orders", "/favorites", "/cancel", "/unknown", "/HELP@shop_bot"} {
		tb.sender.reset()
		require.NoError(t, tb.Process(ctx, textUpdate(3, cmd)), cmd)

		texts := tb.sender.texts()
		require.Len(t, texts, 1, cmd)
		assert.NotEqual(t, cmd, texts[0], "%s was echoed", cmd)
	}
}

func TestBot_MenuButtons(t *testing.T) {
	tb := newTestBot(t, Options{})
	ctx := context.Background()

	require.NoError(t, tb.Process(ctx, textUpdate(5, menuOrders)))
	require.NoError(t, tb.Process(ctx, textUpdate(5, menuFavorites)))
	require.NoError(t, tb.Process(ctx, textUpdate(5, menuHello)))
	assert.Equal(t, []string{"You have no orders yet.", "You have no favorites yet.", "Hi back! 👋"}, tb.sender.texts())

	_, err := tb.db.AddOrder(ctx, 5, "Phone")
	require.NoError(t, err)
	_, err = tb.db.AddFavorite(ctx, 5, "Laptop")
	require.NoError(t, err)

	tb.sender.reset()
	require.NoError(t, tb.Process(ctx, textUpdate(5, menuOrders)))
	require.NoError(t, tb.Process(ctx, textUpdate(5, menuFavorites)))
	texts := tb.sender.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "Phone")
	assert.Contains(t, texts[1], "Laptop")
}

func TestBot_ProductCallbacks(t *testing.T) {
	tb := newTestBot(t, Options{})
	ctx := context.Background()

	require.NoError(t, tb.Process(ctx, callbackUpdate(9, "prod_laptop")))
	photo, ok := tb.sender.last().(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Contains(t, photo.Caption, "Laptop")
	markup, ok := photo.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "order_laptop", *markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "fav_laptop", *markup.InlineKeyboard[0][1].CallbackData)

	require.NoError(t, tb.Process(ctx, callbackUpdate(9, "order_laptop")))
	require.NoError(t, tb.Process(ctx, callbackUpdate(9, "fav_laptop")))
	require.NoError(t, tb.Process(ctx, callbackUpdate(9, "fav_laptop")))

	orders, err := tb.db.GetOrders(ctx, 9)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "Laptop", orders[0].Item)

	favorites, err := tb.db.GetFavorites(ctx, 9)
	require.NoError(t, err)
	assert.Len(t, favorites, 2, "favorites keep duplicates")

	tb.sender.reset()
	require.NoError(t, tb.Process(ctx, callbackUpdate(9, "order_toaster")))
	assert.Equal(t, []string{"Product not found"}, tb.sender.texts())

	// Unregistered buttons are answered and otherwise ignored
	tb.sender.reset()
	require.NoError(t, tb.Process(ctx, callbackUpdate(9, "nothing_here")))
	assert.Empty(t, tb.sender.texts())
	assert.Len(t, tb.sender.requests, 1)
}

func TestBot_Fallback(t *testing.T) {
	echo := newTestBot(t, Options{EchoFallback: true})
	require.NoError(t, echo.Process(context.Background(), textUpdate(1, "anything")))
	assert.Equal(t, []string{"anything"}, echo.sender.texts())

	silent := newTestBot(t, Options{})
	require.NoError(t, silent.Process(context.Background(), textUpdate(1, "anything")))
	assert.Empty(t, silent.sender.texts())
}

func TestBot_StorageErrorPropagates(t *testing.T) {
	tb := newTestBot(t, Options{DedupTTL: time.Hour})
	ctx := context.Background()
	tb.db.FailWith = errors.New("connection lost")

	u := callbackUpdate(11, "cat_books")
	err := tb.Process(ctx, u)

	var se *storage.StorageError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, "add favorite", se.Op)

	// The failed update must be processed again on redelivery
	tb.db.FailWith = nil
	require.NoError(t, tb.Process(ctx, u))
	favorites, err := tb.db.GetFavorites(ctx, 11)
	require.NoError(t, err)
	assert.Len(t, favorites, 1)
}

func TestBot_FailedContinuationIsRetried(t *testing.T) {
	tb := newTestBot(t, Options{DedupTTL: time.Hour})
	ctx := context.Background()
	userID := int64(14)

	require.NoError(t, tb.Process(ctx, textUpdate(userID, menuNewOrder)))

	tb.db.FailWith = errors.New("connection lost")
	u := textUpdate(userID, "Blue Shirt")
	require.Error(t, tb.Process(ctx, u))

	// Telegram redelivers the same update once the store is back
	tb.db.FailWith = nil
	tb.sender.reset()
	require.NoError(t, tb.Process(ctx, u))

	orders, err := tb.db.GetOrders(ctx, userID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "Blue Shirt", orders[0].Item)
	assert.Equal(t, []string{"✅ Order placed: Blue Shirt"}, tb.sender.texts())

	_, pending, err := tb.states.TakePending(ctx, userID)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestBot_DuplicateUpdateSkipped(t *testing.T) {
	tb := newTestBot(t, Options{DedupTTL: time.Hour})
	ctx := context.Background()

	u := callbackUpdate(12, "order_phone")
	require.NoError(t, tb.Process(ctx, u))
	require.NoError(t, tb.Process(ctx, u))

	orders, err := tb.db.GetOrders(ctx, 12)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestBot_DedupDisabled(t *testing.T) {
	tb := newTestBot(t, Options{})
	ctx := context.Background()

	u := callbackUpdate(13, "order_phone")
	require.NoError(t, tb.Process(ctx, u))
	require.NoError(t, tb.Process(ctx, u))

	orders, err := tb.db.GetOrders(ctx, 13)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestBot_PanicBecomesHandlerError(t *testing.T) {
	tb := newTestBot(t, Options{})
	tb.router.Command("boom", func(ctx context.Context, u *Update) error {
		panic("kaboom")
	})

	err := tb.Process(context.Background(), textUpdate(1, "/boom"))

	var he *HandlerError
	require.True(t, errors.As(err, &he), "got %v", err)
	assert.Equal(t, StageCommand, he.Stage)
	assert.Equal(t, "/boom", he.Route)
	assert.Equal(t, "kaboom", he.Value)
	assert.Contains(t, tb.sender.texts(), "An error occurred while processing your request. Please try again.")
}

func TestBot_SendFailureDoesNotFailUpdate(t *testing.T) {
	tb := newTestBot(t, Options{})
	tb.sender.sendErr = errors.New("Forbidden: bot was blocked by the user")

	require.NoError(t, tb.Process(context.Background(), textUpdate(1, "/start")))
	assert.Len(t, tb.sender.sent, 1, "exactly one attempt")
}

func TestBot_SameUserIsSerialized(t *testing.T) {
	tb := newTestBot(t, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tb.Process(ctx, &Update{Kind: KindCallback, UserID: 77, ChatID: 77, CallbackID: "x", CallbackData: "order_jeans"}))
		}()
	}
	wg.Wait()

	orders, err := tb.db.GetOrders(ctx, 77)
	require.NoError(t, err)
	assert.Len(t, orders, 20)
}
