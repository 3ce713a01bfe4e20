package bot

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePoller feeds updates from a channel the test controls
type fakePoller struct {
	fakeSender
	updates chan tgbotapi.Update
	stopped chan struct{}
}

func (f *fakePoller) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakePoller) StopReceivingUpdates() {
	close(f.stopped)
}

func TestBot_StartPolling(t *testing.T) {
	tb := newTestBot(t, Options{})
	poller := &fakePoller{updates: make(chan tgbotapi.Update), stopped: make(chan struct{})}
	tb.api = poller

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tb.StartPolling(ctx) }()

	poller.updates <- tgbotapi.Update{
		UpdateID: 1,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "q1",
			From: &tgbotapi.User{ID: 8},
			Data: "order_novel",
		},
	}
	// Unsupported updates are skipped without stopping the loop
	poller.updates <- tgbotapi.Update{UpdateID: 2, EditedMessage: &tgbotapi.Message{}}
	poller.updates <- tgbotapi.Update{
		UpdateID: 3,
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: 8},
			Chat: &tgbotapi.Chat{ID: 8},
			Text: "Hello 👋",
		},
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
	<-poller.stopped

	orders, err := tb.db.GetOrders(context.Background(), 8)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "Novel", orders[0].Item)
	assert.Contains(t, poller.texts(), "Hi back! 👋")

	// Webhook removal comes first
	_, ok := poller.requests[0].(tgbotapi.DeleteWebhookConfig)
	assert.True(t, ok)
}

func TestBot_StartPollingNeedsPoller(t *testing.T) {
	tb := newTestBot(t, Options{})
	assert.Error(t, tb.StartPolling(context.Background()))
}

func TestBot_StartWebhook(t *testing.T) {
	tb := newTestBot(t, Options{})

	require.NoError(t, tb.StartWebhook("https://shop.example.com/", testToken))

	require.Len(t, tb.sender.requests, 1)
	cfg, ok := tb.sender.requests[0].(tgbotapi.WebhookConfig)
	require.True(t, ok)
	assert.Equal(t, "https://shop.example.com/"+testToken, cfg.URL.String())
	assert.Equal(t, 40, cfg.MaxConnections)
}
