package bot

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// handleOrderItem receives the product name requested by handleNewOrder
func (b *Bot) handleOrderItem(ctx context.Context, u *Update) error {
	item := strings.TrimSpace(u.Text)
	if item == "" {
		// Stickers, photos and blank text carry no name; ask again
		if err := b.router.Await(ctx, u.UserID, awaitOrderItem); err != nil {
			return err
		}
		b.sendText(u.ChatID, "Please send the product name as text:")
		return nil
	}

	order, err := b.db.AddOrder(ctx, u.UserID, item)
	if err != nil {
		return err
	}
	b.loggerFor(ctx).Info("Order placed",
		zap.Int64("user_id", u.UserID),
		zap.String("order_id", order.ID),
		zap.String("item", order.Item),
	)

	b.sendReplyKeyboard(u.ChatID, "✅ Order placed: "+order.Item, mainMenu)
	return nil
}
