package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"shopbot/internal/storage"
)

const helpText = `Available commands:
/start - Show the main menu
/catalog - Browse products
/orders - List your orders
/favorites - List your favorites
/cancel - Cancel the current input
/help - Show this help`

// handleStart registers the user and shows the main menu
func (b *Bot) handleStart(ctx context.Context, u *Update) error {
	_, err := b.db.GetUser(ctx, u.UserID)
	returning := err == nil
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	if err := b.db.AddUser(ctx, u.UserID, u.Username); err != nil {
		return err
	}
	b.loggerFor(ctx).Info("/start received",
		zap.Int64("user_id", u.UserID),
		zap.Int64("chat_id", u.ChatID),
		zap.Bool("returning", returning),
	)

	text := "Welcome to the shop! 🛍\nPick an option below."
	if returning {
		text = "Welcome back! 🛍\nPick an option below."
	}
	b.sendReplyKeyboard(u.ChatID, text, mainMenu)
	return nil
}

func (b *Bot) handleHelp(ctx context.Context, u *Update) error {
	b.sendText(u.ChatID, helpText)
	return nil
}

func (b *Bot) handleCancel(ctx context.Context, u *Update) error {
	// The command stage has already cleared any pending input
	b.sendReplyKeyboard(u.ChatID, "Cancelled.", mainMenu)
	return nil
}

func (b *Bot) handleUnknownCommand(ctx context.Context, u *Update) error {
	b.sendText(u.ChatID, "Unknown command. Use /help to see available commands.")
	return nil
}

// handleCatalog lists the categories
func (b *Bot) handleCatalog(ctx context.Context, u *Update) error {
	rows := make([][]Button, 0, len(catalog))
	for _, c := range catalog {
		rows = append(rows, []Button{{Label: c.Name, Data: cbCategoryPrefix + c.Slug}})
	}
	b.sendInlineKeyboard(u.ChatID, "Choose a category:", rows)
	return nil
}

// handleNewOrder asks for a product name and waits for the next message
func (b *Bot) handleNewOrder(ctx context.Context, u *Update) error {
	if err := b.router.Await(ctx, u.UserID, awaitOrderItem); err != nil {
		return err
	}
	b.sendText(u.ChatID, "Enter product name:")
	return nil
}

func (b *Bot) handleOrders(ctx context.Context, u *Update) error {
	orders, err := b.db.GetOrders(ctx, u.UserID)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		b.sendText(u.ChatID, "You have no orders yet.")
		return nil
	}

	var sb strings.Builder
	sb.WriteString("📦 Your orders:\n")
	for _, order := range orders {
		fmt.Fprintf(&sb, "\n• %s (%s)", order.Item, order.CreatedAt.Format("2006-01-02 15:04"))
	}
	b.sendText(u.ChatID, sb.String())
	return nil
}

func (b *Bot) handleFavorites(ctx context.Context, u *Update) error {
	favorites, err := b.db.GetFavorites(ctx, u.UserID)
	if err != nil {
		return err
	}
	if len(favorites) == 0 {
		b.sendText(u.ChatID, "You have no favorites yet.")
		return nil
	}

	var sb strings.Builder
	sb.WriteString("⭐ Your favorites:\n")
	for _, fav := range favorites {
		fmt.Fprintf(&sb, "\n• %s", fav.Item)
	}
	b.sendText(u.ChatID, sb.String())
	return nil
}

func (b *Bot) handleHello(ctx context.Context, u *Update) error {
	b.sendText(u.ChatID, "Hi back! 👋")
	return nil
}

// handleFallback echoes text no route claimed, or stays silent
func (b *Bot) handleFallback(ctx context.Context, u *Update) error {
	if b.echo && strings.TrimSpace(u.Text) != "" {
		b.sendText(u.ChatID, u.Text)
	}
	return nil
}
