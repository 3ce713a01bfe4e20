package bot

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// handleCategoryCallback lists a category and remembers it as a favorite
func (b *Bot) handleCategoryCallback(ctx context.Context, u *Update) error {
	category, ok := findCategory(strings.TrimPrefix(u.CallbackData, cbCategoryPrefix))
	if !ok {
		b.sendText(u.ChatID, "Category not found")
		return nil
	}

	if _, err := b.db.AddFavorite(ctx, u.UserID, category.Name+" Category"); err != nil {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:\n", category.Name)
	rows := make([][]Button, 0, len(category.Products)+1)
	for _, p := range category.Products {
		fmt.Fprintf(&sb, "\n• %s - $%d", p.Name, p.Price)
		rows = append(rows, []Button{{Label: p.Name, Data: cbProductPrefix + p.Slug}})
	}
	rows = append(rows, []Button{{Label: "⬅ Back", Data: cbCatalog}})

	b.sendInlineKeyboard(u.ChatID, sb.String(), rows)
	return nil
}

// handleProductCallback shows a product card
func (b *Bot) handleProductCallback(ctx context.Context, u *Update) error {
	product, ok := findProduct(strings.TrimPrefix(u.CallbackData, cbProductPrefix))
	if !ok {
		b.sendText(u.ChatID, "Product not found")
		return nil
	}

	b.sendPhoto(u.ChatID, product.Photo, product.caption(), [][]Button{{
		{Label: "🛒 Order", Data: cbOrderPrefix + product.Slug},
		{Label: "⭐ Favorite", Data: cbFavoritePrefix + product.Slug},
	}})
	return nil
}

func (b *Bot) handleOrderCallback(ctx context.Context, u *Update) error {
	product, ok := findProduct(strings.TrimPrefix(u.CallbackData, cbOrderPrefix))
	if !ok {
		b.sendText(u.ChatID, "Product not found")
		return nil
	}

	order, err := b.db.AddOrder(ctx, u.UserID, product.Name)
	if err != nil {
		return err
	}
	b.loggerFor(ctx).Info("Order placed",
		zap.Int64("user_id", u.UserID),
		zap.String("order_id", order.ID),
		zap.String("item", order.Item),
	)

	b.sendText(u.ChatID, "✅ Order placed: "+product.Name)
	return nil
}

func (b *Bot) handleFavoriteCallback(ctx context.Context, u *Update) error {
	product, ok := findProduct(strings.TrimPrefix(u.CallbackData, cbFavoritePrefix))
	if !ok {
		b.sendText(u.ChatID, "Product not found")
		return nil
	}

	if _, err := b.db.AddFavorite(ctx, u.UserID, product.Name); err != nil {
		return err
	}
	b.sendText(u.ChatID, "⭐ Added to favorites: "+product.Name)
	return nil
}
