package bot

// Reply keyboard labels
const (
	menuCatalog   = "🛍 Catalog"
	menuNewOrder  = "🛒 New Orders"
	menuOrders    = "📦 My Orders"
	menuFavorites = "⭐ Favorites"
	menuHello     = "Hello 👋"
)

// Callback data
const (
	cbCatalog        = "catalog"
	cbCategoryPrefix = "cat_"
	cbProductPrefix  = "prod_"
	cbOrderPrefix    = "order_"
	cbFavoritePrefix = "fav_"
)

// Continuation tokens
const (
	awaitOrderItem = "order_item"
)

var mainMenu = [][]string{
	{menuCatalog, menuNewOrder},
	{menuOrders, menuFavorites},
	{menuHello},
}

// routes builds the dispatch table
func (b *Bot) routes() *Router {
	r := NewRouter(b.states, b.logger)

	r.Command("start", b.handleStart)
	r.Command("help", b.handleHelp)
	r.Command("catalog", b.handleCatalog)
	r.Command("orders", b.handleOrders)
	r.Command("favorites", b.handleFavorites)
	r.Command("cancel", b.handleCancel)
	r.UnknownCommand(b.handleUnknownCommand)

	r.Continuation(awaitOrderItem, b.handleOrderItem)

	r.Callback(cbCatalog, b.handleCatalog)
	r.CallbackPrefix(cbCategoryPrefix, b.handleCategoryCallback)
	r.CallbackPrefix(cbProductPrefix, b.handleProductCallback)
	r.CallbackPrefix(cbOrderPrefix, b.handleOrderCallback)
	r.CallbackPrefix(cbFavoritePrefix, b.handleFavoriteCallback)

	r.Menu(menuCatalog, b.handleCatalog)
	r.Menu(menuNewOrder, b.handleNewOrder)
	r.Menu(menuOrders, b.handleOrders)
	r.Menu(menuFavorites, b.handleFavorites)
	r.Menu(menuHello, b.handleHello)

	r.Fallback(b.handleFallback)
	return r
}
