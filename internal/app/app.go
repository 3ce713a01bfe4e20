package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"shopbot/internal/bot"
	"shopbot/internal/config"
	"shopbot/internal/logging"
	"shopbot/internal/metrics"
	"shopbot/internal/state"
	"shopbot/internal/storage"
	"shopbot/internal/storage/ch"
	"shopbot/internal/storage/pg"
	"shopbot/internal/storage/sqlite"
	"shopbot/internal/storage/stubs"
)

// App represents the application
type App struct {
	config *config.Config
	logger *zap.Logger
	db     storage.Storage
	states state.Store
	bot    *bot.Bot
	server *http.Server

	// Set when the storage backend exposes pool statistics
	poolStats func() (total, idle, inUse int32)
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	envErr := godotenv.Load()

	// Load configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Dev)
	if err != nil {
		return nil, err
	}
	if envErr != nil {
		logger.Debug("No .env file found, using system environment variables")
	}

	metrics.MustRegister()

	app := &App{config: cfg, logger: logger}
	logger.Info("Starting shop bot...",
		zap.String("mode", cfg.Mode()),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("state", cfg.State.Backend),
	)

	ctx := context.Background()

	// Initialize database
	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	// Initialize continuation store
	if err := app.initState(ctx); err != nil {
		app.db.Close()
		return nil, err
	}

	// Initialize bot
	if err := app.initBot(); err != nil {
		app.states.Close()
		app.db.Close()
		return nil, err
	}

	app.initHTTPServer()
	return app, nil
}

// initDatabase connects the configured backend and creates the schema
func (a *App) initDatabase(ctx context.Context) error {
	var db storage.Storage
	sc := a.config.Storage

	switch sc.Driver {
	case config.DriverMemory:
		a.logger.Info("Using in-memory database")
		db = stubs.NewMockDB()
	case config.DriverSQLite:
		a.logger.Info("Opening SQLite database", zap.String("path", sc.SQLitePath))
		sqliteDB, err := sqlite.NewSQLiteDB(sc.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open SQLite: %w", err)
		}
		db = sqliteDB
	case config.DriverPostgres:
		a.logger.Info("Connecting to Postgres", zap.Int32("max_conns", sc.MaxConns))
		pgDB, err := pg.NewPostgresDB(ctx, sc.DatabaseURL, sc.MaxConns)
		if err != nil {
			return err
		}
		a.poolStats = pgDB.PoolStats
		db = pgDB
	case config.DriverClickHouse:
		a.logger.Info("Connecting to ClickHouse",
			zap.String("host", sc.ClickHouseHost),
			zap.Int("port", sc.ClickHousePort),
			zap.String("database", sc.ClickHouseDatabase),
			zap.String("user", sc.ClickHouseUser),
			zap.Bool("tls", sc.ClickHouseUseTLS),
		)
		chDB, err := ch.NewClickHouseDB(
			sc.ClickHouseHost,
			sc.ClickHousePort,
			sc.ClickHouseDatabase,
			sc.ClickHouseUser,
			sc.ClickHousePassword,
			sc.ClickHouseUseTLS,
		)
		if err != nil {
			return err
		}
		db = chDB
	default:
		return fmt.Errorf("unknown storage driver %q", sc.Driver)
	}

	// Create tables if they do not exist
	if err := db.Initialize(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.logger.Info("Database initialized successfully")

	a.db = db
	return nil
}

// initState sets up where continuations and seen update ids live
func (a *App) initState(ctx context.Context) error {
	sc := a.config.State

	if sc.Backend == config.StateRedis {
		a.logger.Info("Connecting to Redis", zap.String("addr", sc.RedisAddr), zap.Int("db", sc.RedisDB))
		store, err := state.NewRedisStore(ctx, state.RedisConfig{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
		}, sc.ContinuationTTL)
		if err != nil {
			return err
		}
		a.states = store
		return nil
	}

	a.states = state.NewMemoryStore(sc.ContinuationTTL)
	return nil
}

// initBot initializes the Telegram bot
func (a *App) initBot() error {
	telegramBot, err := bot.NewBot(a.config.TelegramToken, bot.Options{
		DB:           a.db,
		States:       a.states,
		Logger:       a.logger,
		EchoFallback: a.config.FallbackMode == config.FallbackEcho,
		DedupTTL:     a.config.State.DedupTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	a.bot = telegramBot
	return nil
}

// initHTTPServer builds the server for the webhook, liveness and metrics routes
func (a *App) initHTTPServer() {
	a.server = &http.Server{
		Addr:              ":" + a.config.Port,
		Handler:           bot.NewHTTPServer(a.bot, a.config.TelegramToken).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if a.poolStats != nil {
		go a.reportPoolStats(ctx)
	}

	// Start bot in appropriate mode
	if a.config.WebhookMode {
		if a.config.WebhookURL != "" {
			if err := a.bot.StartWebhook(a.config.WebhookURL, a.config.TelegramToken); err != nil {
				a.Shutdown()
				return fmt.Errorf("failed to setup webhook: %w", err)
			}
		}
		a.logger.Info("Bot will receive updates via HTTP endpoint /<token>")
	} else {
		go func() {
			if err := a.bot.StartPolling(ctx); err != nil {
				a.logger.Error("Polling stopped", zap.Error(err))
				stop()
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down...")
	case runErr = <-serverErr:
		a.logger.Error("HTTP server error", zap.Error(runErr))
	}

	if err := a.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (a *App) reportPoolStats(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetDBPoolStats(a.poolStats())
		}
	}
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	// Shutdown HTTP server gracefully
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	if err := a.states.Close(); err != nil {
		a.logger.Warn("Error closing state store", zap.Error(err))
	}

	// Close database
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database", zap.Error(err))
		return err
	}

	a.logger.Info("Shutdown complete")
	_ = a.logger.Sync()
	return nil
}
