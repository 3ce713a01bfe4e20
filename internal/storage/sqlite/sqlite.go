// Package sqlite provides the embedded single-file implementation of storage.Storage.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"shopbot/internal/models"
	"shopbot/internal/storage"
	"shopbot/migrations"
)

var _ storage.Storage = (*SQLiteDB)(nil)

// SQLiteDB implements storage.Storage using SQLite
type SQLiteDB struct {
	db *sql.DB
}

// DSN builds the driver connection string for a database file
func DSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

// NewSQLiteDB opens (or creates) the database file at path
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Initialize creates the tables if they do not exist
func (s *SQLiteDB) Initialize(ctx context.Context) error {
	stmts, err := migrations.Statements("sqlite")
	if err != nil {
		return storage.Wrap("initialize", err)
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return storage.Wrap("initialize", err)
		}
	}
	return nil
}

// AddUser inserts the user unless it already exists
func (s *SQLiteDB) AddUser(ctx context.Context, userID int64, username string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (user_id, username) VALUES (?, NULLIF(?, ''))`,
		userID, username)
	return storage.Wrap("add user", err)
}

// GetUser returns a user by platform id
func (s *SQLiteDB) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var username sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT username FROM users WHERE user_id = ?`, userID).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.Wrap("get user", err)
	}
	return &models.User{ID: userID, Username: username.String}, nil
}

// AddOrder appends an order and returns it as stored
func (s *SQLiteDB) AddOrder(ctx context.Context, userID int64, item string) (models.Order, error) {
	var (
		id      int64
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, item) VALUES (?, ?) RETURNING id, created_at`,
		userID, item).Scan(&id, &created)
	if err != nil {
		return models.Order{}, storage.Wrap("add order", err)
	}
	createdAt, err := parseTime(created)
	if err != nil {
		return models.Order{}, storage.Wrap("add order", err)
	}
	return models.Order{ID: strconv.FormatInt(id, 10), UserID: userID, Item: item, CreatedAt: createdAt}, nil
}

// GetOrders returns the user's orders, newest first
func (s *SQLiteDB) GetOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item, created_at FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, storage.Wrap("get orders", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var (
			id      int64
			created string
			order   = models.Order{UserID: userID}
		)
		if err := rows.Scan(&id, &order.Item, &created); err != nil {
			return nil, storage.Wrap("get orders", err)
		}
		if order.CreatedAt, err = parseTime(created); err != nil {
			return nil, storage.Wrap("get orders", err)
		}
		order.ID = strconv.FormatInt(id, 10)
		orders = append(orders, order)
	}
	return orders, storage.Wrap("get orders", rows.Err())
}

// AddFavorite appends a favorite, duplicates included
func (s *SQLiteDB) AddFavorite(ctx context.Context, userID int64, item string) (models.Favorite, error) {
	var (
		id      int64
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO favorites (user_id, item) VALUES (?, ?) RETURNING id, created_at`,
		userID, item).Scan(&id, &created)
	if err != nil {
		return models.Favorite{}, storage.Wrap("add favorite", err)
	}
	createdAt, err := parseTime(created)
	if err != nil {
		return models.Favorite{}, storage.Wrap("add favorite", err)
	}
	return models.Favorite{ID: strconv.FormatInt(id, 10), UserID: userID, Item: item, CreatedAt: createdAt}, nil
}

// GetFavorites returns the user's favorites in insertion order
func (s *SQLiteDB) GetFavorites(ctx context.Context, userID int64) ([]models.Favorite, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item, created_at FROM favorites WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, storage.Wrap("get favorites", err)
	}
	defer rows.Close()

	var favorites []models.Favorite
	for rows.Next() {
		var (
			id      int64
			created string
			fav     = models.Favorite{UserID: userID}
		)
		if err := rows.Scan(&id, &fav.Item, &created); err != nil {
			return nil, storage.Wrap("get favorites", err)
		}
		if fav.CreatedAt, err = parseTime(created); err != nil {
			return nil, storage.Wrap("get favorites", err)
		}
		fav.ID = strconv.FormatInt(id, 10)
		favorites = append(favorites, fav)
	}
	return favorites, storage.Wrap("get favorites", rows.Err())
}

// Close closes the database
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// created_at is written by strftime('%Y-%m-%dT%H:%M:%fZ')
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid created_at %q: %w", s, err)
	}
	return t, nil
}
