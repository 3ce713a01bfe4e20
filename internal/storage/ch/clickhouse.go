package ch

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"

	"shopbot/internal/models"
	"shopbot/internal/storage"
	"shopbot/migrations"
)

var _ storage.Storage = (*ClickHouseDB)(nil)

type ClickHouseDB struct {
	conn clickhouse.Conn
	now  func() time.Time
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(host string, port int, database, user, password string, useTLS bool) (*ClickHouseDB, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	// Configure TLS if enabled
	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn, now: time.Now}, nil
}

// Initialize creates the tables if they do not exist
func (db *ClickHouseDB) Initialize(ctx context.Context) error {
	stmts, err := migrations.Statements("clickhouse")
	if err != nil {
		return storage.Wrap("initialize", err)
	}
	// The native protocol accepts a single statement per Exec
	for _, stmt := range stmts {
		if err := db.conn.Exec(ctx, stmt); err != nil {
			return storage.Wrap("initialize", err)
		}
	}
	return nil
}

// AddUser inserts the user unless it already exists.
// users is a ReplacingMergeTree, so a racing duplicate collapses on merge.
func (db *ClickHouseDB) AddUser(ctx context.Context, userID int64, username string) error {
	var count uint64
	if err := db.conn.QueryRow(ctx, `SELECT count() FROM users WHERE user_id = ?`, userID).Scan(&count); err != nil {
		return storage.Wrap("add user", err)
	}
	if count > 0 {
		return nil
	}
	err := db.conn.Exec(ctx, `INSERT INTO users (user_id, username) VALUES (?, ?)`, userID, username)
	return storage.Wrap("add user", err)
}

// GetUser returns a user by platform id
func (db *ClickHouseDB) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	user := &models.User{ID: userID}
	err := db.conn.QueryRow(ctx, `SELECT username FROM users FINAL WHERE user_id = ? LIMIT 1`, userID).Scan(&user.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.Wrap("get user", err)
	}
	return user, nil
}

// newID returns a UUIDv7. Its canonical string sorts by creation time and
// is monotonic within the process, so it breaks created_at ties.
func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// AddOrder appends an order. The id and timestamp are set here since
// ClickHouse has no RETURNING clause.
func (db *ClickHouseDB) AddOrder(ctx context.Context, userID int64, item string) (models.Order, error) {
	id, err := newID()
	if err != nil {
		return models.Order{}, storage.Wrap("add order", err)
	}
	order := models.Order{
		ID:        id,
		UserID:    userID,
		Item:      item,
		CreatedAt: db.now().UTC().Truncate(time.Millisecond),
	}
	err = db.conn.Exec(ctx, `INSERT INTO orders (id, user_id, item, created_at) VALUES (?, ?, ?, ?)`,
		order.ID, order.UserID, order.Item, order.CreatedAt)
	if err != nil {
		return models.Order{}, storage.Wrap("add order", err)
	}
	return order, nil
}

// GetOrders returns the user's orders, newest first
func (db *ClickHouseDB) GetOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	rows, err := db.conn.Query(ctx,
		`SELECT toString(id), item, created_at FROM orders WHERE user_id = ? ORDER BY created_at DESC, toString(id) DESC`, userID)
	if err != nil {
		return nil, storage.Wrap("get orders", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order := models.Order{UserID: userID}
		if err := rows.Scan(&order.ID, &order.Item, &order.CreatedAt); err != nil {
			return nil, storage.Wrap("get orders", err)
		}
		orders = append(orders, order)
	}
	return orders, storage.Wrap("get orders", rows.Err())
}

// AddFavorite appends a favorite, duplicates included
func (db *ClickHouseDB) AddFavorite(ctx context.Context, userID int64, item string) (models.Favorite, error) {
	id, err := newID()
	if err != nil {
		return models.Favorite{}, storage.Wrap("add favorite", err)
	}
	fav := models.Favorite{
		ID:        id,
		UserID:    userID,
		Item:      item,
		CreatedAt: db.now().UTC().Truncate(time.Millisecond),
	}
	err = db.conn.Exec(ctx, `INSERT INTO favorites (id, user_id, item, created_at) VALUES (?, ?, ?, ?)`,
		fav.ID, fav.UserID, fav.Item, fav.CreatedAt)
	if err != nil {
		return models.Favorite{}, storage.Wrap("add favorite", err)
	}
	return fav, nil
}

// GetFavorites returns the user's favorites, oldest first
func (db *ClickHouseDB) GetFavorites(ctx context.Context, userID int64) ([]models.Favorite, error) {
	rows, err := db.conn.Query(ctx,
		`SELECT toString(id), item, created_at FROM favorites WHERE user_id = ? ORDER BY created_at, toString(id)`, userID)
	if err != nil {
		return nil, storage.Wrap("get favorites", err)
	}
	defer rows.Close()

	var favorites []models.Favorite
	for rows.Next() {
		fav := models.Favorite{UserID: userID}
		if err := rows.Scan(&fav.ID, &fav.Item, &fav.CreatedAt); err != nil {
			return nil, storage.Wrap("get favorites", err)
		}
		favorites = append(favorites, fav)
	}
	return favorites, storage.Wrap("get favorites", rows.Err())
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
