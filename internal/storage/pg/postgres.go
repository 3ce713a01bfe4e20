package pg

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"shopbot/internal/models"
	"shopbot/internal/storage"
	"shopbot/migrations"
)

var _ storage.Storage = (*PostgresDB)(nil)

// PostgresDB implements storage.Storage on a pgx connection pool.
// Every operation checks a connection out of the pool and returns it when done,
// so concurrent requests never share a connection.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB connects to the database described by dsn
func NewPostgresDB(ctx context.Context, dsn string, maxConns int32) (*PostgresDB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.ConnectConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// withConn runs fn on a connection checked out for this call only
func (db *PostgresDB) withConn(ctx context.Context, op string, fn func(conn *pgxpool.Conn) error) error {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return storage.Wrap(op, err)
	}
	defer conn.Release()

	return storage.Wrap(op, fn(conn))
}

// Initialize creates the tables if they do not exist
func (db *PostgresDB) Initialize(ctx context.Context) error {
	stmts, err := migrations.Statements("postgres")
	if err != nil {
		return storage.Wrap("initialize", err)
	}
	return db.withConn(ctx, "initialize", func(conn *pgxpool.Conn) error {
		for _, stmt := range stmts {
			if _, err := conn.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddUser inserts the user unless it already exists
func (db *PostgresDB) AddUser(ctx context.Context, userID int64, username string) error {
	const q = `INSERT INTO users (user_id, username) VALUES ($1, NULLIF($2, '')) ON CONFLICT (user_id) DO NOTHING`
	return db.withConn(ctx, "add user", func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, q, userID, username)
		return err
	})
}

// GetUser returns a user by platform id
func (db *PostgresDB) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	const q = `SELECT COALESCE(username, '') FROM users WHERE user_id = $1`
	user := &models.User{ID: userID}
	err := db.withConn(ctx, "get user", func(conn *pgxpool.Conn) error {
		return conn.QueryRow(ctx, q, userID).Scan(&user.Username)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// AddOrder appends an order and returns it as stored
func (db *PostgresDB) AddOrder(ctx context.Context, userID int64, item string) (models.Order, error) {
	const q = `INSERT INTO orders (user_id, item) VALUES ($1, $2) RETURNING id, created_at`
	order := models.Order{UserID: userID, Item: item}
	err := db.withConn(ctx, "add order", func(conn *pgxpool.Conn) error {
		var id int64
		if err := conn.QueryRow(ctx, q, userID, item).Scan(&id, &order.CreatedAt); err != nil {
			return err
		}
		order.ID = strconv.FormatInt(id, 10)
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}
	return order, nil
}

// GetOrders returns the user's orders, newest first
func (db *PostgresDB) GetOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	const q = `SELECT id, item, created_at FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	var orders []models.Order
	err := db.withConn(ctx, "get orders", func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, q, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			order := models.Order{UserID: userID}
			if err := rows.Scan(&id, &order.Item, &order.CreatedAt); err != nil {
				return err
			}
			order.ID = strconv.FormatInt(id, 10)
			orders = append(orders, order)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// AddFavorite appends a favorite, duplicates included
func (db *PostgresDB) AddFavorite(ctx context.Context, userID int64, item string) (models.Favorite, error) {
	const q = `INSERT INTO favorites (user_id, item) VALUES ($1, $2) RETURNING id, created_at`
	fav := models.Favorite{UserID: userID, Item: item}
	err := db.withConn(ctx, "add favorite", func(conn *pgxpool.Conn) error {
		var id int64
		if err := conn.QueryRow(ctx, q, userID, item).Scan(&id, &fav.CreatedAt); err != nil {
			return err
		}
		fav.ID = strconv.FormatInt(id, 10)
		return nil
	})
	if err != nil {
		return models.Favorite{}, err
	}
	return fav, nil
}

// GetFavorites returns the user's favorites in insertion order
func (db *PostgresDB) GetFavorites(ctx context.Context, userID int64) ([]models.Favorite, error) {
	const q = `SELECT id, item, created_at FROM favorites WHERE user_id = $1 ORDER BY id`
	var favorites []models.Favorite
	err := db.withConn(ctx, "get favorites", func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, q, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			fav := models.Favorite{UserID: userID}
			if err := rows.Scan(&id, &fav.Item, &fav.CreatedAt); err != nil {
				return err
			}
			fav.ID = strconv.FormatInt(id, 10)
			favorites = append(favorites, fav)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return favorites, nil
}

// Close closes the pool
func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// PoolStats reports the pool's total, idle and checked-out connections
func (db *PostgresDB) PoolStats() (total, idle, inUse int32) {
	stat := db.pool.Stat()
	return stat.TotalConns(), stat.IdleConns(), stat.AcquiredConns()
}
