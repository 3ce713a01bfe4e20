package storage

import (
	"context"
	"errors"
	"fmt"

	"shopbot/internal/models"
)

// ErrNotFound is returned by lookups that matched no row
var ErrNotFound = errors.New("not found")

// Storage defines the interface for data storage operations
type Storage interface {
	// User operations

	// AddUser inserts the user if it does not exist yet, otherwise it is a no-op
	AddUser(ctx context.Context, userID int64, username string) error
	GetUser(ctx context.Context, userID int64) (*models.User, error)

	// Order operations

	// AddOrder appends a new order; created_at is set by the store
	AddOrder(ctx context.Context, userID int64, item string) (models.Order, error)
	// GetOrders returns all orders of the user, newest first
	GetOrders(ctx context.Context, userID int64) ([]models.Order, error)

	// Favorite operations

	// AddFavorite appends a favorite; the same item may be added more than once
	AddFavorite(ctx context.Context, userID int64, item string) (models.Favorite, error)
	GetFavorites(ctx context.Context, userID int64) ([]models.Favorite, error)

	// Lifecycle

	// Initialize creates missing tables. It is safe to call more than once.
	Initialize(ctx context.Context) error
	Close() error
}

// StorageError wraps any failed statement
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Wrap returns nil for a nil err, otherwise a *StorageError for op
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
