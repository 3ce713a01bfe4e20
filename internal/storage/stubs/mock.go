package stubs

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"shopbot/internal/models"
	"shopbot/internal/storage"
)

var _ storage.Storage = (*MockDB)(nil)

// MockDB is an in-memory implementation of the Storage interface for testing
type MockDB struct {
	mu        sync.RWMutex
	users     map[int64]models.User
	orders    []models.Order
	favorites []models.Favorite
	nextID    int64

	// FailWith makes every subsequent call return a storage error wrapping it
	FailWith error
	now      func() time.Time
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		users: make(map[int64]models.User),
		now:   time.Now,
	}
}

// Initialize is a no-op: the maps are created by NewMockDB
func (m *MockDB) Initialize(ctx context.Context) error {
	return m.fail("initialize")
}

func (m *MockDB) fail(op string) error {
	if m.FailWith != nil {
		return storage.Wrap(op, m.FailWith)
	}
	return nil
}

// AddUser stores the user unless it already exists
func (m *MockDB) AddUser(ctx context.Context, userID int64, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("add user"); err != nil {
		return err
	}
	if _, ok := m.users[userID]; ok {
		return nil
	}
	m.users[userID] = models.User{ID: userID, Username: username}
	return nil
}

// GetUser returns the user or storage.ErrNotFound
func (m *MockDB) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.fail("get user"); err != nil {
		return nil, err
	}
	user, ok := m.users[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &user, nil
}

// AddOrder appends an order
func (m *MockDB) AddOrder(ctx context.Context, userID int64, item string) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("add order"); err != nil {
		return models.Order{}, err
	}
	m.nextID++
	order := models.Order{
		ID:        strconv.FormatInt(m.nextID, 10),
		UserID:    userID,
		Item:      item,
		CreatedAt: m.now(),
	}
	m.orders = append(m.orders, order)
	return order, nil
}

// GetOrders returns the user's orders, newest first
func (m *MockDB) GetOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.fail("get orders"); err != nil {
		return nil, err
	}
	var orders []models.Order
	for i := len(m.orders) - 1; i >= 0; i-- {
		if m.orders[i].UserID == userID {
			orders = append(orders, m.orders[i])
		}
	}

	// Insertion order already breaks ties between equal timestamps
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	return orders, nil
}

// AddFavorite appends a favorite without checking for duplicates
func (m *MockDB) AddFavorite(ctx context.Context, userID int64, item string) (models.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("add favorite"); err != nil {
		return models.Favorite{}, err
	}
	m.nextID++
	fav := models.Favorite{
		ID:        strconv.FormatInt(m.nextID, 10),
		UserID:    userID,
		Item:      item,
		CreatedAt: m.now(),
	}
	m.favorites = append(m.favorites, fav)
	return fav, nil
}

// GetFavorites returns the user's favorites in insertion order
func (m *MockDB) GetFavorites(ctx context.Context, userID int64) ([]models.Favorite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.fail("get favorites"); err != nil {
		return nil, err
	}
	var favorites []models.Favorite
	for _, fav := range m.favorites {
		if fav.UserID == userID {
			favorites = append(favorites, fav)
		}
	}
	return favorites, nil
}

// Close is a no-op for the mock database
func (m *MockDB) Close() error {
	return nil
}
