package models

import "time"

// User is a platform user that has pressed /start
type User struct {
	ID       int64
	Username string
}

// Order is a single placed order. Orders are append-only.
type Order struct {
	ID        string
	UserID    int64
	Item      string
	CreatedAt time.Time
}

// Favorite is an item a user marked as favorite. Duplicates are allowed.
type Favorite struct {
	ID        string
	UserID    int64
	Item      string
	CreatedAt time.Time
}
