// Package state keeps the per-user continuation slot and the set of
// recently processed update ids.
package state

import (
	"context"
	"time"
)

// Store is implemented by the in-memory and Redis backends
type Store interface {
	// SetPending arms the continuation slot of a user, replacing any previous token
	SetPending(ctx context.Context, userID int64, token string) error
	// TakePending returns and clears the pending token of a user
	TakePending(ctx context.Context, userID int64) (token string, ok bool, err error)
	// ClearPending drops the pending token of a user, if any
	ClearPending(ctx context.Context, userID int64) error

	// MarkUpdate records an update id and reports whether it was seen for the first time
	MarkUpdate(ctx context.Context, updateID int, ttl time.Duration) (first bool, err error)
	// ReleaseUpdate forgets an update id so a redelivery is processed again
	ReleaseUpdate(ctx context.Context, updateID int) error

	Close() error
}

// DefaultPendingTTL is how long a user has to answer a prompt
const DefaultPendingTTL = 15 * time.Minute
