package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates an unknown or expired session id.
var ErrNotFound = errors.New("session not found")

// Store persists sessions between requests. Implementations must be safe
// for concurrent use; each session id is owned by exactly one document set.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, id string) error
	// PurgeExpired removes sessions not updated within maxAge and returns
	// how many were dropped.
	PurgeExpired(ctx context.Context, maxAge time.Duration) (int, error)
}
