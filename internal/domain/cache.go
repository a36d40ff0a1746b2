package domain

import (
	"context"
	"io"
	"time"
)

// SignalBus broadcasts domain events to external observers (WebSocket hub,
// dashboards). Delivery is best effort; the core never depends on it.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager provides distributed mutual exclusion for background jobs that
// may run on more than one instance (e.g. the settled-auction archiver).
// Acquire returns ErrLockHeld when the lock is already taken.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// BlobWriter uploads an object to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
