package cache

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookwise/backend/internal/domain"
)

// DefaultBusyTTL is how long a synced busy-interval list stays fresh before
// the next read triggers a resync.
const DefaultBusyTTL = time.Hour

// Key addresses one connection's busy-interval list.
type Key struct {
	UserID       string
	ConnectionID uuid.UUID
}

// BusyCache holds externally-sourced busy intervals per calendar connection.
// Entries expire after their TTL, but every local mutation that changes busy
// time must call Invalidate or InvalidateUser explicitly; waiting for expiry
// lets a stale entry offer an already-booked slot.
type BusyCache interface {
	Get(ctx context.Context, key Key) ([]domain.BusyInterval, bool, error)
	Put(ctx context.Context, key Key, intervals []domain.BusyInterval, ttl time.Duration) error
	Invalidate(ctx context.Context, key Key) error
	InvalidateUser(ctx context.Context, userID string) error
}
