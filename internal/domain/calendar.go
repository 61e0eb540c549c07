package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CalendarConnection links a user to an external calendar provider. At most
// one primary connection exists per (user, provider).
type CalendarConnection struct {
	bun.BaseModel `bun:"table:calendar_connections"`

	ID             uuid.UUID  `bun:"id,pk,type:uuid"`
	UserID         string     `bun:"user_id,notnull"`
	Provider       string     `bun:"provider,notnull"`
	CalendarID     string     `bun:"calendar_id,notnull"`
	AccessToken    string     `bun:"access_token,notnull"`
	RefreshToken   string     `bun:"refresh_token"`
	TokenExpiresAt time.Time  `bun:"token_expires_at"`
	SyncEnabled    bool       `bun:"sync_enabled,notnull"`
	IsPrimary      bool       `bun:"is_primary,notnull"`
	LastSyncedAt   *time.Time `bun:"last_synced_at"`
	CreatedAt      time.Time  `bun:"created_at,notnull"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull"`
}

// CanSync reports whether the connection is usable for a busy-time fetch:
// sync enabled and a credential that is not past its expiry.
func (c *CalendarConnection) CanSync() bool {
	if !c.SyncEnabled || c.AccessToken == "" {
		return false
	}
	if !c.TokenExpiresAt.IsZero() && time.Now().After(c.TokenExpiresAt) {
		// Expired access token is still syncable when a refresh token
		// exists; the credential store refreshes it on use.
		return c.RefreshToken != ""
	}
	return true
}

// NeedsTokenRefresh reports whether the access token expires within the next
// five minutes. Refresh itself is the credential store's job.
func (c *CalendarConnection) NeedsTokenRefresh() bool {
	if c.TokenExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(c.TokenExpiresAt.Add(-5 * time.Minute))
}

func (c *CalendarConnection) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if c.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			c.ID = id
		}
		if c.CalendarID == "" {
			c.CalendarID = "primary"
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		c.UpdatedAt = now
	}
	return nil
}

// BusyInterval is a cache-owned projection of one external calendar event.
// It has no authoritative persistence; each sync rebuilds the list.
type BusyInterval struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	SourceEventID string    `json:"source_event_id"`
	Summary       string    `json:"summary"`
}

func (b BusyInterval) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}
