package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// WeeklyAvailabilityTemplate is a user's open/closed configuration for one
// day of the week (0 = Sunday). At most one row exists per (user, weekday).
// Start and end are minutes from local midnight.
type WeeklyAvailabilityTemplate struct {
	bun.BaseModel `bun:"table:weekly_availability_templates"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	UserID      string    `bun:"user_id,notnull"`
	Weekday     int       `bun:"weekday,notnull"`
	StartMinute int       `bun:"start_minute,notnull"`
	EndMinute   int       `bun:"end_minute,notnull"`
	Available   bool      `bun:"available,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func (t *WeeklyAvailabilityTemplate) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if t.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			t.ID = id
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		t.UpdatedAt = now
	}
	return nil
}

type ExceptionKind string

const (
	ExceptionKindVacation ExceptionKind = "vacation"
	ExceptionKindTimeOff  ExceptionKind = "time_off"
	ExceptionKindHoliday  ExceptionKind = "holiday"
)

// AvailabilityException marks a user-scoped date range as unavailable
// (vacation, time off). Consulted read-only during conflict detection.
type AvailabilityException struct {
	bun.BaseModel `bun:"table:availability_exceptions"`

	ID        uuid.UUID     `bun:"id,pk,type:uuid"`
	UserID    string        `bun:"user_id,notnull"`
	Title     string        `bun:"title,notnull"`
	Kind      ExceptionKind `bun:"kind,notnull"`
	StartTime time.Time     `bun:"start_time,notnull"`
	EndTime   time.Time     `bun:"end_time,notnull"`
	AllDay    bool          `bun:"all_day,notnull"`
	CreatedAt time.Time     `bun:"created_at,notnull"`
	UpdatedAt time.Time     `bun:"updated_at,notnull"`
}

// Interval returns the blocked range. All-day exceptions extend to the
// enclosing midnights so a partial-day range still blocks the whole day.
func (e *AvailabilityException) Interval() Interval {
	if !e.AllDay {
		return Interval{Start: e.StartTime, End: e.EndTime}
	}
	start := e.StartTime.Truncate(24 * time.Hour)
	end := e.EndTime.Truncate(24 * time.Hour)
	if end.Before(e.EndTime) || end.Equal(start) {
		end = end.AddDate(0, 0, 1)
	}
	return Interval{Start: start, End: end}
}

func (e *AvailabilityException) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if e.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			e.ID = id
		}
		if e.Kind == "" {
			e.Kind = ExceptionKindTimeOff
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		e.UpdatedAt = now
	}
	return nil
}

// Venue hosts bookings. A nil Capacity means unlimited concurrency.
type Venue struct {
	bun.BaseModel `bun:"table:venues"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	UserID    string    `bun:"user_id,notnull"`
	Name      string    `bun:"name,notnull"`
	Active    bool      `bun:"active,notnull"`
	Capacity  *int      `bun:"capacity"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (v *Venue) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if v.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			v.ID = id
		}
		if v.CreatedAt.IsZero() {
			v.CreatedAt = now
		}
		if v.UpdatedAt.IsZero() {
			v.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		v.UpdatedAt = now
	}
	return nil
}
