package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// Blocking reports whether an appointment in this status occupies its time
// window for conflict purposes.
func (s AppointmentStatus) Blocking() bool {
	return s == AppointmentStatusScheduled || s == AppointmentStatusConfirmed
}

// Terminal reports whether the status admits no further transitions.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusCancelled || s == AppointmentStatusCompleted
}

// Appointment is a half-open [StartTime, EndTime) booking. A recurring parent
// carries the recurrence rule; generated instances reference the parent via
// RecurringParentID and never carry recurrence fields themselves.
type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID        uuid.UUID  `bun:"id,pk,type:uuid"`
	UserID    string     `bun:"user_id,notnull"`
	VenueID   *uuid.UUID `bun:"venue_id,type:uuid"`
	ContactID *uuid.UUID `bun:"contact_id,type:uuid"`

	Title           string `bun:"title,notnull"`
	Description     string `bun:"description"`
	Location        string `bun:"location"`
	AttendeeName    string `bun:"attendee_name"`
	AttendeeEmail   string `bun:"attendee_email"`
	MeetingPlatform string `bun:"meeting_platform"`

	StartTime time.Time         `bun:"start_time,notnull"`
	EndTime   time.Time         `bun:"end_time,notnull"`
	Timezone  string            `bun:"timezone,notnull"`
	Status    AppointmentStatus `bun:"status,notnull"`

	IsRecurring        bool           `bun:"is_recurring,notnull"`
	RecurrenceType     RecurrenceType `bun:"recurrence_type"`
	RecurrenceInterval int            `bun:"recurrence_interval"`
	RecurrenceDays     []int16        `bun:"recurrence_days,array"`
	RecurrenceEndDate  *time.Time     `bun:"recurrence_end_date"`
	RecurrenceCount    *int           `bun:"recurrence_count"`
	RecurringParentID  *uuid.UUID     `bun:"recurring_parent_id,type:uuid"`

	CalendarEventID  *string    `bun:"calendar_event_id"`
	CalendarSyncedAt *time.Time `bun:"calendar_synced_at"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (a *Appointment) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}

func (a *Appointment) Interval() Interval {
	return Interval{Start: a.StartTime, End: a.EndTime}
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.Status == "" {
			a.Status = AppointmentStatusScheduled
		}
		if a.Timezone == "" {
			a.Timezone = "UTC"
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}
