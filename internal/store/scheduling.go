package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookwise/backend/internal/domain"
)

// SchedulingRepository is the persistence surface for the booking core. List
// methods that take a window return rows overlapping the half-open range
// [windowStart, windowEnd), ordered ascending by start time.
type SchedulingRepository interface {
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	GetAppointment(ctx context.Context, userID string, id uuid.UUID) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, userID string, id uuid.UUID, status domain.AppointmentStatus) error

	// ListBlockingAppointments returns the user's scheduled and confirmed
	// appointments overlapping the window.
	ListBlockingAppointments(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	// ListVenueBookings returns blocking appointments at the venue
	// overlapping the window, across all users.
	ListVenueBookings(ctx context.Context, venueID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	ListChildInstances(ctx context.Context, userID string, parentID uuid.UUID) ([]domain.Appointment, error)

	// TemplateForWeekday returns nil when the user has no row for the day.
	TemplateForWeekday(ctx context.Context, userID string, weekday time.Weekday) (*domain.WeeklyAvailabilityTemplate, error)
	ListExceptions(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.AvailabilityException, error)
	GetVenue(ctx context.Context, venueID uuid.UUID) (domain.Venue, error)

	ListConnections(ctx context.Context, userID string) ([]domain.CalendarConnection, error)
	PrimaryConnection(ctx context.Context, userID, provider string) (domain.CalendarConnection, error)
	// ListSyncDueConnections returns sync-enabled connections whose last
	// sync is older than the cutoff (or that never synced).
	ListSyncDueConnections(ctx context.Context, cutoff time.Time) ([]domain.CalendarConnection, error)
	UpdateConnection(ctx context.Context, conn domain.CalendarConnection) (domain.CalendarConnection, error)

	// Cascades over a recurring series; each is scoped to future instances
	// that are not in a terminal status. Counts report affected rows.
	UpdateFutureInstances(ctx context.Context, userID string, parentID uuid.UUID, patch InstancePatch, after time.Time) (int, error)
	CancelFutureInstances(ctx context.Context, userID string, parentID uuid.UUID, after time.Time) (int, error)
	DeleteFutureInstances(ctx context.Context, userID string, parentID uuid.UUID, after time.Time) (int, error)

	InUserTransaction(ctx context.Context, userID string, fn func(ctx context.Context, tx BookingTx) error) error
}

// InstancePatch is the cascadable subset of appointment fields. Nil fields
// are left untouched.
type InstancePatch struct {
	Title           *string
	Description     *string
	Location        *string
	AttendeeName    *string
	AttendeeEmail   *string
	MeetingPlatform *string
}

func (p InstancePatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Location == nil &&
		p.AttendeeName == nil && p.AttendeeEmail == nil && p.MeetingPlatform == nil
}
