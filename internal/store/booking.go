package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookwise/backend/internal/domain"
)

// BookingTx is the view of the store inside a per-user booking transaction.
// The transaction holds the user's advisory lock, so reads through it form a
// consistent snapshot that stays valid until the insert commits.
type BookingTx interface {
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, userID string, id uuid.UUID, status domain.AppointmentStatus) error
	DeleteAppointment(ctx context.Context, userID string, id uuid.UUID) error

	ListBlockingAppointments(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	ListVenueBookings(ctx context.Context, venueID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	ListExceptions(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.AvailabilityException, error)
	GetVenue(ctx context.Context, venueID uuid.UUID) (domain.Venue, error)
}
