// Package storetest provides hand-written fakes for the store interfaces.
// Unset call hooks panic so a test only exercises what it configures.
package storetest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookwise/backend/internal/domain"
	"bookwise/backend/internal/store"
)

type FakeRepo struct {
	CreateAppointmentFn       func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	GetAppointmentFn          func(ctx context.Context, userID string, id uuid.UUID) (domain.Appointment, error)
	UpdateAppointmentFn       func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointmentStatusFn func(ctx context.Context, userID string, id uuid.UUID, status domain.AppointmentStatus) error

	ListBlockingAppointmentsFn func(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	ListVenueBookingsFn        func(ctx context.Context, venueID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	ListChildInstancesFn       func(ctx context.Context, userID string, parentID uuid.UUID) ([]domain.Appointment, error)

	TemplateForWeekdayFn func(ctx context.Context, userID string, weekday time.Weekday) (*domain.WeeklyAvailabilityTemplate, error)
	ListExceptionsFn     func(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.AvailabilityException, error)
	GetVenueFn           func(ctx context.Context, venueID uuid.UUID) (domain.Venue, error)

	ListConnectionsFn        func(ctx context.Context, userID string) ([]domain.CalendarConnection, error)
	PrimaryConnectionFn      func(ctx context.Context, userID, provider string) (domain.CalendarConnection, error)
	ListSyncDueConnectionsFn func(ctx context.Context, cutoff time.Time) ([]domain.CalendarConnection, error)
	UpdateConnectionFn       func(ctx context.Context, conn domain.CalendarConnection) (domain.CalendarConnection, error)

	UpdateFutureInstancesFn func(ctx context.Context, userID string, parentID uuid.UUID, patch store.InstancePatch, after time.Time) (int, error)
	CancelFutureInstancesFn func(ctx context.Context, userID string, parentID uuid.UUID, after time.Time) (int, error)
	DeleteFutureInstancesFn func(ctx context.Context, userID string, parentID uuid.UUID, after time.Time) (int, error)

	// Tx is handed to InUserTransaction callbacks.
	Tx store.BookingTx
}

var _ store.SchedulingRepository = (*FakeRepo)(nil)

func (f *FakeRepo) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if f.CreateAppointmentFn == nil {
		panic("CreateAppointment not configured")
	}
	return f.CreateAppointmentFn(ctx, appt)
}

func (f *FakeRepo) GetAppointment(ctx context.Context, userID string, id uuid.UUID) (domain.Appointment, error) {
	if f.GetAppointmentFn == nil {
		panic("GetAppointment not configured")
	}
	return f.GetAppointmentFn(ctx, userID, id)
}

func (f *FakeRepo) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if f.UpdateAppointmentFn == nil {
		panic("UpdateAppointment not configured")
	}
	return f.UpdateAppointmentFn(ctx, appt)
}

func (f *FakeRepo) UpdateAppointmentStatus(ctx context.Context, userID string, id uuid.UUID, status domain.AppointmentStatus) error {
	if f.UpdateAppointmentStatusFn == nil {
		panic("UpdateAppointmentStatus not configured")
	}
	return f.UpdateAppointmentStatusFn(ctx, userID, id, status)
}

func (f *FakeRepo) ListBlockingAppointments(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	if f.ListBlockingAppointmentsFn == nil {
		return nil, nil
	}
	return f.ListBlockingAppointmentsFn(ctx, userID, windowStart, windowEnd)
}

func (f *FakeRepo) ListVenueBookings(ctx context.Context, venueID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	if f.ListVenueBookingsFn == nil {
		return nil, nil
	}
	return f.ListVenueBookingsFn(ctx, venueID, windowStart, windowEnd)
}

func (f *FakeRepo) ListChildInstances(ctx context.Context, userID string, parentID uuid.UUID) ([]domain.Appointment, error) {
	if f.ListChildInstancesFn == nil {
		return nil, nil
	}
	return f.ListChildInstancesFn(ctx, userID, parentID)
}

func (f *FakeRepo) TemplateForWeekday(ctx context.Context, userID string, weekday time.Weekday) (*domain.WeeklyAvailabilityTemplate, error) {
	if f.TemplateForWeekdayFn == nil {
		return nil, nil
	}
	return f.TemplateForWeekdayFn(ctx, userID, weekday)
}

func (f *FakeRepo) ListExceptions(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.AvailabilityException, error) {
	if f.ListExceptionsFn == nil {
		return nil, nil
	}
	return f.ListExceptionsFn(ctx, userID, windowStart, windowEnd)
}

func (f *FakeRepo) GetVenue(ctx context.Context, venueID uuid.UUID) (domain.Venue, error) {
	if f.GetVenueFn == nil {
		panic("GetVenue not configured")
	}
	return f.GetVenueFn(ctx, venueID)
}

func (f *FakeRepo) ListConnections(ctx context.Context, userID string) ([]domain.CalendarConnection, error) {
	if f.ListConnectionsFn == nil {
		return nil, nil
	}
	return f.ListConnectionsFn(ctx, userID)
}

func (f *FakeRepo) PrimaryConnection(ctx context.Context, userID, provider string) (domain.CalendarConnection, error) {
	if f.PrimaryConnectionFn == nil {
		panic("PrimaryConnection not configured")
	}
	return f.PrimaryConnectionFn(ctx, userID, provider)
}

func (f *FakeRepo) ListSyncDueConnections(ctx context.Context, cutoff time.Time) ([]domain.CalendarConnection, error) {
	if f.ListSyncDueConnectionsFn == nil {
		return nil, nil
	}
	return f.ListSyncDueConnectionsFn(ctx, cutoff)
}

func (f *FakeRepo) UpdateConnection(ctx context.Context, conn domain.CalendarConnection) (domain.CalendarConnection, error) {
	if f.UpdateConnectionFn == nil {
		return conn, nil
	}
	return f.UpdateConnectionFn(ctx, conn)
}

func (f *FakeRepo) UpdateFutureInstances(ctx context.Context, userID string, parentID uuid.UUID, patch store.InstancePatch, after time.Time) (int, error) {
	if f.UpdateFutureInstancesFn == nil {
		panic("UpdateFutureInstances not configured")
	}
	return f.UpdateFutureInstancesFn(ctx, userID, parentID, patch, after)
}

func (f *FakeRepo) CancelFutureInstances(ctx context.Context, userID string, parentID uuid.UUID, after time.Time) (int, error) {
	if f.CancelFutureInstancesFn == nil {
		panic("CancelFutureInstances not configured")
	}
	return f.CancelFutureInstancesFn(ctx, userID, parentID, after)
}

func (f *FakeRepo) DeleteFutureInstances(ctx context.Context, userID string, parentID uuid.UUID, after time.Time) (int, error) {
	if f.DeleteFutureInstancesFn == nil {
		panic("DeleteFutureInstances not configured")
	}
	return f.DeleteFutureInstancesFn(ctx, userID, parentID, after)
}

func (f *FakeRepo) InUserTransaction(ctx context.Context, userID string, fn func(ctx context.Context, tx store.BookingTx) error) error {
	if f.Tx == nil {
		panic("Tx not configured")
	}
	return fn(ctx, f.Tx)
}

// FakeTx implements store.BookingTx with the same hook convention.
type FakeTx struct {
	CreateAppointmentFn       func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointmentStatusFn func(ctx context.Context, userID string, id uuid.UUID, status domain.AppointmentStatus) error
	DeleteAppointmentFn       func(ctx context.Context, userID string, id uuid.UUID) error

	ListBlockingAppointmentsFn func(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	ListVenueBookingsFn        func(ctx context.Context, venueID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	ListExceptionsFn           func(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.AvailabilityException, error)
	GetVenueFn                 func(ctx context.Context, venueID uuid.UUID) (domain.Venue, error)
}

var _ store.BookingTx = (*FakeTx)(nil)

func (f *FakeTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if f.CreateAppointmentFn == nil {
		panic("CreateAppointment not configured")
	}
	return f.CreateAppointmentFn(ctx, appt)
}

func (f *FakeTx) UpdateAppointmentStatus(ctx context.Context, userID string, id uuid.UUID, status domain.AppointmentStatus) error {
	if f.UpdateAppointmentStatusFn == nil {
		panic("UpdateAppointmentStatus not configured")
	}
	return f.UpdateAppointmentStatusFn(ctx, userID, id, status)
}

func (f *FakeTx) DeleteAppointment(ctx context.Context, userID string, id uuid.UUID) error {
	if f.DeleteAppointmentFn == nil {
		panic("DeleteAppointment not configured")
	}
	return f.DeleteAppointmentFn(ctx, userID, id)
}

func (f *FakeTx) ListBlockingAppointments(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	if f.ListBlockingAppointmentsFn == nil {
		return nil, nil
	}
	return f.ListBlockingAppointmentsFn(ctx, userID, windowStart, windowEnd)
}

func (f *FakeTx) ListVenueBookings(ctx context.Context, venueID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	if f.ListVenueBookingsFn == nil {
		return nil, nil
	}
	return f.ListVenueBookingsFn(ctx, venueID, windowStart, windowEnd)
}

func (f *FakeTx) ListExceptions(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.AvailabilityException, error) {
	if f.ListExceptionsFn == nil {
		return nil, nil
	}
	return f.ListExceptionsFn(ctx, userID, windowStart, windowEnd)
}

func (f *FakeTx) GetVenue(ctx context.Context, venueID uuid.UUID) (domain.Venue, error) {
	if f.GetVenueFn == nil {
		return domain.Venue{}, store.ErrNotFound
	}
	return f.GetVenueFn(ctx, venueID)
}
