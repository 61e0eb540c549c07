package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookwise/backend/internal/cache"
	"bookwise/backend/internal/domain"
	"bookwise/backend/internal/service/conflicts"
	"bookwise/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// ConflictError carries the colliding sources when a booking is refused. It
// matches store.ErrConflict under errors.Is.
type ConflictError struct {
	Conflicts []conflicts.Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot conflicts with %d existing commitment(s)", len(e.Conflicts))
}

func (e *ConflictError) Is(target error) bool {
	return target == store.ErrConflict
}

// Service creates and cancels bookings. The availability check and the
// insert run inside one per-user transaction holding the advisory lock, so
// two concurrent requests for the same slot cannot both succeed.
type Service struct {
	repo      store.SchedulingRepository
	busy      conflicts.BusySource
	busyCache cache.BusyCache
	log       *slog.Logger
}

func NewService(repo store.SchedulingRepository, busy conflicts.BusySource, busyCache cache.BusyCache, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:      repo,
		busy:      busy,
		busyCache: busyCache,
		log:       log.With(slog.String("component", "booking.service")),
	}
}

type BookInput struct {
	UserID    string
	VenueID   *uuid.UUID
	ContactID *uuid.UUID

	Title           string
	Description     string
	Location        string
	AttendeeName    string
	AttendeeEmail   string
	MeetingPlatform string

	StartTime time.Time
	EndTime   time.Time
	Timezone  string

	IsRecurring        bool
	RecurrenceType     domain.RecurrenceType
	RecurrenceInterval int
	RecurrenceDays     []int16
	RecurrenceEndDate  *time.Time
	RecurrenceCount    *int

	IdempotencyKey string
}

// Book validates the input, re-checks every conflict source against a
// transactional snapshot, and inserts the appointment. On a collision the
// returned error is a *ConflictError listing the sources.
func (s *Service) Book(ctx context.Context, in BookInput) (domain.Appointment, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Appointment{}, validationError("title is required")
	}
	if in.UserID == "" {
		return domain.Appointment{}, validationError("user_id is required")
	}

	start := in.StartTime.UTC()
	end := in.EndTime.UTC()
	if end.Equal(start) || end.Before(start) {
		return domain.Appointment{}, validationError("end_time must be after start_time")
	}
	if end.Sub(start) > 24*time.Hour {
		return domain.Appointment{}, validationError("duration too long")
	}

	tz := strings.TrimSpace(in.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return domain.Appointment{}, validationError("invalid timezone")
	}

	if in.IsRecurring {
		switch in.RecurrenceType {
		case domain.RecurrenceTypeDaily, domain.RecurrenceTypeWeekly, domain.RecurrenceTypeMonthly:
		default:
			return domain.Appointment{}, validationError("unsupported recurrence_type")
		}
		for _, d := range in.RecurrenceDays {
			if d < 0 || d > 6 {
				return domain.Appointment{}, validationError("invalid recurrence day")
			}
		}
	}

	appt := domain.Appointment{
		UserID:          in.UserID,
		VenueID:         in.VenueID,
		ContactID:       in.ContactID,
		Title:           title,
		Description:     in.Description,
		Location:        in.Location,
		AttendeeName:    in.AttendeeName,
		AttendeeEmail:   in.AttendeeEmail,
		MeetingPlatform: in.MeetingPlatform,
		StartTime:       start,
		EndTime:         end,
		Timezone:        tz,
		Status:          domain.AppointmentStatusScheduled,
	}
	if in.IsRecurring {
		appt.IsRecurring = true
		appt.RecurrenceType = in.RecurrenceType
		appt.RecurrenceInterval = in.RecurrenceInterval
		appt.RecurrenceDays = in.RecurrenceDays
		appt.RecurrenceEndDate = in.RecurrenceEndDate
		appt.RecurrenceCount = in.RecurrenceCount
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Appointment{}, validationError("idempotency_key too long")
		}
		appt.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("bookwise:book:"+in.UserID+":"+key))
	}

	// Busy intervals come from the cache outside the transaction; external
	// events cannot change under the advisory lock anyway. Local state is
	// re-read inside the transaction.
	var busy []domain.BusyInterval
	if s.busy != nil {
		fetched, err := s.busy.BusyIntervals(ctx, in.UserID, start, end)
		if err != nil {
			s.log.Warn("busy interval fetch failed", slog.Any("err", err), slog.String("user_id", in.UserID))
		} else {
			busy = fetched
		}
	}

	var out domain.Appointment
	err := s.repo.InUserTransaction(ctx, in.UserID, func(ctx context.Context, tx store.BookingTx) error {
		snap, err := s.snapshotTx(ctx, tx, in.UserID, start, end, in.VenueID)
		if err != nil {
			return err
		}
		snap.Busy = busy

		found := conflicts.Check(snap, domain.Interval{Start: start, End: end}, conflicts.CheckOptions{
			VenueID: in.VenueID,
		})
		if len(found) > 0 {
			return &ConflictError{Conflicts: found}
		}

		created, err := tx.CreateAppointment(ctx, appt)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.invalidateBusyCache(ctx, in.UserID)

	s.log.Info("appointment booked",
		slog.String("appointment_id", out.ID.String()),
		slog.String("user_id", out.UserID),
		slog.Time("start_time", out.StartTime),
		slog.Time("end_time", out.EndTime),
	)
	return out, nil
}

// Cancel marks the appointment cancelled and invalidates the user's busy
// cache so the freed slot is offered again.
func (s *Service) Cancel(ctx context.Context, userID string, appointmentID uuid.UUID) error {
	if userID == "" {
		return validationError("user_id is required")
	}
	if appointmentID == uuid.Nil {
		return validationError("appointment_id is required")
	}
	if err := s.repo.UpdateAppointmentStatus(ctx, userID, appointmentID, domain.AppointmentStatusCancelled); err != nil {
		return err
	}
	s.invalidateBusyCache(ctx, userID)
	return nil
}

func (s *Service) snapshotTx(ctx context.Context, tx store.BookingTx, userID string, start, end time.Time, venueID *uuid.UUID) (conflicts.Snapshot, error) {
	var snap conflicts.Snapshot

	appts, err := tx.ListBlockingAppointments(ctx, userID, start, end)
	if err != nil {
		return conflicts.Snapshot{}, err
	}
	snap.Appointments = appts

	exceptions, err := tx.ListExceptions(ctx, userID, start, end)
	if err != nil {
		return conflicts.Snapshot{}, err
	}
	snap.Exceptions = exceptions

	if venueID != nil {
		venue, err := tx.GetVenue(ctx, *venueID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return conflicts.Snapshot{}, err
			}
			snap.VenueMissing = true
		} else {
			snap.Venue = &venue
			bookings, err := tx.ListVenueBookings(ctx, *venueID, start, end)
			if err != nil {
				return conflicts.Snapshot{}, err
			}
			snap.VenueBookings = bookings
		}
	}

	return snap, nil
}

func (s *Service) invalidateBusyCache(ctx context.Context, userID string) {
	if s.busyCache == nil {
		return
	}
	if err := s.busyCache.InvalidateUser(ctx, userID); err != nil {
		s.log.Warn("busy cache invalidation failed", slog.Any("err", err), slog.String("user_id", userID))
	}
}
