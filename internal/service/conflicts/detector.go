package conflicts

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bookwise/backend/internal/domain"
	"bookwise/backend/internal/store"
)

// BusySource supplies cached external busy intervals for a user within a
// window. Implemented by the calendar sync gateway.
type BusySource interface {
	BusyIntervals(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.BusyInterval, error)
}

// Detector answers "is this time free" by fetching one snapshot per call and
// running the in-memory checks against it.
type Detector struct {
	repo store.SchedulingRepository
	busy BusySource
	log  *slog.Logger
}

func NewDetector(repo store.SchedulingRepository, busy BusySource, log *slog.Logger) *Detector {
	if log == nil {
		log = slog.Default()
	}
	return &Detector{
		repo: repo,
		busy: busy,
		log:  log.With(slog.String("component", "conflicts.detector")),
	}
}

// Snapshot batch-fetches everything needed to check candidates inside the
// window: the user's blocking appointments, exceptions, cached busy
// intervals, and the venue with its bookings when a venue is named. Callers
// filtering many candidate slots for one day call this exactly once.
func (d *Detector) Snapshot(ctx context.Context, userID string, windowStart, windowEnd time.Time, venueID *uuid.UUID) (Snapshot, error) {
	var snap Snapshot

	appts, err := d.repo.ListBlockingAppointments(ctx, userID, windowStart, windowEnd)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Appointments = appts

	exceptions, err := d.repo.ListExceptions(ctx, userID, windowStart, windowEnd)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Exceptions = exceptions

	if d.busy != nil {
		busy, err := d.busy.BusyIntervals(ctx, userID, windowStart, windowEnd)
		if err != nil {
			// Busy-time staleness degrades availability accuracy but must
			// not take slot queries down with it.
			d.log.Warn("busy interval fetch failed", slog.Any("err", err), slog.String("user_id", userID))
		} else {
			snap.Busy = busy
		}
	}

	if venueID != nil {
		venue, err := d.repo.GetVenue(ctx, *venueID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return Snapshot{}, err
			}
			snap.VenueMissing = true
		} else {
			snap.Venue = &venue
			bookings, err := d.repo.ListVenueBookings(ctx, *venueID, windowStart, windowEnd)
			if err != nil {
				return Snapshot{}, err
			}
			snap.VenueBookings = bookings
		}
	}

	return snap, nil
}

// DetectConflicts returns every source colliding with [start, end) for the
// user: local appointments, exceptions, and external calendar events. Used
// both pre-booking and pre-push.
func (d *Detector) DetectConflicts(ctx context.Context, userID string, start, end time.Time, excludeAppointmentID *uuid.UUID) ([]Conflict, error) {
	snap, err := d.Snapshot(ctx, userID, start, end, nil)
	if err != nil {
		return nil, err
	}
	return Check(snap, domain.Interval{Start: start, End: end}, CheckOptions{
		ExcludeAppointmentID: excludeAppointmentID,
	}), nil
}

// HasConflict is the boolean form of DetectConflicts, with optional venue
// scoping.
func (d *Detector) HasConflict(ctx context.Context, userID string, start, end time.Time, venueID, excludeAppointmentID *uuid.UUID) (bool, error) {
	snap, err := d.Snapshot(ctx, userID, start, end, venueID)
	if err != nil {
		return false, err
	}
	found := Check(snap, domain.Interval{Start: start, End: end}, CheckOptions{
		VenueID:              venueID,
		ExcludeAppointmentID: excludeAppointmentID,
	})
	return len(found) > 0, nil
}
