package availability

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bookwise/backend/internal/domain"
	"bookwise/backend/internal/service/conflicts"
	"bookwise/backend/internal/store"
)

// Slot is one free candidate start time offered to a booking client.
type Slot struct {
	Time      string    `json:"time"`
	DateTime  time.Time `json:"datetime"`
	Formatted string    `json:"formatted"`
}

type Scheduler struct {
	repo     store.SchedulingRepository
	detector *conflicts.Detector
	now      func() time.Time
	log      *slog.Logger
}

func NewScheduler(repo store.SchedulingRepository, detector *conflicts.Detector, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		repo:     repo,
		detector: detector,
		now:      time.Now,
		log:      log.With(slog.String("component", "availability.scheduler")),
	}
}

// WithClock overrides the scheduler's clock, for tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// GetAvailableSlots returns the free fixed-width slots for the user on the
// given date, ordered ascending. The day's appointments, exceptions, busy
// intervals, and venue bookings are fetched exactly once; every candidate is
// then tested in memory against that snapshot. A day with no template row,
// a day marked unavailable, or an unusable venue yields an empty list.
func (s *Scheduler) GetAvailableSlots(ctx context.Context, userID string, date time.Time, durationMinutes, minNoticeHours int, venueID *uuid.UUID) ([]Slot, error) {
	if durationMinutes <= 0 {
		return nil, nil
	}

	tmpl, err := s.repo.TemplateForWeekday(ctx, userID, date.Weekday())
	if err != nil {
		return nil, err
	}
	if tmpl == nil || !tmpl.Available || tmpl.EndMinute <= tmpl.StartMinute {
		return nil, nil
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	snap, err := s.detector.Snapshot(ctx, userID, dayStart, dayEnd, venueID)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(durationMinutes) * time.Minute
	windowStart := dayStart.Add(time.Duration(tmpl.StartMinute) * time.Minute)
	windowEnd := dayStart.Add(time.Duration(tmpl.EndMinute) * time.Minute)
	noticeCutoff := s.now().Add(time.Duration(minNoticeHours) * time.Hour)

	opts := conflicts.CheckOptions{VenueID: venueID}

	var out []Slot
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(duration) {
		if t.Before(noticeCutoff) {
			continue
		}
		candidate := domain.Interval{Start: t, End: t.Add(duration)}
		if found := conflicts.Check(snap, candidate, opts); len(found) > 0 {
			continue
		}
		out = append(out, Slot{
			Time:      t.Format("15:04"),
			DateTime:  t,
			Formatted: t.Format("3:04 PM"),
		})
	}
	return out, nil
}

// IsSlotAvailable reports whether [start, end) is free for the user, taking
// the venue into account when one is named.
func (s *Scheduler) IsSlotAvailable(ctx context.Context, userID string, start, end time.Time, venueID *uuid.UUID) (bool, error) {
	if !end.After(start) {
		return false, nil
	}
	conflicted, err := s.detector.HasConflict(ctx, userID, start, end, venueID, nil)
	if err != nil {
		return false, err
	}
	return !conflicted, nil
}

// IsSlotBooked is the inverse of IsSlotAvailable.
func (s *Scheduler) IsSlotBooked(ctx context.Context, userID string, start, end time.Time, venueID *uuid.UUID) (bool, error) {
	available, err := s.IsSlotAvailable(ctx, userID, start, end, venueID)
	if err != nil {
		return false, err
	}
	return !available, nil
}
