package calendarsync

import (
	"context"
	"errors"
	"log/slog"

	"bookwise/backend/internal/domain"
	"bookwise/backend/internal/service/conflicts"
	"bookwise/backend/internal/store"
)

type PushOutcome string

const (
	PushOutcomeCreated      PushOutcome = "created"
	PushOutcomeUpdated      PushOutcome = "updated"
	PushOutcomeNoConnection PushOutcome = "no_connection"
	PushOutcomeRefused      PushOutcome = "refused"
)

// PushResult is the typed outcome of a push attempt. A refused push carries
// the conflicts that blocked it; the caller may retry with forceCreate.
type PushResult struct {
	Outcome     PushOutcome
	Success     bool
	EventID     string
	Conflicts   []conflicts.Conflict
	Appointment domain.Appointment
}

// PushAppointment mirrors a local appointment to the user's primary
// sync-enabled connection. Unless forceCreate is set, conflicts in the
// target window refuse the push, and an existing remote event is updated in
// place (falling back to create when the update fails). Success stores the
// remote event id and invalidates the user's busy cache so the next
// availability read reflects the new remote event.
func (s *Service) PushAppointment(ctx context.Context, appt domain.Appointment, forceCreate bool) (PushResult, error) {
	conn, err := s.repo.PrimaryConnection(ctx, appt.UserID, s.defaultProvider)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return PushResult{Outcome: PushOutcomeNoConnection, Appointment: appt}, nil
		}
		return PushResult{}, err
	}

	p, ok := s.registry.Lookup(conn.Provider)
	if !ok {
		return PushResult{}, ErrUnknownProvider
	}

	if !forceCreate {
		found, err := s.detectPushConflicts(ctx, appt)
		if err != nil {
			return PushResult{}, err
		}
		if len(found) > 0 {
			return PushResult{Outcome: PushOutcomeRefused, Conflicts: found, Appointment: appt}, nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outcome := PushOutcomeCreated
	eventID := ""
	if appt.CalendarEventID != nil && !forceCreate {
		if err := p.UpdateEvent(callCtx, conn, *appt.CalendarEventID, appt); err != nil {
			s.log.Warn("remote event update failed, creating new event",
				slog.Any("err", err),
				slog.String("appointment_id", appt.ID.String()),
				slog.String("event_id", *appt.CalendarEventID),
			)
		} else {
			outcome = PushOutcomeUpdated
			eventID = *appt.CalendarEventID
		}
	}
	if eventID == "" {
		created, err := p.CreateEvent(callCtx, conn, appt)
		if err != nil {
			return PushResult{}, err
		}
		eventID = created
	}

	syncedAt := s.now().UTC()
	appt.CalendarEventID = &eventID
	appt.CalendarSyncedAt = &syncedAt
	updated, err := s.repo.UpdateAppointment(ctx, appt)
	if err != nil {
		return PushResult{}, err
	}

	s.invalidateUserCache(ctx, appt.UserID)

	s.log.Info("appointment pushed",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("event_id", eventID),
		slog.String("outcome", string(outcome)),
	)
	return PushResult{Outcome: outcome, Success: true, EventID: eventID, Appointment: updated}, nil
}

// DeleteAppointment removes the appointment's remote copy. Success with no
// stored remote id is a no-op.
func (s *Service) DeleteAppointment(ctx context.Context, appt domain.Appointment) (bool, error) {
	if appt.CalendarEventID == nil {
		return true, nil
	}

	conn, err := s.repo.PrimaryConnection(ctx, appt.UserID, s.defaultProvider)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.log.Warn("remote event orphaned, no connection to delete through",
				slog.String("appointment_id", appt.ID.String()),
				slog.String("event_id", *appt.CalendarEventID),
			)
			return false, nil
		}
		return false, err
	}

	p, ok := s.registry.Lookup(conn.Provider)
	if !ok {
		return false, ErrUnknownProvider
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := p.DeleteEvent(callCtx, conn, *appt.CalendarEventID); err != nil {
		return false, err
	}

	appt.CalendarEventID = nil
	appt.CalendarSyncedAt = nil
	if _, err := s.repo.UpdateAppointment(ctx, appt); err != nil {
		return false, err
	}

	s.invalidateUserCache(ctx, appt.UserID)
	return true, nil
}

// detectPushConflicts runs conflict discovery over the appointment's window,
// ignoring the appointment itself and the busy interval of its own
// previously pushed remote copy.
func (s *Service) detectPushConflicts(ctx context.Context, appt domain.Appointment) ([]conflicts.Conflict, error) {
	appts, err := s.repo.ListBlockingAppointments(ctx, appt.UserID, appt.StartTime, appt.EndTime)
	if err != nil {
		return nil, err
	}
	exceptions, err := s.repo.ListExceptions(ctx, appt.UserID, appt.StartTime, appt.EndTime)
	if err != nil {
		return nil, err
	}
	busy, err := s.BusyIntervals(ctx, appt.UserID, appt.StartTime, appt.EndTime)
	if err != nil {
		return nil, err
	}
	if appt.CalendarEventID != nil {
		filtered := busy[:0]
		for _, iv := range busy {
			if iv.SourceEventID != *appt.CalendarEventID {
				filtered = append(filtered, iv)
			}
		}
		busy = filtered
	}

	snap := conflicts.Snapshot{Appointments: appts, Exceptions: exceptions, Busy: busy}
	excludeID := appt.ID
	return conflicts.Check(snap, appt.Interval(), conflicts.CheckOptions{
		ExcludeAppointmentID: &excludeID,
	}), nil
}

func (s *Service) invalidateUserCache(ctx context.Context, userID string) {
	if err := s.busyCache.InvalidateUser(ctx, userID); err != nil {
		s.log.Warn("busy cache invalidation failed", slog.Any("err", err), slog.String("user_id", userID))
	}
}
