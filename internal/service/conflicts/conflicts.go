package conflicts

import (
	"time"

	"github.com/google/uuid"

	"bookwise/backend/internal/domain"
)

type ConflictType string

const (
	ConflictTypeAppointment      ConflictType = "appointment"
	ConflictTypeException        ConflictType = "exception"
	ConflictTypeExternalEvent    ConflictType = "external_event"
	ConflictTypeVenueUnavailable ConflictType = "venue_unavailable"
	ConflictTypeVenueCapacity    ConflictType = "venue_capacity"
)

// Conflict is one reason a candidate interval is not free.
type Conflict struct {
	Type   ConflictType
	Source string
	Title  string
	Start  time.Time
	End    time.Time
}

// Snapshot is one consistent, batch-fetched view of everything that can
// block a user's time inside a window. All slot checks for that window run
// against the same snapshot; nothing here triggers further queries.
type Snapshot struct {
	Appointments []domain.Appointment
	Exceptions   []domain.AvailabilityException
	Busy         []domain.BusyInterval

	// Venue constraint, populated only when the query names a venue.
	Venue         *domain.Venue
	VenueBookings []domain.Appointment
	VenueMissing  bool
}

// CheckOptions scope one candidate check.
type CheckOptions struct {
	// VenueID switches local-appointment checks to venue-scoped
	// exclusivity and enables the venue availability/capacity checks.
	VenueID *uuid.UUID
	// ExcludeAppointmentID ignores one appointment, for reschedule and
	// pre-push checks against the appointment's own window.
	ExcludeAppointmentID *uuid.UUID
}

// Check tests a candidate interval against the snapshot and returns every
// conflict found. Each source is independently sufficient; an empty result
// means the interval is free.
func Check(snap Snapshot, candidate domain.Interval, opts CheckOptions) []Conflict {
	var out []Conflict

	for _, appt := range snap.Appointments {
		if opts.ExcludeAppointmentID != nil && appt.ID == *opts.ExcludeAppointmentID {
			continue
		}
		if !appt.Status.Blocking() {
			continue
		}
		if opts.VenueID != nil {
			// Venue-scoped exclusivity: only bookings sharing the venue
			// block this slot.
			if appt.VenueID == nil || *appt.VenueID != *opts.VenueID {
				continue
			}
		}
		if candidate.Overlaps(appt.Interval()) {
			out = append(out, Conflict{
				Type:   ConflictTypeAppointment,
				Source: "local",
				Title:  appt.Title,
				Start:  appt.StartTime,
				End:    appt.EndTime,
			})
		}
	}

	for _, ex := range snap.Exceptions {
		if candidate.Overlaps(ex.Interval()) {
			iv := ex.Interval()
			out = append(out, Conflict{
				Type:   ConflictTypeException,
				Source: string(ex.Kind),
				Title:  ex.Title,
				Start:  iv.Start,
				End:    iv.End,
			})
		}
	}

	for _, busy := range snap.Busy {
		if candidate.Overlaps(busy.Interval()) {
			out = append(out, Conflict{
				Type:   ConflictTypeExternalEvent,
				Source: "external_calendar",
				Title:  busy.Summary,
				Start:  busy.Start,
				End:    busy.End,
			})
		}
	}

	if opts.VenueID != nil {
		out = append(out, checkVenue(snap, candidate, opts)...)
	}

	return out
}

func checkVenue(snap Snapshot, candidate domain.Interval, opts CheckOptions) []Conflict {
	if snap.VenueMissing || snap.Venue == nil || !snap.Venue.Active {
		name := ""
		if snap.Venue != nil {
			name = snap.Venue.Name
		}
		return []Conflict{{
			Type:   ConflictTypeVenueUnavailable,
			Source: "venue",
			Title:  name,
			Start:  candidate.Start,
			End:    candidate.End,
		}}
	}
	if snap.Venue.Capacity == nil {
		return nil
	}

	concurrent := 0
	for _, booking := range snap.VenueBookings {
		if opts.ExcludeAppointmentID != nil && booking.ID == *opts.ExcludeAppointmentID {
			continue
		}
		if booking.Status.Blocking() && candidate.Overlaps(booking.Interval()) {
			concurrent++
		}
	}
	if concurrent >= *snap.Venue.Capacity {
		return []Conflict{{
			Type:   ConflictTypeVenueCapacity,
			Source: "venue",
			Title:  snap.Venue.Name,
			Start:  candidate.Start,
			End:    candidate.End,
		}}
	}
	return nil
}
