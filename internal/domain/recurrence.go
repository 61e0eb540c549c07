package domain

import "time"

type RecurrenceType string

const (
	RecurrenceTypeDaily   RecurrenceType = "daily"
	RecurrenceTypeWeekly  RecurrenceType = "weekly"
	RecurrenceTypeMonthly RecurrenceType = "monthly"
)

// DefaultOccurrenceCap bounds a series when recurrence_count is unset. The
// cap counts total occurrences, parent included.
const DefaultOccurrenceCap = 52

// DefaultSeriesHorizon bounds a series when recurrence_end_date is unset:
// one year from the parent's start.
func DefaultSeriesHorizon(start time.Time) time.Time {
	return start.AddDate(1, 0, 0)
}

// ExpandOccurrences materializes the future instances of a recurring parent,
// ordered ascending by start time. The parent itself is occurrence one and
// is never re-emitted; expansion begins at the second occurrence.
//
// A non-recurring parent, an unknown recurrence type, or a non-positive
// duration yields an empty result rather than an error.
func ExpandOccurrences(parent Appointment) []Appointment {
	starts := expandStartTimes(parent)
	if len(starts) == 0 {
		return nil
	}

	duration := parent.Duration()
	out := make([]Appointment, 0, len(starts))
	parentID := parent.ID
	for _, start := range starts {
		out = append(out, Appointment{
			UserID:            parent.UserID,
			VenueID:           parent.VenueID,
			ContactID:         parent.ContactID,
			Title:             parent.Title,
			Description:       parent.Description,
			Location:          parent.Location,
			AttendeeName:      parent.AttendeeName,
			AttendeeEmail:     parent.AttendeeEmail,
			MeetingPlatform:   parent.MeetingPlatform,
			StartTime:         start.UTC(),
			EndTime:           start.Add(duration).UTC(),
			Timezone:          parent.Timezone,
			Status:            AppointmentStatusScheduled,
			IsRecurring:       false,
			RecurringParentID: &parentID,
		})
	}
	return out
}

func expandStartTimes(parent Appointment) []time.Time {
	if !parent.IsRecurring || parent.Duration() <= 0 {
		return nil
	}

	loc, err := time.LoadLocation(parent.Timezone)
	if err != nil {
		loc = time.UTC
	}
	startLocal := parent.StartTime.In(loc)

	interval := parent.RecurrenceInterval
	if interval < 1 {
		interval = 1
	}

	maxTotal := DefaultOccurrenceCap
	if parent.RecurrenceCount != nil && *parent.RecurrenceCount > 0 {
		maxTotal = *parent.RecurrenceCount
	}

	until := DefaultSeriesHorizon(startLocal)
	if parent.RecurrenceEndDate != nil {
		until = parent.RecurrenceEndDate.In(loc)
	}

	switch parent.RecurrenceType {
	case RecurrenceTypeDaily:
		return strideStartTimes(startLocal, until, maxTotal, func(t time.Time) time.Time {
			return t.AddDate(0, 0, interval)
		})
	case RecurrenceTypeWeekly:
		days := normalizeWeekdays(parent.RecurrenceDays)
		if len(days) == 0 {
			return strideStartTimes(startLocal, until, maxTotal, func(t time.Time) time.Time {
				return t.AddDate(0, 0, 7*interval)
			})
		}
		return weekdaySetStartTimes(startLocal, until, maxTotal, interval, days)
	case RecurrenceTypeMonthly:
		return strideStartTimes(startLocal, until, maxTotal, func(t time.Time) time.Time {
			return t.AddDate(0, interval, 0)
		})
	default:
		return nil
	}
}

func strideStartTimes(start, until time.Time, maxTotal int, next func(time.Time) time.Time) []time.Time {
	var out []time.Time
	cur := start
	for total := 1; total < maxTotal; total++ {
		cur = next(cur)
		if cur.After(until) {
			break
		}
		out = append(out, cur)
	}
	return out
}

// weekdaySetStartTimes walks forward one day at a time. Weeks begin on
// Sunday; entering a Sunday crosses a week boundary. A day qualifies when
// its weekday is in the set and the number of boundaries crossed since the
// parent's start lands on the interval stride, so "every 2 weeks on Mon/Wed"
// skips the off-week entirely.
func weekdaySetStartTimes(start, until time.Time, maxTotal, interval int, days map[time.Weekday]bool) []time.Time {
	var out []time.Time
	cur := start
	weeks := 0
	for total := 1; total < maxTotal; {
		cur = cur.AddDate(0, 0, 1)
		if cur.After(until) {
			break
		}
		if cur.Weekday() == time.Sunday {
			weeks++
		}
		if weeks%interval != 0 || !days[cur.Weekday()] {
			continue
		}
		out = append(out, cur)
		total++
	}
	return out
}

func normalizeWeekdays(days []int16) map[time.Weekday]bool {
	out := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			continue
		}
		out[time.Weekday(d)] = true
	}
	return out
}
