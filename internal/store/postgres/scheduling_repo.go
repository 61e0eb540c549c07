package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"bookwise/backend/internal/domain"
	"bookwise/backend/internal/store"
)

type SchedulingRepo struct {
	db *bun.DB
}

func NewSchedulingRepo(db *bun.DB) *SchedulingRepo {
	return &SchedulingRepo{db: db}
}

type bookingTx struct {
	tx bun.Tx
}

func (r *SchedulingRepo) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.InUserTransaction(ctx, appt.UserID, func(ctx context.Context, tx store.BookingTx) error {
		a, err := tx.CreateAppointment(ctx, appt)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r *SchedulingRepo) GetAppointment(ctx context.Context, userID string, id uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.db.NewSelect().
		Model(&appt).
		Where("user_id = ?", userID).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (r *SchedulingRepo) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	res, err := r.db.NewUpdate().
		Model(&appt).
		WherePK().
		Where("user_id = ?", appt.UserID).
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return appt, nil
}

func (r *SchedulingRepo) UpdateAppointmentStatus(ctx context.Context, userID string, id uuid.UUID, status domain.AppointmentStatus) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("user_id = ?", userID).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *SchedulingRepo) ListBlockingAppointments(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	return listBlockingAppointments(ctx, r.db, userID, windowStart, windowEnd)
}

func (r *SchedulingRepo) ListVenueBookings(ctx context.Context, venueID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	return listVenueBookings(ctx, r.db, venueID, windowStart, windowEnd)
}

func (r *SchedulingRepo) ListChildInstances(ctx context.Context, userID string, parentID uuid.UUID) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Where("recurring_parent_id = ?", parentID).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SchedulingRepo) TemplateForWeekday(ctx context.Context, userID string, weekday time.Weekday) (*domain.WeeklyAvailabilityTemplate, error) {
	var tmpl domain.WeeklyAvailabilityTemplate
	err := r.db.NewSelect().
		Model(&tmpl).
		Where("user_id = ?", userID).
		Where("weekday = ?", int(weekday)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &tmpl, nil
}

func (r *SchedulingRepo) ListExceptions(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.AvailabilityException, error) {
	return listExceptions(ctx, r.db, userID, windowStart, windowEnd)
}

func (r *SchedulingRepo) GetVenue(ctx context.Context, venueID uuid.UUID) (domain.Venue, error) {
	return getVenue(ctx, r.db, venueID)
}

func (r *SchedulingRepo) ListConnections(ctx context.Context, userID string) ([]domain.CalendarConnection, error) {
	var rows []domain.CalendarConnection
	err := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SchedulingRepo) PrimaryConnection(ctx context.Context, userID, provider string) (domain.CalendarConnection, error) {
	var conn domain.CalendarConnection
	err := r.db.NewSelect().
		Model(&conn).
		Where("user_id = ?", userID).
		Where("provider = ?", provider).
		Where("is_primary = TRUE").
		Where("sync_enabled = TRUE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CalendarConnection{}, store.ErrNotFound
		}
		return domain.CalendarConnection{}, err
	}
	return conn, nil
}

func (r *SchedulingRepo) ListSyncDueConnections(ctx context.Context, cutoff time.Time) ([]domain.CalendarConnection, error) {
	var rows []domain.CalendarConnection
	err := r.db.NewSelect().
		Model(&rows).
		Where("sync_enabled = TRUE").
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("last_synced_at IS NULL").WhereOr("last_synced_at < ?", cutoff)
		}).
		OrderExpr("last_synced_at ASC NULLS FIRST").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SchedulingRepo) UpdateConnection(ctx context.Context, conn domain.CalendarConnection) (domain.CalendarConnection, error) {
	res, err := r.db.NewUpdate().
		Model(&conn).
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.CalendarConnection{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.CalendarConnection{}, err
	}
	if affected == 0 {
		return domain.CalendarConnection{}, store.ErrNotFound
	}
	return conn, nil
}

func (r *SchedulingRepo) UpdateFutureInstances(ctx context.Context, userID string, parentID uuid.UUID, patch store.InstancePatch, after time.Time) (int, error) {
	if patch.Empty() {
		return 0, nil
	}

	q := r.db.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("updated_at = ?", time.Now().UTC())
	if patch.Title != nil {
		q = q.Set("title = ?", *patch.Title)
	}
	if patch.Description != nil {
		q = q.Set("description = ?", *patch.Description)
	}
	if patch.Location != nil {
		q = q.Set("location = ?", *patch.Location)
	}
	if patch.AttendeeName != nil {
		q = q.Set("attendee_name = ?", *patch.AttendeeName)
	}
	if patch.AttendeeEmail != nil {
		q = q.Set("attendee_email = ?", *patch.AttendeeEmail)
	}
	if patch.MeetingPlatform != nil {
		q = q.Set("meeting_platform = ?", *patch.MeetingPlatform)
	}

	res, err := q.
		Where("user_id = ?", userID).
		Where("recurring_parent_id = ?", parentID).
		Where("start_time > ?", after).
		Where("status NOT IN (?, ?)", domain.AppointmentStatusCancelled, domain.AppointmentStatusCompleted).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res)
}

func (r *SchedulingRepo) CancelFutureInstances(ctx context.Context, userID string, parentID uuid.UUID, after time.Time) (int, error) {
	res, err := r.db.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("status = ?", domain.AppointmentStatusCancelled).
		Set("updated_at = ?", time.Now().UTC()).
		Where("user_id = ?", userID).
		Where("recurring_parent_id = ?", parentID).
		Where("start_time > ?", after).
		Where("status NOT IN (?, ?)", domain.AppointmentStatusCancelled, domain.AppointmentStatusCompleted).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res)
}

func (r *SchedulingRepo) DeleteFutureInstances(ctx context.Context, userID string, parentID uuid.UUID, after time.Time) (int, error) {
	res, err := r.db.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where("user_id = ?", userID).
		Where("recurring_parent_id = ?", parentID).
		Where("start_time > ?", after).
		Where("status NOT IN (?, ?)", domain.AppointmentStatusCancelled, domain.AppointmentStatusCompleted).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res)
}

func (r *SchedulingRepo) InUserTransaction(ctx context.Context, userID string, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockUserCalendar(ctx, tx, userID); err != nil {
			return err
		}
		return fn(ctx, bookingTx{tx: tx})
	})
}

// lockUserCalendar serializes booking mutations per user for the duration of
// the transaction. This is what makes the check-then-insert sequence safe
// under concurrent booking attempts.
func lockUserCalendar(ctx context.Context, tx bun.Tx, userID string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", userID).Exec(ctx)
	return err
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (t bookingTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	_, err := t.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23P01" && pgErr.ConstraintName == "appointments_no_overlap" {
				return domain.Appointment{}, store.ErrConflict
			}
			if pgErr.Code == "23505" {
				var existing domain.Appointment
				selectErr := t.tx.NewSelect().
					Model(&existing).
					Where("id = ?", m.ID).
					Limit(1).
					Scan(ctx)
				if selectErr != nil {
					return domain.Appointment{}, err
				}

				if existing.UserID != appt.UserID ||
					existing.Title != appt.Title ||
					!existing.StartTime.Equal(appt.StartTime) ||
					!existing.EndTime.Equal(appt.EndTime) {
					return domain.Appointment{}, store.ErrIdempotencyConflict
				}

				return existing, nil
			}
		}
		return domain.Appointment{}, err
	}

	appt.ID = m.ID
	appt.Status = m.Status
	appt.Timezone = m.Timezone
	return appt, nil
}

func (t bookingTx) UpdateAppointmentStatus(ctx context.Context, userID string, id uuid.UUID, status domain.AppointmentStatus) error {
	res, err := t.tx.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("user_id = ?", userID).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t bookingTx) DeleteAppointment(ctx context.Context, userID string, id uuid.UUID) error {
	res, err := t.tx.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where("user_id = ?", userID).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t bookingTx) ListBlockingAppointments(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	return listBlockingAppointments(ctx, t.tx, userID, windowStart, windowEnd)
}

func (t bookingTx) ListVenueBookings(ctx context.Context, venueID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	return listVenueBookings(ctx, t.tx, venueID, windowStart, windowEnd)
}

func (t bookingTx) ListExceptions(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.AvailabilityException, error) {
	return listExceptions(ctx, t.tx, userID, windowStart, windowEnd)
}

func (t bookingTx) GetVenue(ctx context.Context, venueID uuid.UUID) (domain.Venue, error) {
	return getVenue(ctx, t.tx, venueID)
}

func listBlockingAppointments(ctx context.Context, db bun.IDB, userID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Where("status IN (?, ?)", domain.AppointmentStatusScheduled, domain.AppointmentStatusConfirmed).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func listVenueBookings(ctx context.Context, db bun.IDB, venueID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := db.NewSelect().
		Model(&rows).
		Where("venue_id = ?", venueID).
		Where("status IN (?, ?)", domain.AppointmentStatusScheduled, domain.AppointmentStatusConfirmed).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func listExceptions(ctx context.Context, db bun.IDB, userID string, windowStart, windowEnd time.Time) ([]domain.AvailabilityException, error) {
	var rows []domain.AvailabilityException
	err := db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func getVenue(ctx context.Context, db bun.IDB, venueID uuid.UUID) (domain.Venue, error) {
	var venue domain.Venue
	err := db.NewSelect().
		Model(&venue).
		Where("id = ?", venueID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Venue{}, store.ErrNotFound
		}
		return domain.Venue{}, err
	}
	return venue, nil
}
