package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"bookwise/backend/internal/cache"
	"bookwise/backend/internal/domain"
	"bookwise/backend/internal/store"
	"bookwise/backend/internal/store/storetest"
)

func slot(h int) (time.Time, time.Time) {
	start := time.Date(2026, time.June, 8, h, 0, 0, 0, time.UTC)
	return start, start.Add(time.Hour)
}

func validInput() BookInput {
	start, end := slot(10)
	return BookInput{
		UserID:    "user-1",
		Title:     "Consultation",
		StartTime: start,
		EndTime:   end,
		Timezone:  "UTC",
	}
}

// acceptingTx echoes the appointment back with an ID, as an insert would.
func acceptingTx() *storetest.FakeTx {
	return &storetest.FakeTx{
		CreateAppointmentFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			if appt.ID == uuid.Nil {
				appt.ID = uuid.New()
			}
			return appt, nil
		},
	}
}

func TestBookValidation(t *testing.T) {
	start, end := slot(10)

	tests := []struct {
		name   string
		mutate func(*BookInput)
	}{
		{"missing title", func(in *BookInput) { in.Title = "  " }},
		{"missing user", func(in *BookInput) { in.UserID = "" }},
		{"end equals start", func(in *BookInput) { in.EndTime = in.StartTime }},
		{"end before start", func(in *BookInput) { in.StartTime = end; in.EndTime = start }},
		{"over a day long", func(in *BookInput) { in.EndTime = in.StartTime.Add(25 * time.Hour) }},
		{"bad timezone", func(in *BookInput) { in.Timezone = "Mars/Olympus" }},
		{"bad recurrence type", func(in *BookInput) {
			in.IsRecurring = true
			in.RecurrenceType = "hourly"
		}},
		{"recurrence day out of range", func(in *BookInput) {
			in.IsRecurring = true
			in.RecurrenceType = domain.RecurrenceTypeWeekly
			in.RecurrenceDays = []int16{1, 7}
		}},
	}

	svc := NewService(&storetest.FakeRepo{}, nil, nil, nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)

			_, err := svc.Book(context.Background(), in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("got %v, want a validation error", err)
			}
		})
	}
}

func TestBookInsertsWhenFree(t *testing.T) {
	tx := acceptingTx()
	repo := &storetest.FakeRepo{Tx: tx}
	busyCache := cache.NewMemoryCache()
	svc := NewService(repo, nil, busyCache, nil)

	got, err := svc.Book(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Book() error: %v", err)
	}
	if got.ID == uuid.Nil {
		t.Error("booked appointment has no ID")
	}
	if got.Status != domain.AppointmentStatusScheduled {
		t.Errorf("status = %q, want scheduled", got.Status)
	}
	if got.Title != "Consultation" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestBookRefusedOnConflict(t *testing.T) {
	start, end := slot(10)
	tx := acceptingTx()
	tx.ListBlockingAppointmentsFn = func(ctx context.Context, userID string, ws, we time.Time) ([]domain.Appointment, error) {
		return []domain.Appointment{{
			ID:        uuid.New(),
			Title:     "Taken",
			StartTime: start,
			EndTime:   end,
			Status:    domain.AppointmentStatusConfirmed,
		}}, nil
	}
	inserted := false
	tx.CreateAppointmentFn = func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
		inserted = true
		return appt, nil
	}
	svc := NewService(&storetest.FakeRepo{Tx: tx}, nil, nil, nil)

	_, err := svc.Book(context.Background(), validInput())

	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want *ConflictError", err)
	}
	if len(cerr.Conflicts) != 1 || cerr.Conflicts[0].Title != "Taken" {
		t.Errorf("conflicts = %+v, want the colliding appointment", cerr.Conflicts)
	}
	if !errors.Is(err, store.ErrConflict) {
		t.Error("ConflictError should match store.ErrConflict")
	}
	if inserted {
		t.Error("refused booking must not reach the insert")
	}
}

func TestBookChecksInsideTransaction(t *testing.T) {
	// The conflict read and the insert share the transactional view; the
	// outer repo is never consulted for either.
	var readInTx, insertInTx bool
	tx := &storetest.FakeTx{
		ListBlockingAppointmentsFn: func(ctx context.Context, userID string, ws, we time.Time) ([]domain.Appointment, error) {
			readInTx = true
			return nil, nil
		},
		CreateAppointmentFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			if !readInTx {
				t.Error("insert ran before the transactional conflict read")
			}
			insertInTx = true
			appt.ID = uuid.New()
			return appt, nil
		},
	}
	svc := NewService(&storetest.FakeRepo{Tx: tx}, nil, nil, nil)

	if _, err := svc.Book(context.Background(), validInput()); err != nil {
		t.Fatalf("Book() error: %v", err)
	}
	if !insertInTx {
		t.Error("insert did not go through the transaction")
	}
}

func TestBookVenueChecks(t *testing.T) {
	venueID := uuid.New()

	t.Run("unknown venue refused", func(t *testing.T) {
		tx := acceptingTx()
		svc := NewService(&storetest.FakeRepo{Tx: tx}, nil, nil, nil)

		in := validInput()
		in.VenueID = &venueID
		_, err := svc.Book(context.Background(), in)
		if !errors.Is(err, store.ErrConflict) {
			t.Fatalf("got %v, want conflict for unknown venue", err)
		}
	})

	t.Run("full venue refused", func(t *testing.T) {
		seats := 1
		start, end := slot(10)
		tx := acceptingTx()
		tx.GetVenueFn = func(ctx context.Context, id uuid.UUID) (domain.Venue, error) {
			return domain.Venue{ID: id, Name: "Studio", Active: true, Capacity: &seats}, nil
		}
		tx.ListVenueBookingsFn = func(ctx context.Context, id uuid.UUID, ws, we time.Time) ([]domain.Appointment, error) {
			return []domain.Appointment{{
				ID:        uuid.New(),
				UserID:    "someone-else",
				VenueID:   &venueID,
				StartTime: start,
				EndTime:   end,
				Status:    domain.AppointmentStatusScheduled,
			}}, nil
		}
		svc := NewService(&storetest.FakeRepo{Tx: tx}, nil, nil, nil)

		in := validInput()
		in.VenueID = &venueID
		_, err := svc.Book(context.Background(), in)

		var cerr *ConflictError
		if !errors.As(err, &cerr) {
			t.Fatalf("got %v, want *ConflictError", err)
		}
	})
}

func TestBookIdempotencyKeyDerivesStableID(t *testing.T) {
	var ids []uuid.UUID
	tx := &storetest.FakeTx{
		CreateAppointmentFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			ids = append(ids, appt.ID)
			return appt, nil
		},
	}
	svc := NewService(&storetest.FakeRepo{Tx: tx}, nil, nil, nil)

	in := validInput()
	in.IdempotencyKey = "client-req-42"
	if _, err := svc.Book(context.Background(), in); err != nil {
		t.Fatalf("Book() error: %v", err)
	}
	if _, err := svc.Book(context.Background(), in); err != nil {
		t.Fatalf("Book() retry error: %v", err)
	}

	if len(ids) != 2 || ids[0] == uuid.Nil || ids[0] != ids[1] {
		t.Fatalf("same key should derive the same ID, got %v", ids)
	}

	other := validInput()
	other.IdempotencyKey = "client-req-43"
	if _, err := svc.Book(context.Background(), other); err != nil {
		t.Fatalf("Book() error: %v", err)
	}
	if ids[2] == ids[0] {
		t.Error("different keys must derive different IDs")
	}
}

func TestBookInvalidatesBusyCache(t *testing.T) {
	busyCache := cache.NewMemoryCache()
	key := cache.Key{UserID: "user-1", ConnectionID: uuid.New()}
	ctx := context.Background()
	if err := busyCache.Put(ctx, key, []domain.BusyInterval{{Start: time.Now(), End: time.Now().Add(time.Hour)}}, time.Hour); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	svc := NewService(&storetest.FakeRepo{Tx: acceptingTx()}, nil, busyCache, nil)
	if _, err := svc.Book(ctx, validInput()); err != nil {
		t.Fatalf("Book() error: %v", err)
	}

	if _, ok, _ := busyCache.Get(ctx, key); ok {
		t.Error("booking should invalidate the user's busy cache")
	}
}

func TestBookBusySourceFailureDegrades(t *testing.T) {
	busyErr := busySourceFunc(func(ctx context.Context, userID string, ws, we time.Time) ([]domain.BusyInterval, error) {
		return nil, errors.New("cache down")
	})
	svc := NewService(&storetest.FakeRepo{Tx: acceptingTx()}, busyErr, nil, nil)

	if _, err := svc.Book(context.Background(), validInput()); err != nil {
		t.Fatalf("busy source failure must not block booking: %v", err)
	}
}

func TestBookRefusedOnExternalBusy(t *testing.T) {
	start, _ := slot(10)
	busy := busySourceFunc(func(ctx context.Context, userID string, ws, we time.Time) ([]domain.BusyInterval, error) {
		return []domain.BusyInterval{{Start: start.Add(30 * time.Minute), End: start.Add(90 * time.Minute), Summary: "Offsite"}}, nil
	})
	svc := NewService(&storetest.FakeRepo{Tx: acceptingTx()}, busy, nil, nil)

	_, err := svc.Book(context.Background(), validInput())
	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want *ConflictError", err)
	}
	if cerr.Conflicts[0].Title != "Offsite" {
		t.Errorf("conflict title = %q, want the external event", cerr.Conflicts[0].Title)
	}
}

func TestCancel(t *testing.T) {
	var gotStatus domain.AppointmentStatus
	repo := &storetest.FakeRepo{
		UpdateAppointmentStatusFn: func(ctx context.Context, userID string, id uuid.UUID, status domain.AppointmentStatus) error {
			gotStatus = status
			return nil
		},
	}
	busyCache := cache.NewMemoryCache()
	key := cache.Key{UserID: "user-1", ConnectionID: uuid.New()}
	ctx := context.Background()
	if err := busyCache.Put(ctx, key, []domain.BusyInterval{{Start: time.Now(), End: time.Now().Add(time.Hour)}}, time.Hour); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	svc := NewService(repo, nil, busyCache, nil)
	if err := svc.Cancel(ctx, "user-1", uuid.New()); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if gotStatus != domain.AppointmentStatusCancelled {
		t.Errorf("status = %q, want cancelled", gotStatus)
	}
	if _, ok, _ := busyCache.Get(ctx, key); ok {
		t.Error("cancel should invalidate the user's busy cache")
	}

	var verr *ValidationError
	if err := svc.Cancel(ctx, "", uuid.New()); !errors.As(err, &verr) {
		t.Errorf("missing user should be a validation error, got %v", err)
	}
}

type busySourceFunc func(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.BusyInterval, error)

func (f busySourceFunc) BusyIntervals(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.BusyInterval, error) {
	return f(ctx, userID, windowStart, windowEnd)
}
