package calendarsync

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

func pushableAppt(userID string) domain.Appointment {
	return domain.Appointment{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     "Consultation",
		StartTime: *nowAt(10, 0),
		EndTime:   *nowAt(11, 0),
		Timezone:  "UTC",
		Status:    domain.AppointmentStatusConfirmed,
	}
}

func pushRepo(conn domain.CalendarConnection) *storetest.FakeRepo {
	return &storetest.FakeRepo{
		PrimaryConnectionFn: func(ctx context.Context, userID, providerName string) (domain.CalendarConnection, error) {
			return conn, nil
		},
		UpdateAppointmentFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			return appt, nil
		},
	}
}

func TestPushAppointmentCreates(t *testing.T) {
	conn := syncableConn("user-1")
	repo := pushRepo(conn)
	var created *domain.Appointment
	repo.UpdateAppointmentFn = func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
		created = &appt
		return appt, nil
	}
	p := &fakeProvider{
		createFn: func(ctx context.Context, c domain.CalendarConnection, appt domain.Appointment) (string, error) {
			return "evt-123", nil
		},
	}
	busyCache := cache.NewMemoryCache()
	key := cache.Key{UserID: "user-1", ConnectionID: conn.ID}
	if err := busyCache.Put(context.Background(), key, []domain.BusyInterval{{SourceEventID: "stale"}}, time.Hour); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	svc := newService(repo, p, busyCache)

	res, err := svc.PushAppointment(context.Background(), pushableAppt("user-1"), false)
	if err != nil {
		t.Fatalf("PushAppointment() error: %v", err)
	}
	if !res.Success || res.Outcome != PushOutcomeCreated || res.EventID != "evt-123" {
		t.Fatalf("result = %+v", res)
	}
	if created == nil || created.CalendarEventID == nil || *created.CalendarEventID != "evt-123" {
		t.Error("remote event id should be persisted on the appointment")
	}
	if created.CalendarSyncedAt == nil || !created.CalendarSyncedAt.Equal(testNow) {
		t.Errorf("calendar_synced_at = %v, want %v", created.CalendarSyncedAt, testNow)
	}
	if _, hit, _ := busyCache.Get(context.Background(), key); hit {
		t.Error("push should invalidate the user's busy cache")
	}
}

func TestPushAppointmentNoConnection(t *testing.T) {
	repo := &storetest.FakeRepo{
		PrimaryConnectionFn: func(ctx context.Context, userID, providerName string) (domain.CalendarConnection, error) {
			return domain.CalendarConnection{}, store.ErrNotFound
		},
	}
	svc := newService(repo, &fakeProvider{}, cache.NewMemoryCache())

	res, err := svc.PushAppointment(context.Background(), pushableAppt("user-1"), false)
	if err != nil {
		t.Fatalf("missing connection is not an error: %v", err)
	}
	if res.Success || res.Outcome != PushOutcomeNoConnection {
		t.Fatalf("result = %+v, want no_connection", res)
	}
}

func TestPushAppointmentRefusedOnConflict(t *testing.T) {
	conn := syncableConn("user-1")
	repo := pushRepo(conn)
	appt := pushableAppt("user-1")
	repo.ListBlockingAppointmentsFn = func(ctx context.Context, userID string, ws, we time.Time) ([]domain.Appointment, error) {
		return []domain.Appointment{
			appt, // the appointment under push; must be ignored
			{
				ID:        uuid.New(),
				Title:     "Taken",
				StartTime: *nowAt(10, 30),
				EndTime:   *nowAt(11, 30),
				Status:    domain.AppointmentStatusScheduled,
			},
		}, nil
	}
	mutated := false
	p := &fakeProvider{
		createFn: func(ctx context.Context, c domain.CalendarConnection, a domain.Appointment) (string, error) {
			mutated = true
			return "", nil
		},
	}
	svc := newService(repo, p, cache.NewMemoryCache())

	res, err := svc.PushAppointment(context.Background(), appt, false)
	if err != nil {
		t.Fatalf("PushAppointment() error: %v", err)
	}
	if res.Success || res.Outcome != PushOutcomeRefused {
		t.Fatalf("result = %+v, want refused", res)
	}
	if len(res.Conflicts) != 1 || res.Conflicts[0].Title != "Taken" {
		t.Errorf("conflicts = %+v", res.Conflicts)
	}
	if mutated {
		t.Error("refused push must not touch the provider")
	}
}

func TestPushAppointmentForceCreateSkipsConflictCheck(t *testing.T) {
	conn := syncableConn("user-1")
	repo := pushRepo(conn)
	repo.ListBlockingAppointmentsFn = func(ctx context.Context, userID string, ws, we time.Time) ([]domain.Appointment, error) {
		t.Error("forced push must not run conflict discovery")
		return nil, nil
	}
	p := &fakeProvider{
		createFn: func(ctx context.Context, c domain.CalendarConnection, a domain.Appointment) (string, error) {
			return "evt-forced", nil
		},
	}
	svc := newService(repo, p, cache.NewMemoryCache())

	res, err := svc.PushAppointment(context.Background(), pushableAppt("user-1"), true)
	if err != nil {
		t.Fatalf("PushAppointment() error: %v", err)
	}
	if res.Outcome != PushOutcomeCreated || res.EventID != "evt-forced" {
		t.Fatalf("result = %+v", res)
	}
}

func TestPushAppointmentUpdatesExisting(t *testing.T) {
	conn := syncableConn("user-1")
	repo := pushRepo(conn)
	// The previously pushed remote copy sits in the cache; it must not
	// conflict with its own appointment.
	appt := pushableAppt("user-1")
	eventID := "evt-mine"
	appt.CalendarEventID = &eventID

	busyCache := cache.NewMemoryCache()
	key := cache.Key{UserID: "user-1", ConnectionID: conn.ID}
	if err := busyCache.Put(context.Background(), key, []domain.BusyInterval{{
		Start: appt.StartTime, End: appt.EndTime, SourceEventID: eventID,
	}}, time.Hour); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	repo.ListConnectionsFn = func(ctx context.Context, userID string) ([]domain.CalendarConnection, error) {
		return []domain.CalendarConnection{conn}, nil
	}

	updatedRemote := false
	p := &fakeProvider{
		updateFn: func(ctx context.Context, c domain.CalendarConnection, id string, a domain.Appointment) error {
			if id != eventID {
				t.Errorf("updated event %q, want %q", id, eventID)
			}
			updatedRemote = true
			return nil
		},
	}
	svc := newService(repo, p, busyCache)

	res, err := svc.PushAppointment(context.Background(), appt, false)
	if err != nil {
		t.Fatalf("PushAppointment() error: %v", err)
	}
	if res.Outcome != PushOutcomeUpdated || res.EventID != eventID {
		t.Fatalf("result = %+v, want updated in place", res)
	}
	if !updatedRemote {
		t.Error("provider update was not called")
	}
}

func TestPushAppointmentUpdateFallsBackToCreate(t *testing.T) {
	conn := syncableConn("user-1")
	repo := pushRepo(conn)
	appt := pushableAppt("user-1")
	eventID := "evt-deleted-remotely"
	appt.CalendarEventID = &eventID

	p := &fakeProvider{
		updateFn: func(ctx context.Context, c domain.CalendarConnection, id string, a domain.Appointment) error {
			return errors.New("event not found")
		},
		createFn: func(ctx context.Context, c domain.CalendarConnection, a domain.Appointment) (string, error) {
			return "evt-replacement", nil
		},
	}
	svc := newService(repo, p, cache.NewMemoryCache())

	res, err := svc.PushAppointment(context.Background(), appt, true)
	if err != nil {
		t.Fatalf("PushAppointment() error: %v", err)
	}
	if res.Outcome != PushOutcomeCreated || res.EventID != "evt-replacement" {
		t.Fatalf("result = %+v, want a replacement event", res)
	}
}

func TestDeleteAppointment(t *testing.T) {
	conn := syncableConn("user-1")

	t.Run("no remote copy is a no-op", func(t *testing.T) {
		svc := newService(&storetest.FakeRepo{}, &fakeProvider{}, cache.NewMemoryCache())
		ok, err := svc.DeleteAppointment(context.Background(), pushableAppt("user-1"))
		if err != nil || !ok {
			t.Fatalf("got (%v, %v), want (true, nil)", ok, err)
		}
	})

	t.Run("deletes and clears sync fields", func(t *testing.T) {
		appt := pushableAppt("user-1")
		eventID := "evt-123"
		syncedAt := testNow
		appt.CalendarEventID = &eventID
		appt.CalendarSyncedAt = &syncedAt

		repo := pushRepo(conn)
		var saved *domain.Appointment
		repo.UpdateAppointmentFn = func(ctx context.Context, a domain.Appointment) (domain.Appointment, error) {
			saved = &a
			return a, nil
		}
		deleted := ""
		p := &fakeProvider{
			deleteFn: func(ctx context.Context, c domain.CalendarConnection, id string) error {
				deleted = id
				return nil
			},
		}
		busyCache := cache.NewMemoryCache()
		key := cache.Key{UserID: "user-1", ConnectionID: conn.ID}
		if err := busyCache.Put(context.Background(), key, []domain.BusyInterval{{SourceEventID: eventID}}, time.Hour); err != nil {
			t.Fatalf("Put() error: %v", err)
		}
		svc := newService(repo, p, busyCache)

		ok, err := svc.DeleteAppointment(context.Background(), appt)
		if err != nil || !ok {
			t.Fatalf("got (%v, %v), want (true, nil)", ok, err)
		}
		if deleted != eventID {
			t.Errorf("deleted event %q, want %q", deleted, eventID)
		}
		if saved == nil || saved.CalendarEventID != nil || saved.CalendarSyncedAt != nil {
			t.Error("sync fields should be cleared after remote delete")
		}
		if _, hit, _ := busyCache.Get(context.Background(), key); hit {
			t.Error("delete should invalidate the user's busy cache")
		}
	})

	t.Run("orphaned without connection", func(t *testing.T) {
		appt := pushableAppt("user-1")
		eventID := "evt-orphan"
		appt.CalendarEventID = &eventID
		repo := &storetest.FakeRepo{
			PrimaryConnectionFn: func(ctx context.Context, userID, providerName string) (domain.CalendarConnection, error) {
				return domain.CalendarConnection{}, store.ErrNotFound
			},
		}
		svc := newService(repo, &fakeProvider{}, cache.NewMemoryCache())

		ok, err := svc.DeleteAppointment(context.Background(), appt)
		if err != nil {
			t.Fatalf("missing connection is not an error: %v", err)
		}
		if ok {
			t.Error("orphaned remote event should report not-deleted")
		}
	})
}
