package recurring

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bookwise/backend/internal/domain"
	"bookwise/backend/internal/store"
)

// Service materializes recurring series and runs the cascading operations
// over their instances. Instances are always resolved through the store by
// parent id; parent and children never reference each other in memory.
type Service struct {
	repo store.SchedulingRepository
	now  func() time.Time
	log  *slog.Logger
}

func NewService(repo store.SchedulingRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo: repo,
		now:  time.Now,
		log:  log.With(slog.String("component", "recurring.service")),
	}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateRecurringInstances expands the parent's recurrence rule and persists
// every future occurrence after the parent's own. The series is best-effort:
// an instance that fails to persist is logged and skipped, and the rest of
// the series is still generated. A non-recurring parent yields an empty
// result.
func (s *Service) CreateRecurringInstances(ctx context.Context, parent domain.Appointment) ([]domain.Appointment, error) {
	if !parent.IsRecurring {
		return nil, nil
	}

	expanded := domain.ExpandOccurrences(parent)
	created := make([]domain.Appointment, 0, len(expanded))
	for _, inst := range expanded {
		persisted, err := s.repo.CreateAppointment(ctx, inst)
		if err != nil {
			s.log.Warn("recurring instance create failed",
				slog.Any("err", err),
				slog.String("parent_id", parent.ID.String()),
				slog.Time("start_time", inst.StartTime),
			)
			continue
		}
		created = append(created, persisted)
	}

	s.log.Info("recurring series materialized",
		slog.String("parent_id", parent.ID.String()),
		slog.Int("generated", len(expanded)),
		slog.Int("created", len(created)),
	)
	return created, nil
}

// UpdateFutureInstances cascades the patch to instances that start in the
// future and are not in a terminal status. Returns the number updated.
func (s *Service) UpdateFutureInstances(ctx context.Context, userID string, parentID uuid.UUID, patch store.InstancePatch) (int, error) {
	if patch.Empty() {
		return 0, nil
	}
	return s.repo.UpdateFutureInstances(ctx, userID, parentID, patch, s.now())
}

// CancelFutureInstances cancels future, non-terminal instances of the
// series. The parent and past instances are untouched.
func (s *Service) CancelFutureInstances(ctx context.Context, userID string, parentID uuid.UUID) (int, error) {
	return s.repo.CancelFutureInstances(ctx, userID, parentID, s.now())
}

// DeleteAllInstances removes the series' future, non-terminal instances.
func (s *Service) DeleteAllInstances(ctx context.Context, userID string, parentID uuid.UUID) (int, error) {
	return s.repo.DeleteFutureInstances(ctx, userID, parentID, s.now())
}

// Summary describes a recurring series and its materialized state.
type Summary struct {
	ParentID           uuid.UUID
	RecurrenceType     domain.RecurrenceType
	RecurrenceInterval int
	RecurrenceDays     []int16

	TotalInstances int
	Upcoming       int
	Completed      int
	Cancelled      int
	NextOccurrence *time.Time
}

// GetRecurringSummary reports the state of a series: instance counts by
// status and the next upcoming occurrence, parent included.
func (s *Service) GetRecurringSummary(ctx context.Context, userID string, parentID uuid.UUID) (Summary, error) {
	parent, err := s.repo.GetAppointment(ctx, userID, parentID)
	if err != nil {
		return Summary{}, err
	}

	children, err := s.repo.ListChildInstances(ctx, userID, parentID)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		ParentID:           parent.ID,
		RecurrenceType:     parent.RecurrenceType,
		RecurrenceInterval: parent.RecurrenceInterval,
		RecurrenceDays:     parent.RecurrenceDays,
		TotalInstances:     len(children) + 1,
	}

	now := s.now()
	all := append([]domain.Appointment{parent}, children...)
	for _, appt := range all {
		switch appt.Status {
		case domain.AppointmentStatusCompleted:
			summary.Completed++
		case domain.AppointmentStatusCancelled:
			summary.Cancelled++
		default:
			if appt.StartTime.After(now) {
				summary.Upcoming++
				if summary.NextOccurrence == nil || appt.StartTime.Before(*summary.NextOccurrence) {
					start := appt.StartTime
					summary.NextOccurrence = &start
				}
			}
		}
	}
	return summary, nil
}
