package calendarsync

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"bookwise/backend/internal/cache"
	"bookwise/backend/internal/domain"
	"bookwise/backend/internal/provider"
	"bookwise/backend/internal/store"
)

var (
	ErrSyncDisabled    = errors.New("connection cannot sync")
	ErrUnknownProvider = errors.New("unknown calendar provider")
)

// Fetch windows relative to now. A full sync widens the range to rebuild
// history after reconnects.
const (
	syncLookback  = 7 * 24 * time.Hour
	syncLookahead = 90 * 24 * time.Hour

	fullSyncLookback  = 30 * 24 * time.Hour
	fullSyncLookahead = 365 * 24 * time.Hour
)

// Service is the gateway between local appointments and external calendar
// providers: it pulls remote events into the busy-interval cache and pushes
// local appointments out as remote events.
type Service struct {
	repo            store.SchedulingRepository
	registry        *provider.Registry
	busyCache       cache.BusyCache
	defaultProvider string
	ttl             time.Duration
	timeout         time.Duration
	now             func() time.Time
	log             *slog.Logger
}

type Option func(*Service)

// WithTTL sets the busy-cache entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// WithProviderTimeout bounds each external-provider call.
func WithProviderTimeout(timeout time.Duration) Option {
	return func(s *Service) { s.timeout = timeout }
}

// WithClock overrides the service clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDefaultProvider sets the provider used when pushing appointments.
func WithDefaultProvider(name string) Option {
	return func(s *Service) { s.defaultProvider = name }
}

func NewService(repo store.SchedulingRepository, registry *provider.Registry, busyCache cache.BusyCache, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		repo:            repo,
		registry:        registry,
		busyCache:       busyCache,
		defaultProvider: "google_calendar",
		ttl:             cache.DefaultBusyTTL,
		timeout:         30 * time.Second,
		now:             time.Now,
		log:             log.With(slog.String("component", "calendarsync.service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync fetches the connection's events, rebuilds its busy-interval list, and
// caches it under the connection's key. Cancelled, all-day, and transparent
// events never become busy intervals. Returns the number of events fetched.
func (s *Service) Sync(ctx context.Context, conn domain.CalendarConnection, fullSync bool) (int, error) {
	if !conn.CanSync() {
		return 0, ErrSyncDisabled
	}
	p, ok := s.registry.Lookup(conn.Provider)
	if !ok {
		return 0, ErrUnknownProvider
	}

	now := s.now()
	windowStart := now.Add(-syncLookback)
	windowEnd := now.Add(syncLookahead)
	if fullSync {
		windowStart = now.Add(-fullSyncLookback)
		windowEnd = now.Add(fullSyncLookahead)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	events, err := p.FetchEvents(fetchCtx, conn, windowStart, windowEnd)
	if err != nil {
		return 0, err
	}

	busy := make([]domain.BusyInterval, 0, len(events))
	for _, ev := range events {
		if !ev.Blocks() {
			continue
		}
		busy = append(busy, domain.BusyInterval{
			Start:         *ev.Start,
			End:           *ev.End,
			SourceEventID: ev.ID,
			Summary:       ev.Summary,
		})
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })

	key := cache.Key{UserID: conn.UserID, ConnectionID: conn.ID}
	if err := s.busyCache.Put(ctx, key, busy, s.ttl); err != nil {
		return 0, err
	}

	syncedAt := now.UTC()
	conn.LastSyncedAt = &syncedAt
	if _, err := s.repo.UpdateConnection(ctx, conn); err != nil {
		s.log.Warn("last_synced_at update failed", slog.Any("err", err), slog.String("connection_id", conn.ID.String()))
	}

	return len(events), nil
}

// SyncReport is the partial-success outcome of a multi-connection sync.
type SyncReport struct {
	Synced        int `json:"synced"`
	Failed        int `json:"failed"`
	EventsFetched int `json:"events_fetched"`
}

// SyncUserCalendars syncs every sync-enabled connection the user has. A
// failing connection is logged and counted; it never aborts the others.
func (s *Service) SyncUserCalendars(ctx context.Context, userID string, fullSync bool) (SyncReport, error) {
	conns, err := s.repo.ListConnections(ctx, userID)
	if err != nil {
		return SyncReport{}, err
	}

	var report SyncReport
	for _, conn := range conns {
		if !conn.SyncEnabled {
			continue
		}
		fetched, err := s.Sync(ctx, conn, fullSync)
		if err != nil {
			report.Failed++
			s.log.Warn("calendar sync failed",
				slog.Any("err", err),
				slog.String("user_id", userID),
				slog.String("connection_id", conn.ID.String()),
				slog.String("provider", conn.Provider),
			)
			continue
		}
		report.Synced++
		report.EventsFetched += fetched
	}
	return report, nil
}

// SyncDueConnections syncs every connection whose cached busy intervals are
// older than the TTL. Run by the periodic sweep.
func (s *Service) SyncDueConnections(ctx context.Context) (SyncReport, error) {
	cutoff := s.now().Add(-s.ttl)
	conns, err := s.repo.ListSyncDueConnections(ctx, cutoff)
	if err != nil {
		return SyncReport{}, err
	}

	var report SyncReport
	for _, conn := range conns {
		fetched, err := s.Sync(ctx, conn, false)
		if err != nil {
			report.Failed++
			s.log.Warn("scheduled calendar sync failed",
				slog.Any("err", err),
				slog.String("connection_id", conn.ID.String()),
				slog.String("provider", conn.Provider),
			)
			continue
		}
		report.Synced++
		report.EventsFetched += fetched
	}
	return report, nil
}

// BusyIntervals returns the cached busy intervals for all the user's
// sync-enabled connections, clipped to the window. A cache miss triggers an
// on-demand sync for that connection; a connection that still cannot produce
// data is skipped rather than failing the whole read.
func (s *Service) BusyIntervals(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.BusyInterval, error) {
	conns, err := s.repo.ListConnections(ctx, userID)
	if err != nil {
		return nil, err
	}

	window := domain.Interval{Start: windowStart, End: windowEnd}
	var out []domain.BusyInterval
	for _, conn := range conns {
		if !conn.SyncEnabled {
			continue
		}
		key := cache.Key{UserID: userID, ConnectionID: conn.ID}

		intervals, hit, err := s.busyCache.Get(ctx, key)
		if err != nil {
			s.log.Warn("busy cache read failed", slog.Any("err", err), slog.String("connection_id", conn.ID.String()))
			continue
		}
		if !hit {
			if _, err := s.Sync(ctx, conn, false); err != nil {
				s.log.Warn("on-demand sync failed",
					slog.Any("err", err),
					slog.String("connection_id", conn.ID.String()),
					slog.String("provider", conn.Provider),
				)
				continue
			}
			intervals, _, err = s.busyCache.Get(ctx, key)
			if err != nil {
				s.log.Warn("busy cache read failed", slog.Any("err", err), slog.String("connection_id", conn.ID.String()))
				continue
			}
		}

		for _, iv := range intervals {
			if window.Overlaps(iv.Interval()) {
				out = append(out, iv)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}
