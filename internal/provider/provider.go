package provider

import (
	"context"
	"strings"
	"sync"
	"time"

	"bookwise/backend/internal/domain"
)

// Event is a provider-neutral view of one remote calendar event. Start and
// End are nil for all-day events, which carry only a date.
type Event struct {
	ID           string
	Summary      string
	Status       string
	Transparency string
	Start        *time.Time
	End          *time.Time
}

// Blocks reports whether the event occupies its owner's time: not cancelled,
// not all-day, and not explicitly marked transparent ("free").
func (e Event) Blocks() bool {
	if strings.EqualFold(e.Status, "cancelled") {
		return false
	}
	if e.Start == nil || e.End == nil {
		return false
	}
	return !strings.EqualFold(e.Transparency, "transparent")
}

// CalendarProvider is one external calendar backend. Implementations resolve
// credentials from the connection; they never hold per-user state.
type CalendarProvider interface {
	Name() string
	FetchEvents(ctx context.Context, conn domain.CalendarConnection, windowStart, windowEnd time.Time) ([]Event, error)
	CreateEvent(ctx context.Context, conn domain.CalendarConnection, appt domain.Appointment) (string, error)
	UpdateEvent(ctx context.Context, conn domain.CalendarConnection, eventID string, appt domain.Appointment) error
	DeleteEvent(ctx context.Context, conn domain.CalendarConnection, eventID string) error
}

// Registry resolves providers by name once at connection time instead of
// re-dispatching on the provider string for every sync call.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]CalendarProvider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]CalendarProvider)}
}

func (r *Registry) Register(p CalendarProvider) {
	r.mu.Lock()
	r.providers[p.Name()] = p
	r.mu.Unlock()
}

func (r *Registry) Lookup(name string) (CalendarProvider, bool) {
	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()
	return p, ok
}
