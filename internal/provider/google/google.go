package google

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"bookwise/backend/internal/domain"
	"bookwise/backend/internal/provider"
)

const ProviderName = "google_calendar"

const maxResultsPerPage = 2500

// Provider talks to the Google Calendar API using the tokens stored on each
// connection. When OAuth client credentials are configured, expired access
// tokens are refreshed transparently by the token source.
type Provider struct {
	oauthConfig *oauth2.Config
}

func New(clientID, clientSecret string) *Provider {
	p := &Provider{}
	if clientID != "" && clientSecret != "" {
		p.oauthConfig = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
			Scopes: []string{calendar.CalendarEventsScope},
		}
	}
	return p
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) service(ctx context.Context, conn domain.CalendarConnection) (*calendar.Service, error) {
	token := &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		Expiry:       conn.TokenExpiresAt,
	}

	var source oauth2.TokenSource
	if p.oauthConfig != nil {
		source = p.oauthConfig.TokenSource(ctx, token)
	} else {
		source = oauth2.StaticTokenSource(token)
	}

	svc, err := calendar.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("google calendar service: %w", err)
	}
	return svc, nil
}

func (p *Provider) FetchEvents(ctx context.Context, conn domain.CalendarConnection, windowStart, windowEnd time.Time) ([]provider.Event, error) {
	svc, err := p.service(ctx, conn)
	if err != nil {
		return nil, err
	}

	call := svc.Events.List(conn.CalendarID).
		TimeMin(windowStart.Format(time.RFC3339)).
		TimeMax(windowEnd.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxResultsPerPage)

	var out []provider.Event
	err = call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			out = append(out, toProviderEvent(item))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("google calendar events list: %w", err)
	}
	return out, nil
}

func toProviderEvent(item *calendar.Event) provider.Event {
	ev := provider.Event{
		ID:           item.Id,
		Summary:      item.Summary,
		Status:       item.Status,
		Transparency: item.Transparency,
	}
	if item.Start != nil && item.Start.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
			start := t.UTC()
			ev.Start = &start
		}
	}
	if item.End != nil && item.End.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
			end := t.UTC()
			ev.End = &end
		}
	}
	return ev
}

func (p *Provider) CreateEvent(ctx context.Context, conn domain.CalendarConnection, appt domain.Appointment) (string, error) {
	svc, err := p.service(ctx, conn)
	if err != nil {
		return "", err
	}

	created, err := svc.Events.Insert(conn.CalendarID, toGoogleEvent(appt)).Do()
	if err != nil {
		return "", fmt.Errorf("google calendar event insert: %w", err)
	}
	return created.Id, nil
}

func (p *Provider) UpdateEvent(ctx context.Context, conn domain.CalendarConnection, eventID string, appt domain.Appointment) error {
	svc, err := p.service(ctx, conn)
	if err != nil {
		return err
	}

	_, err = svc.Events.Update(conn.CalendarID, eventID, toGoogleEvent(appt)).Do()
	if err != nil {
		return fmt.Errorf("google calendar event update: %w", err)
	}
	return nil
}

func (p *Provider) DeleteEvent(ctx context.Context, conn domain.CalendarConnection, eventID string) error {
	svc, err := p.service(ctx, conn)
	if err != nil {
		return err
	}

	if err := svc.Events.Delete(conn.CalendarID, eventID).Do(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == 404 || apiErr.Code == 410) {
			// Already gone remotely; deletion is idempotent.
			return nil
		}
		return fmt.Errorf("google calendar event delete: %w", err)
	}
	return nil
}

func toGoogleEvent(appt domain.Appointment) *calendar.Event {
	tz := appt.Timezone
	if tz == "" {
		tz = "UTC"
	}
	return &calendar.Event{
		Summary:     appt.Title,
		Description: appt.Description,
		Location:    appt.Location,
		Start: &calendar.EventDateTime{
			DateTime: appt.StartTime.Format(time.RFC3339),
			TimeZone: tz,
		},
		End: &calendar.EventDateTime{
			DateTime: appt.EndTime.Format(time.RFC3339),
			TimeZone: tz,
		},
	}
}
