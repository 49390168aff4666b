package graph

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"outlookmcp/internal/auth"
	"outlookmcp/internal/instrumentation"
)

// ListEvents lists events in the user's default calendar. When both timeMin
// and timeMax are set, the calendarView endpoint is used so recurring events
// are expanded into occurrences.
func (c *Client) ListEvents(ctx context.Context, timeMin, timeMax time.Time, opts ListOptions) (_ []Event, err error) {
	start := time.Now()
	defer func() {
		c.observe(ctx, instrumentation.DomainCalendar, instrumentation.OperationList, start, err)
	}()

	path := "/me/events"
	query := opts.Values()
	if !timeMin.IsZero() && !timeMax.IsZero() {
		path = "/me/calendarView"
		query.Set("startDateTime", timeMin.UTC().Format(time.RFC3339))
		query.Set("endDateTime", timeMax.UTC().Format(time.RFC3339))
	}

	var envelope listEnvelope[Event]
	if err = c.do(ctx, "GET", path, query, nil, &envelope, auth.CalendarReadScopes); err != nil {
		return nil, err
	}
	return envelope.Value, nil
}

// GetEvent retrieves a single event by id.
func (c *Client) GetEvent(ctx context.Context, eventID string) (_ *Event, err error) {
	if eventID == "" {
		return nil, fmt.Errorf("event id must not be empty")
	}

	start := time.Now()
	defer func() {
		c.observe(ctx, instrumentation.DomainCalendar, instrumentation.OperationGet, start, err)
	}()

	var event Event
	if err = c.do(ctx, "GET", "/me/events/"+url.PathEscape(eventID), nil, nil, &event, auth.CalendarReadScopes); err != nil {
		return nil, err
	}
	return &event, nil
}

// CreateEvent creates an event in the user's default calendar and returns the
// created resource.
func (c *Client) CreateEvent(ctx context.Context, event Event) (_ *Event, err error) {
	if event.Subject == "" {
		return nil, fmt.Errorf("event subject must not be empty")
	}
	if event.Start == nil || event.End == nil {
		return nil, fmt.Errorf("event start and end must be set")
	}

	start := time.Now()
	defer func() {
		c.observe(ctx, instrumentation.DomainCalendar, instrumentation.OperationCreate, start, err)
	}()

	var created Event
	if err = c.do(ctx, "POST", "/me/events", nil, event, &created, auth.CalendarWriteScope); err != nil {
		return nil, err
	}
	return &created, nil
}
