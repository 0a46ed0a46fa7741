package integrations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const eventIDPrefix = "trello"

type CalendarClient struct {
	service    *calendar.Service
	calendarID string
}

// CalendarEvent is the all-day event mirrored for one design.
type CalendarEvent struct {
	CardID string
	Name   string
	City   string
	URL    string
	Due    time.Time
}

// NewCalendarClient authenticates with a service account key.
func NewCalendarClient(ctx context.Context, serviceAccountJSON []byte, calendarID string) (*CalendarClient, error) {
	config, err := google.JWTConfigFromJSON(serviceAccountJSON, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account credentials from JSON: %w", err)
	}
	return NewCalendarClientWithOptions(ctx, calendarID, option.WithHTTPClient(config.Client(ctx)))
}

func NewCalendarClientWithOptions(ctx context.Context, calendarID string, opts ...option.ClientOption) (*CalendarClient, error) {
	if calendarID == "" {
		return nil, errors.New("google calendar ID is not configured")
	}
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %w", err)
	}
	return &CalendarClient{service: srv, calendarID: calendarID}, nil
}

// EventIDForCard derives a stable event id. Trello ids are lowercase hex,
// which is inside the base32hex alphabet the Calendar API accepts.
func EventIDForCard(cardID string) string {
	return eventIDPrefix + strings.ToLower(cardID)
}

func buildEvent(ev CalendarEvent) *calendar.Event {
	day := ev.Due.UTC()
	description := fmt.Sprintf("Trello Card: %s", ev.URL)
	if ev.City != "" {
		description = fmt.Sprintf("Ciudad: %s\n%s", ev.City, description)
	}
	return &calendar.Event{
		Id:          EventIDForCard(ev.CardID),
		Summary:     ev.Name,
		Location:    ev.City,
		Description: description,
		Start: &calendar.EventDateTime{
			Date: day.Format("2006-01-02"),
		},
		End: &calendar.EventDateTime{
			Date: day.AddDate(0, 0, 1).Format("2006-01-02"), // all-day event ends the next day
		},
	}
}

// UpsertEvent updates the card's event, creating it when the calendar has never seen it.
func (c *CalendarClient) UpsertEvent(ctx context.Context, ev CalendarEvent) (*calendar.Event, error) {
	event := buildEvent(ev)

	updated, err := c.service.Events.Update(c.calendarID, event.Id, event).Context(ctx).Do()
	if err == nil {
		return updated, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("unable to update event in Google Calendar: %w", err)
	}

	created, err := c.service.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to create event in Google Calendar: %w", err)
	}
	return created, nil
}

func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	err := c.service.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			zap.L().Info("Event not found in Google Calendar. Already deleted.", zap.String("eventID", eventID))
			return nil
		}
		return fmt.Errorf("unable to delete event from Google Calendar: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone)
}
