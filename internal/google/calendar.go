package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/butler-ai/butler/internal/errors"
)

const calendarBaseURL = "https://www.googleapis.com/calendar/v3"

// Event is one calendar event. Start and End carry the raw values from
// the API, either RFC 3339 timestamps or YYYY-MM-DD for all-day events.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// StartTime parses the event start. The second return is false when the
// start is missing or not parseable.
func (e Event) StartTime() (time.Time, bool) {
	if e.Start == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, e.Start); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", e.Start); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// EventInput describes an event to create.
type EventInput struct {
	Title       string
	Start       string // RFC 3339
	End         string // RFC 3339
	Description string
	Location    string
}

// Calendar wraps the Google Calendar REST API for the primary calendar.
type Calendar struct {
	client   *Client
	baseURL  string
	timezone string
}

// NewCalendar creates a Calendar service backed by the given OAuth client.
func NewCalendar(client *Client, timezone string) *Calendar {
	if timezone == "" {
		timezone = "UTC"
	}
	return &Calendar{
		client:   client,
		baseURL:  calendarBaseURL,
		timezone: timezone,
	}
}

// ListEvents returns events on the primary calendar between start and end,
// expanding recurring events and ordered by start time.
func (c *Calendar) ListEvents(ctx context.Context, start, end time.Time) ([]Event, error) {
	q := url.Values{}
	q.Set("timeMin", start.Format(time.RFC3339))
	q.Set("timeMax", end.Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	q.Set("maxResults", "50")

	var list struct {
		Items []calendarEvent `json:"items"`
	}
	if err := c.get(ctx, c.baseURL+"/calendars/primary/events?"+q.Encode(), &list); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(list.Items))
	for _, item := range list.Items {
		events = append(events, Event{
			ID:          item.ID,
			Title:       item.Summary,
			Start:       item.Start.value(),
			End:         item.End.value(),
			Location:    item.Location,
			Description: item.Description,
		})
	}
	return events, nil
}

// CreateEvent creates an event on the primary calendar and returns its id.
func (c *Calendar) CreateEvent(ctx context.Context, input EventInput) (string, error) {
	body := map[string]any{
		"summary": input.Title,
		"start":   map[string]string{"dateTime": input.Start, "timeZone": c.timezone},
		"end":     map[string]string{"dateTime": input.End, "timeZone": c.timezone},
	}
	if input.Description != "" {
		body["description"] = input.Description
	}
	if input.Location != "" {
		body["location"] = input.Location
	}

	var created calendarEvent
	if err := c.post(ctx, c.baseURL+"/calendars/primary/events", body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", apperrors.New("calendar_create", "event creation returned no id", apperrors.CategoryCollaborator)
	}
	return created.ID, nil
}

type calendarEvent struct {
	ID          string       `json:"id"`
	Summary     string       `json:"summary"`
	Location    string       `json:"location"`
	Description string       `json:"description"`
	Start       calendarTime `json:"start"`
	End         calendarTime `json:"end"`
}

// calendarTime is the API's start/end object. Timed events use dateTime,
// all-day events use date.
type calendarTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

func (t calendarTime) value() string {
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

func (c *Calendar) get(ctx context.Context, rawURL string, out any) error {
	return c.do(ctx, http.MethodGet, rawURL, nil, out)
}

func (c *Calendar) post(ctx context.Context, rawURL string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apperrors.Wrap(err, "calendar_request", "failed to encode request", apperrors.CategoryCollaborator)
	}
	return c.do(ctx, http.MethodPost, rawURL, payload, out)
}

// do performs an authenticated request, refreshing the access token once
// on 401.
func (c *Calendar) do(ctx context.Context, method, rawURL string, payload []byte, out any) error {
	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return apperrors.Wrap(err, "calendar_request", "failed to build request", apperrors.CategoryCollaborator)
		}
		req.Header.Set("Authorization", c.client.authHeader())
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.http.Do(req)
		if err != nil {
			return apperrors.Wrap(err, "calendar_request", "Calendar request failed", apperrors.CategoryCollaborator)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			if err := c.client.Refresh(ctx); err != nil {
				return err
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return apperrors.Wrap(err, "calendar_request", "failed to read response", apperrors.CategoryCollaborator)
		}
		if resp.StatusCode != http.StatusOK {
			return apperrors.New("calendar_request",
				fmt.Sprintf("Calendar API error (status %d): %s", resp.StatusCode, apiErrorMessage(body)),
				apperrors.CategoryCollaborator)
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal(body, out)
	}
}

// apiErrorMessage pulls error.message out of a Google API error body,
// falling back to the raw body.
func apiErrorMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return truncate(string(body), 200)
}
