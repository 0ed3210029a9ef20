package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/butler-ai/butler/internal/google"
)

// Result kinds.
const (
	KindEmails       = "emails"
	KindEvents       = "events"
	KindEventCreated = "event_created"
	KindEmailSent    = "email_sent"
	KindError        = "error"
)

// ExecutionResult is the uniform outcome envelope for one tool call.
type ExecutionResult struct {
	Success bool   `json:"success"`
	Kind    string `json:"kind"`
	Data    any    `json:"data,omitempty"`
	Purpose string `json:"purpose,omitempty"`
	Error   string `json:"error,omitempty"`

	// NeedsClarification lets a failing step veto the plan and ask for
	// missing information instead of surfacing a raw error.
	NeedsClarification bool   `json:"needs_clarification,omitempty"`
	Question           string `json:"question,omitempty"`
}

// CreatedEvent is the payload for an event_created result.
type CreatedEvent struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
}

// SentEmail is the payload for an email_sent result.
type SentEmail struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
}

// MailService is the mail collaborator the executor calls.
type MailService interface {
	SearchMessages(ctx context.Context, query string, maxResults int) ([]google.Email, error)
	SendMessage(ctx context.Context, to, subject, body string) error
}

// CalendarService is the calendar collaborator the executor calls.
type CalendarService interface {
	ListEvents(ctx context.Context, start, end time.Time) ([]google.Event, error)
	CreateEvent(ctx context.Context, input google.EventInput) (string, error)
}

// addressRe is the authoritative recipient gate: local part, @, domain,
// and a 2+ letter TLD.
var addressRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// IsValidAddress reports whether s is a syntactically valid email address.
func IsValidAddress(s string) bool {
	return addressRe.MatchString(s)
}

// Executor dispatches planned tool calls to the collaborators. Every
// outcome, including collaborator faults, comes back as an
// ExecutionResult; Execute never returns an error.
type Executor struct {
	mail     MailService
	calendar CalendarService
	now      func() time.Time
}

// NewExecutor creates an executor over the given collaborators.
func NewExecutor(mail MailService, calendar CalendarService) *Executor {
	return &Executor{mail: mail, calendar: calendar, now: time.Now}
}

// WithClock overrides the executor's notion of "now". Used by tests and
// anything that needs deterministic range resolution.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Execute runs one tool call and normalizes the outcome.
func (e *Executor) Execute(ctx context.Context, tool string, params map[string]any) ExecutionResult {
	switch tool {
	case "search_emails":
		return e.searchEmails(ctx, params)
	case "list_calendar_events":
		return e.listCalendarEvents(ctx, params)
	case "create_calendar_event":
		return e.createCalendarEvent(ctx, params)
	case "send_email":
		return e.sendEmail(ctx, params)
	case "reply_to_email":
		return failure("Replying within an email thread is not available. Compose a new message with send_email instead.")
	default:
		return failure(fmt.Sprintf("Unknown tool: %s", tool))
	}
}

func (e *Executor) searchEmails(ctx context.Context, params map[string]any) ExecutionResult {
	query := stringParam(params, "query")
	if query == "" {
		return failure("search_emails requires a query")
	}
	maxResults := intParam(params, "max_results", 5)

	emails, err := e.mail.SearchMessages(ctx, query, maxResults)
	if err != nil {
		return failure(err.Error())
	}
	return ExecutionResult{Success: true, Kind: KindEmails, Data: emails}
}

func (e *Executor) listCalendarEvents(ctx context.Context, params map[string]any) ExecutionResult {
	rng := stringParam(params, "range")
	if rng == "" {
		rng = "week"
	}

	start, end, ok := e.resolveRange(rng)
	if !ok {
		return failure(fmt.Sprintf("Unknown range: %s", rng))
	}

	events, err := e.calendar.ListEvents(ctx, start, end)
	if err != nil {
		return failure(err.Error())
	}

	if rng == "today" || rng == "tomorrow" {
		events = filterByDay(events, start)
	}
	if filter := stringParam(params, "filter"); filter != "" {
		events = filterByKeyword(events, filter)
	}

	return ExecutionResult{Success: true, Kind: KindEvents, Data: events}
}

func (e *Executor) createCalendarEvent(ctx context.Context, params map[string]any) ExecutionResult {
	title := stringParam(params, "title")
	date := stringParam(params, "date")
	startTime := stringParam(params, "start_time")
	endTime := stringParam(params, "end_time")
	if title == "" || date == "" || startTime == "" || endTime == "" {
		return failure("create_calendar_event requires title, date, start_time and end_time")
	}

	id, err := e.calendar.CreateEvent(ctx, google.EventInput{
		Title:       title,
		Start:       fmt.Sprintf("%sT%s:00", date, startTime),
		End:         fmt.Sprintf("%sT%s:00", date, endTime),
		Location:    stringParam(params, "location"),
		Description: stringParam(params, "description"),
	})
	if err != nil {
		return failure(err.Error())
	}

	return ExecutionResult{
		Success: true,
		Kind:    KindEventCreated,
		Data:    CreatedEvent{ID: id, Title: title, Date: date, StartTime: startTime},
	}
}

func (e *Executor) sendEmail(ctx context.Context, params map[string]any) ExecutionResult {
	to := stringParam(params, "to")
	subject := stringParam(params, "subject")
	body := stringParam(params, "body")

	// Second, authoritative address gate. The planner is supposed to
	// catch bare names, but nothing side-effecting runs on trust.
	if !IsValidAddress(to) {
		return ExecutionResult{
			Success:            false,
			Kind:               KindError,
			Error:              fmt.Sprintf("invalid recipient address: %q", to),
			NeedsClarification: true,
			Question:           fmt.Sprintf("I need a full email address to send this message. %q is not one. What address should I use?", to),
		}
	}

	if err := e.mail.SendMessage(ctx, to, subject, body); err != nil {
		return failure(err.Error())
	}
	return ExecutionResult{Success: true, Kind: KindEmailSent, Data: SentEmail{To: to, Subject: subject}}
}

// resolveRange maps a symbolic range to a concrete window relative to now.
func (e *Executor) resolveRange(rng string) (start, end time.Time, ok bool) {
	now := e.now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch rng {
	case "today":
		return day, day.AddDate(0, 0, 1), true
	case "tomorrow":
		tomorrow := day.AddDate(0, 0, 1)
		return tomorrow, tomorrow.AddDate(0, 0, 1), true
	case "week":
		return day, day.AddDate(0, 0, 7), true
	case "month":
		return day, day.AddDate(0, 1, 0), true
	default:
		return time.Time{}, time.Time{}, false
	}
}

// filterByDay keeps events whose start date equals the day of the window
// start. Events without a parseable start are dropped.
func filterByDay(events []google.Event, day time.Time) []google.Event {
	out := make([]google.Event, 0, len(events))
	for _, ev := range events {
		start, ok := ev.StartTime()
		if !ok {
			continue
		}
		y1, m1, d1 := start.Year(), start.Month(), start.Day()
		y2, m2, d2 := day.Year(), day.Month(), day.Day()
		if y1 == y2 && m1 == m2 && d1 == d2 {
			out = append(out, ev)
		}
	}
	return out
}

// filterByKeyword keeps events whose title, description or location
// contains the filter as a whole word, case-insensitively.
func filterByKeyword(events []google.Event, filter string) []google.Event {
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(strings.TrimSpace(filter)) + `\b`)
	if err != nil {
		return events
	}
	out := make([]google.Event, 0, len(events))
	for _, ev := range events {
		haystack := ev.Title + " " + ev.Description + " " + ev.Location
		if re.MatchString(haystack) {
			out = append(out, ev)
		}
	}
	return out
}

func failure(message string) ExecutionResult {
	return ExecutionResult{Success: false, Kind: KindError, Error: message}
}

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

// intParam reads an integer parameter. JSON decoding delivers numbers as
// float64, so both are accepted.
func intParam(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return def
}
