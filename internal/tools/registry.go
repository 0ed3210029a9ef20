// Package tools defines the action catalog and its executor.
package tools

import (
	"fmt"
	"strings"
)

// Param describes one tool parameter.
type Param struct {
	Name        string
	Type        string // "string" or "integer"
	Description string
	Required    bool
	Default     any // value used when an optional parameter is omitted
}

// ToolSpec describes one tool the planner may select.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  []Param
}

// Registry holds the available tools in registration order. The order is
// stable so the planner prompt stays deterministic.
type Registry struct {
	names []string
	specs map[string]ToolSpec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]ToolSpec)}
}

// Register adds a tool. Re-registering a name replaces the spec but keeps
// its original position.
func (r *Registry) Register(spec ToolSpec) {
	if _, ok := r.specs[spec.Name]; !ok {
		r.names = append(r.names, spec.Name)
	}
	r.specs[spec.Name] = spec
}

// Get returns the spec for a tool name.
func (r *Registry) Get(name string) (ToolSpec, bool) {
	spec, ok := r.specs[name]
	return spec, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Describe renders the catalog for the planner prompt, one tool per line:
//
//	name(param: type (required), ...): description
func (r *Registry) Describe() string {
	var b strings.Builder
	for i, name := range r.names {
		if i > 0 {
			b.WriteString("\n")
		}
		spec := r.specs[name]
		b.WriteString(spec.Name)
		b.WriteString("(")
		for j, p := range spec.Parameters {
			if j > 0 {
				b.WriteString(", ")
			}
			req := "optional"
			if p.Required {
				req = "required"
			}
			fmt.Fprintf(&b, "%s: %s (%s)", p.Name, p.Type, req)
		}
		b.WriteString("): ")
		b.WriteString(spec.Description)
	}
	return b.String()
}

// DefaultRegistry returns the built-in email and calendar tools.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(ToolSpec{
		Name:        "search_emails",
		Description: "Search the user's inbox with Gmail query syntax and return matching messages with their content",
		Parameters: []Param{
			{Name: "query", Type: "string", Description: "Gmail search query (e.g. 'from:recruiter', 'subject:meeting', 'newer_than:7d')", Required: true},
			{Name: "max_results", Type: "integer", Description: "Max emails to return", Required: false, Default: 5},
		},
	})

	r.Register(ToolSpec{
		Name:        "list_calendar_events",
		Description: "List the user's calendar events for a time range: today, tomorrow, week, or month; filter optionally narrows by keyword",
		Parameters: []Param{
			{Name: "range", Type: "string", Description: "Time range: today, tomorrow, week, or month", Required: true},
			{Name: "filter", Type: "string", Description: "Keyword to narrow events by title, description or location", Required: false, Default: ""},
		},
	})

	r.Register(ToolSpec{
		Name:        "create_calendar_event",
		Description: "Create a calendar event; date is YYYY-MM-DD, times are HH:MM in 24-hour format",
		Parameters: []Param{
			{Name: "title", Type: "string", Description: "Event title", Required: true},
			{Name: "date", Type: "string", Description: "Date in YYYY-MM-DD format", Required: true},
			{Name: "start_time", Type: "string", Description: "Start time in HH:MM 24-hour format", Required: true},
			{Name: "end_time", Type: "string", Description: "End time in HH:MM 24-hour format", Required: true},
			{Name: "location", Type: "string", Description: "Event location", Required: false, Default: ""},
			{Name: "description", Type: "string", Description: "Event description", Required: false, Default: ""},
		},
	})

	r.Register(ToolSpec{
		Name:        "send_email",
		Description: "Send a plain-text email; to must be a full email address",
		Parameters: []Param{
			{Name: "to", Type: "string", Description: "Recipient email address", Required: true},
			{Name: "subject", Type: "string", Description: "Email subject line", Required: true},
			{Name: "body", Type: "string", Description: "Email body content", Required: true},
		},
	})

	r.Register(ToolSpec{
		Name:        "reply_to_email",
		Description: "Reply to an existing email thread",
		Parameters: []Param{
			{Name: "message_id", Type: "string", Description: "Id of the message to reply to", Required: true},
			{Name: "body", Type: "string", Description: "Reply body content", Required: true},
		},
	})

	return r
}
