// Package agent implements the plan-then-execute conversation engine.
package agent

// EventType classifies one event on a turn's output stream.
type EventType string

const (
	// EventStatus is a progress note while the turn is being worked.
	EventStatus EventType = "status"
	// EventQuestion is a clarifying question; the turn ends after it.
	EventQuestion EventType = "question"
	// EventText is a fragment of the final answer, streamed in order.
	EventText EventType = "text"
	// EventDone terminates every turn, on all paths.
	EventDone EventType = "done"
)

// Event is one element of the typed stream a turn produces. The stream
// always ends with EventDone and the channel is closed after it.
type Event struct {
	Type    EventType `json:"type"`
	Content string    `json:"content"`
}
