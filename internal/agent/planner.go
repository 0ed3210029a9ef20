package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/butler-ai/butler/internal/model"
	"github.com/butler-ai/butler/internal/tools"
)

// Plan outcome kinds.
const (
	PlanNeedsClarification = "needs_clarification"
	PlanConversation       = "conversation"
	PlanReady              = "ready"
	PlanError              = "error"
)

// PlanStep is one tool call in an execution plan.
type PlanStep struct {
	Tool    string         `json:"tool"`
	Params  map[string]any `json:"params"`
	Purpose string         `json:"purpose"`
}

// PlanResult is the planner's decision for one utterance. Kind selects
// which of the remaining fields are meaningful.
type PlanResult struct {
	Kind         string     `json:"status"`
	Question     string     `json:"question,omitempty"`      // needs_clarification
	Response     string     `json:"response,omitempty"`      // conversation
	Steps        []PlanStep `json:"plan,omitempty"`          // ready
	ResponseHint string     `json:"response_hint,omitempty"` // ready
	Message      string     `json:"message,omitempty"`       // error
}

const plannerSystemPrompt = `You are an assistant that helps with email and calendar tasks.

Your job is to:
1. Understand what the user wants to do
2. Determine if you have enough information to proceed
3. Create an action plan using the available tools

AVAILABLE TOOLS:
%s

TODAY'S DATE: %s

RESPOND WITH JSON ONLY. Choose one of these response types:

TYPE 1 - Need more information:
{
    "status": "needs_clarification",
    "question": "What time should I schedule the meeting?"
}

TYPE 2 - Ready to execute:
{
    "status": "ready",
    "plan": [
        {
            "tool": "tool_name",
            "params": {"param1": "value1"},
            "purpose": "Brief description of what this step does"
        }
    ],
    "response_hint": "Brief hint about how to summarize results to the user"
}

TYPE 3 - Just conversation (no tools needed):
{
    "status": "conversation",
    "response": "Your direct response to the user"
}

RULES:
- Lookup questions like "when is X" or "do I have X" mean the user does not know the date. Always answer them with an immediate search or list step, never with a clarifying question about dates.
- Any step that sends a message must already have a full email address (name@domain.tld). If the user gave only a name, respond with needs_clarification asking for the address. Never guess or invent an address.
- Never put placeholder tokens like [name] or [date] into a message body. Omit what you do not know.
- A single request may need several sequential steps, e.g. create an event and then send an email about it.
- Resolve relative times against today's date before placing them into step parameters: "tomorrow" = %s, "next week" = 7 days from today.
- If the user says "today at 3pm for 2 hours", calculate end_time as "17:00".
- For new calendar events, ask for a time if none was given. For new emails, ask for a recipient if none was given.`

// Planner turns one utterance into a PlanResult via the reasoning service.
type Planner struct {
	model    model.Model
	registry *tools.Registry
}

// NewPlanner creates a planner over the given model and tool registry.
func NewPlanner(m model.Model, registry *tools.Registry) *Planner {
	return &Planner{model: m, registry: registry}
}

// Plan asks the reasoning service for a plan. Relative dates in the
// utterance are resolved against refDate, so the same utterance and
// refDate yield the same plan on replay.
func (p *Planner) Plan(ctx context.Context, utterance string, refDate time.Time) PlanResult {
	system := fmt.Sprintf(plannerSystemPrompt,
		p.registry.Describe(),
		refDate.Format("Monday, January 2, 2006"),
		refDate.AddDate(0, 0, 1).Format("2006-01-02"),
	)

	resp, err := p.model.Complete(ctx, &model.Request{
		System:      system,
		Prompt:      utterance,
		Temperature: 0,
		JSON:        true,
	})
	if err != nil {
		return PlanResult{Kind: PlanError, Message: err.Error()}
	}

	var result PlanResult
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text)), &result); err != nil {
		return PlanResult{Kind: PlanError, Message: "Failed to parse plan"}
	}
	switch result.Kind {
	case PlanNeedsClarification, PlanConversation, PlanReady:
		return result
	default:
		return PlanResult{Kind: PlanError, Message: "Failed to parse plan"}
	}
}

// cleanJSON strips markdown code fences some models wrap around JSON.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
