package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/butler-ai/butler/internal/model"
	"github.com/butler-ai/butler/internal/tools"
)

// mergeWordLimit is the longest a follow-up can be and still count as an
// answer to a pending question rather than a new request.
const mergeWordLimit = 6

const responseSystemPrompt = `You are a helpful assistant. Given the user's request and the data retrieved, provide a clear and concise response.

FORMATTING RULES:
- Use markdown formatting
- Format dates as: Mon Feb 10 (not "February 10th, 2026")
- Use bullet points for lists
- Be concise, under 200 words unless more detail is needed
- No fluff like "I hope this helps"`

// PlanService produces a plan for one utterance. Satisfied by *Planner.
type PlanService interface {
	Plan(ctx context.Context, utterance string, refDate time.Time) PlanResult
}

// PlanRunner executes a plan's steps. Satisfied by *Runner.
type PlanRunner interface {
	Run(ctx context.Context, steps []PlanStep) []tools.ExecutionResult
}

// Recorder persists finished turns. Recording is best effort; failures
// never affect the turn's outcome.
type Recorder interface {
	Record(ctx context.Context, prompt, response, outcome string) error
}

// pending is the single-slot clarification state carried between turns.
type pending struct {
	originalPrompt string
	questionAsked  string
}

// Orchestrator drives one conversation turn from utterance to event
// stream. It is reused across turns; the pending clarification slot is
// the only cross-turn state. One orchestrator serves one conversation,
// so concurrent conversations need one orchestrator each.
type Orchestrator struct {
	planner   PlanService
	runner    PlanRunner
	model     model.Model
	connected func() bool
	history   Recorder
	now       func() time.Time

	mu      sync.Mutex
	pending pending
}

// NewOrchestrator creates an orchestrator. connected gates every turn on
// collaborator availability.
func NewOrchestrator(planner PlanService, runner PlanRunner, m model.Model, connected func() bool) *Orchestrator {
	if connected == nil {
		connected = func() bool { return true }
	}
	return &Orchestrator{
		planner:   planner,
		runner:    runner,
		model:     m,
		connected: connected,
		now:       time.Now,
	}
}

// WithHistory enables best-effort turn recording.
func (o *Orchestrator) WithHistory(rec Recorder) *Orchestrator {
	o.history = rec
	return o
}

// WithClock overrides the planner's reference time. Used by tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Process runs one turn. The returned channel delivers status events,
// then either a question or streamed text, then exactly one done event,
// after which it is closed.
func (o *Orchestrator) Process(ctx context.Context, prompt string) <-chan Event {
	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		o.run(ctx, prompt, ch)
	}()
	return ch
}

func (o *Orchestrator) run(ctx context.Context, prompt string, ch chan<- Event) {
	var response strings.Builder
	outcome := "done"

	emit := func(ev Event) bool {
		if ev.Type == EventText {
			response.WriteString(ev.Content)
		}
		select {
		case ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	finish := func() {
		if emit(Event{Type: EventDone}) && o.history != nil {
			_ = o.history.Record(ctx, prompt, response.String(), outcome)
		}
	}

	if !o.connected() {
		outcome = "disconnected"
		emit(Event{Type: EventText, Content: "Please connect your Google account first, then try again."})
		finish()
		return
	}

	merged := o.resolvePending(prompt)

	if !emit(Event{Type: EventStatus, Content: "Understanding your request..."}) {
		return
	}
	plan := o.planner.Plan(ctx, merged, o.now())

	switch plan.Kind {
	case PlanNeedsClarification:
		question := plan.Question
		if question == "" {
			question = "Could you provide more details?"
		}
		o.setPending(prompt, question)
		outcome = "clarification"
		emit(Event{Type: EventQuestion, Content: question})
		finish()

	case PlanConversation:
		outcome = "conversation"
		emit(Event{Type: EventText, Content: plan.Response})
		finish()

	case PlanReady:
		o.execute(ctx, merged, plan, emit, &outcome)
		finish()

	default:
		outcome = "planning_error"
		msg := plan.Message
		if msg == "" {
			msg = "Unknown error"
		}
		emit(Event{Type: EventText, Content: "Planning error: " + msg})
		finish()
	}
}

func (o *Orchestrator) execute(ctx context.Context, prompt string, plan PlanResult, emit func(Event) bool, outcome *string) {
	if len(plan.Steps) == 0 {
		*outcome = "empty_plan"
		emit(Event{Type: EventText, Content: "I understood your request but couldn't determine the right actions. Could you rephrase?"})
		return
	}

	for i, step := range plan.Steps {
		purpose := step.Purpose
		if purpose == "" {
			purpose = "Processing"
		}
		if !emit(Event{Type: EventStatus, Content: fmt.Sprintf("Step %d: %s...", i+1, purpose)}) {
			return
		}
	}
	if !emit(Event{Type: EventStatus, Content: "Executing plan..."}) {
		return
	}

	results := o.runner.Run(ctx, plan.Steps)

	for _, result := range results {
		if result.Success {
			continue
		}
		if result.NeedsClarification {
			o.setPending(prompt, result.Question)
			*outcome = "clarification"
			emit(Event{Type: EventQuestion, Content: result.Question})
			return
		}
		*outcome = "execution_error"
		msg := result.Error
		if msg == "" {
			msg = "Unknown error"
		}
		emit(Event{Type: EventText, Content: "Error: " + msg})
		return
	}

	if !emit(Event{Type: EventStatus, Content: "Generating response..."}) {
		return
	}
	o.synthesize(ctx, prompt, FormatResults(results), plan.ResponseHint, emit, outcome)
}

// synthesize streams the final answer, re-emitting each fragment as a
// text event in arrival order.
func (o *Orchestrator) synthesize(ctx context.Context, prompt, digest, hint string, emit func(Event) bool, outcome *string) {
	var b strings.Builder
	fmt.Fprintf(&b, "User's request: %s\n\nResults from actions:\n%s\n", prompt, digest)
	if hint != "" {
		fmt.Fprintf(&b, "\nHint: %s\n", hint)
	}
	b.WriteString("\nProvide a helpful response to the user based on these results.")

	stream, err := o.model.Stream(ctx, &model.Request{
		System:      responseSystemPrompt,
		Prompt:      b.String(),
		Temperature: 0.7,
	})
	if err != nil {
		*outcome = "synthesis_error"
		emit(Event{Type: EventText, Content: "Error: " + err.Error()})
		return
	}

	for chunk := range stream {
		if chunk.Err != nil {
			*outcome = "synthesis_error"
			emit(Event{Type: EventText, Content: "Error: " + chunk.Err.Error()})
			return
		}
		if chunk.Done {
			return
		}
		if chunk.Text != "" && !emit(Event{Type: EventText, Content: chunk.Text}) {
			return
		}
	}
}

// resolvePending merges a follow-up with the stored original request when
// the follow-up looks like an answer: it contains an email address or is
// short. The slot is cleared unconditionally once the decision is made.
func (o *Orchestrator) resolvePending(prompt string) string {
	o.mu.Lock()
	slot := o.pending
	o.pending = pending{}
	o.mu.Unlock()

	if slot.questionAsked == "" {
		return prompt
	}
	if !looksLikeAnswer(prompt) {
		return prompt
	}
	return fmt.Sprintf("%s\n\n(User was asked: '%s' and answered: '%s')",
		slot.originalPrompt, slot.questionAsked, prompt)
}

func (o *Orchestrator) setPending(originalPrompt, question string) {
	o.mu.Lock()
	o.pending = pending{originalPrompt: originalPrompt, questionAsked: question}
	o.mu.Unlock()
}

func looksLikeAnswer(prompt string) bool {
	fields := strings.Fields(prompt)
	if len(fields) <= mergeWordLimit {
		return true
	}
	for _, f := range fields {
		if tools.IsValidAddress(strings.Trim(f, ".,;:!?")) {
			return true
		}
	}
	return false
}
