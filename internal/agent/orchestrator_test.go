package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/butler-ai/butler/internal/model"
	"github.com/butler-ai/butler/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePlanner struct {
	results []PlanResult
	prompts []string
}

func (f *fakePlanner) Plan(_ context.Context, utterance string, _ time.Time) PlanResult {
	f.prompts = append(f.prompts, utterance)
	if len(f.results) == 0 {
		return PlanResult{Kind: PlanError, Message: "no scripted result"}
	}
	result := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return result
}

type fakeRunner struct {
	results []tools.ExecutionResult
	steps   []PlanStep
}

func (f *fakeRunner) Run(_ context.Context, steps []PlanStep) []tools.ExecutionResult {
	f.steps = steps
	return f.results
}

type recordedTurn struct {
	prompt, response, outcome string
}

type fakeRecorder struct {
	turns []recordedTurn
}

func (f *fakeRecorder) Record(_ context.Context, prompt, response, outcome string) error {
	f.turns = append(f.turns, recordedTurn{prompt, response, outcome})
	return nil
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	require.NotEmpty(t, events)
	assert.Equal(t, EventDone, events[len(events)-1].Type, "stream must end with done")
	return events
}

func textOf(events []Event) string {
	var out string
	for _, ev := range events {
		if ev.Type == EventText {
			out += ev.Content
		}
	}
	return out
}

func connected() bool { return true }

func TestProcessDisconnected(t *testing.T) {
	planner := &fakePlanner{}
	o := NewOrchestrator(planner, &fakeRunner{}, &fakeModel{}, func() bool { return false })

	events := collect(t, o.Process(context.Background(), "what's on my calendar"))

	require.Len(t, events, 2)
	assert.Equal(t, EventText, events[0].Type)
	assert.Contains(t, events[0].Content, "connect your Google account")
	assert.Empty(t, planner.prompts, "planner must not run while disconnected")
}

func TestProcessConversation(t *testing.T) {
	planner := &fakePlanner{results: []PlanResult{
		{Kind: PlanConversation, Response: "Hello! How can I help?"},
	}}
	o := NewOrchestrator(planner, &fakeRunner{}, &fakeModel{}, connected)

	events := collect(t, o.Process(context.Background(), "hi"))

	require.Len(t, events, 3)
	assert.Equal(t, EventStatus, events[0].Type)
	assert.Equal(t, EventText, events[1].Type)
	assert.Equal(t, "Hello! How can I help?", events[1].Content)
}

func TestProcessPlanningError(t *testing.T) {
	planner := &fakePlanner{results: []PlanResult{
		{Kind: PlanError, Message: "Failed to parse plan"},
	}}
	o := NewOrchestrator(planner, &fakeRunner{}, &fakeModel{}, connected)

	events := collect(t, o.Process(context.Background(), "do a thing"))

	assert.Equal(t, "Planning error: Failed to parse plan", textOf(events))
}

func TestProcessEmptyPlan(t *testing.T) {
	planner := &fakePlanner{results: []PlanResult{{Kind: PlanReady}}}
	o := NewOrchestrator(planner, &fakeRunner{}, &fakeModel{}, connected)

	events := collect(t, o.Process(context.Background(), "hmm"))

	assert.Contains(t, textOf(events), "couldn't determine the right actions")
}

func TestProcessReadyStreamsResponse(t *testing.T) {
	planner := &fakePlanner{results: []PlanResult{{
		Kind: PlanReady,
		Steps: []PlanStep{
			{Tool: "search_emails", Purpose: "Find Dana's email"},
		},
		ResponseHint: "mention the sender",
	}}}
	runner := &fakeRunner{results: []tools.ExecutionResult{
		{Success: true, Kind: tools.KindEmails, Purpose: "Find Dana's email"},
	}}
	m := &fakeModel{chunks: []model.StreamChunk{
		{Text: "Dana wrote "}, {Text: "about the offsite."},
	}}
	o := NewOrchestrator(planner, runner, m, connected)

	events := collect(t, o.Process(context.Background(), "what did dana send"))

	// status events first, then text fragments in arrival order, then done
	var sawText bool
	for _, ev := range events[:len(events)-1] {
		if ev.Type == EventText {
			sawText = true
		}
		if sawText {
			assert.Equal(t, EventText, ev.Type, "no status after text began")
		}
	}
	assert.Equal(t, "Dana wrote about the offsite.", textOf(events))

	require.NotNil(t, m.lastStream)
	assert.Contains(t, m.lastStream.Prompt, "User's request: what did dana send")
	assert.Contains(t, m.lastStream.Prompt, "Step 1: Find Dana's email")
	assert.Contains(t, m.lastStream.Prompt, "Hint: mention the sender")
}

func TestProcessStepStatusEvents(t *testing.T) {
	planner := &fakePlanner{results: []PlanResult{{
		Kind: PlanReady,
		Steps: []PlanStep{
			{Tool: "create_calendar_event", Purpose: "Add the dentist visit"},
			{Tool: "send_email", Purpose: "Tell Dana"},
		},
	}}}
	runner := &fakeRunner{results: []tools.ExecutionResult{
		{Success: true, Kind: tools.KindEventCreated},
		{Success: true, Kind: tools.KindEmailSent},
	}}
	o := NewOrchestrator(planner, runner, &fakeModel{chunks: []model.StreamChunk{{Text: "Done."}}}, connected)

	events := collect(t, o.Process(context.Background(), "book dentist and tell dana"))

	var statuses []string
	for _, ev := range events {
		if ev.Type == EventStatus {
			statuses = append(statuses, ev.Content)
		}
	}
	assert.Contains(t, statuses, "Step 1: Add the dentist visit...")
	assert.Contains(t, statuses, "Step 2: Tell Dana...")
	assert.Contains(t, statuses, "Executing plan...")
	assert.Contains(t, statuses, "Generating response...")
}

func TestProcessFirstFailureReported(t *testing.T) {
	planner := &fakePlanner{results: []PlanResult{{
		Kind: PlanReady,
		Steps: []PlanStep{
			{Tool: "a", Purpose: "one"},
			{Tool: "b", Purpose: "two"},
			{Tool: "c", Purpose: "three"},
		},
	}}}
	runner := &fakeRunner{results: []tools.ExecutionResult{
		{Success: true, Kind: tools.KindEmails},
		{Success: false, Kind: tools.KindError, Error: "calendar down"},
		{Success: false, Kind: tools.KindError, Error: "second failure"},
	}}
	m := &fakeModel{}
	o := NewOrchestrator(planner, runner, m, connected)

	events := collect(t, o.Process(context.Background(), "multi step"))

	assert.Equal(t, "Error: calendar down", textOf(events))
	assert.Nil(t, m.lastStream, "no synthesis after a failed plan")
	// all steps still ran; only the first failure is surfaced
	require.Len(t, runner.steps, 3)
}

func TestProcessClarificationRoundTrip(t *testing.T) {
	planner := &fakePlanner{results: []PlanResult{
		{Kind: PlanNeedsClarification, Question: "How long is the appointment?"},
		{Kind: PlanConversation, Response: "Scheduled."},
	}}
	o := NewOrchestrator(planner, &fakeRunner{}, &fakeModel{}, connected)

	first := collect(t, o.Process(context.Background(), "add dentist tomorrow at 3pm"))
	require.Len(t, first, 3)
	assert.Equal(t, EventQuestion, first[1].Type)
	assert.Equal(t, "How long is the appointment?", first[1].Content)

	collect(t, o.Process(context.Background(), "1 hour"))

	require.Len(t, planner.prompts, 2)
	want := "add dentist tomorrow at 3pm\n\n(User was asked: 'How long is the appointment?' and answered: '1 hour')"
	assert.Equal(t, want, planner.prompts[1])
}

func TestProcessLongFollowupIsIndependent(t *testing.T) {
	planner := &fakePlanner{results: []PlanResult{
		{Kind: PlanNeedsClarification, Question: "Which day?"},
		{Kind: PlanConversation, Response: "ok"},
		{Kind: PlanConversation, Response: "ok"},
	}}
	o := NewOrchestrator(planner, &fakeRunner{}, &fakeModel{}, connected)

	collect(t, o.Process(context.Background(), "schedule a review"))
	long := "actually forget that, show me all the emails I got from the recruiter last week instead"
	collect(t, o.Process(context.Background(), long))

	require.Len(t, planner.prompts, 2)
	assert.Equal(t, long, planner.prompts[1])

	// slot was cleared by the independent turn, so nothing merges now
	collect(t, o.Process(context.Background(), "1 hour"))
	assert.Equal(t, "1 hour", planner.prompts[2])
}

func TestProcessAddressFollowupMerges(t *testing.T) {
	planner := &fakePlanner{results: []PlanResult{
		{Kind: PlanNeedsClarification, Question: "What is Sarah's email address?"},
		{Kind: PlanConversation, Response: "ok"},
	}}
	o := NewOrchestrator(planner, &fakeRunner{}, &fakeModel{}, connected)

	collect(t, o.Process(context.Background(), "email sarah about the offsite"))
	long := "oh right, you can reach her at sarah.jones@example.com whenever you need to"
	collect(t, o.Process(context.Background(), long))

	require.Len(t, planner.prompts, 2)
	assert.Contains(t, planner.prompts[1], "email sarah about the offsite")
	assert.Contains(t, planner.prompts[1], "sarah.jones@example.com")
}

func TestProcessMidExecutionClarificationSetsSlot(t *testing.T) {
	planner := &fakePlanner{results: []PlanResult{
		{Kind: PlanReady, Steps: []PlanStep{{Tool: "send_email", Purpose: "Send it"}}},
		{Kind: PlanConversation, Response: "ok"},
	}}
	runner := &fakeRunner{results: []tools.ExecutionResult{{
		Success:            false,
		Kind:               tools.KindError,
		Error:              `invalid recipient address: "Sarah"`,
		NeedsClarification: true,
		Question:           "What address should I use?",
	}}}
	o := NewOrchestrator(planner, runner, &fakeModel{}, connected)

	events := collect(t, o.Process(context.Background(), "email sarah hello"))
	var question string
	for _, ev := range events {
		if ev.Type == EventQuestion {
			question = ev.Content
		}
	}
	assert.Equal(t, "What address should I use?", question)

	// the answer merges back into the original request
	collect(t, o.Process(context.Background(), "sarah@example.com"))
	require.Len(t, planner.prompts, 2)
	assert.Contains(t, planner.prompts[1], "email sarah hello")
	assert.Contains(t, planner.prompts[1], "sarah@example.com")
}

func TestProcessRecordsHistory(t *testing.T) {
	planner := &fakePlanner{results: []PlanResult{
		{Kind: PlanConversation, Response: "Hello!"},
	}}
	rec := &fakeRecorder{}
	o := NewOrchestrator(planner, &fakeRunner{}, &fakeModel{}, connected).WithHistory(rec)

	collect(t, o.Process(context.Background(), "hi"))

	require.Len(t, rec.turns, 1)
	assert.Equal(t, "hi", rec.turns[0].prompt)
	assert.Equal(t, "Hello!", rec.turns[0].response)
	assert.Equal(t, "conversation", rec.turns[0].outcome)
}

func TestProcessSynthesisErrorSurfaced(t *testing.T) {
	planner := &fakePlanner{results: []PlanResult{{
		Kind:  PlanReady,
		Steps: []PlanStep{{Tool: "search_emails", Purpose: "look"}},
	}}}
	runner := &fakeRunner{results: []tools.ExecutionResult{
		{Success: true, Kind: tools.KindEmails},
	}}
	m := &fakeModel{chunks: nil}
	m.chunks = []model.StreamChunk{{Err: assert.AnError}}
	o := NewOrchestrator(planner, runner, m, connected)

	events := collect(t, o.Process(context.Background(), "look something up"))

	assert.Contains(t, textOf(events), "Error: ")
}
