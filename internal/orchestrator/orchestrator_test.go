package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arialabs/aria/internal/turn"
)

// fakeCompleter scripts one response (or error, or a hang) per capability
// name and records the call order.
type fakeCompleter struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	block     map[string]bool
	calls     []string
}

func (f *fakeCompleter) Complete(ctx context.Context, capability, instruction, input string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, capability)
	blocked := f.block[capability]
	err := f.errs[capability]
	out := f.responses[capability]
	f.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return out, nil
}

func (f *fakeCompleter) callCount(capability string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == capability {
			n++
		}
	}
	return n
}

func newOrchestrator(t *testing.T, c *fakeCompleter, opts Options) *Orchestrator {
	t.Helper()
	return New(c, opts, zap.NewNop())
}

func collectEvents(events *[]Event, mu *sync.Mutex) EmitFunc {
	return func(ev Event) {
		mu.Lock()
		*events = append(*events, ev)
		mu.Unlock()
	}
}

func TestRunTurnWeatherFlow(t *testing.T) {
	c := &fakeCompleter{responses: map[string]string{
		"intent":   `{"intent":"task_completion"}`,
		"planner":  `{"plan":[{"step":1,"action":"call_tool"},{"step":2,"action":"compose_response"}]}`,
		"composer": "It's 18°C and raining in Boston, take an umbrella!",
	}}
	o := newOrchestrator(t, c, Options{})

	st := &turn.State{
		UserQuery:   "What's the weather in Boston?",
		ToolResults: []string{"Weather in Boston: light rain, 18°C."},
	}
	var events []Event
	var mu sync.Mutex
	res, err := o.RunTurn(context.Background(), st, collectEvents(&events, &mu))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Intent != turn.IntentTaskCompletion {
		t.Errorf("intent = %s", res.Intent)
	}
	if !strings.Contains(res.Response, "umbrella") {
		t.Errorf("response = %q", res.Response)
	}
	if st.LastResponse != res.Response {
		t.Error("LastResponse not updated from final response")
	}
	if st.InterimResponse != res.Response {
		t.Error("InterimResponse should snapshot the composed text")
	}

	// call_tool is pre-fetched, so its step is reported skipped.
	assertHasEvent(t, events, EventStepSkipped, turn.ActionCallTool)
	assertHasEvent(t, events, EventStepDone, turn.ActionCompose)
	last := events[len(events)-1]
	if last.Type != EventFinal || last.Content != res.Response {
		t.Errorf("last event = %+v", last)
	}
}

func TestRunTurnSkipsStepsWithoutInput(t *testing.T) {
	c := &fakeCompleter{responses: map[string]string{
		"intent":   `{"intent":"general_conversation"}`,
		"planner":  `{"plan":[{"step":1,"action":"perception"},{"step":2,"action":"memory_summarize"},{"step":3,"action":"compose_response"}]}`,
		"composer": "Hello there!",
	}}
	o := newOrchestrator(t, c, Options{})

	st := &turn.State{UserQuery: "hi"}
	var events []Event
	var mu sync.Mutex
	if _, err := o.RunTurn(context.Background(), st, collectEvents(&events, &mu)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertHasEvent(t, events, EventStepSkipped, turn.ActionPerception)
	assertHasEvent(t, events, EventStepSkipped, turn.ActionMemorySummarize)
	if c.callCount("perception") != 0 || c.callCount("memory") != 0 {
		t.Error("skipped steps must not invoke the completer")
	}
	if st.MemoryContext != "" || st.PerceptionSummary != "" {
		t.Error("skipped steps must leave their state keys absent")
	}
}

func TestRunTurnMemoryFlow(t *testing.T) {
	c := &fakeCompleter{responses: map[string]string{
		"intent":   `{"intent":"memory_recall"}`,
		"planner":  `{"plan":[{"step":1,"action":"memory_summarize"},{"step":2,"action":"compose_response"},{"step":3,"action":"reflect"}]}`,
		"memory":   "The user prefers tea over coffee.",
		"composer": "You usually go for tea, should I find a good oolong?",
		"reflection": `{"quality":"good","issues":"","needs_followup":false}`,
	}}
	o := newOrchestrator(t, c, Options{})

	st := &turn.State{
		UserQuery:       "what do I like to drink?",
		RetrievedMemory: []string{"prefers tea", "dislikes espresso"},
	}
	res, err := o.RunTurn(context.Background(), st, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.MemoryContext == "" {
		t.Error("memory step should have produced MemoryContext")
	}
	if res.Reflection == nil || res.Reflection.Quality != "good" {
		t.Errorf("reflection = %+v", res.Reflection)
	}
	// memory runs before composer, reflect after
	order := strings.Join(c.calls, ",")
	if !strings.Contains(order, "memory,composer,reflection") {
		t.Errorf("call order = %s", order)
	}
}

func TestRunTurnPlannerGarbageFallsBack(t *testing.T) {
	c := &fakeCompleter{responses: map[string]string{
		"intent":   "nonsense",
		"planner":  "I cannot plan today, sorry.",
		"composer": "Happy to help anyway.",
	}}
	o := newOrchestrator(t, c, Options{})

	st := &turn.State{UserQuery: "help"}
	res, err := o.RunTurn(context.Background(), st, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Intent != turn.IntentGeneralConversation {
		t.Errorf("garbled intent should default, got %s", res.Intent)
	}
	if got := res.Plan.String(); got != "compose_response" {
		t.Errorf("plan = %q, want fallback", got)
	}
	if res.Response != "Happy to help anyway." {
		t.Errorf("response = %q", res.Response)
	}
}

func TestRunTurnComposeFailureIsFatal(t *testing.T) {
	c := &fakeCompleter{
		responses: map[string]string{
			"intent":  `{"intent":"general_conversation"}`,
			"planner": `{"plan":[{"step":1,"action":"compose_response"}]}`,
		},
		errs: map[string]error{"composer": errors.New("provider 500")},
	}
	o := newOrchestrator(t, c, Options{})

	_, err := o.RunTurn(context.Background(), &turn.State{UserQuery: "hi"}, nil)
	if !errors.Is(err, ErrCompose) {
		t.Fatalf("expected ErrCompose, got %v", err)
	}
}

func TestRunTurnNonComposeFailureContinues(t *testing.T) {
	c := &fakeCompleter{
		responses: map[string]string{
			"intent":   `{"intent":"memory_recall"}`,
			"planner":  `{"plan":[{"step":1,"action":"memory_summarize"},{"step":2,"action":"compose_response"}]}`,
			"composer": "Here you go.",
		},
		errs: map[string]error{"memory": errors.New("provider down")},
	}
	o := newOrchestrator(t, c, Options{})

	st := &turn.State{UserQuery: "q", RetrievedMemory: []string{"a fact"}}
	res, err := o.RunTurn(context.Background(), st, nil)
	if err != nil {
		t.Fatalf("memory failure must not fail the turn: %v", err)
	}
	if res.Response != "Here you go." {
		t.Errorf("response = %q", res.Response)
	}
	if st.MemoryContext != "" {
		t.Error("failed step must not write its output key")
	}
}

func TestRunTurnStepTimeout(t *testing.T) {
	c := &fakeCompleter{
		responses: map[string]string{
			"intent":   `{"intent":"memory_recall"}`,
			"planner":  `{"plan":[{"step":1,"action":"memory_summarize"},{"step":2,"action":"compose_response"}]}`,
			"composer": "Answered without memory.",
		},
		block: map[string]bool{"memory": true},
	}
	o := newOrchestrator(t, c, Options{StepTimeout: 50 * time.Millisecond})

	st := &turn.State{UserQuery: "q", RetrievedMemory: []string{"a fact"}}
	res, err := o.RunTurn(context.Background(), st, nil)
	if err != nil {
		t.Fatalf("timed-out non-compose step must not fail the turn: %v", err)
	}
	if res.Response != "Answered without memory." {
		t.Errorf("response = %q", res.Response)
	}
}

func TestRunTurnComposeTimeoutIsFatal(t *testing.T) {
	c := &fakeCompleter{
		responses: map[string]string{
			"intent":  `{"intent":"general_conversation"}`,
			"planner": `{"plan":[{"step":1,"action":"compose_response"}]}`,
		},
		block: map[string]bool{"composer": true},
	}
	o := newOrchestrator(t, c, Options{StepTimeout: 50 * time.Millisecond})

	_, err := o.RunTurn(context.Background(), &turn.State{UserQuery: "hi"}, nil)
	if !errors.Is(err, ErrCompose) {
		t.Fatalf("expected ErrCompose on compose timeout, got %v", err)
	}
}

func TestRunTurnReplanBounded(t *testing.T) {
	c := &fakeCompleter{responses: map[string]string{
		"intent":     `{"intent":"question_answering"}`,
		"planner":    `{"plan":[{"step":1,"action":"compose_response"},{"step":2,"action":"reflect"}]}`,
		"composer":   "A thin answer.",
		"reflection": `{"quality":"poor","issues":"too thin","needs_followup":true,"suggestion":"expand"}`,
	}}
	o := newOrchestrator(t, c, Options{MaxReplans: 1})

	res, err := o.RunTurn(context.Background(), &turn.State{UserQuery: "explain"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Replans != 1 {
		t.Errorf("replans = %d, want 1", res.Replans)
	}
	if c.callCount("planner") != 2 {
		t.Errorf("planner calls = %d, want 2", c.callCount("planner"))
	}
	if c.callCount("composer") != 2 {
		t.Errorf("composer calls = %d, want 2", c.callCount("composer"))
	}
}

func TestRunTurnReplanDisabledByDefault(t *testing.T) {
	c := &fakeCompleter{responses: map[string]string{
		"intent":     `{"intent":"question_answering"}`,
		"planner":    `{"plan":[{"step":1,"action":"compose_response"},{"step":2,"action":"reflect"}]}`,
		"composer":   "A thin answer.",
		"reflection": `{"quality":"poor","issues":"too thin","needs_followup":true}`,
	}}
	o := newOrchestrator(t, c, Options{})

	res, err := o.RunTurn(context.Background(), &turn.State{UserQuery: "explain"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Replans != 0 {
		t.Errorf("replans = %d, want 0", res.Replans)
	}
	if c.callCount("composer") != 1 {
		t.Errorf("composer calls = %d, want 1", c.callCount("composer"))
	}
	if res.Reflection == nil || res.Reflection.Quality != "poor" {
		t.Errorf("poor verdict should still be reported: %+v", res.Reflection)
	}
}

func TestRunTurnEmitsChunkForNonStreamingCompleter(t *testing.T) {
	c := &fakeCompleter{responses: map[string]string{
		"intent":   `{"intent":"general_conversation"}`,
		"planner":  `{"plan":[{"step":1,"action":"compose_response"}]}`,
		"composer": "Hello!",
	}}
	o := newOrchestrator(t, c, Options{})

	var events []Event
	var mu sync.Mutex
	if _, err := o.RunTurn(context.Background(), &turn.State{UserQuery: "hi"}, collectEvents(&events, &mu)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var chunks []string
	for _, ev := range events {
		if ev.Type == EventChunk {
			chunks = append(chunks, ev.Content)
		}
	}
	if strings.Join(chunks, "") != "Hello!" {
		t.Errorf("chunks = %v", chunks)
	}
}

func assertHasEvent(t *testing.T, events []Event, typ EventType, action turn.ActionKind) {
	t.Helper()
	for _, ev := range events {
		if ev.Type == typ && ev.Action == action {
			return
		}
	}
	t.Errorf("no %s event for %s in %+v", typ, action, events)
}
