package agents

import (
	"context"
	"fmt"

	"github.com/arialabs/aria/internal/turn"
)

const plannerInstruction = `Based on the intent and user query, create a step-by-step execution plan.
Available actions:
- perception: use when images need analysis
- memory_summarize: use when memory context is available
- workspace_tools: use when Google Workspace data is needed (Docs, Sheets, Drive, Gmail, Calendar, Contacts)
- call_tool: use when a tool/API is needed (weather, geocoding)
- retrieve_docs: use when document search is needed
- compose_response: ALWAYS include this as the final step
- reflect: include if complex reasoning warrants a quality check

Respond in strict JSON with no markdown:
{
  "plan": [
    {"step": 1, "action": "..."},
    {"step": 2, "action": "..."}
  ]
}`

// Planner turns the classified intent and user query into an ordered step
// list. The raw output is untrusted; parsing and normalization enforce the
// plan invariants, so the orchestrator always receives a valid plan even
// when the model returns garbage.
type Planner struct {
	completer Completer
}

// NewPlanner creates the planning agent.
func NewPlanner(c Completer) *Planner {
	return &Planner{completer: c}
}

func (a *Planner) Name() string { return "planner" }

// Run writes a normalized Plan. On completion failure or unparsable output
// it installs the fallback single-compose plan and returns the cause so the
// orchestrator can log it.
func (a *Planner) Run(ctx context.Context, st *turn.State, _ EmitFunc) error {
	input := fmt.Sprintf("Intent: %s\nUser query: %s", st.IntentResult, st.UserQuery)
	out, err := a.completer.Complete(ctx, a.Name(), plannerInstruction, input)
	if err != nil {
		st.Plan = turn.Fallback()
		return err
	}
	plan, parseErr := turn.ParsePlan(out)
	st.Plan = plan
	return parseErr
}
