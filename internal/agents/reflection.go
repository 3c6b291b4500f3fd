package agents

import (
	"context"
	"fmt"

	"github.com/arialabs/aria/internal/turn"
)

const reflectionInstruction = `Review the assistant response for appropriateness, safety, and coherence.

Check:
- Did the response fully address the user's intent?
- Is the tone appropriate and non-repetitive?
- Are there any safety concerns?
- Should a followup be asked (flag as needs_followup)?

Output a concise JSON object with NO markdown:
{
  "quality": "good/fair/poor",
  "issues": "specific concerns or 'none'",
  "needs_followup": true/false,
  "suggestion": "improvement suggestions"
}`

// ReflectionAgent evaluates the composed response. Its verdict is advisory:
// a poor verdict never retroactively changes FinalResponse.
type ReflectionAgent struct {
	completer Completer
}

// NewReflectionAgent creates the reflection agent.
func NewReflectionAgent(c Completer) *ReflectionAgent {
	return &ReflectionAgent{completer: c}
}

func (a *ReflectionAgent) Name() string { return "reflection" }

// Run reads FinalResponse and UserQuery and writes the structured verdict.
func (a *ReflectionAgent) Run(ctx context.Context, st *turn.State, _ EmitFunc) error {
	input := fmt.Sprintf("User query: %s\n\nAssistant response:\n%s", st.UserQuery, st.FinalResponse)
	out, err := a.completer.Complete(ctx, a.Name(), reflectionInstruction, input)
	if err != nil {
		return err
	}
	st.Reflection = turn.ParseReflection(out)
	return nil
}
