package agents

import (
	"context"
	"fmt"

	"github.com/arialabs/aria/internal/turn"
)

const perceptionInstruction = `You are a perceptive visual analyst. Given an image description, extract key
objects, any visible text, and user-relevant insights. Be concise, natural,
and friendly.`

// PerceptionSummarizer condenses the image description attached to the turn
// into a summary the composer can weave into the reply.
type PerceptionSummarizer struct {
	completer Completer
}

// NewPerceptionSummarizer creates the perception agent.
func NewPerceptionSummarizer(c Completer) *PerceptionSummarizer {
	return &PerceptionSummarizer{completer: c}
}

func (a *PerceptionSummarizer) Name() string { return "perception" }

// Run reads ImageContext and writes PerceptionSummary. The orchestrator
// skips this step entirely when no image context is present.
func (a *PerceptionSummarizer) Run(ctx context.Context, st *turn.State, _ EmitFunc) error {
	input := fmt.Sprintf("Image description:\n%s\n\nUser query: %s", st.ImageContext, st.UserQuery)
	out, err := a.completer.Complete(ctx, a.Name(), perceptionInstruction, input)
	if err != nil {
		return err
	}
	st.PerceptionSummary = out
	return nil
}
