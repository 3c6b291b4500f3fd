package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/arialabs/aria/internal/turn"
)

const memoryInstruction = `You maintain and recall the user's personal context and preferences. Given
the user query and retrieved memory snippets, summarize the memory that is
relevant to the conversation. Output only a concise synthesized context.`

// MemorySummarizer distills retrieved long-term facts into a short context
// block for the composer.
type MemorySummarizer struct {
	completer Completer
}

// NewMemorySummarizer creates the memory summarization agent.
func NewMemorySummarizer(c Completer) *MemorySummarizer {
	return &MemorySummarizer{completer: c}
}

func (a *MemorySummarizer) Name() string { return "memory" }

// Run reads RetrievedMemory and writes MemoryContext. Skipped by the
// orchestrator when no memory was retrieved.
func (a *MemorySummarizer) Run(ctx context.Context, st *turn.State, _ EmitFunc) error {
	input := fmt.Sprintf("User query: %s\n\nRetrieved memory:\n- %s",
		st.UserQuery, strings.Join(st.RetrievedMemory, "\n- "))
	out, err := a.completer.Complete(ctx, a.Name(), memoryInstruction, input)
	if err != nil {
		return err
	}
	st.MemoryContext = out
	return nil
}
