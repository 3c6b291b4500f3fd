package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/arialabs/aria/internal/turn"
)

const composerInstruction = `You are a warm, human-like personal assistant. Use the perception summary,
memory context, document snippets, and tool results when they are provided.
If information is missing, ask one succinct clarifying question. Avoid
robotic phrasing.`

// StreamCompleter is implemented by completers that can stream incremental
// response text. The composer streams when its completer supports it and
// an emit function is supplied.
type StreamCompleter interface {
	Completer
	CompleteStream(ctx context.Context, capability, instruction, input string) (<-chan string, error)
}

// Composer produces the final response from whatever context the earlier
// steps assembled. It is the only mandatory step in a plan, and the only one
// whose failure is fatal to the turn.
type Composer struct {
	completer Completer
}

// NewComposer creates the response composition agent.
func NewComposer(c Completer) *Composer {
	return &Composer{completer: c}
}

func (a *Composer) Name() string { return "composer" }

// Run writes FinalResponse and snapshots it into InterimResponse so a later
// reflect step evaluates exactly the text that was produced.
func (a *Composer) Run(ctx context.Context, st *turn.State, emit EmitFunc) error {
	input := a.buildInput(st)

	var out string
	if sc, ok := a.completer.(StreamCompleter); ok && emit != nil {
		ch, err := sc.CompleteStream(ctx, a.Name(), composerInstruction, input)
		if err != nil {
			return fmt.Errorf("compose: %w", err)
		}
		var b strings.Builder
		for chunk := range ch {
			b.WriteString(chunk)
			emit(chunk)
		}
		out = b.String()
	} else {
		var err error
		out, err = a.completer.Complete(ctx, a.Name(), composerInstruction, input)
		if err != nil {
			return fmt.Errorf("compose: %w", err)
		}
		if emit != nil {
			emit(out)
		}
	}

	if strings.TrimSpace(out) == "" {
		return fmt.Errorf("compose: empty response")
	}
	st.FinalResponse = out
	st.InterimResponse = out
	return nil
}

// buildInput assembles the composer prompt from whichever state keys the
// earlier steps populated. Absent keys are simply omitted.
func (a *Composer) buildInput(st *turn.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User query: %s\n", st.UserQuery)
	if st.PerceptionSummary != "" {
		fmt.Fprintf(&b, "\nPerception summary:\n%s\n", st.PerceptionSummary)
	}
	if st.MemoryContext != "" {
		fmt.Fprintf(&b, "\nMemory context:\n%s\n", st.MemoryContext)
	}
	if len(st.RAGSnippets) > 0 {
		fmt.Fprintf(&b, "\nRelevant document excerpts:\n- %s\n", strings.Join(st.RAGSnippets, "\n- "))
	}
	if len(st.ToolResults) > 0 {
		fmt.Fprintf(&b, "\nTool results:\n- %s\n", strings.Join(st.ToolResults, "\n- "))
	}
	if st.LastResponse != "" {
		fmt.Fprintf(&b, "\nYour previous reply:\n%s\n", st.LastResponse)
	}
	return b.String()
}
