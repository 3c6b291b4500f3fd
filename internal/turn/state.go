package turn

import "time"

// State is the shared per-turn state bag. It is created fresh or loaded from
// the session store at the start of a turn, mutated in place by each executed
// step, and persisted back by the caller when the turn completes. The
// orchestrator is the sole writer for the duration of one turn.
type State struct {
	UserQuery         string      `json:"user_query"`
	IntentResult      Intent      `json:"intent_result,omitempty"`
	Plan              *Plan       `json:"plan,omitempty"`
	ImageContext      string      `json:"image_context,omitempty"`
	RetrievedMemory   []string    `json:"retrieved_memory,omitempty"`
	MemoryContext     string      `json:"memory_context,omitempty"`
	PerceptionSummary string      `json:"perception_summary,omitempty"`
	RAGSnippets       []string    `json:"rag_snippets,omitempty"`
	ToolResults       []string    `json:"tool_results,omitempty"`
	FinalResponse     string      `json:"final_response,omitempty"`
	InterimResponse   string      `json:"interim_response,omitempty"`
	Reflection        *Reflection `json:"reflection_result,omitempty"`

	// LastResponse carries the previous turn's reply across turns.
	LastResponse string    `json:"last_response,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Reset clears the per-turn working keys while keeping cross-turn state
// (LastResponse) intact, then installs the new user query.
func (s *State) Reset(query string) {
	s.UserQuery = query
	s.IntentResult = ""
	s.Plan = nil
	s.ImageContext = ""
	s.RetrievedMemory = nil
	s.MemoryContext = ""
	s.PerceptionSummary = ""
	s.RAGSnippets = nil
	s.ToolResults = nil
	s.FinalResponse = ""
	s.InterimResponse = ""
	s.Reflection = nil
}

// Reflection is the structured verdict produced by the reflection agent.
type Reflection struct {
	Quality       string `json:"quality"` // good|fair|poor
	Issues        string `json:"issues"`
	NeedsFollowup bool   `json:"needs_followup"`
	Suggestion    string `json:"suggestion"`
}
