package turn

import (
	"encoding/json"
	"strings"
)

// Intent is the closed set of intent labels the classifier may produce.
type Intent string

const (
	IntentGeneralConversation Intent = "general_conversation"
	IntentQuestionAnswering   Intent = "question_answering"
	IntentTaskCompletion      Intent = "task_completion"
	IntentPerceptionRequest   Intent = "perception_request"
	IntentMemoryRecall        Intent = "memory_recall"
	IntentDocumentSearch      Intent = "document_search"
	IntentWorkspaceRequest    Intent = "workspace_request"
)

// knownIntents guards the closed enum; the classifier fails soft to
// general_conversation for anything outside it.
var knownIntents = map[Intent]bool{
	IntentGeneralConversation: true,
	IntentQuestionAnswering:   true,
	IntentTaskCompletion:      true,
	IntentPerceptionRequest:   true,
	IntentMemoryRecall:        true,
	IntentDocumentSearch:      true,
	IntentWorkspaceRequest:    true,
}

// ParseIntent parses classifier output. It accepts either the JSON shape
// {"intent":"..."} or a bare label, and falls back to general_conversation
// for malformed or unrecognized output rather than failing the turn.
func ParseIntent(raw string) Intent {
	var decoded struct {
		Intent string `json:"intent"`
	}
	label := strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &decoded); err == nil && decoded.Intent != "" {
		label = decoded.Intent
	}
	intent := Intent(strings.ToLower(strings.TrimSpace(label)))
	if !knownIntents[intent] {
		return IntentGeneralConversation
	}
	return intent
}

// ParseReflection parses the reflection agent's verdict. Malformed output
// yields a neutral verdict so a garbled reflection never fails a turn.
func ParseReflection(raw string) *Reflection {
	var r Reflection
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &r); err != nil || r.Quality == "" {
		return &Reflection{Quality: "fair", Issues: "reflection output unparseable"}
	}
	switch r.Quality {
	case "good", "fair", "poor":
	default:
		r.Quality = "fair"
	}
	return &r
}
