package agents

import (
	"context"

	"github.com/arialabs/aria/internal/turn"
)

const intentInstruction = `Classify the intent of the user query. Choose from:

1. general_conversation - casual talk, greetings, or non-specific queries
2. question_answering - factual questions seeking information
3. task_completion - requests to do something (set reminder, send email)
4. perception_request - the user wants analysis of an image
5. memory_recall - the user references past personal context
6. document_search - the user asks about specific documents/information
7. workspace_request - the user asks about Google Workspace tools (Docs, Sheets, Drive, Gmail, Calendar, Contacts)

Output ONLY a JSON object with a single "intent" key, e.g.:
{"intent": "general_conversation"}`

// IntentClassifier labels the user query with one of the closed intent set.
// Malformed classifier output degrades to general_conversation; it never
// fails the turn.
type IntentClassifier struct {
	completer Completer
}

// NewIntentClassifier creates the intent classification agent.
func NewIntentClassifier(c Completer) *IntentClassifier {
	return &IntentClassifier{completer: c}
}

func (a *IntentClassifier) Name() string { return "intent" }

// Run classifies UserQuery and writes IntentResult.
func (a *IntentClassifier) Run(ctx context.Context, st *turn.State, _ EmitFunc) error {
	out, err := a.completer.Complete(ctx, a.Name(), intentInstruction, st.UserQuery)
	if err != nil {
		return err
	}
	st.IntentResult = turn.ParseIntent(out)
	return nil
}
