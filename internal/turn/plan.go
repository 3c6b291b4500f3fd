package turn

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ActionKind is the closed set of recognized plan step types. Anything else
// coming back from the planner is dropped during normalization rather than
// reaching the dispatch table.
type ActionKind string

const (
	ActionPerception      ActionKind = "perception"
	ActionMemorySummarize ActionKind = "memory_summarize"
	ActionWorkspaceTools  ActionKind = "workspace_tools"
	ActionCallTool        ActionKind = "call_tool"
	ActionRetrieveDocs    ActionKind = "retrieve_docs"
	ActionCompose         ActionKind = "compose_response"
	ActionReflect         ActionKind = "reflect"
)

// ParseActionKind maps a raw string to an ActionKind, reporting whether it is
// one of the recognized kinds.
func ParseActionKind(raw string) (ActionKind, bool) {
	switch k := ActionKind(strings.TrimSpace(strings.ToLower(raw))); k {
	case ActionPerception, ActionMemorySummarize, ActionWorkspaceTools,
		ActionCallTool, ActionRetrieveDocs, ActionCompose, ActionReflect:
		return k, true
	default:
		return "", false
	}
}

// Step is one entry in a plan. The numeric Step field is advisory metadata
// from the planner; execution order always follows list order.
type Step struct {
	Step   int        `json:"step"`
	Action ActionKind `json:"action"`
}

// Plan is the ordered step list the orchestrator walks for one turn.
type Plan struct {
	Steps []Step `json:"plan"`
}

// Fallback returns the single-step plan used whenever the planner produces
// nothing usable. The pipeline always attempts composition.
func Fallback() *Plan {
	return &Plan{Steps: []Step{{Step: 1, Action: ActionCompose}}}
}

// ParsePlan parses the planner's raw output into a normalized Plan. The
// payload is untrusted model output: markdown fences are stripped, unknown
// actions are discarded, and any parse failure yields the fallback plan with
// an error describing what went wrong.
func ParsePlan(raw string) (*Plan, error) {
	var decoded struct {
		Plan []struct {
			Step   int    `json:"step"`
			Action string `json:"action"`
		} `json:"plan"`
	}
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &decoded); err != nil {
		return Fallback(), fmt.Errorf("parse plan: %w", err)
	}

	p := &Plan{}
	for _, s := range decoded.Plan {
		kind, ok := ParseActionKind(s.Action)
		if !ok {
			continue
		}
		p.Steps = append(p.Steps, Step{Step: s.Step, Action: kind})
	}
	if len(p.Steps) == 0 {
		return Fallback(), fmt.Errorf("plan contained no recognized steps")
	}
	return p.Normalize(), nil
}

// Normalize enforces the plan invariants: at least one step, and a
// compose_response step present (appended at the end if the planner omitted
// it). Step order is left untouched.
func (p *Plan) Normalize() *Plan {
	if len(p.Steps) == 0 {
		return Fallback()
	}
	for _, s := range p.Steps {
		if s.Action == ActionCompose {
			return p
		}
	}
	p.Steps = append(p.Steps, Step{Step: len(p.Steps) + 1, Action: ActionCompose})
	return p
}

// String renders the plan as a compact action list for logs and turn records.
func (p *Plan) String() string {
	if p == nil || len(p.Steps) == 0 {
		return "(empty)"
	}
	actions := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		actions[i] = string(s.Action)
	}
	return strings.Join(actions, " -> ")
}

// ExtractJSON pulls the JSON object out of model output that may be wrapped
// in markdown code fences or surrounded by prose. Returns the input
// unchanged if no braces are found.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
