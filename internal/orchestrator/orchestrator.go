// Package orchestrator sequences the capability agents for one conversation
// turn: classify intent, build a plan, walk the plan's steps against the
// dispatch table, compose the final response, optionally reflect on it.
// Steps run strictly in list order because later steps read state written by
// earlier ones; concurrency happens across turns, never within one.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arialabs/aria/internal/agents"
	"github.com/arialabs/aria/internal/turn"
)

// ErrCompose marks a fatal composition failure, the only step error that
// crosses the orchestrator boundary. Everything else is absorbed and logged.
var ErrCompose = errors.New("compose response failed")

// Options tunes turn execution.
type Options struct {
	// StepTimeout bounds each agent invocation. A non-compose step that
	// exceeds it is logged and skipped; a compose timeout is fatal.
	StepTimeout time.Duration

	// MaxReplans bounds the reflect-triggered re-plan loop. Zero (the
	// default) disables re-planning; a poor verdict is then advisory only.
	MaxReplans int
}

func (o Options) withDefaults() Options {
	if o.StepTimeout <= 0 {
		o.StepTimeout = 30 * time.Second
	}
	return o
}

// EventType identifies a streamed turn event.
type EventType string

const (
	EventStepStarted EventType = "step_started"
	EventStepDone    EventType = "step_done"
	EventStepSkipped EventType = "step_skipped"
	EventChunk       EventType = "chunk"
	EventFinal       EventType = "final"
)

// Event is an incremental result emitted while a turn executes, suitable for
// streaming to the caller.
type Event struct {
	Type    EventType       `json:"type"`
	Action  turn.ActionKind `json:"action,omitempty"`
	Content string          `json:"content,omitempty"`
}

// EmitFunc receives turn events. May be nil when the caller does not stream.
type EmitFunc func(Event)

// Result summarizes a completed turn for the caller.
type Result struct {
	Response   string           `json:"response"`
	Intent     turn.Intent      `json:"intent"`
	Plan       *turn.Plan       `json:"plan"`
	Reflection *turn.Reflection `json:"reflection,omitempty"`
	Replans    int              `json:"replans,omitempty"`
	Duration   time.Duration    `json:"duration"`
}

// Orchestrator owns the in-memory mutation sequence of one turn's state.
// It holds no cross-turn mutable state, so one instance serves concurrent
// turns safely.
type Orchestrator struct {
	intent   *agents.IntentClassifier
	planner  *agents.Planner
	dispatch map[turn.ActionKind]agents.Capability
	opts     Options
	logger   *zap.Logger
}

// New wires the capability agents onto a completer and builds the action
// dispatch table.
func New(c agents.Completer, opts Options, logger *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		intent:  agents.NewIntentClassifier(c),
		planner: agents.NewPlanner(c),
		opts:    opts.withDefaults(),
		logger:  logger,
	}
	o.dispatch = map[turn.ActionKind]agents.Capability{
		turn.ActionPerception:      agents.NewPerceptionSummarizer(c),
		turn.ActionMemorySummarize: agents.NewMemorySummarizer(c),
		turn.ActionCompose:         agents.NewComposer(c),
		turn.ActionReflect:         agents.NewReflectionAgent(c),
		// workspace_tools, call_tool and retrieve_docs are pre-fetched
		// before the turn starts; their steps are placeholder no-ops.
	}
	return o
}

// RunTurn executes one turn against the given state. The state must already
// carry the user query and any pre-fetched context (tool results, memory,
// document snippets, image description). RunTurn mutates the state in place;
// persisting it afterwards is the caller's job.
//
// Only two error conditions surface: a fatal composition failure (wrapped
// ErrCompose) and context cancellation before composition could run.
func (o *Orchestrator) RunTurn(ctx context.Context, st *turn.State, emit EmitFunc) (*Result, error) {
	start := time.Now()

	// Intent classification. A failed or garbled classification degrades to
	// general_conversation; the turn always proceeds.
	if err := o.runStep(ctx, "intent", func(sc context.Context) error {
		return o.intent.Run(sc, st, nil)
	}); err != nil {
		o.logger.Warn("intent classification failed, defaulting", zap.Error(err))
	}
	if st.IntentResult == "" {
		st.IntentResult = turn.IntentGeneralConversation
	}

	// Planning. The planner installs the fallback plan itself on bad output;
	// a transport failure here leaves Plan nil, handled below.
	if err := o.runStep(ctx, "planner", func(sc context.Context) error {
		return o.planner.Run(sc, st, nil)
	}); err != nil {
		o.logger.Warn("planning failed, using fallback plan", zap.Error(err))
	}
	if st.Plan == nil || len(st.Plan.Steps) == 0 {
		st.Plan = turn.Fallback()
	}
	st.Plan.Normalize()

	o.logger.Info("plan ready",
		zap.String("intent", string(st.IntentResult)),
		zap.String("plan", st.Plan.String()))

	replans := 0
	for {
		if err := o.executePlan(ctx, st, emit); err != nil {
			return nil, err
		}

		if !o.shouldReplan(st, replans) {
			break
		}
		replans++
		o.logger.Info("reflection requested followup, re-planning",
			zap.Int("attempt", replans))
		if err := o.runStep(ctx, "planner", func(sc context.Context) error {
			return o.planner.Run(sc, st, nil)
		}); err != nil {
			o.logger.Warn("re-planning failed, keeping response", zap.Error(err))
			break
		}
		st.Plan.Normalize()
	}

	st.LastResponse = st.FinalResponse
	st.UpdatedAt = time.Now().UTC()

	if emit != nil {
		emit(Event{Type: EventFinal, Content: st.FinalResponse})
	}
	return &Result{
		Response:   st.FinalResponse,
		Intent:     st.IntentResult,
		Plan:       st.Plan,
		Reflection: st.Reflection,
		Replans:    replans,
		Duration:   time.Since(start),
	}, nil
}

// executePlan walks the plan in list order. The numeric step field is
// advisory; duplicates and gaps are ignored.
func (o *Orchestrator) executePlan(ctx context.Context, st *turn.State, emit EmitFunc) error {
	for _, step := range st.Plan.Steps {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: turn canceled before composition: %v", ErrCompose, ctx.Err())
		default:
		}

		switch step.Action {
		case turn.ActionPerception:
			if st.ImageContext == "" {
				o.skip(step.Action, "no image context", emit)
				continue
			}
		case turn.ActionMemorySummarize:
			if len(st.RetrievedMemory) == 0 {
				o.skip(step.Action, "no retrieved memory", emit)
				continue
			}
		case turn.ActionReflect:
			if st.FinalResponse == "" {
				o.skip(step.Action, "nothing to reflect on", emit)
				continue
			}
		case turn.ActionWorkspaceTools, turn.ActionCallTool, turn.ActionRetrieveDocs:
			// Pre-fetch model: the relevant state keys were populated before
			// the turn began. Reserved as an in-loop invocation point.
			o.skip(step.Action, "pre-fetched", emit)
			continue
		}

		agent, ok := o.dispatch[step.Action]
		if !ok {
			// Unknown kinds are filtered during parsing; this guards the
			// table against future enum additions.
			o.skip(step.Action, "no dispatch entry", emit)
			continue
		}

		if emit != nil {
			emit(Event{Type: EventStepStarted, Action: step.Action})
		}
		var agentEmit agents.EmitFunc
		if emit != nil && step.Action == turn.ActionCompose {
			agentEmit = func(chunk string) {
				emit(Event{Type: EventChunk, Action: step.Action, Content: chunk})
			}
		}

		err := o.runStep(ctx, string(step.Action), func(sc context.Context) error {
			return agent.Run(sc, st, agentEmit)
		})
		if err != nil {
			if step.Action == turn.ActionCompose {
				return fmt.Errorf("%w: %v", ErrCompose, err)
			}
			// Non-fatal: the step produced no output; execution continues.
			o.logger.Warn("step failed, continuing",
				zap.String("action", string(step.Action)), zap.Error(err))
			continue
		}
		if emit != nil {
			emit(Event{Type: EventStepDone, Action: step.Action})
		}
	}
	return nil
}

// runStep invokes fn under the per-step timeout.
func (o *Orchestrator) runStep(ctx context.Context, name string, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, o.opts.StepTimeout)
	defer cancel()
	err := fn(stepCtx)
	if err != nil && stepCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("step %s timed out after %s: %w", name, o.opts.StepTimeout, err)
	}
	return err
}

func (o *Orchestrator) skip(action turn.ActionKind, reason string, emit EmitFunc) {
	o.logger.Debug("skipping step",
		zap.String("action", string(action)), zap.String("reason", reason))
	if emit != nil {
		emit(Event{Type: EventStepSkipped, Action: action, Content: reason})
	}
}

func (o *Orchestrator) shouldReplan(st *turn.State, done int) bool {
	if o.opts.MaxReplans <= 0 || done >= o.opts.MaxReplans {
		return false
	}
	return st.Reflection != nil && st.Reflection.Quality == "poor" && st.Reflection.NeedsFollowup
}
