// Package agents holds the capability agents: stateless units that each map
// a slice of turn state to exactly one output key via the completion
// capability. The closed set of agents is selected by the orchestrator's
// action dispatch table; adding a capability means adding one agent here and
// one dispatch case, nothing else.
package agents

import (
	"context"

	"github.com/arialabs/aria/internal/turn"
)

// Completer is the slice of the provider router the agents depend on.
type Completer interface {
	Complete(ctx context.Context, capability, instruction, input string) (string, error)
}

// EmitFunc receives incremental response text during a streaming step.
type EmitFunc func(chunk string)

// Capability is a stateless unit that reads declared turn-state keys and
// writes one output key. Run must be idempotent for identical input state.
// emit may be nil; only streaming-capable agents use it.
type Capability interface {
	Name() string
	Run(ctx context.Context, st *turn.State, emit EmitFunc) error
}
