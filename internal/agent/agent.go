package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/suPer8Hu/agent-platform/internal/ai"
)

// Input is everything one agent turn needs.
type Input struct {
	Query   string
	History []ai.Message
	Deps    Deps
}

// Result of a completed turn. Text is the serialized Output, which is what
// gets persisted and returned to clients.
type Result struct {
	Output any
	Text   string
}

// Agent is one configured agent. Every agent can run to completion and
// incrementally; the chunks of RunStream are raw model text that Schema
// knows how to parse.
type Agent interface {
	Kind() Kind
	// Meta describes the backing model for message metadata.
	Meta() map[string]string
	Schema() Schema
	NewDeps(ctx context.Context, userID uuid.UUID) (Deps, error)
	Run(ctx context.Context, in Input) (*Result, error)
	RunStream(ctx context.Context, in Input) (<-chan string, <-chan error)
	// Finalize applies side effects of a validated output.
	Finalize(ctx context.Context, in Input, output any) error
}

// Registry maps every known Kind to its agent. It is built once at startup.
type Registry struct {
	agents map[Kind]Agent
}

// NewRegistry requires exactly one agent per entry in Kinds.
func NewRegistry(agents ...Agent) (*Registry, error) {
	m := make(map[Kind]Agent, len(agents))
	for _, a := range agents {
		k := a.Kind()
		if !k.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
		}
		if _, dup := m[k]; dup {
			return nil, fmt.Errorf("agent: duplicate agent for %q", k)
		}
		m[k] = a
	}
	for _, k := range Kinds {
		if _, ok := m[k]; !ok {
			return nil, fmt.Errorf("agent: no agent configured for %q", k)
		}
	}
	return &Registry{agents: m}, nil
}

func (r *Registry) Resolve(kind Kind) (Agent, error) {
	a, ok := r.agents[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return a, nil
}

// Encode serializes an output the same way for streaming and storage.
func Encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
