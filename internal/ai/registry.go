package ai

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
)

type ProviderFactory func(ctx context.Context, model string) (Provider, error)

type backend struct {
	factory      ProviderFactory
	defaultModel string
}

// Registry maps backend names to provider factories. It is filled at
// startup; Register is not safe for concurrent use.
type Registry struct {
	backends map[string]backend
}

func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]backend)}
}

// Register adds a backend. defaultModel is used when Open is given no model.
func (r *Registry) Register(name, defaultModel string, f ProviderFactory) {
	r.backends[normalize(name)] = backend{factory: f, defaultModel: defaultModel}
}

// Resolved is a ready provider and the model it serves.
type Resolved struct {
	Name     string
	Model    string
	Provider Provider
}

func (r *Registry) Open(ctx context.Context, name, model string) (Resolved, error) {
	name = normalize(name)
	b, ok := r.backends[name]
	if !ok {
		return Resolved{}, fmt.Errorf("unknown ai provider: %s", name)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = b.defaultModel
	}
	p, err := b.factory(ctx, model)
	if err != nil {
		return Resolved{}, fmt.Errorf("%s: %w", name, err)
	}
	return Resolved{Name: name, Model: model, Provider: p}, nil
}

// Names lists registered backends in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.backends))
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
