package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is a chat completion backend.
type Provider interface {
	Chat(ctx context.Context, messages []Message, opts ...Option) (string, error)
}

// Options tune a single provider call.
type Options struct {
	// JSON asks the backend to constrain its answer to a JSON object.
	JSON        bool
	Temperature *float32
}

type Option func(*Options)

func WithJSON() Option {
	return func(o *Options) { o.JSON = true }
}

func WithTemperature(t float32) Option {
	return func(o *Options) { o.Temperature = &t }
}

func applyOptions(opts []Option) Options {
	var o Options
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
