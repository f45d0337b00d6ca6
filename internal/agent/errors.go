package agent

import (
	"errors"
	"fmt"
)

var (
	ErrAgent = errors.New("agent error")

	// ErrUnknownKind is returned for agent tags outside the closed set.
	ErrUnknownKind = fmt.Errorf("%w: unsupported agent type", ErrAgent)

	// ErrUpstream wraps failures of the model provider call.
	ErrUpstream = fmt.Errorf("%w: upstream call failed", ErrAgent)

	// ErrEmptyResponse is returned when the model produced no output.
	ErrEmptyResponse = fmt.Errorf("%w: empty response", ErrAgent)

	// ErrOutputFormat is returned when the final output does not satisfy the schema.
	ErrOutputFormat = fmt.Errorf("%w: model response format error", ErrAgent)
)
