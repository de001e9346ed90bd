package llm

import (
	"context"
	"errors"
)

// ErrBackendInvocation wraps every transport or decoding failure of a backend.
// The audit pipeline turns it into a degraded report.
var ErrBackendInvocation = errors.New("generative backend invocation failed")

// ErrInvalidJSON is returned when a response does not decode to a JSON object.
var ErrInvalidJSON = errors.New("response is not a valid JSON object")

// Backend sends a system and a user instruction to a model and returns the
// decoded JSON object it answered with.
type Backend interface {
	Name() string
	GenerateResponse(ctx context.Context, systemPrompt, userPrompt string) (map[string]any, error)
}
