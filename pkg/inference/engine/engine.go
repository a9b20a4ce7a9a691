package engine

import (
	"context"

	"github.com/go-go-golems/sentient/pkg/turns"
)

// Engine represents an AI inference engine that processes a Turn and returns
// it with the model's output appended. Provider-specific logic (Gemini, the
// scripted replay engine) lives behind this interface.
type Engine interface {
	// RunInference appends llm_text and tool_call blocks for the model response.
	// Tools are taken from the registry attached to ctx (tools.WithRegistry).
	// Events are published to the configured sinks and the sinks carried by ctx.
	RunInference(ctx context.Context, t *turns.Turn) (*turns.Turn, error)
}
