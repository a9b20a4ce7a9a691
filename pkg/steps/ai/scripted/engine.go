// Package scripted provides an offline Engine that replays canned model responses.
package scripted

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/sentient/pkg/events"
	"github.com/go-go-golems/sentient/pkg/inference/engine"
	"github.com/go-go-golems/sentient/pkg/turns"
)

// ErrScriptExhausted is returned once every scripted response has been replayed.
var ErrScriptExhausted = errors.New("scripted engine has no more responses")

// Call is a tool call the scripted model requests.
type Call struct {
	Name string         `yaml:"name" json:"name"`
	Args map[string]any `yaml:"args,omitempty" json:"args,omitempty"`
}

// Response is one model reply: optional text plus tool calls.
type Response struct {
	Text  string `yaml:"text,omitempty" json:"text,omitempty"`
	Calls []Call `yaml:"calls,omitempty" json:"calls,omitempty"`
	// Error makes this inference fail as an upstream failure.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
}

type Engine struct {
	mu        sync.Mutex
	responses []Response
	next      int
	// Repeat replays the last response forever instead of running out.
	Repeat bool
	config *engine.Config
}

var _ engine.Engine = (*Engine)(nil)

func NewEngine(responses []Response, options ...engine.Option) (*Engine, error) {
	cfg := engine.NewConfig()
	if err := engine.ApplyOptions(cfg, options...); err != nil {
		return nil, err
	}
	return &Engine{responses: responses, config: cfg}, nil
}

// LoadScript reads responses from a YAML file (a list of Response).
func LoadScript(path string) ([]Response, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read script %s", path)
	}
	var out []Response
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, errors.Wrapf(err, "parse script %s", path)
	}
	return out, nil
}

// DefaultScript is the offline rendition of the notify example: call getTime,
// forward the result with sendNote, then answer.
func DefaultScript() []Response {
	return []Response{
		{Calls: []Call{{Name: "getTime"}}},
		{Calls: []Call{{Name: "sendNote", Args: map[string]any{"text": "{{last_result}}"}}}},
		{Text: "Done: the current time was sent as a note."},
	}
}

// AgentScript drives one agent step offline: perceive, recharge, report.
func AgentScript() []Response {
	return []Response{
		{Calls: []Call{{Name: "perceive"}}},
		{Calls: []Call{{Name: "act", Args: map[string]any{"action": "recharge"}}}},
		{Calls: []Call{{Name: "sendNote", Args: map[string]any{"text": "Recharged to keep energy up."}}}},
		{Text: "Perceived, recharged and reported."},
	}
}

// Calls returns how many inferences have been served.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.next
}

func (e *Engine) RunInference(ctx context.Context, t *turns.Turn) (*turns.Turn, error) {
	if t == nil {
		return nil, &engine.InvalidInputError{Reason: "nil turn"}
	}

	e.mu.Lock()
	if e.next >= len(e.responses) && !(e.Repeat && len(e.responses) > 0) {
		e.mu.Unlock()
		return nil, engine.NewUpstreamError("scripted inference", ErrScriptExhausted)
	}
	idx := e.next
	if idx >= len(e.responses) {
		idx = len(e.responses) - 1
	}
	r := e.responses[idx]
	e.next++
	e.mu.Unlock()

	start := time.Now()
	metadata := events.NewEventMetadata(t.ID)
	metadata.Model = "scripted"
	e.config.Publish(ctx, events.NewStartEvent(metadata))
	t.SetMetadata(turns.TurnMetaKeyProvider, "scripted")

	if r.Error != "" {
		err := errors.New(r.Error)
		e.config.Publish(ctx, events.NewErrorEvent(metadata, err))
		return nil, engine.NewUpstreamError("scripted inference", err)
	}

	if r.Text != "" {
		turns.AppendBlock(t, turns.NewAssistantTextBlock(r.Text))
	}
	last := lastToolResult(t)
	for _, c := range r.Calls {
		args := substitute(c.Args, last)
		id := uuid.NewString()
		turns.AppendBlock(t, turns.NewToolCallBlock(id, c.Name, args))
		input, _ := json.Marshal(args)
		e.config.Publish(ctx, events.NewToolCallEvent(metadata, events.ToolCall{ID: id, Name: c.Name, Input: string(input)}))
	}

	d := time.Since(start).Milliseconds()
	metadata.DurationMs = &d
	e.config.Publish(ctx, events.NewFinalEvent(metadata, r.Text))
	return t, nil
}

// lastToolResult returns the most recent tool result rendered as a string.
func lastToolResult(t *turns.Turn) string {
	for i := len(t.Blocks) - 1; i >= 0; i-- {
		b := t.Blocks[i]
		if b.Kind != turns.BlockKindToolUse {
			continue
		}
		switch v := b.Payload[turns.PayloadKeyResult].(type) {
		case string:
			return v
		case nil:
			return ""
		default:
			bts, _ := json.Marshal(v)
			return string(bts)
		}
	}
	return ""
}

// substitute replaces the "{{last_result}}" placeholder in string arguments.
func substitute(args map[string]any, last string) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok && s == "{{last_result}}" {
			out[k] = last
			continue
		}
		out[k] = v
	}
	return out
}
