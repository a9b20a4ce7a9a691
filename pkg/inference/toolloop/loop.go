// Package toolloop alternates model inference and tool execution over a Turn.
package toolloop

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/sentient/pkg/events"
	"github.com/go-go-golems/sentient/pkg/inference/engine"
	"github.com/go-go-golems/sentient/pkg/inference/toolblocks"
	"github.com/go-go-golems/sentient/pkg/inference/tools"
	"github.com/go-go-golems/sentient/pkg/turns"
)

// ErrMaxIterations comes back together with the partial turn when the model
// is still requesting tools after MaxIterations inferences.
var ErrMaxIterations = errors.New("max iterations reached")

type Loop struct {
	eng      engine.Engine
	registry tools.ToolRegistry
	executor tools.ToolExecutor
	loopCfg  LoopConfig
	toolCfg  tools.ToolConfig
}

type Option func(*Loop)

func WithEngine(eng engine.Engine) Option         { return func(l *Loop) { l.eng = eng } }
func WithRegistry(reg tools.ToolRegistry) Option  { return func(l *Loop) { l.registry = reg } }
func WithLoopConfig(cfg LoopConfig) Option        { return func(l *Loop) { l.loopCfg = cfg } }
func WithToolConfig(cfg tools.ToolConfig) Option  { return func(l *Loop) { l.toolCfg = cfg } }
func WithExecutor(exec tools.ToolExecutor) Option { return func(l *Loop) { l.executor = exec } }

func New(opts ...Option) *Loop {
	l := &Loop{loopCfg: DefaultLoopConfig(), toolCfg: tools.DefaultToolConfig()}
	for _, o := range opts {
		if o != nil {
			o(l)
		}
	}
	return l
}

func (l *Loop) check() error {
	switch {
	case l == nil:
		return errors.New("tool loop is nil")
	case l.eng == nil:
		return errors.New("tool loop has no engine")
	case l.registry == nil:
		return errors.New("tool loop has no registry")
	}
	return l.loopCfg.Validate()
}

// RunLoop asks the engine for a reply, runs whatever tools it requested and,
// in feedback mode, goes around again until a reply requests no tools.
func (l *Loop) RunLoop(ctx context.Context, t *turns.Turn) (*turns.Turn, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if t == nil {
		t = &turns.Turn{}
	}
	ctx = tools.WithRegistry(ctx, l.registry)

	limit := l.loopCfg.MaxIterations
	for iteration := 1; iteration <= limit; iteration++ {
		next, done, err := l.step(ctx, t, iteration)
		if next != nil {
			t = next
		}
		if err != nil || done {
			return next, err
		}
	}

	log.Warn().Int("max_iterations", limit).Str("turn_id", t.ID).Msg("toolloop: giving up, model still calling tools")
	events.PublishEventToContext(ctx, events.NewInfoEvent(
		events.NewEventMetadata(t.ID), "max iterations reached", map[string]any{"max_iterations": limit},
	))
	return t, errors.Wrapf(ErrMaxIterations, "after %d inferences", limit)
}

// step runs one inference plus its tool calls. done reports that no further
// inference should happen.
func (l *Loop) step(ctx context.Context, t *turns.Turn, iteration int) (*turns.Turn, bool, error) {
	log.Debug().Int("iteration", iteration).Int("max_iterations", l.loopCfg.MaxIterations).Msg("toolloop: inference")

	out, err := l.eng.RunInference(ctx, t)
	if err != nil {
		return nil, true, errors.Wrap(err, "run inference")
	}

	pending := toolblocks.ExtractPendingToolCalls(out)
	if len(pending) == 0 {
		return out, true, nil
	}

	results, err := l.execute(tools.WithTurnID(ctx, out.ID), pending)
	toolblocks.AppendToolResultsBlocks(out, results)
	if err != nil {
		return out, true, err
	}
	return out, l.loopCfg.Mode == ModeSingle, nil
}

func (l *Loop) execute(ctx context.Context, pending []toolblocks.ToolCall) ([]toolblocks.ToolResult, error) {
	exec := l.executor
	if exec == nil {
		exec = tools.NewBaseToolExecutor(l.toolCfg)
	}

	calls := make([]tools.ToolCall, len(pending))
	for i, c := range pending {
		raw, _ := json.Marshal(c.Arguments)
		calls[i] = tools.ToolCall{ID: c.ID, Name: c.Name, Arguments: raw}
	}

	done, err := exec.ExecuteToolCalls(ctx, calls, l.registry)
	results := make([]toolblocks.ToolResult, 0, len(done))
	for _, r := range done {
		if r != nil {
			results = append(results, toolblocks.ToolResult{ID: r.ID, Content: r.Result, Error: r.Error, Skipped: r.Skipped})
		}
	}
	return results, err
}
