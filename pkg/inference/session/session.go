// Package session runs one prompt through the tool loop on a fresh Turn.
package session

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/sentient/pkg/events"
	"github.com/go-go-golems/sentient/pkg/inference/engine"
	"github.com/go-go-golems/sentient/pkg/inference/toolloop"
	"github.com/go-go-golems/sentient/pkg/inference/tools"
	"github.com/go-go-golems/sentient/pkg/turns"
)

var (
	ErrRunnerNil        = errors.New("session runner is nil")
	ErrEngineFactoryNil = errors.New("session runner has no engine factory")
)

// EngineFactory builds the engine used for one run. Engines that keep per-run
// state (the scripted engine) get a fresh instance every time.
type EngineFactory func(ctx context.Context) (engine.Engine, error)

// StaticEngine returns a factory that always hands out eng.
func StaticEngine(eng engine.Engine) EngineFactory {
	return func(context.Context) (engine.Engine, error) { return eng, nil }
}

// Runner holds everything needed to answer prompts. It is safe for concurrent
// use as long as the registry's tools are.
type Runner struct {
	NewEngine  EngineFactory
	Registry   tools.ToolRegistry
	LoopConfig toolloop.LoopConfig
	ToolConfig tools.ToolConfig
	// Executor overrides the default tool executor (e.g. to forward results).
	Executor tools.ToolExecutor
	// SystemPrompt, when set, is prepended as a system block.
	SystemPrompt string
	// EventSinks are attached to the run context.
	EventSinks []events.EventSink
}

// Result is the outcome of one Ask.
type Result struct {
	Turn   *turns.Turn
	Answer string
	// Truncated is set when the loop stopped at MaxIterations.
	Truncated bool
}

// Asker answers one prompt on a fresh turn.
type Asker interface {
	Ask(ctx context.Context, prompt string) (*Result, error)
}

var _ Asker = (*Runner)(nil)

// Ask seeds a new Turn with prompt and runs the loop to completion.
//
// Hitting the iteration cap is not an error: the answer gathered so far is
// returned with Truncated set. Empty prompts are rejected as invalid input.
func (r *Runner) Ask(ctx context.Context, prompt string) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, &engine.InvalidInputError{Reason: "empty prompt"}
	}

	t := &turns.Turn{ID: uuid.NewString()}
	if r != nil && r.SystemPrompt != "" {
		turns.AppendBlock(t, turns.NewSystemTextBlock(r.SystemPrompt))
	}
	turns.AppendBlock(t, turns.NewUserTextBlock(prompt))

	out, err := r.Run(ctx, t)
	if err != nil && !errors.Is(err, toolloop.ErrMaxIterations) {
		return nil, err
	}
	if out == nil {
		out = t
	}

	res := &Result{Turn: out, Answer: turns.FinalAssistantText(out)}
	if err != nil {
		res.Truncated = true
		log.Warn().Err(err).Str("turn_id", out.ID).Msg("answer truncated at iteration cap")
	}
	return res, nil
}

// Run drives the tool loop over an existing Turn.
func (r *Runner) Run(ctx context.Context, t *turns.Turn) (*turns.Turn, error) {
	if r == nil {
		return nil, ErrRunnerNil
	}
	if r.NewEngine == nil {
		return nil, ErrEngineFactoryNil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(r.EventSinks) > 0 {
		ctx = events.WithEventSinks(ctx, r.EventSinks...)
	}

	eng, err := r.NewEngine(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "build engine")
	}

	reg := r.Registry
	if reg != nil && r.ToolConfig.AllowedTools != nil {
		if reg, err = allowedOnly(reg, r.ToolConfig); err != nil {
			return nil, err
		}
	}

	opts := []toolloop.Option{
		toolloop.WithEngine(eng),
		toolloop.WithRegistry(reg),
		toolloop.WithLoopConfig(r.LoopConfig),
		toolloop.WithToolConfig(r.ToolConfig),
	}
	if r.Executor != nil {
		opts = append(opts, toolloop.WithExecutor(r.Executor))
	}

	log.Debug().Str("turn_id", t.ID).Int("max_iterations", r.LoopConfig.MaxIterations).Msg("session: running tool loop")
	return toolloop.New(opts...).RunLoop(ctx, t)
}

// allowedOnly copies the allowed subset of reg, so the model is never offered a tool it may not call.
func allowedOnly(reg tools.ToolRegistry, cfg tools.ToolConfig) (tools.ToolRegistry, error) {
	out := tools.NewInMemoryToolRegistry()
	for _, def := range cfg.FilterTools(reg.ListTools()) {
		if err := out.RegisterTool(def.Name, def); err != nil {
			return nil, err
		}
	}
	return out, nil
}
