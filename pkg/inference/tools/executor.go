package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/sentient/pkg/events"
)

type ToolExecutor interface {
	ExecuteToolCall(ctx context.Context, call ToolCall, registry ToolRegistry) (*ToolResult, error)
	ExecuteToolCalls(ctx context.Context, calls []ToolCall, registry ToolRegistry) ([]*ToolResult, error)
}

// ToolExecutorExt holds the hooks BaseToolExecutor dispatches through. Types
// embedding *BaseToolExecutor override some of them and point
// BaseToolExecutor.ToolExecutorExt back at themselves.
type ToolExecutorExt interface {
	// PreExecute may rewrite the call. An error turns into the call's result.
	PreExecute(ctx context.Context, call ToolCall, registry ToolRegistry) (ToolCall, error)
	IsAllowed(ctx context.Context, call ToolCall) bool
	// MaskArguments renders the arguments for events.
	MaskArguments(ctx context.Context, call ToolCall) string
	PublishStart(ctx context.Context, call ToolCall, maskedArgs string)
	PublishResult(ctx context.Context, call ToolCall, result *ToolResult)
	// AfterExecute sees every call whose handler ran, before the next call starts.
	AfterExecute(ctx context.Context, call ToolCall, result *ToolResult, registry ToolRegistry)
}

// BaseToolExecutor runs calls strictly one after another, in request order.
type BaseToolExecutor struct {
	ToolExecutorExt
	config ToolConfig
}

var (
	_ ToolExecutor    = (*BaseToolExecutor)(nil)
	_ ToolExecutorExt = (*BaseToolExecutor)(nil)
)

func NewBaseToolExecutor(cfg ToolConfig) *BaseToolExecutor {
	b := &BaseToolExecutor{config: cfg}
	b.ToolExecutorExt = b
	return b
}

func (b *BaseToolExecutor) Config() ToolConfig { return b.config }

func (b *BaseToolExecutor) PreExecute(_ context.Context, call ToolCall, _ ToolRegistry) (ToolCall, error) {
	return call, nil
}

func (b *BaseToolExecutor) IsAllowed(_ context.Context, call ToolCall) bool {
	return b.config.IsToolAllowed(call.Name)
}

// MaskArguments re-encodes the arguments compactly, or returns them verbatim when they are not JSON.
func (b *BaseToolExecutor) MaskArguments(_ context.Context, call ToolCall) string {
	if len(call.Arguments) == 0 {
		return ""
	}
	var v any
	if json.Unmarshal(call.Arguments, &v) != nil {
		return string(call.Arguments)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(call.Arguments)
	}
	return string(out)
}

func (b *BaseToolExecutor) PublishStart(ctx context.Context, call ToolCall, masked string) {
	ev := events.NewToolCallExecuteEvent(events.NewEventMetadata(TurnIDFromContext(ctx)), events.ToolCall{ID: call.ID, Name: call.Name, Input: masked})
	events.PublishEventToContext(ctx, ev)
}

func (b *BaseToolExecutor) PublishResult(ctx context.Context, call ToolCall, res *ToolResult) {
	ev := events.NewToolCallExecutionResultEvent(events.NewEventMetadata(TurnIDFromContext(ctx)), events.ToolResult{ID: call.ID, Result: summarize(res)})
	events.PublishEventToContext(ctx, ev)
}

func (b *BaseToolExecutor) AfterExecute(context.Context, ToolCall, *ToolResult, ToolRegistry) {}

// summarize renders a result as JSON, with the error appended when there is one.
func summarize(res *ToolResult) string {
	if res == nil {
		return ""
	}
	var s string
	if res.Result != nil {
		if b, err := json.Marshal(res.Result); err == nil {
			s = string(b)
		} else {
			s = fmt.Sprint(res.Result)
		}
	}
	switch {
	case res.Error == "":
		return s
	case s == "":
		return "Error: " + res.Error
	default:
		return s + " | Error: " + res.Error
	}
}

// ExecuteToolCall runs one call. Handler failures are reported in
// ToolResult.Error. A Go error comes back only when the unknown-tool policy is
// "fail" or ctx is already done.
func (b *BaseToolExecutor) ExecuteToolCall(ctx context.Context, call ToolCall, registry ToolRegistry) (*ToolResult, error) {
	start := time.Now()
	skip := func(msg string) (*ToolResult, error) {
		return &ToolResult{ID: call.ID, Name: call.Name, Error: msg, Duration: time.Since(start), Skipped: true}, nil
	}

	call, err := b.ToolExecutorExt.PreExecute(ctx, call, registry)
	if err != nil {
		return &ToolResult{ID: call.ID, Name: call.Name, Error: err.Error(), Duration: time.Since(start)}, nil
	}
	ctx = WithCurrentToolCall(ctx, call)

	def, err := registry.GetTool(call.Name)
	switch {
	case err != nil && b.config.UnknownToolPolicy == UnknownToolFail:
		return nil, errors.Wrapf(ErrToolNotFound, "model requested %q", call.Name)
	case err != nil:
		log.Warn().Str("tool", call.Name).Str("tool_call_id", call.ID).Msg("ignoring call to unknown tool")
		return skip("tool not found: " + call.Name)
	case !b.ToolExecutorExt.IsAllowed(ctx, call):
		return skip("tool not allowed: " + call.Name)
	}
	if b.config.ValidateArguments {
		if err := ValidateArguments(def, call.Arguments); err != nil {
			return skip(err.Error())
		}
	}

	b.ToolExecutorExt.PublishStart(ctx, call, b.ToolExecutorExt.MaskArguments(ctx, call))
	res, runErr := b.invoke(ctx, call, def)
	res.ID, res.Name, res.Duration = call.ID, call.Name, time.Since(start)

	log.Debug().Str("tool", call.Name).Str("tool_call_id", call.ID).Dur("duration", res.Duration).Str("error", res.Error).Msg("tool executed")
	b.ToolExecutorExt.PublishResult(ctx, call, res)
	if runErr == nil {
		b.ToolExecutorExt.AfterExecute(ctx, call, res, registry)
	}
	return res, runErr
}

// ExecuteToolCalls returns the results in call order. With ToolErrorAbort it
// stops at the first call whose handler failed.
func (b *BaseToolExecutor) ExecuteToolCalls(ctx context.Context, calls []ToolCall, registry ToolRegistry) ([]*ToolResult, error) {
	var results []*ToolResult
	for _, c := range calls {
		res, err := b.ExecuteToolCall(ctx, c, registry)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if b.config.ToolErrorHandling == ToolErrorAbort && res.Error != "" && !res.Skipped {
			return results, errors.Errorf("tool %s failed, aborting: %s", c.Name, res.Error)
		}
	}
	return results, nil
}

func (b *BaseToolExecutor) invoke(ctx context.Context, call ToolCall, def *ToolDefinition) (*ToolResult, error) {
	if err := ctx.Err(); err != nil {
		return &ToolResult{Error: "execution cancelled"}, err
	}
	if d := b.config.ExecutionTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	out, err := def.Function.ExecuteWithContext(ctx, call.Arguments)
	if err != nil {
		return &ToolResult{Error: err.Error()}, nil
	}
	return &ToolResult{Result: out}, nil
}
