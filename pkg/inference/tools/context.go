package tools

import "context"

type registryKey struct{}

type callKey struct{}

type turnIDKey struct{}

// WithRegistry makes reg visible to engines further down. A nil reg leaves
// ctx untouched, which engines read as "no tools".
func WithRegistry(ctx context.Context, reg ToolRegistry) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if reg == nil {
		return ctx
	}
	return context.WithValue(ctx, registryKey{}, reg)
}

func RegistryFrom(ctx context.Context) (ToolRegistry, bool) {
	if ctx == nil {
		return nil, false
	}
	reg, ok := ctx.Value(registryKey{}).(ToolRegistry)
	return reg, ok && reg != nil
}

// WithCurrentToolCall is set by the executor around each tool function.
func WithCurrentToolCall(ctx context.Context, call ToolCall) context.Context {
	return context.WithValue(ctx, callKey{}, call)
}

func CurrentToolCallFromContext(ctx context.Context) (ToolCall, bool) {
	if ctx == nil {
		return ToolCall{}, false
	}
	call, ok := ctx.Value(callKey{}).(ToolCall)
	return call, ok
}

// WithTurnID tags the tool events published under ctx with the id of the turn
// whose calls are being executed.
func WithTurnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, turnIDKey{}, id)
}

func TurnIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(turnIDKey{}).(string)
	return id
}
