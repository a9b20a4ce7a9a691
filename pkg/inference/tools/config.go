package tools

import (
	"time"

	"github.com/mb0/glob"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ToolConfig controls how the executor treats the calls a model makes.
type ToolConfig struct {
	ExecutionTimeout time.Duration `json:"execution_timeout"`
	// AllowedTools holds glob patterns. nil allows every registered tool.
	AllowedTools      []string          `json:"allowed_tools"`
	ToolErrorHandling ToolErrorHandling `json:"tool_error_handling"`
	UnknownToolPolicy UnknownToolPolicy `json:"unknown_tool_policy"`
	ValidateArguments bool              `json:"validate_arguments"`
}

func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		ExecutionTimeout:  30 * time.Second,
		ToolErrorHandling: ToolErrorContinue,
		UnknownToolPolicy: UnknownToolIgnore,
	}
}

func (tc ToolConfig) WithExecutionTimeout(d time.Duration) ToolConfig {
	tc.ExecutionTimeout = d
	return tc
}

func (tc ToolConfig) WithAllowedTools(patterns []string) ToolConfig {
	tc.AllowedTools = patterns
	return tc
}

func (tc ToolConfig) WithToolErrorHandling(h ToolErrorHandling) ToolConfig {
	tc.ToolErrorHandling = h
	return tc
}

func (tc ToolConfig) WithUnknownToolPolicy(p UnknownToolPolicy) ToolConfig {
	tc.UnknownToolPolicy = p
	return tc
}

func (tc ToolConfig) WithValidateArguments(v bool) ToolConfig {
	tc.ValidateArguments = v
	return tc
}

// ToolErrorHandling decides whether a failing tool ends the batch.
type ToolErrorHandling string

const (
	// ToolErrorContinue records the error as the call's result and carries on.
	ToolErrorContinue ToolErrorHandling = "continue"
	// ToolErrorAbort stops after the first failing call.
	ToolErrorAbort ToolErrorHandling = "abort"
)

func ParseToolErrorHandling(s string) (ToolErrorHandling, error) {
	switch ToolErrorHandling(s) {
	case "", ToolErrorContinue:
		return ToolErrorContinue, nil
	case ToolErrorAbort:
		return ToolErrorAbort, nil
	}
	return "", errors.Errorf("unknown tool error handling %q (expected continue or abort)", s)
}

// UnknownToolPolicy decides what happens when the model names a tool that is not registered.
type UnknownToolPolicy string

const (
	// UnknownToolIgnore skips the call, logs a warning and records an error result.
	UnknownToolIgnore UnknownToolPolicy = "ignore"
	// UnknownToolFail aborts execution with ErrToolNotFound.
	UnknownToolFail UnknownToolPolicy = "fail"
)

func ParseUnknownToolPolicy(s string) (UnknownToolPolicy, error) {
	switch UnknownToolPolicy(s) {
	case "", UnknownToolIgnore:
		return UnknownToolIgnore, nil
	case UnknownToolFail:
		return UnknownToolFail, nil
	}
	return "", errors.Errorf("unknown tool policy %q (expected ignore or fail)", s)
}

// IsToolAllowed matches name against AllowedTools, either literally or as a glob ("get*").
func (tc ToolConfig) IsToolAllowed(name string) bool {
	if tc.AllowedTools == nil {
		return true
	}
	for _, pattern := range tc.AllowedTools {
		if pattern == name {
			return true
		}
		ok, err := glob.Match(pattern, name)
		if err != nil {
			log.Warn().Err(err).Str("pattern", pattern).Msg("bad allowed-tools pattern")
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

func (tc ToolConfig) FilterTools(defs []ToolDefinition) []ToolDefinition {
	if tc.AllowedTools == nil {
		return defs
	}
	out := make([]ToolDefinition, 0, len(defs))
	for _, d := range defs {
		if tc.IsToolAllowed(d.Name) {
			out = append(out, d)
		}
	}
	return out
}
