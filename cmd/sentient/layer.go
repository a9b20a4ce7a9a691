package main

import (
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const SentientSlug = "sentient"

// SentientSettings are the parts of the shared layer read directly by commands.
// Everything else reaches them through the config, see flagBindings.
type SentientSettings struct {
	EchoEvents bool `glazed.parameter:"echo-events"`
}

// flagBindings maps config keys to the flags that override them. A key is
// only bound when the executing command has the flag.
var flagBindings = map[string]string{
	"engine.provider":      "engine",
	"engine.script":        "script",
	"gemini.model":         "model",
	"ntfy.topic":           "topic",
	"loop.max-iterations":  "max-iterations",
	"loop.mode":            "mode",
	"tools.unknown-policy": "unknown-tools",
	"agent.steps":          "steps",
	"agent.interval":       "interval",
	"state.backend":        "state-backend",
	"state.path":           "state-path",
	"server.addr":          "addr",
}

func NewSentientParameterLayer() (layers.ParameterLayer, error) {
	return layers.NewParameterLayer(SentientSlug, "Engine, loop and notification settings",
		layers.WithParameterDefinitions(
			parameters.NewParameterDefinition(
				"engine",
				parameters.ParameterTypeString,
				parameters.WithDefault("gemini"),
				parameters.WithHelp("Inference engine (gemini, scripted)"),
			),
			parameters.NewParameterDefinition(
				"script",
				parameters.ParameterTypeString,
				parameters.WithHelp("YAML script for the scripted engine"),
			),
			parameters.NewParameterDefinition(
				"model",
				parameters.ParameterTypeString,
				parameters.WithDefault("gemini-2.5-flash"),
				parameters.WithHelp("Gemini model name"),
			),
			parameters.NewParameterDefinition(
				"topic",
				parameters.ParameterTypeString,
				parameters.WithHelp("ntfy topic notes are posted to (default $NTFY_TOPIC)"),
			),
			parameters.NewParameterDefinition(
				"max-iterations",
				parameters.ParameterTypeInteger,
				parameters.WithDefault(5),
				parameters.WithHelp("Maximum inference rounds per prompt"),
			),
			parameters.NewParameterDefinition(
				"mode",
				parameters.ParameterTypeString,
				parameters.WithDefault("feedback"),
				parameters.WithHelp("Loop mode (feedback, single)"),
			),
			parameters.NewParameterDefinition(
				"unknown-tools",
				parameters.ParameterTypeString,
				parameters.WithDefault("ignore"),
				parameters.WithHelp("What to do with calls to unregistered tools (ignore, fail)"),
			),
			parameters.NewParameterDefinition(
				"echo-events",
				parameters.ParameterTypeBool,
				parameters.WithDefault(false),
				parameters.WithHelp("Log every inference event through the event router"),
			),
		),
	)
}

// bindFlags binds config keys to the flags of cmd, so that explicitly set flags
// win over file and environment.
func (a *app) bindFlags(cmd *cobra.Command, bindings map[string]string) error {
	for key, name := range bindings {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := a.v.BindPFlag(key, f); err != nil {
			return errors.Wrapf(err, "bind --%s", name)
		}
	}
	return nil
}
