package main

import (
	"context"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/sentient/pkg/agent"
	"github.com/go-go-golems/sentient/pkg/agentstate"
	"github.com/go-go-golems/sentient/pkg/config"
	"github.com/go-go-golems/sentient/pkg/inference/session"
	"github.com/go-go-golems/sentient/pkg/inference/tools"
	"github.com/go-go-golems/sentient/pkg/steps/ai/scripted"
	"github.com/go-go-golems/sentient/pkg/toolkit"
)

type AgentCommand struct {
	*cmds.CommandDescription
	app *app
}

var _ cmds.BareCommand = (*AgentCommand)(nil)

// NewAgentCommand declares the agent flags. Their values reach Run through the
// config (agent.steps, agent.interval, state.backend, state.path).
func NewAgentCommand(a *app) (*AgentCommand, error) {
	sentientLayer, err := NewSentientParameterLayer()
	if err != nil {
		return nil, err
	}
	return &AgentCommand{
		CommandDescription: cmds.NewCommandDescription(
			"agent",
			cmds.WithShort("Run the stateful agent for a number of perceive/act/report steps"),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"steps",
					parameters.ParameterTypeInteger,
					parameters.WithDefault(agent.DefaultSteps),
					parameters.WithHelp("Number of agent steps"),
				),
				parameters.NewParameterDefinition(
					"interval",
					parameters.ParameterTypeString,
					parameters.WithDefault(agent.DefaultInterval.String()),
					parameters.WithHelp("Pause between steps, e.g. 5s"),
				),
				parameters.NewParameterDefinition(
					"state-backend",
					parameters.ParameterTypeString,
					parameters.WithDefault("file"),
					parameters.WithHelp("State store (file, sqlite, memory)"),
				),
				parameters.NewParameterDefinition(
					"state-path",
					parameters.ParameterTypeString,
					parameters.WithDefault("state.json"),
					parameters.WithHelp("State file or database path"),
				),
			),
			cmds.WithLayersList(sentientLayer),
		),
		app: a,
	}, nil
}

func (c *AgentCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	ss := &SentientSettings{}
	if err := parsedLayers.InitializeStruct(SentientSlug, ss); err != nil {
		return err
	}
	cfg := c.app.cfg

	store, err := openStore(cfg.State)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	state, err := store.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "load agent state")
	}

	opts, err := toolOptions(cfg)
	if err != nil {
		return err
	}
	reg := tools.NewInMemoryToolRegistry()
	if err := toolkit.RegisterBasicTools(reg, opts); err != nil {
		return err
	}
	if err := toolkit.RegisterAgentTools(reg, state, opts); err != nil {
		return err
	}
	runner, err := newRunner(cfg, reg, scripted.AgentScript(), nil)
	if err != nil {
		return err
	}

	ag := &agent.Agent{
		Asker:          runner,
		State:          state,
		Store:          store,
		Steps:          cfg.Agent.Steps,
		Interval:       cfg.Agent.Interval,
		PromptTemplate: cfg.Agent.PromptTemplate,
		OnStep: func(step int, res *session.Result) {
			log.Info().Int("step", step).Str("answer", res.Answer).Msg("agent step done")
		},
	}
	return withEventEcho(ctx, ss.EchoEvents, func(ctx context.Context) error {
		return ag.Run(ctx)
	})
}

func openStore(sc config.StateConfig) (agentstate.Store, error) {
	switch sc.Backend {
	case "memory":
		return agentstate.NewMemoryStore(), nil
	case "sqlite":
		dsn, err := agentstate.SQLiteDSNForFile(sc.Path)
		if err != nil {
			return nil, err
		}
		return agentstate.NewSQLiteStore(dsn, sc.Agent)
	case "file":
		return agentstate.NewFileStore(sc.Path)
	default:
		return nil, errors.Errorf("unknown state backend %q", sc.Backend)
	}
}
