package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/sentient/pkg/inference/session"
	"github.com/go-go-golems/sentient/pkg/inference/toolloop"
	"github.com/go-go-golems/sentient/pkg/inference/tools"
	"github.com/go-go-golems/sentient/pkg/steps/ai/scripted"
	"github.com/go-go-golems/sentient/pkg/toolkit"
	"github.com/go-go-golems/sentient/pkg/turns"
	"github.com/go-go-golems/sentient/pkg/turns/serde"
)

const defaultPrompt = "Use getTime() once and then immediately use sendNote() with the exact string returned."

type RunSettings struct {
	Prompt     []string `glazed.parameter:"prompt"`
	PrintTurn  bool     `glazed.parameter:"print-turn"`
	Transcript bool     `glazed.parameter:"transcript"`
	Render     bool     `glazed.parameter:"render"`
	SaveTurn   string   `glazed.parameter:"save-turn"`
	Resume     string   `glazed.parameter:"resume"`
	Forward    []string `glazed.parameter:"forward"`
}

type RunCommand struct {
	*cmds.CommandDescription
	app *app
}

var _ cmds.BareCommand = (*RunCommand)(nil)

func NewRunCommand(a *app) (*RunCommand, error) {
	sentientLayer, err := NewSentientParameterLayer()
	if err != nil {
		return nil, err
	}
	return &RunCommand{
		CommandDescription: cmds.NewCommandDescription(
			"run",
			cmds.WithShort("Answer one prompt with getTime and sendNote available"),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"print-turn",
					parameters.ParameterTypeBool,
					parameters.WithDefault(false),
					parameters.WithHelp("Print the final turn as YAML"),
				),
				parameters.NewParameterDefinition(
					"transcript",
					parameters.ParameterTypeBool,
					parameters.WithDefault(false),
					parameters.WithHelp("Print a one-line-per-block transcript to stderr"),
				),
				parameters.NewParameterDefinition(
					"render",
					parameters.ParameterTypeBool,
					parameters.WithDefault(false),
					parameters.WithHelp("Render the answer as terminal markdown"),
				),
				parameters.NewParameterDefinition(
					"save-turn",
					parameters.ParameterTypeString,
					parameters.WithHelp("Write the final turn to this YAML file"),
				),
				parameters.NewParameterDefinition(
					"resume",
					parameters.ParameterTypeString,
					parameters.WithHelp("Continue a turn saved with --save-turn"),
				),
				parameters.NewParameterDefinition(
					"forward",
					parameters.ParameterTypeStringList,
					parameters.WithHelp("Pass a tool's result to another tool, e.g. getTime=sendNote"),
				),
			),
			cmds.WithArguments(
				parameters.NewParameterDefinition(
					"prompt",
					parameters.ParameterTypeStringList,
					parameters.WithHelp("Prompt text, joined with spaces"),
				),
			),
			cmds.WithLayersList(sentientLayer),
		),
		app: a,
	}, nil
}

func (c *RunCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	s := &RunSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return err
	}
	ss := &SentientSettings{}
	if err := parsedLayers.InitializeStruct(SentientSlug, ss); err != nil {
		return err
	}

	prompt := strings.TrimSpace(strings.Join(s.Prompt, " "))
	if prompt == "" {
		prompt = defaultPrompt
	}

	cfg := c.app.cfg
	opts, err := toolOptions(cfg)
	if err != nil {
		return err
	}
	reg := tools.NewInMemoryToolRegistry()
	if err := toolkit.RegisterBasicTools(reg, opts); err != nil {
		return err
	}
	runner, err := newRunner(cfg, reg, scripted.DefaultScript(), s.Forward)
	if err != nil {
		return err
	}

	return withEventEcho(ctx, ss.EchoEvents, func(ctx context.Context) error {
		res, err := ask(ctx, runner, prompt, s.Resume)
		if err != nil {
			return err
		}
		return s.report(c.app.out, c.app.errOut, res)
	})
}

// ask runs prompt on a fresh turn, or appended to the turn stored at resume.
func ask(ctx context.Context, runner *session.Runner, prompt string, resume string) (*session.Result, error) {
	if resume == "" {
		return runner.Ask(ctx, prompt)
	}

	t, err := serde.LoadTurnYAML(resume)
	if err != nil {
		return nil, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	turns.AppendBlock(t, turns.NewUserTextBlock(prompt))

	out, err := runner.Run(ctx, t)
	truncated := errors.Is(err, toolloop.ErrMaxIterations)
	if err != nil && !truncated {
		return nil, err
	}
	return &session.Result{Turn: out, Answer: turns.FinalAssistantText(out), Truncated: truncated}, nil
}

func (s *RunSettings) report(out io.Writer, errOut io.Writer, res *session.Result) error {
	if res.Truncated {
		log.Warn().Msg("model was still calling tools when the iteration cap was hit")
	}
	if s.Transcript {
		turns.FprintTurn(errOut, res.Turn)
	}
	if s.SaveTurn != "" {
		if err := serde.SaveTurnYAML(s.SaveTurn, res.Turn, serde.Options{}); err != nil {
			return err
		}
		log.Info().Str("path", s.SaveTurn).Msg("turn saved")
	}
	if s.PrintTurn {
		b, err := serde.ToYAML(res.Turn, serde.Options{})
		if err != nil {
			return err
		}
		_, _ = out.Write(b)
	}

	answer := res.Answer
	if s.Render {
		styled, err := glamour.Render(answer, "dark")
		if err != nil {
			return err
		}
		answer = styled
	}
	fmt.Fprintln(out, answer)
	return nil
}
