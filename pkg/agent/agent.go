// Package agent drives the stateful toy agent: a fixed number of steps, each
// one asking the model to perceive, act and report on the current state.
package agent

import (
	"bytes"
	"context"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/sentient/pkg/agentstate"
	"github.com/go-go-golems/sentient/pkg/events"
	"github.com/go-go-golems/sentient/pkg/inference/session"
)

const (
	DefaultSteps    = 10
	DefaultInterval = 5 * time.Second
)

type Agent struct {
	Asker    session.Asker
	State    *agentstate.State
	Store    agentstate.Store
	Steps    int
	Interval time.Duration
	// PromptTemplate defaults to DefaultPromptTemplate.
	PromptTemplate string
	// OnStep is called after every completed step.
	OnStep func(step int, res *session.Result)
}

// DefaultPromptTemplate is rendered with the current state as dot.
const DefaultPromptTemplate = `You are an embodied agent with the following state:
{{ . | toPrettyJson }}

Use perceive() to check sensors, then act() once, then sendNote() a short sentence describing what you did and why.
`

// Prompt renders the default per-step instruction for s.
func Prompt(s *agentstate.State) (string, error) {
	return RenderPrompt(DefaultPromptTemplate, s)
}

// RenderPrompt executes tmpl (text/template with sprig functions) against s.
func RenderPrompt(tmpl string, s *agentstate.State) (string, error) {
	t, err := template.New("agent-prompt").Funcs(sprig.TxtFuncMap()).Parse(tmpl)
	if err != nil {
		return "", errors.Wrap(err, "parse prompt template")
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, s); err != nil {
		return "", errors.Wrap(err, "render prompt template")
	}
	return buf.String(), nil
}

// Run executes the steps. The state is saved after each step and once more on
// the way out, also when a step fails or ctx is cancelled.
func (a *Agent) Run(ctx context.Context) (err error) {
	if a.Asker == nil || a.State == nil {
		return errors.New("agent needs an asker and a state")
	}
	steps := a.Steps
	if steps <= 0 {
		steps = DefaultSteps
	}

	tmpl := a.PromptTemplate
	if tmpl == "" {
		tmpl = DefaultPromptTemplate
	}
	if _, err := RenderPrompt(tmpl, a.State); err != nil {
		return err
	}

	defer func() {
		if saveErr := a.save(context.WithoutCancel(ctx)); saveErr != nil && err == nil {
			err = saveErr
		}
	}()

	for i := 0; i < steps; i++ {
		prompt, err := RenderPrompt(tmpl, a.State)
		if err != nil {
			return err
		}

		log.Info().Int("step", a.State.Step).Float64("energy", a.State.Energy).Float64("temperature", a.State.Temperature).Msg("agent step")
		res, err := a.Asker.Ask(ctx, prompt)
		if err != nil {
			return errors.Wrapf(err, "agent step %d", a.State.Step)
		}
		a.State.Advance()
		a.publishStep(ctx, res)
		if a.OnStep != nil {
			a.OnStep(a.State.Step, res)
		}
		if err := a.save(ctx); err != nil {
			return err
		}

		if i == steps-1 || a.Interval <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.Interval):
		}
	}
	return nil
}

func (a *Agent) publishStep(ctx context.Context, res *session.Result) {
	turnID := ""
	if res.Turn != nil {
		turnID = res.Turn.ID
	}
	ev := events.NewAgentStepEvent(events.NewEventMetadata(turnID), a.State.Step, res.Answer, map[string]any{
		"energy":      a.State.Energy,
		"temperature": a.State.Temperature,
		"mood":        a.State.Mood,
	})
	ev.Truncated = res.Truncated
	events.PublishEventToContext(ctx, ev)
}

func (a *Agent) save(ctx context.Context) error {
	if a.Store == nil {
		return nil
	}
	return errors.Wrap(a.Store.Save(ctx, a.State), "save agent state")
}
