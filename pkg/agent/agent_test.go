package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/sentient/pkg/agentstate"
	"github.com/go-go-golems/sentient/pkg/events"
	"github.com/go-go-golems/sentient/pkg/inference/engine"
	"github.com/go-go-golems/sentient/pkg/inference/session"
	"github.com/go-go-golems/sentient/pkg/inference/toolloop"
	"github.com/go-go-golems/sentient/pkg/inference/tools"
	"github.com/go-go-golems/sentient/pkg/steps/ai/scripted"
	"github.com/go-go-golems/sentient/pkg/toolkit"
)

type recordingNotifier struct {
	mu    sync.Mutex
	notes []string
}

func (n *recordingNotifier) Send(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, text)
	return nil
}

func TestAgentRunsStepsAndPersists(t *testing.T) {
	state := agentstate.New()
	state.Energy = 50
	n := &recordingNotifier{}

	reg := tools.NewInMemoryToolRegistry()
	require.NoError(t, toolkit.RegisterBasicTools(reg, toolkit.Options{Notifier: n}))
	require.NoError(t, toolkit.RegisterAgentTools(reg, state, toolkit.Options{}))

	runner := &session.Runner{
		NewEngine: func(context.Context) (engine.Engine, error) {
			return scripted.NewEngine(scripted.AgentScript())
		},
		Registry:   reg,
		LoopConfig: toolloop.DefaultLoopConfig(),
		ToolConfig: tools.DefaultToolConfig(),
	}
	store := agentstate.NewMemoryStore()

	var seen []int
	a := &Agent{
		Asker: runner,
		State: state,
		Store: store,
		Steps: 2,
		OnStep: func(step int, res *session.Result) {
			seen = append(seen, step)
			assert.Equal(t, "Perceived, recharged and reported.", res.Answer)
		},
	}
	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, []int{1, 2}, seen)
	assert.Equal(t, 2, state.Step)
	// two perceives (-1 each) and two recharges (+30, capped at 100)
	assert.InDelta(t, 100.0, state.Energy, 1e-9)
	assert.Len(t, n.notes, 2)

	saved, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Step)
}

type failingAsker struct{}

func (failingAsker) Ask(context.Context, string) (*session.Result, error) {
	return nil, engine.NewUpstreamError("ask", assert.AnError)
}

func TestAgentSavesOnFailure(t *testing.T) {
	store := agentstate.NewMemoryStore()
	state := agentstate.New()
	a := &Agent{Asker: failingAsker{}, State: state, Store: store, Steps: 3}

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrUpstream)

	saved, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, saved.Step)
}

type textAsker struct{}

func (textAsker) Ask(context.Context, string) (*session.Result, error) {
	return &session.Result{Answer: "ok"}, nil
}

func TestAgentStopsOnCancelDuringInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	state := agentstate.New()
	a := &Agent{
		Asker:    textAsker{},
		State:    state,
		Steps:    5,
		Interval: time.Hour,
		OnStep:   func(int, *session.Result) { cancel() },
	}
	err := a.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, state.Step)
}

func TestPromptEmbedsState(t *testing.T) {
	p, err := Prompt(agentstate.New())
	require.NoError(t, err)
	assert.Contains(t, p, `"energy": 100`)
	assert.Contains(t, p, "Use perceive()")
}

func TestCustomPromptTemplate(t *testing.T) {
	st := agentstate.New()
	st.Step = 3
	p, err := RenderPrompt(`step {{ .Step }} energy {{ .Energy | int }} mood {{ .Mood | upper }}`, st)
	require.NoError(t, err)
	assert.Equal(t, "step 3 energy 100 mood CURIOUS", p)

	a := &Agent{Asker: textAsker{}, State: st, PromptTemplate: "{{ .Nope "}
	assert.Error(t, a.Run(context.Background()))
}

type stepSink struct {
	steps []*events.EventAgentStep
}

func (s *stepSink) PublishEvent(e events.Event) error {
	if ev, ok := e.(*events.EventAgentStep); ok {
		s.steps = append(s.steps, ev)
	}
	return nil
}

func TestAgentPublishesStepEvents(t *testing.T) {
	sink := &stepSink{}
	ctx := events.WithEventSinks(context.Background(), sink)

	a := &Agent{Asker: textAsker{}, State: agentstate.New(), Steps: 2}
	require.NoError(t, a.Run(ctx))

	require.Len(t, sink.steps, 2)
	assert.Equal(t, 1, sink.steps[0].Step)
	assert.Equal(t, 2, sink.steps[1].Step)
	assert.Equal(t, "ok", sink.steps[1].Answer)
	assert.Equal(t, agentstate.DefaultEnergy, sink.steps[1].State["energy"])
}
