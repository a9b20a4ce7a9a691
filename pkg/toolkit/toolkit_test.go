package toolkit

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/sentient/pkg/agentstate"
	"github.com/go-go-golems/sentient/pkg/inference/tools"
)

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (r *recordingNotifier) Send(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return r.err
}

func execute(t *testing.T, reg tools.ToolRegistry, name string, args string) interface{} {
	t.Helper()
	def, err := reg.GetTool(name)
	require.NoError(t, err)
	out, err := def.Function.ExecuteWithContext(context.Background(), json.RawMessage(args))
	require.NoError(t, err)
	return out
}

func TestGetTimeIsParseableAndNonDecreasing(t *testing.T) {
	prev := time.Time{}
	for i := 0; i < 50; i++ {
		s := GetTime(nil)
		ts, err := time.Parse(time.RFC3339Nano, s)
		require.NoError(t, err)
		assert.Equal(t, time.UTC, ts.Location())
		assert.False(t, ts.Before(prev), "%s before %s", ts, prev)
		prev = ts
	}

	fixed := time.Date(2025, 6, 1, 12, 30, 0, 5_000_000, time.FixedZone("CET", 3600))
	assert.Equal(t, "2025-06-01T11:30:00.005Z", GetTime(func() time.Time { return fixed }))
}

func TestSendNote(t *testing.T) {
	n := &recordingNotifier{}
	assert.Equal(t, NoteSent, SendNote(context.Background(), n, "T"))
	assert.Equal(t, []string{"T"}, n.texts)

	n.err = errors.New("503")
	assert.Equal(t, NoteFailed, SendNote(context.Background(), n, "again"))
	assert.Len(t, n.texts, 2)

	assert.Equal(t, NoteFailed, SendNote(context.Background(), nil, "nobody"))
}

func TestRegisterBasicTools(t *testing.T) {
	n := &recordingNotifier{}
	clock := func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	reg := tools.NewInMemoryToolRegistry()
	require.NoError(t, RegisterBasicTools(reg, Options{Clock: clock, Notifier: n}))

	assert.Equal(t, "2025-01-02T03:04:05.000Z", execute(t, reg, ToolGetTime, `{}`))
	assert.Equal(t, NoteSent, execute(t, reg, ToolSendNote, `{"text":"hello"}`))
	assert.Equal(t, []string{"hello"}, n.texts)

	def, err := reg.GetTool(ToolSendNote)
	require.NoError(t, err)
	assert.Contains(t, def.Parameters.Required, "text")
}

func TestRegisterAgentTools(t *testing.T) {
	state := agentstate.New()
	reg := tools.NewInMemoryToolRegistry()
	require.NoError(t, RegisterAgentTools(reg, state, Options{Rand: rand.New(rand.NewSource(7))}))

	for i := 0; i < 3; i++ {
		execute(t, reg, ToolPerceive, `{}`)
	}
	assert.Equal(t, agentstate.DefaultEnergy-3, state.Energy)

	snap := execute(t, reg, ToolAct, `{"action":"recharge"}`).(*agentstate.State)
	assert.Equal(t, agentstate.MaxEnergy, snap.Energy)

	before := state.Snapshot()
	execute(t, reg, ToolAct, `{"action":"moonwalk"}`)
	assert.Equal(t, before.Energy, state.Energy)
	assert.Equal(t, before.Temperature, state.Temperature)

	snap = execute(t, reg, ToolRemember, `{"note":"it is warm"}`).(*agentstate.State)
	require.Len(t, snap.Memory, 1)
	assert.Equal(t, "it is warm", snap.Memory[0].Text)

	snap.Energy = -999
	assert.NotEqual(t, -999.0, state.Energy)

	assert.Error(t, RegisterAgentTools(tools.NewInMemoryToolRegistry(), nil, Options{}))
}

func TestForwardingExecutorSendsGetTimeResult(t *testing.T) {
	n := &recordingNotifier{}
	clock := func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	reg := tools.NewInMemoryToolRegistry()
	require.NoError(t, RegisterBasicTools(reg, Options{Clock: clock, Notifier: n}))

	fwd, err := ParseForwards([]string{"getTime=sendNote"})
	require.NoError(t, err)
	exec := NewForwardingExecutor(tools.DefaultToolConfig(), fwd)

	results, err := exec.ExecuteToolCalls(context.Background(), []tools.ToolCall{{ID: "1", Name: ToolGetTime}}, reg)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2025-01-02T03:04:05.000Z", results[0].Result)
	assert.Equal(t, []string{"2025-01-02T03:04:05.000Z"}, n.texts)
}

func TestParseForwardsRejectsGarbage(t *testing.T) {
	_, err := ParseForwards([]string{"getTime"})
	assert.Error(t, err)
	_, err = ParseForwards([]string{"=sendNote"})
	assert.Error(t, err)
	m, err := ParseForwards(nil)
	require.NoError(t, err)
	assert.Empty(t, m)
}
