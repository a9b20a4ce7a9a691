package scripted

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/sentient/pkg/inference/engine"
	"github.com/go-go-golems/sentient/pkg/turns"
)

func TestScriptedEngineReplaysAndSubstitutes(t *testing.T) {
	e, err := NewEngine(DefaultScript())
	require.NoError(t, err)

	turn := &turns.Turn{}
	turns.AppendBlock(turn, turns.NewUserTextBlock("go"))

	out, err := e.RunInference(context.Background(), turn)
	require.NoError(t, err)
	require.Len(t, out.Blocks, 2)
	assert.Equal(t, "getTime", out.Blocks[1].Payload[turns.PayloadKeyName])

	id := out.Blocks[1].Payload[turns.PayloadKeyID].(string)
	turns.AppendBlock(out, turns.NewToolUseBlock(id, "2025-03-01T10:00:00.000Z"))

	out, err = e.RunInference(context.Background(), out)
	require.NoError(t, err)
	last := out.Blocks[len(out.Blocks)-1]
	assert.Equal(t, "sendNote", last.Payload[turns.PayloadKeyName])
	assert.Equal(t, map[string]any{"text": "2025-03-01T10:00:00.000Z"}, last.Payload[turns.PayloadKeyArgs])

	out, err = e.RunInference(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, "Done: the current time was sent as a note.", turns.FinalAssistantText(out))

	_, err = e.RunInference(context.Background(), out)
	assert.ErrorIs(t, err, ErrScriptExhausted)
	assert.ErrorIs(t, err, engine.ErrUpstream)
	assert.Equal(t, 3, e.Calls())
}

func TestScriptedEngineErrorResponse(t *testing.T) {
	e, err := NewEngine([]Response{{Error: "quota exceeded"}})
	require.NoError(t, err)

	_, err = e.RunInference(context.Background(), &turns.Turn{})
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrUpstream)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- calls:
    - name: act
      args:
        action: recharge
- text: all good
`), 0o644))

	rs, err := LoadScript(path)
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, "act", rs[0].Calls[0].Name)
	assert.Equal(t, "recharge", rs[0].Calls[0].Args["action"])
	assert.Equal(t, "all good", rs[1].Text)
}
