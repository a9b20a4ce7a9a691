package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testContextKey string

type testInput struct {
	Value int `json:"value"`
}

type noteInput struct {
	Text     string `json:"text" jsonschema:"description=The text to send"`
	Priority int    `json:"priority,omitempty"`
}

func TestToolFuncPassesContextAndInput(t *testing.T) {
	key := testContextKey("k")
	def, err := NewToolFromFunc("ctx_input", "test", func(ctx context.Context, in testInput) (int, error) {
		if ctx.Value(key) != "ok" {
			return 0, errors.New("context not passed through")
		}
		return in.Value + 1, nil
	})
	require.NoError(t, err)

	out, err := def.Function.ExecuteWithContext(context.WithValue(context.Background(), key, "ok"), []byte(`{"value":41}`))
	require.NoError(t, err)
	assert.Equal(t, 42, out)

	_, err = def.Function.Execute([]byte(`{"value":41}`))
	assert.EqualError(t, err, "context not passed through")
}

func TestToolFuncContextOnly(t *testing.T) {
	def, err := NewToolFromFunc("ctx_only", "test", func(ctx context.Context) bool { return ctx != nil })
	require.NoError(t, err)
	out, err := def.Function.Execute([]byte(`{"ignored":true}`))
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestNewToolFromFunc_NoArgs(t *testing.T) {
	def, err := NewToolFromFunc("now", "no inputs", func() string { return "x" })
	require.NoError(t, err)
	assert.Equal(t, "object", def.Parameters.Type)

	out, err := def.Function.Execute(nil)
	require.NoError(t, err)
	assert.Equal(t, "x", out)
}

func TestNewToolFromFunc_SchemaFromStruct(t *testing.T) {
	def, err := NewToolFromFunc("note", "send", func(in noteInput) string { return in.Text })
	require.NoError(t, err)

	require.NotNil(t, def.Parameters.Properties)
	text, ok := def.Parameters.Properties.Get("text")
	require.True(t, ok)
	assert.Equal(t, "string", text.Type)
	assert.Equal(t, "The text to send", text.Description)
	assert.Contains(t, def.Parameters.Required, "text")
	assert.NotContains(t, def.Parameters.Required, "priority")
}

func TestNewToolFromFunc_RejectsBadSignatures(t *testing.T) {
	_, err := NewToolFromFunc("x", "", 42)
	assert.Error(t, err)

	_, err = NewToolFromFunc("x", "", func() {})
	assert.Error(t, err)

	_, err = NewToolFromFunc("x", "", func() (int, int) { return 0, 0 })
	assert.Error(t, err)

	_, err = NewToolFromFunc("x", "", func(a, b int) int { return a + b })
	assert.Error(t, err)
}

func TestToolFunc_BadJSONIsAnError(t *testing.T) {
	def, err := NewToolFromFunc("n", "", func(in testInput) int { return in.Value })
	require.NoError(t, err)

	_, err = def.Function.Execute([]byte(`{"value":"nope"}`))
	assert.Error(t, err)
}

func TestValidateArguments(t *testing.T) {
	def, err := NewToolFromFunc("note", "send", func(in noteInput) string { return in.Text })
	require.NoError(t, err)

	assert.NoError(t, ValidateArguments(def, []byte(`{"text":"hi"}`)))
	assert.Error(t, ValidateArguments(def, []byte(`{}`)))
	assert.Error(t, ValidateArguments(def, []byte(`{"text":3}`)))
}
