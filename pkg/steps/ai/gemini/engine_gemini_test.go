package gemini

import (
	"testing"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/sentient/pkg/inference/tools"
	"github.com/go-go-golems/sentient/pkg/turns"
)

func TestConvertJSONSchemaToGenAI_ObjectType(t *testing.T) {
	s := &jsonschema.Schema{Type: "object"}
	gs := convertJSONSchemaToGenAI(s)
	if gs == nil {
		t.Fatalf("convertJSONSchemaToGenAI returned nil")
	}
	if gs.Type != genai.TypeObject {
		t.Fatalf("expected TypeObject, got %v", gs.Type)
	}
}

func TestConvertJSONSchemaToGenAI_ScalarTypes(t *testing.T) {
	cases := []struct {
		name     string
		inType   string
		expected genai.Type
	}{
		{"string", "string", genai.TypeString},
		{"number", "number", genai.TypeNumber},
		{"integer", "integer", genai.TypeInteger},
		{"boolean", "boolean", genai.TypeBoolean},
		{"array", "array", genai.TypeArray},
		{"object", "object", genai.TypeObject},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gs := convertJSONSchemaToGenAI(&jsonschema.Schema{Type: tc.inType})
			if gs == nil {
				t.Fatalf("nil result for %s", tc.inType)
			}
			if gs.Type != tc.expected {
				t.Fatalf("expected %v, got %v", tc.expected, gs.Type)
			}
		})
	}
}

type actInput struct {
	Action string   `json:"action" jsonschema:"enum=idle,enum=seek_heat,enum=seek_cool,enum=recharge"`
	Tags   []string `json:"tags,omitempty"`
}

func TestFunctionDeclarationsFromRegistry(t *testing.T) {
	act, err := tools.NewToolFromFunc("act", "Take an action", func(in actInput) string { return in.Action })
	require.NoError(t, err)
	now, err := tools.NewToolFromFunc("getTime", "Current time", func() string { return "" })
	require.NoError(t, err)

	decls := functionDeclarations([]tools.ToolDefinition{*act, *now})
	require.Len(t, decls, 2)

	assert.Equal(t, "act", decls[0].Name)
	require.NotNil(t, decls[0].Parameters)
	action := decls[0].Parameters.Properties["action"]
	require.NotNil(t, action)
	assert.Equal(t, genai.TypeString, action.Type)
	assert.Equal(t, []string{"idle", "seek_heat", "seek_cool", "recharge"}, action.Enum)
	assert.Equal(t, []string{"action"}, decls[0].Parameters.Required)
	assert.Equal(t, genai.TypeArray, decls[0].Parameters.Properties["tags"].Type)
	assert.Equal(t, genai.TypeString, decls[0].Parameters.Properties["tags"].Items.Type)

	assert.Equal(t, "getTime", decls[1].Name)
	assert.Nil(t, decls[1].Parameters)
}

func TestBuildContents(t *testing.T) {
	turn := &turns.Turn{}
	turns.AppendBlocks(turn,
		turns.NewSystemTextBlock("be brief"),
		turns.NewUserTextBlock("what time is it?"),
		turns.NewToolCallBlock("c1", "getTime", nil),
		turns.NewToolUseBlock("c1", "2025-01-01T00:00:00.000Z"),
		turns.NewToolCallBlock("c2", "nope", nil),
		turns.NewToolUseErrorBlock("c2", "tool not found: nope"),
	)

	system, contents := buildContents(turn)
	require.NotNil(t, system)
	assert.Equal(t, []genai.Part{genai.Text("be brief")}, system.Parts)

	require.Len(t, contents, 5)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, genai.FunctionCall{Name: "getTime", Args: map[string]any{}}, contents[1].Parts[0])
	assert.Equal(t, "user", contents[2].Role)
	assert.Equal(t, genai.FunctionResponse{
		Name:     "getTime",
		Response: map[string]any{"result": "2025-01-01T00:00:00.000Z"},
	}, contents[2].Parts[0])
	assert.Equal(t, genai.FunctionResponse{
		Name:     "nope",
		Response: map[string]any{"error": "tool not found: nope"},
	}, contents[4].Parts[0])
}

func TestAppendResponse(t *testing.T) {
	turn := &turns.Turn{}
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{Role: "model", Parts: []genai.Part{
				genai.Text("Sending "),
				genai.Text("now."),
				genai.FunctionCall{Name: "sendNote", Args: map[string]any{"text": "hi"}},
			}},
		}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 12, CandidatesTokenCount: 3},
	}

	text, calls := appendResponse(turn, resp)
	assert.Equal(t, "Sending now.", text)
	require.Len(t, calls, 1)
	require.Len(t, turn.Blocks, 2)
	assert.Equal(t, turns.BlockKindLLMText, turn.Blocks[0].Kind)
	assert.Equal(t, turns.BlockKindToolCall, turn.Blocks[1].Kind)
	assert.Equal(t, "sendNote", turn.Blocks[1].Payload[turns.PayloadKeyName])
	assert.NotEmpty(t, turn.Blocks[1].Payload[turns.PayloadKeyID])
	assert.Equal(t, map[string]any{"input_tokens": 12, "output_tokens": 3}, turn.Metadata[turns.TurnMetaKeyUsage])
	assert.NotEmpty(t, turn.Metadata[turns.TurnMetaKeyStopReason])
}

func TestNewGeminiEngineRequiresKey(t *testing.T) {
	_, err := NewGeminiEngine(Settings{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewGeminiEngine(Settings{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	assert.Error(t, err)

	e, err := NewGeminiEngine(Settings{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, e.Model())
}
