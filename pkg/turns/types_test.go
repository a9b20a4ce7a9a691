package turns

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneDoesNotAliasPayloads(t *testing.T) {
	orig := &Turn{ID: "a"}
	AppendBlock(orig, NewUserTextBlock("hi"))

	cp := orig.Clone()
	cp.Blocks[0].Payload[PayloadKeyText] = "changed"
	AppendBlock(cp, NewAssistantTextBlock("extra"))

	assert.Equal(t, "hi", orig.Blocks[0].Payload[PayloadKeyText])
	assert.Len(t, orig.Blocks, 1)
}

func TestFinalAssistantTextOnlyConsidersTrailingOutput(t *testing.T) {
	turn := &Turn{}
	AppendBlocks(turn,
		NewUserTextBlock("q"),
		NewAssistantTextBlock("thinking"),
		NewToolCallBlock("c1", "getTime", nil),
		NewToolUseBlock("c1", "now"),
		NewAssistantTextBlock("answer"),
	)
	assert.Equal(t, "answer", FinalAssistantText(turn))
	assert.Equal(t, "", FinalAssistantText(nil))
}

func TestFinalAssistantTextSurvivesTrailingToolBlocks(t *testing.T) {
	turn := &Turn{}
	AppendBlocks(turn,
		NewUserTextBlock("q"),
		NewAssistantTextBlock("It is noon, sending it."),
		NewToolCallBlock("c1", "getTime", nil),
		NewToolUseBlock("c1", "noon"),
	)
	assert.Equal(t, "It is noon, sending it.", FinalAssistantText(turn))

	// an inference with calls only leaves the previous text as the answer
	AppendBlocks(turn,
		NewToolCallBlock("c2", "sendNote", map[string]any{"text": "noon"}),
		NewToolUseBlock("c2", "sent"),
	)
	assert.Equal(t, "It is noon, sending it.", FinalAssistantText(turn))

	tail := FindLastBlocksByKind(*turn, BlockKindToolCall, BlockKindToolUse)
	assert.Len(t, tail, 4)
}

func TestFinalAssistantTextStopsAtUserBlock(t *testing.T) {
	turn := &Turn{}
	AppendBlocks(turn,
		NewUserTextBlock("first"),
		NewAssistantTextBlock("old answer"),
		NewUserTextBlock("second"),
		NewToolCallBlock("c1", "getTime", nil),
		NewToolUseBlock("c1", "noon"),
	)
	assert.Equal(t, "", FinalAssistantText(turn))
}

func TestParseBlockKindRoundTrip(t *testing.T) {
	for _, k := range []BlockKind{BlockKindUser, BlockKindLLMText, BlockKindToolCall, BlockKindToolUse, BlockKindSystem, BlockKindOther} {
		assert.Equal(t, k, ParseBlockKind(k.String()))
	}
	assert.Equal(t, BlockKindOther, ParseBlockKind("reasoning"))
}

func TestFprintTurn(t *testing.T) {
	turn := &Turn{}
	AppendBlocks(turn,
		NewUserTextBlock("hello\n  there"),
		NewToolCallBlock("c1", "sendNote", map[string]any{"text": "hi"}),
		WithBlockMetadata(NewToolUseErrorBlock("c1", "tool not found: nope"), map[string]any{BlockMetaKeySkipped: true}),
		NewToolUseBlock("c2", "2024-01-01T00:00:00.000Z"),
	)
	var buf bytes.Buffer
	FprintTurn(&buf, turn)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "user:     hello there", lines[0])
	assert.Equal(t, `call:     sendNote({"text":"hi"}) #c1`, lines[1])
	assert.Equal(t, "result:   #c1 error: tool not found: nope (skipped)", lines[2])
	assert.Equal(t, "result:   #c2 2024-01-01T00:00:00.000Z", lines[3])
}
