// Package toolblocks converts between tool_call/tool_use blocks and plain call records.
package toolblocks

import (
	"encoding/json"

	"github.com/go-go-golems/sentient/pkg/turns"
)

type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

type ToolResult struct {
	ID      string
	Content any
	Error   string
	Skipped bool
}

// ExtractPendingToolCalls returns, in block order, the tool_call blocks that
// no tool_use block answers yet. Calls without an id are ignored.
func ExtractPendingToolCalls(t *turns.Turn) []ToolCall {
	if t == nil {
		return nil
	}
	answered := map[string]struct{}{}
	for _, b := range t.Blocks {
		if id := callID(b); b.Kind == turns.BlockKindToolUse && id != "" {
			answered[id] = struct{}{}
		}
	}

	var pending []ToolCall
	for _, b := range t.Blocks {
		if b.Kind != turns.BlockKindToolCall {
			continue
		}
		id := callID(b)
		if _, done := answered[id]; id == "" || done {
			continue
		}
		name, _ := b.Payload[turns.PayloadKeyName].(string)
		pending = append(pending, ToolCall{ID: id, Name: name, Arguments: argsMap(b.Payload[turns.PayloadKeyArgs])})
	}
	return pending
}

func callID(b turns.Block) string {
	id, _ := b.Payload[turns.PayloadKeyID].(string)
	return id
}

// argsMap accepts arguments as a map, a JSON string or anything JSON-encodable.
// Undecodable arguments become an empty map.
func argsMap(raw any) map[string]any {
	out := map[string]any{}
	switch v := raw.(type) {
	case nil:
		return out
	case map[string]any:
		return v
	case string:
		_ = json.Unmarshal([]byte(v), &out)
	case json.RawMessage:
		_ = json.Unmarshal(v, &out)
	default:
		if b, err := json.Marshal(v); err == nil {
			_ = json.Unmarshal(b, &out)
		}
	}
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// AppendToolResultsBlocks adds one tool_use block per result. Skipped calls are flagged in the block metadata.
func AppendToolResultsBlocks(t *turns.Turn, results []ToolResult) {
	for _, r := range results {
		b := turns.NewToolUseBlock(r.ID, r.Content)
		if r.Error != "" {
			b = turns.NewToolUseErrorBlock(r.ID, r.Error)
		}
		if r.Skipped {
			b = turns.WithBlockMetadata(b, map[string]any{turns.BlockMetaKeySkipped: true})
		}
		turns.AppendBlock(t, b)
	}
}
