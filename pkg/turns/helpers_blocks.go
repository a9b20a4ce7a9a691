package turns

import "github.com/google/uuid"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

func textBlock(kind BlockKind, role string, text string) Block {
	return Block{
		ID:      uuid.NewString(),
		Kind:    kind,
		Role:    role,
		Payload: map[string]any{PayloadKeyText: text},
	}
}

func NewUserTextBlock(text string) Block { return textBlock(BlockKindUser, RoleUser, text) }

func NewAssistantTextBlock(text string) Block {
	return textBlock(BlockKindLLMText, RoleAssistant, text)
}

func NewSystemTextBlock(text string) Block { return textBlock(BlockKindSystem, RoleSystem, text) }

// NewToolCallBlock records the model asking for name(args). The block ID is
// the call id itself, which the matching tool_use block repeats in its payload.
func NewToolCallBlock(id string, name string, args map[string]any) Block {
	if args == nil {
		args = map[string]any{}
	}
	return Block{
		ID:      id,
		Kind:    BlockKindToolCall,
		Role:    RoleAssistant,
		Payload: map[string]any{PayloadKeyID: id, PayloadKeyName: name, PayloadKeyArgs: args},
	}
}

// NewToolUseBlock answers the call with the given id.
func NewToolUseBlock(id string, result any) Block {
	return toolUse(id, PayloadKeyResult, result)
}

// NewToolUseErrorBlock answers the call with an error message instead of a result.
func NewToolUseErrorBlock(id string, errMsg string) Block {
	return toolUse(id, PayloadKeyError, errMsg)
}

func toolUse(callID string, key string, v any) Block {
	return Block{
		ID:      uuid.NewString(),
		Kind:    BlockKindToolUse,
		Payload: map[string]any{PayloadKeyID: callID, key: v},
	}
}

// WithBlockMetadata returns b with kvs merged into a fresh copy of its metadata.
func WithBlockMetadata(b Block, kvs map[string]any) Block {
	if len(kvs) == 0 {
		return b
	}
	md := cloneMap(b.Metadata)
	if md == nil {
		md = make(map[string]any, len(kvs))
	}
	for k, v := range kvs {
		md[k] = v
	}
	b.Metadata = md
	return b
}
