package turns

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// BlockKind identifies the role a Block plays inside a Turn.
type BlockKind int

const (
	BlockKindUser BlockKind = iota
	BlockKindLLMText
	BlockKindToolCall
	BlockKindToolUse
	BlockKindSystem
	BlockKindOther
)

func (k BlockKind) String() string {
	switch k {
	case BlockKindUser:
		return "user"
	case BlockKindLLMText:
		return "llm_text"
	case BlockKindToolCall:
		return "tool_call"
	case BlockKindToolUse:
		return "tool_use"
	case BlockKindSystem:
		return "system"
	case BlockKindOther:
		return "other"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseBlockKind is the inverse of BlockKind.String. Unknown strings map to BlockKindOther.
func ParseBlockKind(s string) BlockKind {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "user":
		return BlockKindUser
	case "llm_text":
		return BlockKindLLMText
	case "tool_call":
		return BlockKindToolCall
	case "tool_use":
		return BlockKindToolUse
	case "system":
		return BlockKindSystem
	default:
		return BlockKindOther
	}
}

func (k BlockKind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

func (k *BlockKind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	*k = ParseBlockKind(s)
	return nil
}

// Block represents a single atomic unit within a Turn.
type Block struct {
	ID      string         `yaml:"id,omitempty"`
	Kind    BlockKind      `yaml:"kind"`
	Role    string         `yaml:"role,omitempty"`
	Payload map[string]any `yaml:"payload,omitempty"`
	// Metadata stores arbitrary metadata about the block
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// Turn contains an ordered list of Blocks and associated metadata.
type Turn struct {
	ID     string  `yaml:"id,omitempty"`
	Blocks []Block `yaml:"blocks"`
	// Metadata stores arbitrary metadata about the turn (provider, model, stop reason, usage)
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// Clone returns a copy of t that can be mutated independently.
// Payload and metadata maps are copied one level deep.
func (t *Turn) Clone() *Turn {
	if t == nil {
		return nil
	}
	out := &Turn{
		ID:       t.ID,
		Metadata: cloneMap(t.Metadata),
	}
	if len(t.Blocks) == 0 {
		return out
	}
	out.Blocks = make([]Block, len(t.Blocks))
	for i := range t.Blocks {
		b := t.Blocks[i]
		b.Payload = cloneMap(b.Payload)
		b.Metadata = cloneMap(b.Metadata)
		out.Blocks[i] = b
	}
	return out
}

// SetMetadata sets a turn-level metadata value, allocating the map if needed.
func (t *Turn) SetMetadata(key string, value any) {
	if t == nil {
		return
	}
	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}
	t.Metadata[key] = value
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// AppendBlock appends a Block to the Turn.
func AppendBlock(t *Turn, b Block) {
	if t == nil {
		return
	}
	t.Blocks = append(t.Blocks, b)
}

// AppendBlocks appends multiple Blocks to the Turn in order.
func AppendBlocks(t *Turn, blocks ...Block) {
	for _, b := range blocks {
		AppendBlock(t, b)
	}
}

// FindLastBlocksByKind returns the trailing run of blocks whose kind is one of kinds.
func FindLastBlocksByKind(t Turn, kinds ...BlockKind) []Block {
	lookup := map[BlockKind]bool{}
	for _, k := range kinds {
		lookup[k] = true
	}
	var out []Block
	for i := len(t.Blocks) - 1; i >= 0; i-- {
		if !lookup[t.Blocks[i].Kind] {
			break
		}
		out = append([]Block{t.Blocks[i]}, out...)
	}
	return out
}

// FinalAssistantText returns the text of the latest inference that produced any,
// looking no further back than the last user block. Tool calls and results
// after that text do not hide it.
func FinalAssistantText(t *Turn) string {
	if t == nil {
		return ""
	}
	var parts []string
	for i := len(t.Blocks) - 1; i >= 0; i-- {
		b := t.Blocks[i]
		switch b.Kind {
		case BlockKindLLMText:
			if s, ok := b.Payload[PayloadKeyText].(string); ok && s != "" {
				parts = append([]string{s}, parts...)
			}
			continue
		case BlockKindToolCall:
			continue
		case BlockKindToolUse:
			if len(parts) == 0 {
				continue
			}
		}
		break
	}
	return strings.Join(parts, "\n")
}
