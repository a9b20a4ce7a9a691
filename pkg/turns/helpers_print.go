package turns

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// FprintTurn writes a one-line-per-block transcript of t. Tool calls and
// results carry their call id so the pairs can be matched up by eye.
func FprintTurn(w io.Writer, t *Turn) {
	if t == nil {
		return
	}
	for _, b := range t.Blocks {
		fmt.Fprintln(w, transcriptLine(b))
	}
}

func transcriptLine(b Block) string {
	text, _ := b.Payload[PayloadKeyText].(string)
	id, _ := b.Payload[PayloadKeyID].(string)

	switch b.Kind {
	case BlockKindSystem, BlockKindUser, BlockKindLLMText:
		who := b.Role
		if who == "" {
			who = b.Kind.String()
		}
		return fmt.Sprintf("%-9s %s", who+":", oneLine(text))
	case BlockKindToolCall:
		name, _ := b.Payload[PayloadKeyName].(string)
		return fmt.Sprintf("%-9s %s(%s) #%s", "call:", name, compact(b.Payload[PayloadKeyArgs]), id)
	case BlockKindToolUse:
		if e, ok := b.Payload[PayloadKeyError].(string); ok && e != "" {
			suffix := ""
			if skipped, _ := b.Metadata[BlockMetaKeySkipped].(bool); skipped {
				suffix = " (skipped)"
			}
			return fmt.Sprintf("%-9s #%s error: %s%s", "result:", id, e, suffix)
		}
		return fmt.Sprintf("%-9s #%s %s", "result:", id, compact(b.Payload[PayloadKeyResult]))
	default:
		return fmt.Sprintf("%-9s %s", b.Kind.String()+":", oneLine(text))
	}
}

func compact(v any) string {
	if s, ok := v.(string); ok {
		return oneLine(s)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
