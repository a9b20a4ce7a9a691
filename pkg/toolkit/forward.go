package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/sentient/pkg/inference/tools"
)

// ForwardingExecutor runs tool calls like the base executor and, after a
// successful call to a source tool, passes its result as {"text": result}
// to the configured target tool. Forwarding failures are only logged.
type ForwardingExecutor struct {
	*tools.BaseToolExecutor
	forwards map[string]string
}

func NewForwardingExecutor(cfg tools.ToolConfig, forwards map[string]string) *ForwardingExecutor {
	base := tools.NewBaseToolExecutor(cfg)
	f := &ForwardingExecutor{BaseToolExecutor: base, forwards: forwards}
	base.ToolExecutorExt = f
	return f
}

var _ tools.ToolExecutor = (*ForwardingExecutor)(nil)

func (f *ForwardingExecutor) AfterExecute(ctx context.Context, call tools.ToolCall, result *tools.ToolResult, registry tools.ToolRegistry) {
	target, ok := f.forwards[call.Name]
	if !ok || result == nil || result.Error != "" {
		return
	}

	def, err := registry.GetTool(target)
	if err != nil {
		log.Warn().Err(err).Str("from", call.Name).Str("to", target).Msg("forward target missing")
		return
	}

	text, ok := result.Result.(string)
	if !ok {
		b, err := json.Marshal(result.Result)
		if err != nil {
			text = fmt.Sprint(result.Result)
		} else {
			text = string(b)
		}
	}
	args, _ := json.Marshal(map[string]any{"text": text})

	out, err := def.Function.ExecuteWithContext(ctx, args)
	if err != nil {
		log.Warn().Err(err).Str("from", call.Name).Str("to", target).Msg("forwarded call failed")
		return
	}
	log.Info().Str("from", call.Name).Str("to", target).Interface("result", out).Msg("forwarded tool result")
}

// ParseForwards parses "from=to" pairs such as "getTime=sendNote".
func ParseForwards(specs []string) (map[string]string, error) {
	out := map[string]string{}
	for _, s := range specs {
		from, to, ok := strings.Cut(s, "=")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, errors.Errorf("invalid forward %q (expected from=to)", s)
		}
		out[from] = to
	}
	return out, nil
}
