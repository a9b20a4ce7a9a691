package toolkit

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/sentient/pkg/agentstate"
	"github.com/go-go-golems/sentient/pkg/inference/tools"
)

type ActInput struct {
	Action string `json:"action" jsonschema:"enum=idle,enum=seek_heat,enum=seek_cool,enum=recharge"`
}

type RememberInput struct {
	Note string `json:"note" jsonschema:"description=Short note to keep in memory"`
}

// RegisterAgentTools registers perceive, act and remember, all bound to state.
// The handlers mutate state in place and return a snapshot.
func RegisterAgentTools(reg tools.ToolRegistry, state *agentstate.State, opts Options) error {
	if state == nil {
		return errors.New("agent tools need a state")
	}

	defs := []struct {
		name, desc string
		fn         interface{}
	}{
		{
			ToolPerceive, "Read current sensor values (energy, temperature).",
			func() *agentstate.State {
				state.Perceive(opts.Rand)
				state.UpdatedAt = opts.now().UTC()
				return state.Snapshot()
			},
		},
		{
			ToolAct, "Perform an action.",
			func(in ActInput) *agentstate.State {
				action, ok := agentstate.ParseAction(in.Action)
				if !ok || !state.Act(action) {
					log.Warn().Str("action", in.Action).Msg("act: ignoring unknown action")
					return state.Snapshot()
				}
				state.UpdatedAt = opts.now().UTC()
				return state.Snapshot()
			},
		},
		{
			ToolRemember, "Store a short note in the agent's memory.",
			func(in RememberInput) *agentstate.State {
				state.Remember(opts.now(), in.Note)
				state.UpdatedAt = opts.now().UTC()
				return state.Snapshot()
			},
		},
	}

	for _, d := range defs {
		def, err := tools.NewToolFromFunc(d.name, d.desc, d.fn)
		if err != nil {
			return errors.Wrapf(err, "build %s", d.name)
		}
		if err := reg.RegisterTool(d.name, *def); err != nil {
			return err
		}
	}
	return nil
}
