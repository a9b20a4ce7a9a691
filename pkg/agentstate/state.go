// Package agentstate holds the simulated sensor record of the toy agent.
package agentstate

import (
	"math/rand"
	"time"

	"github.com/huandu/go-clone"
)

const (
	MaxEnergy          = 100.0
	DefaultEnergy      = 100.0
	DefaultTemperature = 22.0
	DefaultMood        = "curious"

	PerceiveCost   = 1.0
	MaxDrift       = 1.0
	HeatStep       = 1.5
	RechargeAmount = 30.0
)

// Action is one of the closed set of things the agent can do.
type Action string

const (
	ActionIdle     Action = "idle"
	ActionSeekHeat Action = "seek_heat"
	ActionSeekCool Action = "seek_cool"
	ActionRecharge Action = "recharge"
)

// Actions lists every valid Action, in declaration order.
var Actions = []Action{ActionIdle, ActionSeekHeat, ActionSeekCool, ActionRecharge}

// Note is a timestamped memory entry.
type Note struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// State is owned by a single agent run and passed explicitly to the tools
// that mutate it. It is not safe for concurrent use.
type State struct {
	Energy      float64   `json:"energy"`
	Temperature float64   `json:"temperature"`
	Step        int       `json:"step"`
	Mood        string    `json:"mood,omitempty"`
	Memory      []Note    `json:"memory,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

func New() *State {
	return &State{
		Energy:      DefaultEnergy,
		Temperature: DefaultTemperature,
		Mood:        DefaultMood,
	}
}

// Perceive reads the simulated sensors: temperature drifts by a uniform amount
// in [-MaxDrift, MaxDrift) and energy drops by PerceiveCost. Energy is not clamped.
func (s *State) Perceive(rng *rand.Rand) {
	var r float64
	if rng != nil {
		r = rng.Float64()
	} else {
		r = rand.Float64()
	}
	s.Temperature += (r - 0.5) * 2 * MaxDrift
	s.Energy -= PerceiveCost
}

// Act applies a fixed delta for action and reports whether the action was known.
// Unknown actions leave the state untouched.
func (s *State) Act(action Action) bool {
	switch action {
	case ActionIdle:
	case ActionSeekHeat:
		s.Temperature += HeatStep
	case ActionSeekCool:
		s.Temperature -= HeatStep
	case ActionRecharge:
		s.Energy = min(MaxEnergy, s.Energy+RechargeAmount)
	default:
		return false
	}
	return true
}

// Advance counts one agent step.
func (s *State) Advance() {
	s.Step++
}

func (s *State) Remember(at time.Time, text string) {
	s.Memory = append(s.Memory, Note{At: at.UTC(), Text: text})
}

// Snapshot returns a deep copy that does not alias s.
func (s *State) Snapshot() *State {
	return clone.Clone(s).(*State)
}

// ParseAction returns the Action for s, or false when it is not a known action.
func ParseAction(s string) (Action, bool) {
	for _, a := range Actions {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}
