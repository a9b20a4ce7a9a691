package toolloop

import "github.com/pkg/errors"

// Mode selects what happens after tool calls have been executed.
type Mode string

const (
	// ModeFeedback appends tool results and asks the model again.
	ModeFeedback Mode = "feedback"
	// ModeSingle runs one inference, executes the requested calls and stops.
	ModeSingle Mode = "single"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeFeedback:
		return ModeFeedback, nil
	case ModeSingle:
		return ModeSingle, nil
	default:
		return "", errors.Errorf("unknown loop mode %q (expected feedback or single)", s)
	}
}

// LoopConfig contains orchestration-level settings for the tool calling loop.
type LoopConfig struct {
	// MaxIterations caps the number of model inferences per run. Must be > 0.
	MaxIterations int
	Mode          Mode
}

func DefaultLoopConfig() LoopConfig {
	return LoopConfig{MaxIterations: 5, Mode: ModeFeedback}
}

func (c LoopConfig) WithMaxIterations(n int) LoopConfig {
	c.MaxIterations = n
	return c
}

func (c LoopConfig) WithMode(m Mode) LoopConfig {
	c.Mode = m
	return c
}

func (c LoopConfig) Validate() error {
	if c.MaxIterations <= 0 {
		return errors.Errorf("max iterations must be > 0, got %d", c.MaxIterations)
	}
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	return nil
}
