package engine

import (
	"context"

	"github.com/go-go-golems/sentient/pkg/events"
)

// Option is a functional option for configuring engines.
type Option func(*Config) error

// Config holds configuration shared by engines.
type Config struct {
	// EventSinks are published to in the order they were added.
	EventSinks []events.EventSink
}

// NewConfig creates a new configuration with default values.
func NewConfig() *Config {
	return &Config{
		EventSinks: make([]events.EventSink, 0),
	}
}

// WithSink adds an EventSink to the configuration.
func WithSink(sink events.EventSink) Option {
	return func(c *Config) error {
		c.EventSinks = append(c.EventSinks, sink)
		return nil
	}
}

// ApplyOptions applies a set of options to a configuration.
func ApplyOptions(config *Config, options ...Option) error {
	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}
	return nil
}

// Publish sends e to the configured sinks and to the sinks attached to ctx.
func (c *Config) Publish(ctx context.Context, e events.Event) {
	for _, s := range c.EventSinks {
		_ = s.PublishEvent(e)
	}
	events.PublishEventToContext(ctx, e)
}
