package events

import (
	"context"

	"github.com/rs/zerolog/log"
)

// EventSink receives published events: a watermill topic, a test recorder, and so on.
type EventSink interface {
	PublishEvent(event Event) error
}

type sinksKey struct{}

// WithEventSinks returns ctx with sinks added after any sinks ctx already carries.
func WithEventSinks(ctx context.Context, sinks ...EventSink) context.Context {
	if len(sinks) == 0 {
		return ctx
	}
	prev := GetEventSinks(ctx)
	all := make([]EventSink, 0, len(prev)+len(sinks))
	all = append(append(all, prev...), sinks...)
	return context.WithValue(ctx, sinksKey{}, all)
}

func GetEventSinks(ctx context.Context) []EventSink {
	if ctx == nil {
		return nil
	}
	sinks, _ := ctx.Value(sinksKey{}).([]EventSink)
	return sinks
}

// PublishEventToContext hands event to every sink on ctx. A failing sink is
// logged and does not stop delivery to the others.
func PublishEventToContext(ctx context.Context, event Event) {
	for _, s := range GetEventSinks(ctx) {
		if err := s.PublishEvent(event); err != nil {
			log.Warn().Err(err).Str("event_type", string(event.Type())).Msg("event sink failed")
		}
	}
}
