package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/sentient/pkg/helpers"
)

// WatermillSink publishes each event as a JSON watermill message on one topic.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

var _ EventSink = (*WatermillSink)(nil)

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{publisher: publisher, topic: topic}
}

func (w *WatermillSink) PublishEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "encode %s event", event.Type())
	}
	if err := w.publisher.Publish(w.topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		return errors.Wrapf(err, "publish to %s", w.topic)
	}
	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type())).Msg("event published")
	return nil
}

// EventRouter is an in-process watermill router over a gochannel pub/sub.
// Sinks from Sink publish into it and handlers added with AddHandler consume.
type EventRouter struct {
	logger     watermill.LoggerAdapter
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
}

type EventRouterOption func(*EventRouter)

// WithVerbose sends watermill's own logs through zerolog.
func WithVerbose(verbose bool) EventRouterOption {
	return func(r *EventRouter) {
		if verbose {
			r.logger = helpers.NewWatermill(log.Logger)
		}
	}
}

func NewEventRouter(options ...EventRouterOption) (*EventRouter, error) {
	r := &EventRouter{logger: watermill.NopLogger{}}
	for _, o := range options {
		o(r)
	}

	ps := gochannel.NewGoChannel(gochannel.Config{BlockPublishUntilSubscriberAck: true}, r.logger)
	r.Publisher, r.Subscriber = ps, ps

	router, err := message.NewRouter(message.RouterConfig{}, r.logger)
	if err != nil {
		return nil, errors.Wrap(err, "create event router")
	}
	r.router = router
	return r, nil
}

func (r *EventRouter) Sink(topic string) *WatermillSink {
	return NewWatermillSink(r.Publisher, topic)
}

func (r *EventRouter) AddHandler(name string, topic string, f func(msg *message.Message) error) {
	r.router.AddNoPublisherHandler(name, topic, r.Subscriber, f)
}

func (r *EventRouter) Running() chan struct{}        { return r.router.Running() }
func (r *EventRouter) Run(ctx context.Context) error { return r.router.Run(ctx) }

// Close shuts down the pub/sub and then the router. Failures are logged only.
func (r *EventRouter) Close() error {
	if err := r.Publisher.Close(); err != nil {
		log.Error().Err(err).Msg("closing event pub/sub")
	}
	if err := r.router.Close(); err != nil {
		log.Error().Err(err).Msg("closing event router")
	}
	return nil
}

// LogEventsHandler logs every decodable event at info level and acks the message.
func LogEventsHandler(msg *message.Message) error {
	defer msg.Ack()

	e, err := NewEventFromJson(msg.Payload)
	if err != nil {
		log.Warn().Err(err).Str("message_id", msg.UUID).Msg("undecodable event")
		return nil
	}

	l := log.Info().Str("event_type", string(e.Type())).Object("meta", e.Metadata())
	switch ev := e.(type) {
	case *EventToolCall:
		l.Str("tool", ev.ToolCall.Name).Str("input", ev.ToolCall.Input)
	case *EventToolCallExecute:
		l.Str("tool", ev.ToolCall.Name).Str("input", ev.ToolCall.Input)
	case *EventToolCallExecutionResult:
		l.Str("tool_call_id", ev.ToolResult.ID).Str("result", ev.ToolResult.Result)
	case *EventFinal:
		l.Str("text", ev.Text)
	case *EventError:
		l.Str("error", ev.ErrorString)
	case *EventInfo:
		l.Str("message", ev.Message)
	case *EventAgentStep:
		l.Int("step", ev.Step).Str("answer", ev.Answer).Bool("truncated", ev.Truncated).Fields(ev.State)
	}
	l.Msg("event")
	return nil
}
