// Package events carries inference and agent progress to sinks attached to a context.
package events

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventTypeStart EventType = "start"
	EventTypeFinal EventType = "final"
	EventTypeError EventType = "error"
	EventTypeInfo  EventType = "info"

	// EventTypeToolCall is the model asking for a tool.
	EventTypeToolCall EventType = "tool-call"
	// EventTypeToolCallExecute and EventTypeToolCallExecutionResult bracket a local tool run.
	EventTypeToolCallExecute         EventType = "tool-call-execute"
	EventTypeToolCallExecutionResult EventType = "tool-call-execution-result"

	EventTypeAgentStep EventType = "agent-step"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

// EventMetadata travels with every event and every watermill message.
type EventMetadata struct {
	ID         uuid.UUID      `json:"message_id" yaml:"message_id"`
	TurnID     string         `json:"turn_id,omitempty" yaml:"turn_id,omitempty"`
	Model      string         `json:"model,omitempty" yaml:"model,omitempty"`
	DurationMs *int64         `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
	Extra      map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

func NewEventMetadata(turnID string) EventMetadata {
	return EventMetadata{ID: uuid.New(), TurnID: turnID}
}

func (m EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", m.ID.String())
	if m.TurnID != "" {
		e.Str("turn_id", m.TurnID)
	}
	if m.Model != "" {
		e.Str("model", m.Model)
	}
	if m.DurationMs != nil {
		e.Int64("duration_ms", *m.DurationMs)
	}
	if len(m.Extra) > 0 {
		e.Dict("extra", zerolog.Dict().Fields(m.Extra))
	}
}

// EventImpl is embedded by every concrete event.
type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// raw JSON, only set on decoded events
	payload []byte
}

var _ Event = (*EventImpl)(nil)

func header(t EventType, m EventMetadata) EventImpl { return EventImpl{Type_: t, Metadata_: m} }

func (e *EventImpl) Type() EventType         { return e.Type_ }
func (e *EventImpl) Metadata() EventMetadata { return e.Metadata_ }
func (e *EventImpl) Payload() []byte         { return e.payload }
func (e *EventImpl) setPayload(b []byte)     { e.payload = b }

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_)).Object("meta", e.Metadata_)
}

type EventStart struct {
	EventImpl
}

func NewStartEvent(m EventMetadata) *EventStart {
	return &EventStart{header(EventTypeStart, m)}
}

type EventFinal struct {
	EventImpl
	Text string `json:"text"`
}

func NewFinalEvent(m EventMetadata, text string) *EventFinal {
	return &EventFinal{EventImpl: header(EventTypeFinal, m), Text: text}
}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(m EventMetadata, err error) *EventError {
	ev := &EventError{EventImpl: header(EventTypeError, m)}
	if err != nil {
		ev.ErrorString = err.Error()
	}
	return ev
}

type EventInfo struct {
	EventImpl
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func NewInfoEvent(m EventMetadata, message string, data map[string]any) *EventInfo {
	return &EventInfo{EventImpl: header(EventTypeInfo, m), Message: message, Data: data}
}

type ToolCall struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Input string `json:"input"`
}

type ToolResult struct {
	ID     string `json:"id"`
	Result string `json:"result"`
}

type EventToolCall struct {
	EventImpl
	ToolCall ToolCall `json:"tool_call"`
}

func NewToolCallEvent(m EventMetadata, call ToolCall) *EventToolCall {
	return &EventToolCall{EventImpl: header(EventTypeToolCall, m), ToolCall: call}
}

type EventToolCallExecute struct {
	EventImpl
	ToolCall ToolCall `json:"tool_call"`
}

func NewToolCallExecuteEvent(m EventMetadata, call ToolCall) *EventToolCallExecute {
	return &EventToolCallExecute{EventImpl: header(EventTypeToolCallExecute, m), ToolCall: call}
}

type EventToolCallExecutionResult struct {
	EventImpl
	ToolResult ToolResult `json:"tool_result"`
}

func NewToolCallExecutionResultEvent(m EventMetadata, result ToolResult) *EventToolCallExecutionResult {
	return &EventToolCallExecutionResult{EventImpl: header(EventTypeToolCallExecutionResult, m), ToolResult: result}
}

// EventAgentStep is published after each completed agent step.
type EventAgentStep struct {
	EventImpl
	Step      int            `json:"step"`
	Answer    string         `json:"answer,omitempty"`
	Truncated bool           `json:"truncated,omitempty"`
	State     map[string]any `json:"state,omitempty"`
}

func NewAgentStepEvent(m EventMetadata, step int, answer string, state map[string]any) *EventAgentStep {
	return &EventAgentStep{EventImpl: header(EventTypeAgentStep, m), Step: step, Answer: answer, State: state}
}

var decoders = map[EventType]func() Event{
	EventTypeStart:                   func() Event { return &EventStart{} },
	EventTypeFinal:                   func() Event { return &EventFinal{} },
	EventTypeError:                   func() Event { return &EventError{} },
	EventTypeInfo:                    func() Event { return &EventInfo{} },
	EventTypeToolCall:                func() Event { return &EventToolCall{} },
	EventTypeToolCallExecute:         func() Event { return &EventToolCallExecute{} },
	EventTypeToolCallExecutionResult: func() Event { return &EventToolCallExecutionResult{} },
	EventTypeAgentStep:               func() Event { return &EventAgentStep{} },
}

// NewEventFromJson decodes an event serialized with json.Marshal. The raw
// bytes stay available through Payload.
func NewEventFromJson(b []byte) (Event, error) {
	var hdr struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(b, &hdr); err != nil {
		return nil, errors.Wrap(err, "decode event header")
	}
	mk, ok := decoders[hdr.Type]
	if !ok {
		return nil, errors.Errorf("unknown event type %q", hdr.Type)
	}
	ev := mk()
	if err := json.Unmarshal(b, ev); err != nil {
		return nil, errors.Wrapf(err, "decode %s event", hdr.Type)
	}
	if p, ok := ev.(interface{ setPayload([]byte) }); ok {
		p.setPayload(b)
	}
	return ev, nil
}
