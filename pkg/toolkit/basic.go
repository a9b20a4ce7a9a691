// Package toolkit registers the built-in tools the agent can call.
package toolkit

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/sentient/pkg/inference/tools"
	"github.com/go-go-golems/sentient/pkg/notify"
)

const (
	ToolGetTime  = "getTime"
	ToolSendNote = "sendNote"
	ToolPerceive = "perceive"
	ToolAct      = "act"
	ToolRemember = "remember"

	// TimeFormat matches JavaScript's Date.prototype.toISOString.
	TimeFormat = "2006-01-02T15:04:05.000Z"

	NoteSent   = "sent"
	NoteFailed = "failed"
)

type Options struct {
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Notifier may be nil, in which case sendNote logs and reports "failed".
	Notifier notify.Notifier
	// Rand drives perceive's temperature drift.
	Rand *rand.Rand
}

func (o Options) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}

type SendNoteInput struct {
	Text string `json:"text" jsonschema:"description=The exact text of the note to push"`
}

// GetTime returns the current UTC time in ISO-8601 form with millisecond precision.
func GetTime(clock func() time.Time) string {
	if clock == nil {
		clock = time.Now
	}
	return clock().UTC().Format(TimeFormat)
}

// SendNote posts text through n. Delivery failures are logged and reported as "failed", never returned.
func SendNote(ctx context.Context, n notify.Notifier, text string) string {
	logger := log.With().Logger()
	if call, ok := tools.CurrentToolCallFromContext(ctx); ok {
		logger = logger.With().Str("tool_call_id", call.ID).Logger()
	}
	if n == nil {
		logger.Warn().Err(notify.ErrMissingTopic).Msg("sendNote: no notifier configured")
		return NoteFailed
	}
	if err := n.Send(ctx, text); err != nil {
		logger.Warn().Err(err).Msg("sendNote: delivery failed")
		return NoteFailed
	}
	logger.Debug().Int("length", len(text)).Msg("sendNote: delivered")
	return NoteSent
}

// RegisterBasicTools registers getTime and sendNote.
func RegisterBasicTools(reg tools.ToolRegistry, opts Options) error {
	getTime, err := tools.NewToolFromFunc(
		ToolGetTime,
		"Return current UTC time as ISO string",
		func() string { return GetTime(opts.now) },
	)
	if err != nil {
		return errors.Wrap(err, "build getTime")
	}
	if err := reg.RegisterTool(ToolGetTime, *getTime); err != nil {
		return err
	}

	sendNote, err := tools.NewToolFromFunc(
		ToolSendNote,
		"Push a message via ntfy.sh",
		func(ctx context.Context, in SendNoteInput) string {
			return SendNote(ctx, opts.Notifier, in.Text)
		},
	)
	if err != nil {
		return errors.Wrap(err, "build sendNote")
	}
	return reg.RegisterTool(ToolSendNote, *sendNote)
}
