package turns

// Standard keys used in Block.Payload maps
const (
	PayloadKeyText   = "text"
	PayloadKeyID     = "id"
	PayloadKeyName   = "name"
	PayloadKeyArgs   = "args"
	PayloadKeyResult = "result"
	PayloadKeyError  = "error"
)

// Turn.Metadata keys set by engines
const (
	TurnMetaKeyProvider   = "provider"
	TurnMetaKeyModel      = "model"
	TurnMetaKeyStopReason = "stop_reason"
	TurnMetaKeyUsage      = "usage"
)

// Block.Metadata keys
const (
	// BlockMetaKeySkipped marks a tool_use block recorded for a call that was not executed.
	BlockMetaKeySkipped = "skipped"
)
