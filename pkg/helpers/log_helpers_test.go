package helpers

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestWatermillAdapterWith(t *testing.T) {
	var buf bytes.Buffer
	a := NewWatermill(zerolog.New(&buf).Level(zerolog.TraceLevel))
	a.With(map[string]interface{}{"topic": "events"}).Debug("subscribed", nil)
	assert.Contains(t, buf.String(), `"topic":"events"`)
	assert.Contains(t, buf.String(), "subscribed")
}

func TestWatermillAdapterLevels(t *testing.T) {
	var buf bytes.Buffer
	a := NewWatermill(zerolog.New(&buf).Level(zerolog.InfoLevel))

	a.Info("chatty", nil)
	assert.Empty(t, buf.String(), "info is logged at debug level")

	a.Error("publish failed", errors.New("boom"), map[string]interface{}{"topic": "events"})
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), "boom")
	assert.Contains(t, buf.String(), "publish failed")
}
