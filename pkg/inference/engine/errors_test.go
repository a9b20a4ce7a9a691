package engine

import (
	"context"
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestUpstreamErrorMatchesSentinel(t *testing.T) {
	err := pkgerrors.Wrap(NewUpstreamError("generate", context.DeadlineExceeded), "run loop")
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, errors.Is(err, ErrInvalidInput))

	var ue *UpstreamError
	assert.True(t, errors.As(err, &ue))
	assert.Equal(t, "generate", ue.Op)

	assert.Nil(t, NewUpstreamError("noop", nil))
}

func TestInvalidInputError(t *testing.T) {
	err := &InvalidInputError{Reason: "missing prompt"}
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, "invalid input: missing prompt", err.Error())
}
