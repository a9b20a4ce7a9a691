package engine

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUpstream marks a failure of an external collaborator (model API, webhook).
	ErrUpstream = errors.New("upstream failure")
	// ErrInvalidInput marks a malformed request (e.g. missing prompt).
	ErrInvalidInput = errors.New("invalid input")
)

// UpstreamError wraps the error returned by a remote call.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return ErrUpstream.Error()
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrUpstream.Error(), e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", ErrUpstream.Error(), e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// NewUpstreamError returns nil when err is nil.
func NewUpstreamError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Op: op, Err: err}
}

// InvalidInputError is returned when a caller provides unusable input.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidInput.Error(), e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}
