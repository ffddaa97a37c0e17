package extraction

import (
	"errors"
	"fmt"
)

var (
	ErrTransport          = errors.New("model call failed")
	ErrNoToolCall         = errors.New("model response contains no tool call")
	ErrFreeText           = errors.New("model answered with free text instead of a tool call")
	ErrMultipleToolCalls  = errors.New("model response contains more than one tool call")
	ErrUndeclaredTool     = errors.New("model invoked an undeclared tool")
	ErrMalformedArguments = errors.New("tool arguments do not match the declared schema")
)

// ProtocolError is returned when an attempt ends in StateFailed.
type ProtocolError struct {
	State  State // state the attempt failed from
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("extraction failed in state %s: %v", e.State, e.Err)
	}
	return fmt.Sprintf("extraction failed in state %s: %v: %s", e.State, e.Err, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
