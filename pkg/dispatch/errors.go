package dispatch

import (
	"errors"
	"fmt"

	"omniagent/pkg/proto"
)

var (
	// ErrUnsupportedAgent is returned for agent kinds without a dispatch contract.
	ErrUnsupportedAgent = errors.New("agent kind is not supported")

	// ErrImageExtraction is returned when an image request succeeds without an image part.
	ErrImageExtraction = errors.New("model response contained no image")
)

// AgentExecutionError reports a failed dispatch. Err is the adapter error,
// ErrImageExtraction, ErrUnsupportedAgent or a content validation failure.
type AgentExecutionError struct {
	Kind proto.AgentKind
	Err  error
}

func (e *AgentExecutionError) Error() string {
	return fmt.Sprintf("agent %s execution failed: %v", e.Kind, e.Err)
}

func (e *AgentExecutionError) Unwrap() error {
	return e.Err
}

func execErr(kind proto.AgentKind, err error) *AgentExecutionError {
	return &AgentExecutionError{Kind: kind, Err: err}
}
