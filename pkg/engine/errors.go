package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrTriggerMismatch marks a flow whose trigger does not accept an event.
	ErrTriggerMismatch = errors.New("trigger mismatch")
	// ErrDuplicateSuppressed marks a traversal skipped because the same
	// flow already ran, or is running, for the subject.
	ErrDuplicateSuppressed = errors.New("duplicate traversal suppressed")
	// ErrTraversalCancelled is recorded when a traversal's context ends.
	ErrTraversalCancelled = errors.New("traversal cancelled")
	// ErrEngineClosed is returned for events submitted after Close.
	ErrEngineClosed = errors.New("engine closed")
	// ErrMissingSubject is returned for events with neither a subject id
	// nor a destination address.
	ErrMissingSubject = errors.New("event has no subject id or destination address")
)

// NodeExecutionError wraps a failure raised while executing a node.
type NodeExecutionError struct {
	FlowID string
	NodeID string
	Err    error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s of flow %s failed: %v", e.NodeID, e.FlowID, e.Err)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}
