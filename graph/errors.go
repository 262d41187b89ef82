package graph

import (
	"errors"
	"fmt"
)

// Error codes carried by EngineError.
const (
	// CodeInvalidGraph marks a graph definition rejected by Compile.
	CodeInvalidGraph = "INVALID_GRAPH"

	// CodeNodeError marks a node handler failure. The super-step is not merged.
	CodeNodeError = "NODE_ERROR"

	// CodeNodeTimeout marks a node that exceeded its timeout.
	CodeNodeTimeout = "NODE_TIMEOUT"

	// CodeStoreError marks a checkpoint load or save failure.
	CodeStoreError = "STORE_ERROR"

	// CodeRoutingError marks a router that returned an undeclared target.
	CodeRoutingError = "ROUTING_ERROR"

	// CodeMaxStepsExceeded marks a run that hit Options.MaxSteps.
	CodeMaxStepsExceeded = "MAX_STEPS_EXCEEDED"

	// CodeStateError marks a state snapshot that could not be copied.
	CodeStateError = "STATE_ERROR"

	// CodeThreadNotFound marks a resume against a thread with no checkpoint.
	CodeThreadNotFound = "THREAD_NOT_FOUND"
)

// ErrMaxStepsExceeded indicates that the graph execution reached the maximum
// allowed step count without completing.
var ErrMaxStepsExceeded = errors.New("execution exceeded maximum steps limit")

// ErrStreamClosed is returned by Stream.Wait when the consumer closed the
// stream before the run reached END. Everything up to the last completed
// super-step is checkpointed.
var ErrStreamClosed = errors.New("stream closed by consumer")

// EngineError represents an error from Engine operations.
type EngineError struct {
	// Message is the human-readable error description.
	Message string

	// Code is one of the Code* constants.
	Code string

	// NodeID is the node involved, when there is one.
	NodeID string

	// Cause is the wrapped error, if any.
	Cause error
}

func (e *EngineError) Error() string {
	msg := e.Message
	if e.NodeID != "" {
		msg = fmt.Sprintf("%s (node %s)", msg, e.NodeID)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Code != "" {
		return e.Code + ": " + msg
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match sentinel errors against engine codes.
func (e *EngineError) Is(target error) bool {
	return target == ErrMaxStepsExceeded && e.Code == CodeMaxStepsExceeded
}

// ErrorCode extracts the EngineError code from err, or "" when err does not
// wrap an EngineError.
func ErrorCode(err error) string {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}
