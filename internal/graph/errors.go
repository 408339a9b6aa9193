package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// Sentinel errors. Callers match them with errors.Is; the typed errors below
// carry the details.
var (
	ErrInvalidReference   = errors.New("invalid reference")
	ErrCyclicEdgeRejected = errors.New("cyclic edge rejected")
	ErrCyclicGraph        = errors.New("cyclic graph")
)

// InvalidReferenceError reports a dependency edge naming a task that is not
// part of the task set.
type InvalidReferenceError struct {
	Edge   model.EdgeKey
	TaskID string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid reference: dependency %s -> %s names unknown task %q",
		e.Edge.PrerequisiteID, e.Edge.DependentID, e.TaskID)
}

func (e *InvalidReferenceError) Unwrap() error { return ErrInvalidReference }

// CyclicEdgeError reports a proposed edge that would close a cycle. Cycle is
// the closed path, starting and ending at the prerequisite.
type CyclicEdgeError struct {
	PrerequisiteID string
	DependentID    string
	Cycle          []string
}

func (e *CyclicEdgeError) Error() string {
	msg := fmt.Sprintf("cyclic edge rejected: %s -> %s would create a cycle", e.PrerequisiteID, e.DependentID)
	if len(e.Cycle) > 0 {
		msg += " (" + strings.Join(e.Cycle, " -> ") + ")"
	}
	return msg
}

func (e *CyclicEdgeError) Unwrap() error { return ErrCyclicEdgeRejected }

// CyclicGraphError reports that an analysis requiring a DAG was run on a
// graph containing cycles. Unresolved lists the tasks that could not be
// ordered.
type CyclicGraphError struct {
	Unresolved []string
}

func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("cyclic graph: %d tasks could not be ordered (%s)",
		len(e.Unresolved), strings.Join(e.Unresolved, ", "))
}

func (e *CyclicGraphError) Unwrap() error { return ErrCyclicGraph }
