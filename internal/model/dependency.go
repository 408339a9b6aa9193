package model

import "time"

// DependencyKind describes how the prerequisite constrains the dependent.
type DependencyKind string

const (
	KindFinishToStart  DependencyKind = "finish_to_start"
	KindStartToStart   DependencyKind = "start_to_start"
	KindFinishToFinish DependencyKind = "finish_to_finish"
	KindStartToFinish  DependencyKind = "start_to_finish"
)

// String returns the string representation of the dependency kind.
func (k DependencyKind) String() string {
	return string(k)
}

// IsValid checks whether the kind is a known value.
func (k DependencyKind) IsValid() bool {
	switch k {
	case KindFinishToStart, KindStartToStart, KindFinishToFinish, KindStartToFinish:
		return true
	}
	return false
}

// OrDefault returns k, or finish_to_start when k is empty.
func (k DependencyKind) OrDefault() DependencyKind {
	if k == "" {
		return KindFinishToStart
	}
	return k
}

// Dependency is a directed edge: PrerequisiteID must precede DependentID.
type Dependency struct {
	PrerequisiteID string         `json:"prerequisite_id"`
	DependentID    string         `json:"dependent_id"`
	Kind           DependencyKind `json:"kind"`
	CreatedAt      time.Time      `json:"created_at"`
	CreatedBy      string         `json:"created_by,omitempty"`
}

// EdgeKey identifies a dependency edge. Two edges with the same key are the
// same edge.
type EdgeKey struct {
	PrerequisiteID string
	DependentID    string
	Kind           DependencyKind
}

// Key returns the identity of the edge.
func (d *Dependency) Key() EdgeKey {
	return EdgeKey{
		PrerequisiteID: d.PrerequisiteID,
		DependentID:    d.DependentID,
		Kind:           d.Kind.OrDefault(),
	}
}
