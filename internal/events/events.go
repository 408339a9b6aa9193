package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// Event topic constants
const (
	TopicTaskCreated = "taskgraph.task.created"
	TopicTaskUpdated = "taskgraph.task.updated"
	TopicTaskDeleted = "taskgraph.task.deleted"

	TopicDependencyAdded    = "taskgraph.dependency.added"
	TopicDependencyRemoved  = "taskgraph.dependency.removed"
	TopicDependencyRejected = "taskgraph.dependency.rejected"

	TopicAssigneeUpdated = "taskgraph.assignee.updated"
	TopicAssigneeDeleted = "taskgraph.assignee.deleted"

	// Emitted by the engine refresher after a recomputation.
	TopicAnalysisCompleted = "taskgraph.analysis.completed"

	// TopicAll matches every taskgraph subject.
	TopicAll = "taskgraph.>"
)

// ChangeTopics are the subject patterns whose events change analysis input.
var ChangeTopics = []string{
	"taskgraph.task.>",
	"taskgraph.dependency.added",
	"taskgraph.dependency.removed",
	"taskgraph.assignee.>",
}

// Event types

type TaskCreated struct {
	Task *model.Task `json:"task"`
}

type TaskUpdated struct {
	Task    *model.Task    `json:"task"`
	Changes map[string]any `json:"changes"` // field name -> new value
}

type TaskDeleted struct {
	TaskID    string `json:"task_id"`
	ProjectID string `json:"project_id,omitempty"`
}

type DependencyAdded struct {
	Dependency *model.Dependency `json:"dependency"`
}

type DependencyRemoved struct {
	PrerequisiteID string `json:"prerequisite_id"`
	DependentID    string `json:"dependent_id"`
	Kind           string `json:"kind"`
}

// DependencyRejected records an edge refused because it would close a cycle.
type DependencyRejected struct {
	Dependency *model.Dependency `json:"dependency"`
	Reason     string            `json:"reason"`
	Cycle      []string          `json:"cycle,omitempty"`
}

type AssigneeUpdated struct {
	Assignee *model.Assignee `json:"assignee"`
}

type AssigneeDeleted struct {
	AssigneeID string `json:"assignee_id"`
}

// AnalysisCompleted summarizes a fresh report.
type AnalysisCompleted struct {
	ProjectID    string    `json:"project_id,omitempty"`
	Fingerprint  string    `json:"fingerprint"`
	TaskCount    int       `json:"task_count"`
	CycleCount   int       `json:"cycle_count"`
	PathLength   float64   `json:"path_length"`
	CriticalPath []string  `json:"critical_path"`
	TeamBalance  float64   `json:"team_balance"`
	ComputedAt   time.Time `json:"computed_at"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
