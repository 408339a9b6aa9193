// Package client provides transport-agnostic interfaces for the taskgraph
// service, an HTTP/JSON implementation of the full API and a gRPC
// implementation of the analysis service.
package client

import (
	"context"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/assign"
	"github.com/alfredjeanlab/taskgraph/internal/cpm"
	"github.com/alfredjeanlab/taskgraph/internal/engine"
	"github.com/alfredjeanlab/taskgraph/internal/graph"
	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/workload"
)

// AnalysisClient runs read-only analyses. Both transports implement it.
// An empty project analyzes every task.
type AnalysisClient interface {
	Report(ctx context.Context, project string) (*engine.Report, error)
	CriticalPath(ctx context.Context, project string) (*cpm.Result, error)
	Workload(ctx context.Context, project string) (*WorkloadResponse, error)
	Recommendations(ctx context.Context, project string) (*RecommendationsResponse, error)
	Optimizations(ctx context.Context, project string) (*assign.Plan, error)
	CheckDependency(ctx context.Context, req *DependencyRequest) (*CheckResponse, error)
	Health(ctx context.Context) (string, error)
	Close() error
}

// TaskGraphClient is the interface CLI commands use to talk to the server.
// It is implemented by HTTPClient.
type TaskGraphClient interface {
	AnalysisClient

	// Tasks
	CreateTask(ctx context.Context, req *CreateTaskRequest) (*model.Task, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, filter model.TaskFilter) (*ListTasksResponse, error)
	UpdateTask(ctx context.Context, id string, req *UpdateTaskRequest) (*model.Task, error)
	DeleteTask(ctx context.Context, id string) error
	GetEvents(ctx context.Context, taskID string) ([]*model.Event, error)

	// Dependencies
	AddDependency(ctx context.Context, req *DependencyRequest) (*model.Dependency, bool, error)
	RemoveDependency(ctx context.Context, prerequisiteID, dependentID, kind string) error
	ListDependencies(ctx context.Context, taskID string) ([]*model.Dependency, error)

	// Assignees
	UpsertAssignee(ctx context.Context, a *model.Assignee) (*model.Assignee, error)
	ListAssignees(ctx context.Context) ([]*model.Assignee, error)
	DeleteAssignee(ctx context.Context, id string) error

	// Bulk
	Import(ctx context.Context, snap *model.Snapshot, actor string) (*ImportResponse, error)

	// Graph views
	Graph(ctx context.Context, project string) (*GraphResponse, error)
	Cycles(ctx context.Context, project string) (*CyclesResponse, error)
	Levels(ctx context.Context, project string) (*LevelsResponse, error)
}

// CreateTaskRequest holds parameters for creating a task. ID is generated by
// the server when empty.
type CreateTaskRequest struct {
	ID             string     `json:"id,omitempty"`
	ProjectID      string     `json:"project_id,omitempty"`
	Title          string     `json:"title"`
	Status         string     `json:"status,omitempty"`
	Priority       string     `json:"priority,omitempty"`
	Assignee       string     `json:"assignee,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	ActualHours    *float64   `json:"actual_hours,omitempty"`
	StoryPoints    *int       `json:"story_points,omitempty"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	CreatedBy      string     `json:"created_by,omitempty"`
}

// UpdateTaskRequest holds optional parameters for updating a task.
// Nil pointer fields mean "don't change"; Clear names fields to unset.
type UpdateTaskRequest struct {
	Title          *string    `json:"title,omitempty"`
	ProjectID      *string    `json:"project_id,omitempty"`
	Status         *string    `json:"status,omitempty"`
	Priority       *string    `json:"priority,omitempty"`
	Assignee       *string    `json:"assignee,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	ActualHours    *float64   `json:"actual_hours,omitempty"`
	StoryPoints    *int       `json:"story_points,omitempty"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	Clear          []string   `json:"clear,omitempty"`
	UpdatedBy      string     `json:"updated_by,omitempty"`
}

// ListTasksResponse is the response from ListTasks.
type ListTasksResponse struct {
	Tasks []*model.Task `json:"tasks"`
	Total int           `json:"total"`
}

// DependencyRequest names an edge: PrerequisiteID must precede DependentID.
type DependencyRequest struct {
	PrerequisiteID string `json:"prerequisite_id"`
	DependentID    string `json:"dependent_id"`
	Kind           string `json:"kind,omitempty"`
	CreatedBy      string `json:"created_by,omitempty"`
}

// CheckResponse answers whether an edge may be added.
type CheckResponse struct {
	PrerequisiteID   string   `json:"prerequisite_id"`
	DependentID      string   `json:"dependent_id"`
	WouldCreateCycle bool     `json:"would_create_cycle"`
	Cycle            []string `json:"cycle,omitempty"`
}

// ImportResponse counts what an import stored.
type ImportResponse struct {
	Tasks        int `json:"tasks"`
	Dependencies int `json:"dependencies"`
	Assignees    int `json:"assignees"`
}

// GraphResponse is the node listing of a project.
type GraphResponse struct {
	ProjectID string              `json:"project_id,omitempty"`
	Acyclic   bool                `json:"acyclic"`
	Nodes     []graph.Node        `json:"nodes"`
	Edges     []*model.Dependency `json:"edges"`
}

// CyclesResponse lists every cycle found.
type CyclesResponse struct {
	Acyclic bool       `json:"acyclic"`
	Cycles  [][]string `json:"cycles"`
}

// LevelsResponse maps tasks to topological levels. Layers[i] holds the
// tasks of level i.
type LevelsResponse struct {
	Levels map[string]int `json:"levels"`
	Layers [][]string     `json:"layers"`
}

// WorkloadResponse holds per-assignee workload and the team balance.
type WorkloadResponse struct {
	Workload    []workload.Record `json:"workload"`
	TeamBalance float64           `json:"team_balance"`
}

// RecommendationsResponse maps unassigned tasks to ranked candidates.
type RecommendationsResponse struct {
	Recommendations map[string][]assign.Candidate `json:"recommendations"`
}
