package store

import (
	"context"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// Store defines the persistence interface for tasks, dependencies and
// assignees. Lookups of missing rows return sql.ErrNoRows.
type Store interface {
	// Task CRUD
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, filter model.TaskFilter) ([]*model.Task, int, error) // returns tasks, total count, error
	UpdateTask(ctx context.Context, task *model.Task) error
	DeleteTask(ctx context.Context, id string) error

	// Dependencies. AddDependency is idempotent and reports whether a new
	// edge was stored. It does not check for cycles; callers run the check
	// against a Snapshot taken in the same transaction.
	AddDependency(ctx context.Context, dep *model.Dependency) (bool, error)
	RemoveDependency(ctx context.Context, prerequisiteID, dependentID string, kind model.DependencyKind) error
	ListDependencies(ctx context.Context, taskID string) ([]*model.Dependency, error)

	// Assignees
	UpsertAssignee(ctx context.Context, assignee *model.Assignee) error
	GetAssignee(ctx context.Context, id string) (*model.Assignee, error)
	ListAssignees(ctx context.Context) ([]*model.Assignee, error)
	DeleteAssignee(ctx context.Context, id string) error

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEvents(ctx context.Context, taskID string) ([]*model.Event, error)

	// Snapshot reads the tasks of one project ("" for all), the edges between
	// them and the full roster as one consistent view.
	Snapshot(ctx context.Context, projectID string) (*model.Snapshot, error)

	// Transactions. Writes inside fn are serializable, so a cycle check
	// followed by an insert cannot race another edge insertion.
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	Close() error
}
