package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/events"
	"github.com/alfredjeanlab/taskgraph/internal/graph"
	"github.com/alfredjeanlab/taskgraph/internal/idgen"
	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/store"
)

// createTaskInput holds transport-agnostic parameters for creating a task.
// ID is optional; imports supply their own.
type createTaskInput struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"project_id"`
	Title          string     `json:"title"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	Assignee       string     `json:"assignee"`
	EstimatedHours *float64   `json:"estimated_hours"`
	ActualHours    *float64   `json:"actual_hours"`
	StoryPoints    *int       `json:"story_points"`
	DueAt          *time.Time `json:"due_at"`
	CreatedBy      string     `json:"created_by"`
}

// createTask validates input, persists a new task, and publishes a
// TaskCreated event. Returns inputError for validation failures.
func (s *TaskGraphServer) createTask(ctx context.Context, in createTaskInput) (*model.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, inputError("title is required")
	}

	id := in.ID
	if id == "" {
		var err error
		if id, err = idgen.ForProject(in.ProjectID); err != nil {
			return nil, fmt.Errorf("failed to generate ID: %w", err)
		}
	}

	now := time.Now().UTC()
	task := &model.Task{
		ID:             id,
		ProjectID:      in.ProjectID,
		Title:          strings.TrimSpace(in.Title),
		Status:         model.Status(orDefault(in.Status, string(model.StatusTodo))),
		Priority:       model.Priority(orDefault(in.Priority, string(model.PriorityMedium))),
		Assignee:       in.Assignee,
		EstimatedHours: in.EstimatedHours,
		ActualHours:    in.ActualHours,
		StoryPoints:    in.StoryPoints,
		DueAt:          in.DueAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := model.ValidateTask(task); err != nil {
		return nil, inputError("invalid task: " + err.Error())
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.recordAndPublish(ctx, events.TopicTaskCreated, task.ID, in.CreatedBy, events.TaskCreated{Task: task})
	return task, nil
}

// updateTaskInput holds transport-agnostic parameters for updating a task.
// Nil fields are left unchanged; Clear names optional fields to unset.
type updateTaskInput struct {
	Title          *string    `json:"title"`
	ProjectID      *string    `json:"project_id"`
	Status         *string    `json:"status"`
	Priority       *string    `json:"priority"`
	Assignee       *string    `json:"assignee"`
	EstimatedHours *float64   `json:"estimated_hours"`
	ActualHours    *float64   `json:"actual_hours"`
	StoryPoints    *int       `json:"story_points"`
	DueAt          *time.Time `json:"due_at"`
	Clear          []string   `json:"clear"`
	UpdatedBy      string     `json:"updated_by"`
}

// updateTask applies a partial update and publishes a TaskUpdated event
// listing the changed fields.
func (s *TaskGraphServer) updateTask(ctx context.Context, id string, in updateTaskInput) (*model.Task, error) {
	if id == "" {
		return nil, inputError("id is required")
	}
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := make(map[string]any)
	if in.Title != nil {
		task.Title = strings.TrimSpace(*in.Title)
		changes["title"] = task.Title
	}
	if in.ProjectID != nil {
		task.ProjectID = *in.ProjectID
		changes["project_id"] = task.ProjectID
	}
	if in.Status != nil {
		task.Status = model.Status(*in.Status)
		changes["status"] = task.Status
	}
	if in.Priority != nil {
		task.Priority = model.Priority(*in.Priority)
		changes["priority"] = task.Priority
	}
	if in.Assignee != nil {
		task.Assignee = *in.Assignee
		changes["assignee"] = task.Assignee
	}
	if in.EstimatedHours != nil {
		task.EstimatedHours = in.EstimatedHours
		changes["estimated_hours"] = *in.EstimatedHours
	}
	if in.ActualHours != nil {
		task.ActualHours = in.ActualHours
		changes["actual_hours"] = *in.ActualHours
	}
	if in.StoryPoints != nil {
		task.StoryPoints = in.StoryPoints
		changes["story_points"] = *in.StoryPoints
	}
	if in.DueAt != nil {
		task.DueAt = in.DueAt
		changes["due_at"] = *in.DueAt
	}
	for _, field := range in.Clear {
		switch field {
		case "assignee":
			task.Assignee = ""
		case "estimated_hours":
			task.EstimatedHours = nil
		case "actual_hours":
			task.ActualHours = nil
		case "story_points":
			task.StoryPoints = nil
		case "due_at":
			task.DueAt = nil
		default:
			return nil, inputError("cannot clear field " + field)
		}
		changes[field] = nil
	}
	if len(changes) == 0 {
		return task, nil
	}

	if err := model.ValidateTask(task); err != nil {
		return nil, inputError("invalid task: " + err.Error())
	}
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, events.TopicTaskUpdated, task.ID, in.UpdatedBy, events.TaskUpdated{Task: task, Changes: changes})
	return task, nil
}

// deleteTask removes a task together with its edges.
func (s *TaskGraphServer) deleteTask(ctx context.Context, id string) error {
	if id == "" {
		return inputError("id is required")
	}
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.recordAndPublish(ctx, events.TopicTaskDeleted, id, "", events.TaskDeleted{TaskID: id, ProjectID: task.ProjectID})
	return nil
}

// addDependencyInput holds transport-agnostic parameters for adding an edge.
type addDependencyInput struct {
	PrerequisiteID string `json:"prerequisite_id"`
	DependentID    string `json:"dependent_id"`
	Kind           string `json:"kind"`
	CreatedBy      string `json:"created_by"`
}

func (in addDependencyInput) validate() error {
	if in.PrerequisiteID == "" || in.DependentID == "" {
		return inputError("prerequisite_id and dependent_id are required")
	}
	if k := model.DependencyKind(in.Kind).OrDefault(); !k.IsValid() {
		return inputError("invalid dependency kind " + in.Kind)
	}
	return nil
}

// addDependency inserts an edge after checking it against a snapshot taken
// in the same serializable transaction, so the acyclicity check and the
// insert are atomic. A duplicate edge succeeds with created == false. A
// rejected edge publishes DependencyRejected and returns the
// *graph.CyclicEdgeError.
func (s *TaskGraphServer) addDependency(ctx context.Context, in addDependencyInput) (*model.Dependency, bool, error) {
	if err := in.validate(); err != nil {
		return nil, false, err
	}
	dep := &model.Dependency{
		PrerequisiteID: in.PrerequisiteID,
		DependentID:    in.DependentID,
		Kind:           model.DependencyKind(in.Kind).OrDefault(),
		CreatedAt:      time.Now().UTC(),
		CreatedBy:      in.CreatedBy,
	}

	var created bool
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		snap, err := tx.Snapshot(ctx, "")
		if err != nil {
			return fmt.Errorf("loading graph: %w", err)
		}
		if err := s.engine.CheckEdge(snap, dep); err != nil {
			return err
		}
		created, err = tx.AddDependency(ctx, dep)
		return err
	})

	var cyclic *graph.CyclicEdgeError
	if errors.As(err, &cyclic) {
		s.logger.Info("dependency rejected", "prerequisite", dep.PrerequisiteID, "dependent", dep.DependentID, "cycle", cyclic.Cycle)
		s.recordAndPublish(ctx, events.TopicDependencyRejected, dep.DependentID, dep.CreatedBy, events.DependencyRejected{
			Dependency: dep,
			Reason:     cyclic.Error(),
			Cycle:      cyclic.Cycle,
		})
		return nil, false, err
	}
	if err != nil {
		return nil, false, err
	}

	if created {
		s.recordAndPublish(ctx, events.TopicDependencyAdded, dep.DependentID, dep.CreatedBy, events.DependencyAdded{Dependency: dep})
	}
	return dep, created, nil
}

// removeDependency deletes one edge. Removing an edge cannot create a cycle.
func (s *TaskGraphServer) removeDependency(ctx context.Context, prerequisiteID, dependentID, kind string) error {
	if prerequisiteID == "" || dependentID == "" {
		return inputError("prerequisite_id and dependent_id are required")
	}
	k := model.DependencyKind(kind).OrDefault()
	if !k.IsValid() {
		return inputError("invalid dependency kind " + kind)
	}
	if err := s.store.RemoveDependency(ctx, prerequisiteID, dependentID, k); err != nil {
		return err
	}
	s.recordAndPublish(ctx, events.TopicDependencyRemoved, dependentID, "", events.DependencyRemoved{
		PrerequisiteID: prerequisiteID,
		DependentID:    dependentID,
		Kind:           string(k),
	})
	return nil
}

// upsertAssignee creates or replaces an assignee.
func (s *TaskGraphServer) upsertAssignee(ctx context.Context, a *model.Assignee) error {
	if err := model.ValidateAssignee(a); err != nil {
		return inputError("invalid assignee: " + err.Error())
	}
	if err := s.store.UpsertAssignee(ctx, a); err != nil {
		return fmt.Errorf("failed to save assignee: %w", err)
	}
	s.recordAndPublish(ctx, events.TopicAssigneeUpdated, "", "", events.AssigneeUpdated{Assignee: a})
	return nil
}

// deleteAssignee removes an assignee from the roster. Tasks keep pointing at
// the id and show up as unknown in workload analysis.
func (s *TaskGraphServer) deleteAssignee(ctx context.Context, id string) error {
	if id == "" {
		return inputError("id is required")
	}
	if err := s.store.DeleteAssignee(ctx, id); err != nil {
		return err
	}
	s.recordAndPublish(ctx, events.TopicAssigneeDeleted, "", "", events.AssigneeDeleted{AssigneeID: id})
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
