package model

import (
	"math"
	"time"
)

// Priority is the urgency of a task. Priorities are totally ordered:
// low < medium < high < urgent.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	return string(p)
}

// IsValid checks whether the priority is a known value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Rank returns the position of the priority in its ordering, starting at 0
// for low. Unknown priorities rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	}
	return -1
}

// Status represents the current state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusBlocked    Status = "blocked"
	StatusDone       Status = "done"
	StatusArchived   Status = "archived"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusBlocked, StatusDone, StatusArchived:
		return true
	}
	return false
}

// IsCompleted reports whether work on the task is finished.
func (s Status) IsCompleted() bool {
	return s == StatusDone
}

// IsArchived reports whether the task has been archived.
func (s Status) IsArchived() bool {
	return s == StatusArchived
}

// IsTerminal reports whether the task no longer accepts work.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusArchived
}

// IsStarted reports whether work on the task has begun.
func (s Status) IsStarted() bool {
	return s != StatusTodo
}

// Task is the core work-item record consumed by the scheduling engine.
type Task struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"project_id,omitempty"`
	Title          string     `json:"title"`
	Status         Status     `json:"status"`
	Priority       Priority   `json:"priority"`
	Assignee       string     `json:"assignee,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	ActualHours    *float64   `json:"actual_hours,omitempty"`
	StoryPoints    *int       `json:"story_points,omitempty"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsCompleted reports whether the task's status is completed.
func (t *Task) IsCompleted() bool {
	return t.Status.IsCompleted()
}

// IsEstimated reports whether the task carries a finite estimated duration.
func (t *Task) IsEstimated() bool {
	return t.EstimatedHours != nil && finite(*t.EstimatedHours)
}

// Hours returns the estimated duration, treating an absent estimate as zero.
func (t *Task) Hours() float64 {
	if !t.IsEstimated() {
		return 0
	}
	return *t.EstimatedHours
}

// Actual returns the recorded actual hours, or zero when none are recorded.
func (t *Task) Actual() float64 {
	if t.ActualHours == nil || !finite(*t.ActualHours) {
		return 0
	}
	return *t.ActualHours
}

// Points returns the story-point weight, or zero when absent.
func (t *Task) Points() int {
	if t.StoryPoints == nil {
		return 0
	}
	return *t.StoryPoints
}

// IsOverdue reports whether the task is past its due date and not completed.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueAt != nil && !t.Status.IsCompleted() && t.DueAt.Before(now)
}

// TaskFilter holds criteria for querying tasks.
type TaskFilter struct {
	ProjectID string     `json:"project_id,omitempty"`
	Status    []Status   `json:"status,omitempty"`
	Priority  []Priority `json:"priority,omitempty"`
	Assignee  string     `json:"assignee,omitempty"`
	Search    string     `json:"search,omitempty"` // substring match on title
	Sort      string     `json:"sort,omitempty"`   // e.g. "-priority", "created_at"; prefix "-" = descending
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}

// Float64 returns a pointer to v. Convenience for optional hour fields.
func Float64(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
