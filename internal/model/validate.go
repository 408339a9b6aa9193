package model

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// ValidateTask checks a Task for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the task is valid.
func ValidateTask(t *Task) error {
	var ve ValidationError

	if strings.TrimSpace(t.ID) == "" {
		ve.add("id", "is required")
	}

	// Title: required and at most 500 characters.
	title := strings.TrimSpace(t.Title)
	if title == "" {
		ve.add("title", "is required")
	} else if len([]rune(title)) > 500 {
		ve.add("title", "must be 500 characters or fewer")
	}

	if !t.Priority.IsValid() {
		ve.add("priority", fmt.Sprintf("invalid value %q", t.Priority))
	}
	if !t.Status.IsValid() {
		ve.add("status", fmt.Sprintf("invalid value %q", t.Status))
	}

	if t.EstimatedHours != nil {
		checkHours(&ve, "estimated_hours", *t.EstimatedHours)
	}
	if t.ActualHours != nil {
		checkHours(&ve, "actual_hours", *t.ActualHours)
	}
	if t.StoryPoints != nil && *t.StoryPoints < 0 {
		ve.add("story_points", fmt.Sprintf("must be non-negative, got %d", *t.StoryPoints))
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateDependency checks the shape of a dependency edge. It does not check
// that the endpoints exist or that the edge keeps the graph acyclic; the
// graph package owns those rules.
func ValidateDependency(d *Dependency) error {
	var ve ValidationError

	if strings.TrimSpace(d.PrerequisiteID) == "" {
		ve.add("prerequisite_id", "is required")
	}
	if strings.TrimSpace(d.DependentID) == "" {
		ve.add("dependent_id", "is required")
	}
	if d.PrerequisiteID != "" && d.PrerequisiteID == d.DependentID {
		ve.add("dependent_id", "a task cannot depend on itself")
	}
	if !d.Kind.OrDefault().IsValid() {
		ve.add("kind", fmt.Sprintf("invalid value %q", d.Kind))
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateAssignee checks an Assignee for constraint violations.
func ValidateAssignee(a *Assignee) error {
	var ve ValidationError

	if strings.TrimSpace(a.ID) == "" {
		ve.add("id", "is required")
	}
	if strings.TrimSpace(a.Name) == "" {
		ve.add("name", "is required")
	}
	checkHours(&ve, "capacity_hours", a.CapacityHours)

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// checkHours rejects negative and non-finite hour values.
func checkHours(ve *ValidationError, field string, v float64) {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		ve.add(field, fmt.Sprintf("must be a finite number, got %g", v))
	case v < 0:
		ve.add(field, fmt.Sprintf("must be non-negative, got %g", v))
	}
}
