package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// taskFields holds the nullable columns of a task row.
type taskFields struct {
	assignee    sql.NullString
	estimated   sql.NullFloat64
	actual      sql.NullFloat64
	storyPoints sql.NullInt64
	dueAt       sql.NullTime
}

func (f *taskFields) dest(t *model.Task) []any {
	return []any{
		&t.ID,
		&t.ProjectID,
		&t.Title,
		&t.Status,
		&t.Priority,
		&f.assignee,
		&f.estimated,
		&f.actual,
		&f.storyPoints,
		&f.dueAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	}
}

func (f *taskFields) apply(t *model.Task) {
	t.Assignee = f.assignee.String
	if f.estimated.Valid {
		t.EstimatedHours = model.Float64(f.estimated.Float64)
	}
	if f.actual.Valid {
		t.ActualHours = model.Float64(f.actual.Float64)
	}
	if f.storyPoints.Valid {
		t.StoryPoints = model.Int(int(f.storyPoints.Int64))
	}
	if f.dueAt.Valid {
		d := f.dueAt.Time
		t.DueAt = &d
	}
}

// scanTask scans a single row into a model.Task.
// The row must contain columns in the order defined by taskColumns.
func scanTask(row scannable) (*model.Task, error) {
	var t model.Task
	var f taskFields
	if err := row.Scan(f.dest(&t)...); err != nil {
		return nil, err
	}
	f.apply(&t)
	return &t, nil
}

// scanTaskWithTotal scans a row that has a leading total_count column
// followed by the task columns. Used by queryListTasks with COUNT(*) OVER().
func scanTaskWithTotal(row scannable) (*model.Task, int, error) {
	var total int
	var t model.Task
	var f taskFields
	if err := row.Scan(append([]any{&total}, f.dest(&t)...)...); err != nil {
		return nil, 0, err
	}
	f.apply(&t)
	return &t, total, nil
}

// scanTasks scans multiple rows into a slice of model.Task pointers.
func scanTasks(rows *sql.Rows) ([]*model.Task, error) {
	var tasks []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// scanDependency scans a single row into a model.Dependency.
func scanDependency(row scannable) (*model.Dependency, error) {
	var d model.Dependency
	var createdBy sql.NullString
	err := row.Scan(
		&d.PrerequisiteID,
		&d.DependentID,
		&d.Kind,
		&d.CreatedAt,
		&createdBy,
	)
	if err != nil {
		return nil, err
	}
	d.CreatedBy = createdBy.String
	return &d, nil
}

// scanDependencies scans multiple rows into a slice of model.Dependency pointers.
func scanDependencies(rows *sql.Rows) ([]*model.Dependency, error) {
	var deps []*model.Dependency
	for rows.Next() {
		d, err := scanDependency(rows)
		if err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return deps, nil
}

// scanAssignee scans a single row into a model.Assignee.
func scanAssignee(row scannable) (*model.Assignee, error) {
	var a model.Assignee
	var role sql.NullString
	err := row.Scan(&a.ID, &a.Name, &role, &a.CapacityHours, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Role = role.String
	return &a, nil
}

// scanAssignees scans multiple rows into a slice of model.Assignee pointers.
func scanAssignees(rows *sql.Rows) ([]*model.Assignee, error) {
	var assignees []*model.Assignee
	for rows.Next() {
		a, err := scanAssignee(rows)
		if err != nil {
			return nil, err
		}
		assignees = append(assignees, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignees, nil
}

// scanEvent scans a single row into a model.Event.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		actor   sql.NullString
		payload []byte
	)
	err := row.Scan(&e.ID, &e.Topic, &e.TaskID, &actor, &payload, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Actor = actor.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.Event pointers.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
