package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// taskColumns is the column list used for SELECT statements on the tasks table.
const taskColumns = `id, project_id, title, status, priority, assignee,
	estimated_hours, actual_hours, story_points, due_at, created_at, updated_at`

const dependencyColumns = `prerequisite_id, dependent_id, kind, created_at, created_by`

const assigneeColumns = `id, name, role, capacity_hours, created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateTask(ctx context.Context, db executor, t *model.Task) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, project_id, title, status, priority, assignee,
			estimated_hours, actual_hours, story_points, due_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12
		)`,
		t.ID,
		t.ProjectID,
		t.Title,
		string(t.Status),
		string(t.Priority),
		nullString(t.Assignee),
		nullFloat(t.EstimatedHours),
		nullFloat(t.ActualHours),
		nullInt(t.StoryPoints),
		nullTimePtr(t.DueAt),
		t.CreatedAt,
		t.UpdatedAt,
	)
	return err
}

func queryGetTask(ctx context.Context, db executor, id string) (*model.Task, error) {
	row := db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

func queryListTasks(ctx context.Context, db executor, filter model.TaskFilter) ([]*model.Task, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.ProjectID != "" {
		whereClauses = append(whereClauses, "project_id = "+nextArg())
		args = append(args, filter.ProjectID)
	}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = nextArg()
			args = append(args, string(s))
		}
		whereClauses = append(whereClauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	if len(filter.Priority) > 0 {
		placeholders := make([]string, len(filter.Priority))
		for i, p := range filter.Priority {
			placeholders[i] = nextArg()
			args = append(args, string(p))
		}
		whereClauses = append(whereClauses, "priority IN ("+strings.Join(placeholders, ", ")+")")
	}

	if filter.Assignee != "" {
		whereClauses = append(whereClauses, "assignee = "+nextArg())
		args = append(args, filter.Assignee)
	}

	if filter.Search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("title ILIKE '%%' || %s || '%%'", nextArg()))
		args = append(args, filter.Search)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + taskColumns + " FROM tasks" + whereSQL + " ORDER BY " + parseSortClause(filter.Sort)

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	var total int
	for rows.Next() {
		t, n, err := scanTaskWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan tasks: %w", err)
		}
		total = n
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan tasks: %w", err)
	}

	return tasks, total, nil
}

func queryUpdateTask(ctx context.Context, db executor, t *model.Task) error {
	return db.QueryRowContext(ctx, `
		UPDATE tasks SET
			project_id = $2,
			title = $3,
			status = $4,
			priority = $5,
			assignee = $6,
			estimated_hours = $7,
			actual_hours = $8,
			story_points = $9,
			due_at = $10,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		t.ID,
		t.ProjectID,
		t.Title,
		string(t.Status),
		string(t.Priority),
		nullString(t.Assignee),
		nullFloat(t.EstimatedHours),
		nullFloat(t.ActualHours),
		nullInt(t.StoryPoints),
		nullTimePtr(t.DueAt),
	).Scan(&t.UpdatedAt)
}

// queryDeleteTask removes a task. Its edges go with it (ON DELETE CASCADE),
// which can never introduce a cycle.
func queryDeleteTask(ctx context.Context, db executor, id string) error {
	return execAffectingRow(ctx, db, `DELETE FROM tasks WHERE id = $1`, id)
}

// queryAddDependency inserts an edge unless it already exists. The returned
// bool is false for a duplicate.
func queryAddDependency(ctx context.Context, db executor, dep *model.Dependency) (bool, error) {
	if dep.CreatedAt.IsZero() {
		dep.CreatedAt = time.Now().UTC()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO dependencies (prerequisite_id, dependent_id, kind, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (prerequisite_id, dependent_id, kind) DO NOTHING`,
		dep.PrerequisiteID,
		dep.DependentID,
		string(dep.Kind.OrDefault()),
		dep.CreatedAt,
		nullString(dep.CreatedBy),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func queryRemoveDependency(ctx context.Context, db executor, prerequisiteID, dependentID string, kind model.DependencyKind) error {
	return execAffectingRow(ctx, db, `
		DELETE FROM dependencies
		WHERE prerequisite_id = $1 AND dependent_id = $2 AND kind = $3`,
		prerequisiteID, dependentID, string(kind.OrDefault()),
	)
}

// queryListDependencies returns the edges touching taskID, or every edge
// when taskID is empty.
func queryListDependencies(ctx context.Context, db executor, taskID string) ([]*model.Dependency, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if taskID == "" {
		rows, err = db.QueryContext(ctx, `SELECT `+dependencyColumns+` FROM dependencies
			ORDER BY prerequisite_id, dependent_id, kind`)
	} else {
		rows, err = db.QueryContext(ctx, `SELECT `+dependencyColumns+` FROM dependencies
			WHERE prerequisite_id = $1 OR dependent_id = $1
			ORDER BY prerequisite_id, dependent_id, kind`, taskID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDependencies(rows)
}

func queryUpsertAssignee(ctx context.Context, db executor, a *model.Assignee) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	return db.QueryRowContext(ctx, `
		INSERT INTO assignees (id, name, role, capacity_hours, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			capacity_hours = EXCLUDED.capacity_hours,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at`,
		a.ID, a.Name, nullString(a.Role), a.CapacityHours, a.CreatedAt, now,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func queryGetAssignee(ctx context.Context, db executor, id string) (*model.Assignee, error) {
	row := db.QueryRowContext(ctx, `SELECT `+assigneeColumns+` FROM assignees WHERE id = $1`, id)
	return scanAssignee(row)
}

func queryListAssignees(ctx context.Context, db executor) ([]*model.Assignee, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+assigneeColumns+` FROM assignees ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignees(rows)
}

// queryDeleteAssignee removes an assignee. Tasks keep the id; workload
// analysis reports it as unknown.
func queryDeleteAssignee(ctx context.Context, db executor, id string) error {
	return execAffectingRow(ctx, db, `DELETE FROM assignees WHERE id = $1`, id)
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO events (topic, task_id, actor, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		e.Topic, e.TaskID, nullString(e.Actor), jsonbBytes(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryGetEvents(ctx context.Context, db executor, taskID string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, task_id, actor, payload, created_at
		FROM events
		WHERE task_id = $1
		ORDER BY created_at, id`,
		taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// querySnapshot reads a project's tasks, the edges whose endpoints both
// belong to it, and the whole roster. Callers run it inside a transaction
// so the three reads agree.
func querySnapshot(ctx context.Context, db executor, projectID string) (*model.Snapshot, error) {
	snap := &model.Snapshot{ProjectID: projectID, TakenAt: time.Now().UTC()}

	var (
		rows *sql.Rows
		err  error
	)
	if projectID == "" {
		rows, err = db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
	} else {
		rows, err = db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY id`, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot tasks: %w", err)
	}
	snap.Tasks, err = scanTasks(rows)
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("snapshot tasks: %w", err)
	}

	if projectID == "" {
		snap.Dependencies, err = queryListDependencies(ctx, db, "")
	} else {
		rows, err = db.QueryContext(ctx, `
			SELECT d.prerequisite_id, d.dependent_id, d.kind, d.created_at, d.created_by
			FROM dependencies d
			JOIN tasks p ON p.id = d.prerequisite_id
			JOIN tasks q ON q.id = d.dependent_id
			WHERE p.project_id = $1 AND q.project_id = $1
			ORDER BY d.prerequisite_id, d.dependent_id, d.kind`, projectID)
		if err == nil {
			snap.Dependencies, err = scanDependencies(rows)
			rows.Close()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot dependencies: %w", err)
	}

	snap.Assignees, err = queryListAssignees(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("snapshot assignees: %w", err)
	}
	return snap, nil
}

// execAffectingRow runs a statement and returns sql.ErrNoRows when it
// touched nothing.
func execAffectingRow(ctx context.Context, db executor, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// parseSortClause maps a user-supplied sort key onto an ORDER BY clause.
// Unknown columns fall back to the default ordering. Ties are broken by id
// so pages are stable.
func parseSortClause(sort string) string {
	if sort == "" {
		return "created_at DESC, id ASC"
	}
	desc := strings.HasPrefix(sort, "-")
	col := strings.TrimPrefix(sort, "-")
	allowed := map[string]bool{
		"priority": true, "created_at": true, "updated_at": true,
		"title": true, "status": true, "due_at": true, "estimated_hours": true,
	}
	if !allowed[col] {
		return "created_at DESC, id ASC"
	}
	if col == "priority" {
		// Priorities are strings; order them by rank.
		col = "CASE priority WHEN 'low' THEN 0 WHEN 'medium' THEN 1 WHEN 'high' THEN 2 WHEN 'urgent' THEN 3 ELSE -1 END"
	}
	if desc {
		return col + " DESC, id ASC"
	}
	return col + " ASC, id ASC"
}
