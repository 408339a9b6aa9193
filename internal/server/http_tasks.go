package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// handleCreateTask handles POST /v1/tasks.
func (s *TaskGraphServer) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in createTaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	task, err := s.createTask(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, err, "failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// handleListTasks handles GET /v1/tasks.
func (s *TaskGraphServer) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.TaskFilter{
		ProjectID: q.Get("project"),
		Assignee:  q.Get("assignee"),
		Search:    q.Get("search"),
		Sort:      q.Get("sort"),
	}
	if v := q.Get("status"); v != "" {
		for _, st := range strings.Split(v, ",") {
			filter.Status = append(filter.Status, model.Status(st))
		}
	}
	if v := q.Get("priority"); v != "" {
		for _, p := range strings.Split(v, ",") {
			filter.Priority = append(filter.Priority, model.Priority(p))
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	tasks, total, err := s.store.ListTasks(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err, "failed to list tasks")
		return
	}
	// Ensure tasks is never null in JSON output.
	if tasks == nil {
		tasks = []*model.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"total": total,
	})
}

// handleGetTask handles GET /v1/tasks/{id}.
func (s *TaskGraphServer) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err, "failed to get task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleUpdateTask handles PATCH /v1/tasks/{id}.
func (s *TaskGraphServer) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var in updateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	task, err := s.updateTask(r.Context(), r.PathValue("id"), in)
	if err != nil {
		s.writeServiceError(w, err, "failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleDeleteTask handles DELETE /v1/tasks/{id}.
func (s *TaskGraphServer) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.deleteTask(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err, "failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListDependencies handles GET /v1/tasks/{id}/dependencies. It lists
// every edge touching the task, in either direction.
func (s *TaskGraphServer) handleListDependencies(w http.ResponseWriter, r *http.Request) {
	deps, err := s.store.ListDependencies(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err, "failed to list dependencies")
		return
	}
	if deps == nil {
		deps = []*model.Dependency{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"dependencies": deps})
}

// handleAddDependency handles POST /v1/tasks/{id}/dependencies. The path
// task is the dependent; the body names the prerequisite. Responds 201 for a
// new edge and 200 for an existing one.
func (s *TaskGraphServer) handleAddDependency(w http.ResponseWriter, r *http.Request) {
	var in addDependencyInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	in.DependentID = r.PathValue("id")

	dep, created, err := s.addDependency(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, err, "failed to add dependency")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, dep)
}

// handleRemoveDependency handles DELETE /v1/tasks/{id}/dependencies
// ?prerequisite=<id>&kind=<kind>.
func (s *TaskGraphServer) handleRemoveDependency(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := s.removeDependency(r.Context(), q.Get("prerequisite"), r.PathValue("id"), q.Get("kind")); err != nil {
		s.writeServiceError(w, err, "failed to remove dependency")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetEvents handles GET /v1/tasks/{id}/events.
func (s *TaskGraphServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	evts, err := s.store.GetEvents(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err, "failed to get events")
		return
	}
	if evts == nil {
		evts = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}

// handleCheckDependency handles POST /v1/dependencies/check.
func (s *TaskGraphServer) handleCheckDependency(w http.ResponseWriter, r *http.Request) {
	var in addDependencyInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	out, err := s.checkEdge(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, err, "failed to check dependency")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleListAssignees handles GET /v1/assignees.
func (s *TaskGraphServer) handleListAssignees(w http.ResponseWriter, r *http.Request) {
	assignees, err := s.store.ListAssignees(r.Context())
	if err != nil {
		s.writeServiceError(w, err, "failed to list assignees")
		return
	}
	if assignees == nil {
		assignees = []*model.Assignee{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignees": assignees})
}

// handleUpsertAssignee handles PUT /v1/assignees/{id}.
func (s *TaskGraphServer) handleUpsertAssignee(w http.ResponseWriter, r *http.Request) {
	var a model.Assignee
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	a.ID = r.PathValue("id")
	if err := s.upsertAssignee(r.Context(), &a); err != nil {
		s.writeServiceError(w, err, "failed to save assignee")
		return
	}
	writeJSON(w, http.StatusOK, &a)
}

// handleDeleteAssignee handles DELETE /v1/assignees/{id}.
func (s *TaskGraphServer) handleDeleteAssignee(w http.ResponseWriter, r *http.Request) {
	if err := s.deleteAssignee(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err, "failed to delete assignee")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImport handles POST /v1/import with a snapshot document body.
func (s *TaskGraphServer) handleImport(w http.ResponseWriter, r *http.Request) {
	var snap model.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.importSnapshot(r.Context(), &snap, r.URL.Query().Get("actor"))
	if err != nil {
		s.writeServiceError(w, err, "failed to import snapshot")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
