package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alfredjeanlab/taskgraph/internal/graph"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *TaskGraphServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /v1/tasks", s.handleListTasks)
	mux.HandleFunc("GET /v1/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("PATCH /v1/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /v1/tasks/{id}", s.handleDeleteTask)
	mux.HandleFunc("GET /v1/tasks/{id}/dependencies", s.handleListDependencies)
	mux.HandleFunc("POST /v1/tasks/{id}/dependencies", s.handleAddDependency)
	mux.HandleFunc("DELETE /v1/tasks/{id}/dependencies", s.handleRemoveDependency)
	mux.HandleFunc("GET /v1/tasks/{id}/events", s.handleGetEvents)
	mux.HandleFunc("POST /v1/dependencies/check", s.handleCheckDependency)
	mux.HandleFunc("GET /v1/assignees", s.handleListAssignees)
	mux.HandleFunc("PUT /v1/assignees/{id}", s.handleUpsertAssignee)
	mux.HandleFunc("DELETE /v1/assignees/{id}", s.handleDeleteAssignee)
	mux.HandleFunc("POST /v1/import", s.handleImport)
	mux.HandleFunc("GET /v1/graph", s.handleGraph)
	mux.HandleFunc("GET /v1/cycles", s.handleCycles)
	mux.HandleFunc("GET /v1/levels", s.handleLevels)
	mux.HandleFunc("GET /v1/critical-path", s.handleCriticalPath)
	mux.HandleFunc("GET /v1/workload", s.handleWorkload)
	mux.HandleFunc("GET /v1/recommendations", s.handleRecommendations)
	mux.HandleFunc("GET /v1/optimizations", s.handleOptimizations)
	mux.HandleFunc("GET /v1/report", s.handleReport)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return RecoveryMiddleware(s.logger, LoggingMiddleware(s.logger, AuthMiddleware(authToken, mux)))
}

// handleHealth handles GET /v1/health.
func (s *TaskGraphServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// errorBody is the error payload for graph errors, which carry details the
// caller needs to fix its input.
type errorBody struct {
	Error      string   `json:"error"`
	Code       string   `json:"code"`
	Cycle      []string `json:"cycle,omitempty"`
	Unresolved []string `json:"unresolved,omitempty"`
	TaskID     string   `json:"task_id,omitempty"`
}

// writeServiceError maps a service error onto a status code:
// 400 bad input, 404 missing row, 409 cycle, 422 unknown task reference.
// Internal errors are logged and reported as fallback.
func (s *TaskGraphServer) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var (
		cyclicEdge  *graph.CyclicEdgeError
		cyclicGraph *graph.CyclicGraphError
		badRef      *graph.InvalidReferenceError
	)
	switch classify(err) {
	case kindInput:
		writeError(w, http.StatusBadRequest, err.Error())
	case kindNotFound:
		writeError(w, http.StatusNotFound, "not found")
	case kindCycle:
		body := errorBody{Error: err.Error(), Code: "cyclic_graph"}
		if errors.As(err, &cyclicEdge) {
			body.Code = "cyclic_edge_rejected"
			body.Cycle = cyclicEdge.Cycle
		}
		if errors.As(err, &cyclicGraph) {
			body.Unresolved = cyclicGraph.Unresolved
		}
		writeJSON(w, http.StatusConflict, body)
	case kindReference:
		body := errorBody{Error: err.Error(), Code: "invalid_reference"}
		if errors.As(err, &badRef) {
			body.TaskID = badRef.TaskID
		}
		writeJSON(w, http.StatusUnprocessableEntity, body)
	default:
		s.logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
