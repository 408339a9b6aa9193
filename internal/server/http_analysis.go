package server

import (
	"context"
	"net/http"
)

// analysisHandler adapts an analysis method taking ?project= into an
// http.HandlerFunc.
func analysisHandler[T any](s *TaskGraphServer, fn func(context.Context, string) (T, error), fallback string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := fn(r.Context(), r.URL.Query().Get("project"))
		if err != nil {
			s.writeServiceError(w, err, fallback)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleGraph handles GET /v1/graph.
func (s *TaskGraphServer) handleGraph(w http.ResponseWriter, r *http.Request) {
	analysisHandler(s, s.graphView, "failed to build graph")(w, r)
}

// handleCycles handles GET /v1/cycles.
func (s *TaskGraphServer) handleCycles(w http.ResponseWriter, r *http.Request) {
	analysisHandler(s, s.cycles, "failed to detect cycles")(w, r)
}

// handleLevels handles GET /v1/levels. A cyclic graph yields 409.
func (s *TaskGraphServer) handleLevels(w http.ResponseWriter, r *http.Request) {
	analysisHandler(s, s.levels, "failed to assign levels")(w, r)
}

// handleCriticalPath handles GET /v1/critical-path. A cyclic graph yields 409.
func (s *TaskGraphServer) handleCriticalPath(w http.ResponseWriter, r *http.Request) {
	analysisHandler(s, s.criticalPath, "failed to analyze critical path")(w, r)
}

// handleWorkload handles GET /v1/workload.
func (s *TaskGraphServer) handleWorkload(w http.ResponseWriter, r *http.Request) {
	analysisHandler(s, s.workload, "failed to analyze workload")(w, r)
}

// handleRecommendations handles GET /v1/recommendations.
func (s *TaskGraphServer) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	analysisHandler(s, s.recommendations, "failed to recommend assignments")(w, r)
}

// handleOptimizations handles GET /v1/optimizations.
func (s *TaskGraphServer) handleOptimizations(w http.ResponseWriter, r *http.Request) {
	analysisHandler(s, s.optimizations, "failed to optimize assignments")(w, r)
}

// handleReport handles GET /v1/report.
func (s *TaskGraphServer) handleReport(w http.ResponseWriter, r *http.Request) {
	analysisHandler(s, s.report, "failed to build report")(w, r)
}
