package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/taskgraph/internal/assign"
	"github.com/alfredjeanlab/taskgraph/internal/cpm"
	"github.com/alfredjeanlab/taskgraph/internal/engine"
	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// HTTPClient implements TaskGraphClient using the HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ TaskGraphClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Tasks ---

func (c *HTTPClient) CreateTask(ctx context.Context, req *CreateTaskRequest) (*model.Task, error) {
	var task model.Task
	if err := c.doJSON(ctx, http.MethodPost, "/v1/tasks", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *HTTPClient) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	if err := c.doJSON(ctx, http.MethodGet, "/v1/tasks/"+url.PathEscape(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *HTTPClient) ListTasks(ctx context.Context, filter model.TaskFilter) (*ListTasksResponse, error) {
	q := url.Values{}
	if filter.ProjectID != "" {
		q.Set("project", filter.ProjectID)
	}
	if len(filter.Status) > 0 {
		parts := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			parts[i] = string(s)
		}
		q.Set("status", strings.Join(parts, ","))
	}
	if len(filter.Priority) > 0 {
		parts := make([]string, len(filter.Priority))
		for i, p := range filter.Priority {
			parts[i] = string(p)
		}
		q.Set("priority", strings.Join(parts, ","))
	}
	if filter.Assignee != "" {
		q.Set("assignee", filter.Assignee)
	}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	if filter.Sort != "" {
		q.Set("sort", filter.Sort)
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}

	var resp ListTasksResponse
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/v1/tasks", q), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UpdateTask(ctx context.Context, id string, req *UpdateTaskRequest) (*model.Task, error) {
	var task model.Task
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/tasks/"+url.PathEscape(id), req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *HTTPClient) DeleteTask(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/tasks/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) GetEvents(ctx context.Context, taskID string) ([]*model.Event, error) {
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/tasks/"+url.PathEscape(taskID)+"/events", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// --- Dependencies ---

// AddDependency adds an edge. created is false when the edge already
// existed. A rejected edge returns an *APIError with Code
// "cyclic_edge_rejected" and the closing cycle.
func (c *HTTPClient) AddDependency(ctx context.Context, req *DependencyRequest) (*model.Dependency, bool, error) {
	body := map[string]string{"prerequisite_id": req.PrerequisiteID}
	if req.Kind != "" {
		body["kind"] = req.Kind
	}
	if req.CreatedBy != "" {
		body["created_by"] = req.CreatedBy
	}
	var dep model.Dependency
	status, err := c.do(ctx, http.MethodPost, "/v1/tasks/"+url.PathEscape(req.DependentID)+"/dependencies", body, &dep)
	if err != nil {
		return nil, false, err
	}
	return &dep, status == http.StatusCreated, nil
}

func (c *HTTPClient) RemoveDependency(ctx context.Context, prerequisiteID, dependentID, kind string) error {
	q := url.Values{"prerequisite": {prerequisiteID}}
	if kind != "" {
		q.Set("kind", kind)
	}
	return c.doJSON(ctx, http.MethodDelete, withQuery("/v1/tasks/"+url.PathEscape(dependentID)+"/dependencies", q), nil, nil)
}

func (c *HTTPClient) ListDependencies(ctx context.Context, taskID string) ([]*model.Dependency, error) {
	var resp struct {
		Dependencies []*model.Dependency `json:"dependencies"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/tasks/"+url.PathEscape(taskID)+"/dependencies", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Dependencies, nil
}

func (c *HTTPClient) CheckDependency(ctx context.Context, req *DependencyRequest) (*CheckResponse, error) {
	var resp CheckResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/dependencies/check", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Assignees ---

func (c *HTTPClient) UpsertAssignee(ctx context.Context, a *model.Assignee) (*model.Assignee, error) {
	var out model.Assignee
	if err := c.doJSON(ctx, http.MethodPut, "/v1/assignees/"+url.PathEscape(a.ID), a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListAssignees(ctx context.Context) ([]*model.Assignee, error) {
	var resp struct {
		Assignees []*model.Assignee `json:"assignees"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/assignees", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Assignees, nil
}

func (c *HTTPClient) DeleteAssignee(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/assignees/"+url.PathEscape(id), nil, nil)
}

// --- Bulk ---

func (c *HTTPClient) Import(ctx context.Context, snap *model.Snapshot, actor string) (*ImportResponse, error) {
	q := url.Values{}
	if actor != "" {
		q.Set("actor", actor)
	}
	var resp ImportResponse
	if err := c.doJSON(ctx, http.MethodPost, withQuery("/v1/import", q), snap, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Analyses ---

func (c *HTTPClient) Graph(ctx context.Context, project string) (*GraphResponse, error) {
	return getAnalysis[GraphResponse](ctx, c, "/v1/graph", project)
}

func (c *HTTPClient) Cycles(ctx context.Context, project string) (*CyclesResponse, error) {
	return getAnalysis[CyclesResponse](ctx, c, "/v1/cycles", project)
}

func (c *HTTPClient) Levels(ctx context.Context, project string) (*LevelsResponse, error) {
	return getAnalysis[LevelsResponse](ctx, c, "/v1/levels", project)
}

func (c *HTTPClient) CriticalPath(ctx context.Context, project string) (*cpm.Result, error) {
	return getAnalysis[cpm.Result](ctx, c, "/v1/critical-path", project)
}

func (c *HTTPClient) Workload(ctx context.Context, project string) (*WorkloadResponse, error) {
	return getAnalysis[WorkloadResponse](ctx, c, "/v1/workload", project)
}

func (c *HTTPClient) Recommendations(ctx context.Context, project string) (*RecommendationsResponse, error) {
	return getAnalysis[RecommendationsResponse](ctx, c, "/v1/recommendations", project)
}

func (c *HTTPClient) Optimizations(ctx context.Context, project string) (*assign.Plan, error) {
	return getAnalysis[assign.Plan](ctx, c, "/v1/optimizations", project)
}

func (c *HTTPClient) Report(ctx context.Context, project string) (*engine.Report, error) {
	return getAnalysis[engine.Report](ctx, c, "/v1/report", project)
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server. Graph errors carry
// a Code ("cyclic_edge_rejected", "cyclic_graph", "invalid_reference") and
// the details needed to fix the input.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Cycle      []string
	Unresolved []string
	TaskID     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsCycleRejection reports whether err is a rejected edge, returning the
// cycle it would have closed.
func IsCycleRejection(err error) ([]string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == "cyclic_edge_rejected" {
		return apiErr.Cycle, true
	}
	return nil, false
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func (c *HTTPClient) analysis(ctx context.Context, path, project string, result any) error {
	q := url.Values{}
	if project != "" {
		q.Set("project", project)
	}
	return c.doJSON(ctx, http.MethodGet, withQuery(path, q), nil, result)
}

func getAnalysis[T any](ctx context.Context, c *HTTPClient, path, project string) (*T, error) {
	var v T
	if err := c.analysis(ctx, path, project, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	_, err := c.do(ctx, method, path, body, result)
	return err
}

// do is doJSON that also returns the response status code.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any, result any) (int, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error      string   `json:"error"`
			Code       string   `json:"code"`
			Cycle      []string `json:"cycle"`
			Unresolved []string `json:"unresolved"`
			TaskID     string   `json:"task_id"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return resp.StatusCode, &APIError{
				StatusCode: resp.StatusCode,
				Message:    errResp.Error,
				Code:       errResp.Code,
				Cycle:      errResp.Cycle,
				Unresolved: errResp.Unresolved,
				TaskID:     errResp.TaskID,
			}
		}
		return resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}

	return resp.StatusCode, nil
}
