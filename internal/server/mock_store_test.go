package server

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/engine"
	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/store"
)

// mockStore is an in-memory store.Store. Missing rows return sql.ErrNoRows
// like the Postgres store.
type mockStore struct {
	mu        sync.Mutex
	tasks     map[string]*model.Task
	deps      map[model.EdgeKey]*model.Dependency
	assignees map[string]*model.Assignee
	events    []*model.Event
	nextEvent int64
}

var _ store.Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{
		tasks:     make(map[string]*model.Task),
		deps:      make(map[model.EdgeKey]*model.Dependency),
		assignees: make(map[string]*model.Assignee),
	}
}

func (m *mockStore) CreateTask(_ context.Context, t *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *t
	m.tasks[t.ID] = &clone
	return nil
}

func (m *mockStore) GetTask(_ context.Context, id string) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *t
	return &clone, nil
}

func (m *mockStore) ListTasks(_ context.Context, filter model.TaskFilter) ([]*model.Task, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Task
	for _, t := range m.sortedTasks() {
		if filter.ProjectID != "" && t.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Assignee != "" && t.Assignee != filter.Assignee {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(filter.Search)) {
			continue
		}
		if len(filter.Status) > 0 && !containsStatus(filter.Status, t.Status) {
			continue
		}
		out = append(out, t)
	}
	total := len(out)
	if filter.Offset > 0 && filter.Offset < len(out) {
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func containsStatus(list []model.Status, s model.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (m *mockStore) UpdateTask(_ context.Context, t *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return sql.ErrNoRows
	}
	t.UpdatedAt = time.Now().UTC()
	clone := *t
	m.tasks[t.ID] = &clone
	return nil
}

func (m *mockStore) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.tasks, id)
	for k := range m.deps {
		if k.PrerequisiteID == id || k.DependentID == id {
			delete(m.deps, k)
		}
	}
	return nil
}

func (m *mockStore) AddDependency(_ context.Context, dep *model.Dependency) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dep.Key()
	if _, ok := m.deps[key]; ok {
		return false, nil
	}
	clone := *dep
	clone.Kind = key.Kind
	m.deps[key] = &clone
	return true, nil
}

func (m *mockStore) RemoveDependency(_ context.Context, prerequisiteID, dependentID string, kind model.DependencyKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := model.EdgeKey{PrerequisiteID: prerequisiteID, DependentID: dependentID, Kind: kind.OrDefault()}
	if _, ok := m.deps[key]; !ok {
		return sql.ErrNoRows
	}
	delete(m.deps, key)
	return nil
}

func (m *mockStore) ListDependencies(_ context.Context, taskID string) ([]*model.Dependency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Dependency
	for _, d := range m.sortedDeps() {
		if taskID == "" || d.PrerequisiteID == taskID || d.DependentID == taskID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockStore) UpsertAssignee(_ context.Context, a *model.Assignee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *a
	m.assignees[a.ID] = &clone
	return nil
}

func (m *mockStore) GetAssignee(_ context.Context, id string) (*model.Assignee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignees[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return a, nil
}

func (m *mockStore) ListAssignees(_ context.Context) ([]*model.Assignee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedAssignees(), nil
}

func (m *mockStore) DeleteAssignee(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assignees[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.assignees, id)
	return nil
}

func (m *mockStore) RecordEvent(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEvent++
	e.ID = m.nextEvent
	e.CreatedAt = time.Now().UTC()
	m.events = append(m.events, e)
	return nil
}

func (m *mockStore) GetEvents(_ context.Context, taskID string) ([]*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Event
	for _, e := range m.events {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockStore) Snapshot(_ context.Context, projectID string) (*model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := &model.Snapshot{ProjectID: projectID, TakenAt: time.Now().UTC()}
	in := make(map[string]bool)
	for _, t := range m.sortedTasks() {
		if projectID == "" || t.ProjectID == projectID {
			clone := *t
			snap.Tasks = append(snap.Tasks, &clone)
			in[t.ID] = true
		}
	}
	for _, d := range m.sortedDeps() {
		if in[d.PrerequisiteID] && in[d.DependentID] {
			snap.Dependencies = append(snap.Dependencies, d)
		}
	}
	snap.Assignees = m.sortedAssignees()
	return snap, nil
}

// RunInTransaction runs fn against the store itself; the mock has no
// rollback.
func (m *mockStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(m)
}

func (m *mockStore) Close() error { return nil }

func (m *mockStore) eventTopics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	topics := make([]string, len(m.events))
	for i, e := range m.events {
		topics[i] = e.Topic
	}
	return topics
}

func (m *mockStore) sortedTasks() []*model.Task {
	out := make([]*model.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *mockStore) sortedDeps() []*model.Dependency {
	out := make([]*model.Dependency, 0, len(m.deps))
	for _, d := range m.deps {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PrerequisiteID != out[j].PrerequisiteID {
			return out[i].PrerequisiteID < out[j].PrerequisiteID
		}
		return out[i].DependentID < out[j].DependentID
	})
	return out
}

func (m *mockStore) sortedAssignees() []*model.Assignee {
	out := make([]*model.Assignee, 0, len(m.assignees))
	for _, a := range m.assignees {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// recordingPublisher captures published topics.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func newTestServer() (*TaskGraphServer, *mockStore, *recordingPublisher) {
	ms := newMockStore()
	pub := &recordingPublisher{}
	e, err := engine.New(engine.Options{}, nil)
	if err != nil {
		panic(err)
	}
	return NewTaskGraphServer(ms, e, pub, nil), ms, pub
}

// seedScenario stores A(4) -> C(3) -> D(5), B(6) -> D with assignees X and Y.
func seedScenario(ms *mockStore) {
	ctx := context.Background()
	now := time.Now().UTC()
	for _, t := range []struct {
		id, assignee string
		hours        float64
	}{{"A", "X", 4}, {"B", "X", 6}, {"C", "", 3}, {"D", "Y", 5}} {
		_ = ms.CreateTask(ctx, &model.Task{
			ID: t.id, Title: "task " + t.id, Status: model.StatusTodo, Priority: model.PriorityMedium,
			Assignee: t.assignee, EstimatedHours: model.Float64(t.hours), CreatedAt: now, UpdatedAt: now,
		})
	}
	for _, e := range [][2]string{{"A", "C"}, {"B", "D"}, {"C", "D"}} {
		_, _ = ms.AddDependency(ctx, &model.Dependency{PrerequisiteID: e[0], DependentID: e[1]})
	}
	_ = ms.UpsertAssignee(ctx, &model.Assignee{ID: "X", Name: "Xi", Role: "developer"})
	_ = ms.UpsertAssignee(ctx, &model.Assignee{ID: "Y", Name: "Yu", Role: "senior"})
}
