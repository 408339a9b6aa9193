package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Snapshot is a consistent read of the task/dependency/assignee data the
// engine analyzes. Engine operations treat a snapshot as immutable.
type Snapshot struct {
	ProjectID    string        `json:"project_id,omitempty"`
	Tasks        []*Task       `json:"tasks"`
	Dependencies []*Dependency `json:"dependencies"`
	Assignees    []*Assignee   `json:"assignees"`
	TakenAt      time.Time     `json:"taken_at"`
}

// Fingerprint returns a stable content hash of the analysis inputs: task
// status, priority, assignee, estimates and due dates, the edges, and the
// assignee roles and capacities. Slice order, titles and TakenAt do not
// affect it.
func (s *Snapshot) Fingerprint() string {
	tasks := append([]*Task(nil), s.Tasks...)
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	edges := make([]EdgeKey, 0, len(s.Dependencies))
	for _, d := range s.Dependencies {
		edges = append(edges, d.Key())
	}
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.PrerequisiteID != b.PrerequisiteID {
			return a.PrerequisiteID < b.PrerequisiteID
		}
		if a.DependentID != b.DependentID {
			return a.DependentID < b.DependentID
		}
		return a.Kind < b.Kind
	})

	assignees := append([]*Assignee(nil), s.Assignees...)
	sort.Slice(assignees, func(i, j int) bool { return assignees[i].ID < assignees[j].ID })

	h := sha256.New()
	for _, t := range tasks {
		fmt.Fprintf(h, "t %q %q %q %q %s %s %s %s\n", t.ID, t.Status, t.Priority, t.Assignee,
			optFloat(t.EstimatedHours), optFloat(t.ActualHours), optInt(t.StoryPoints), optTime(t.DueAt))
	}
	for _, e := range edges {
		fmt.Fprintf(h, "e %q %q %q\n", e.PrerequisiteID, e.DependentID, e.Kind)
	}
	for _, a := range assignees {
		fmt.Fprintf(h, "a %q %q %s\n", a.ID, a.Role, strconv.FormatFloat(a.CapacityHours, 'g', -1, 64))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func optTime(v *time.Time) string {
	if v == nil {
		return "-"
	}
	return v.UTC().Format(time.RFC3339Nano)
}

// TaskIndex returns the snapshot's tasks keyed by ID.
func (s *Snapshot) TaskIndex() map[string]*Task {
	idx := make(map[string]*Task, len(s.Tasks))
	for _, t := range s.Tasks {
		idx[t.ID] = t
	}
	return idx
}
