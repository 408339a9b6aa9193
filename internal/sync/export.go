package sync

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/engine"
	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// FormatVersion is the JSONL export format version.
const FormatVersion = "1"

// Record types, in the order they appear in an export.
const (
	TypeHeader     = "header"
	TypeTask       = "task"
	TypeDependency = "dependency"
	TypeAssignee   = "assignee"
	TypeAnalysis   = "analysis"
)

// Snapshotter provides the consistent read an export is built from.
// store.Store satisfies it.
type Snapshotter interface {
	Snapshot(ctx context.Context, projectID string) (*model.Snapshot, error)
}

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version         string    `json:"version"`
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	ProjectID       string    `json:"project_id,omitempty"`
	Fingerprint     string    `json:"fingerprint"`
	Digest          string    `json:"digest"`
	TaskCount       int       `json:"task_count"`
	DependencyCount int       `json:"dependency_count"`
	AssigneeCount   int       `json:"assignee_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// analysisSummary is the trailing record: the critical path and a workload
// digest of the exported data. CriticalPath is empty when the data is
// cyclic.
type analysisSummary struct {
	Acyclic         bool              `json:"acyclic"`
	Cycles          [][]string        `json:"cycles,omitempty"`
	CriticalPath    []string          `json:"critical_path"`
	CriticalTaskIDs []string          `json:"critical_task_ids"`
	PathLength      float64           `json:"path_length"`
	Unestimated     []string          `json:"unestimated"`
	TeamBalance     float64           `json:"team_balance"`
	Workload        []workloadSummary `json:"workload"`
}

type workloadSummary struct {
	AssigneeID     string  `json:"assignee_id"`
	TaskCount      int     `json:"task_count"`
	EstimatedHours float64 `json:"estimated_hours"`
	Utilization    float64 `json:"utilization"`
	Overloaded     bool    `json:"overloaded"`
	Underloaded    bool    `json:"underloaded"`
}

// Meta identifies the content of an export.
type Meta struct {
	// Fingerprint is the analysis fingerprint of the exported snapshot.
	Fingerprint string
	// Digest is a SHA-256 of every record after the header. Exports of
	// unchanged data have the same digest.
	Digest string
}

// Export is one rendered JSONL document.
type Export struct {
	Meta
	Data []byte
}

// ExportJSONL writes the tasks, edges and assignees of one project (all
// projects when projectID is empty) as JSONL to w, followed by an analysis
// record. Records are sorted by id.
func ExportJSONL(ctx context.Context, s Snapshotter, e *engine.Engine, projectID string, w io.Writer) (Meta, error) {
	snap, err := s.Snapshot(ctx, projectID)
	if err != nil {
		return Meta{}, fmt.Errorf("load snapshot: %w", err)
	}
	report, err := e.Report(snap)
	if err != nil {
		return Meta{}, fmt.Errorf("analyze snapshot: %w", err)
	}

	tasks := append([]*model.Task(nil), snap.Tasks...)
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	deps := append([]*model.Dependency(nil), snap.Dependencies...)
	sort.Slice(deps, func(i, j int) bool {
		a, b := deps[i], deps[j]
		if a.PrerequisiteID != b.PrerequisiteID {
			return a.PrerequisiteID < b.PrerequisiteID
		}
		if a.DependentID != b.DependentID {
			return a.DependentID < b.DependentID
		}
		return a.Kind < b.Kind
	})
	assignees := append([]*model.Assignee(nil), snap.Assignees...)
	sort.Slice(assignees, func(i, j int) bool { return assignees[i].ID < assignees[j].ID })

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)

	for _, t := range tasks {
		if err := enc.Encode(record{Type: TypeTask, Data: t}); err != nil {
			return Meta{}, fmt.Errorf("encode task %s: %w", t.ID, err)
		}
	}
	for _, d := range deps {
		if err := enc.Encode(record{Type: TypeDependency, Data: d}); err != nil {
			return Meta{}, fmt.Errorf("encode dependency %s -> %s: %w", d.PrerequisiteID, d.DependentID, err)
		}
	}
	for _, a := range assignees {
		if err := enc.Encode(record{Type: TypeAssignee, Data: a}); err != nil {
			return Meta{}, fmt.Errorf("encode assignee %s: %w", a.ID, err)
		}
	}
	if err := enc.Encode(record{Type: TypeAnalysis, Data: summarize(report)}); err != nil {
		return Meta{}, fmt.Errorf("encode analysis: %w", err)
	}

	sum := sha256.Sum256(body.Bytes())
	meta := Meta{Fingerprint: report.Fingerprint, Digest: hex.EncodeToString(sum[:])}

	hdr, err := json.Marshal(header{
		Version:         FormatVersion,
		Type:            TypeHeader,
		Timestamp:       time.Now().UTC(),
		ProjectID:       projectID,
		Fingerprint:     meta.Fingerprint,
		Digest:          meta.Digest,
		TaskCount:       len(tasks),
		DependencyCount: len(deps),
		AssigneeCount:   len(assignees),
	})
	if err != nil {
		return Meta{}, fmt.Errorf("encode header: %w", err)
	}
	if _, err := w.Write(append(hdr, '\n')); err != nil {
		return Meta{}, fmt.Errorf("write header: %w", err)
	}
	if _, err := body.WriteTo(w); err != nil {
		return Meta{}, fmt.Errorf("write records: %w", err)
	}
	return meta, nil
}

func summarize(r *engine.Report) analysisSummary {
	out := analysisSummary{
		Acyclic:         r.Acyclic,
		CriticalPath:    []string{},
		CriticalTaskIDs: []string{},
		Unestimated:     []string{},
		TeamBalance:     r.TeamBalance,
		Workload:        make([]workloadSummary, 0, len(r.Workload)),
	}
	if !r.Acyclic {
		out.Cycles = r.Cycles
	}
	if cp := r.CriticalPath; cp != nil {
		out.CriticalPath = append(out.CriticalPath, cp.CriticalPath...)
		out.CriticalTaskIDs = append(out.CriticalTaskIDs, cp.CriticalTaskIDs...)
		out.Unestimated = append(out.Unestimated, cp.Unestimated...)
		out.PathLength = cp.PathLength
	}
	for _, rec := range r.Workload {
		out.Workload = append(out.Workload, workloadSummary{
			AssigneeID:     rec.AssigneeID,
			TaskCount:      rec.TaskCount,
			EstimatedHours: rec.EstimatedHours,
			Utilization:    rec.Utilization,
			Overloaded:     rec.Overloaded,
			Underloaded:    rec.Underloaded,
		})
	}
	return out
}

// ReadJSONL decodes an export back into a snapshot. The analysis record is
// derived data and is skipped; unknown record types are an error.
func ReadJSONL(r io.Reader) (*model.Snapshot, error) {
	snap := &model.Snapshot{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	sawHeader := false
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var raw struct {
			Type    string          `json:"type"`
			Version string          `json:"version"`
			Project string          `json:"project_id"`
			Data    json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(sc.Bytes(), &raw); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var err error
		switch raw.Type {
		case TypeHeader:
			if raw.Version != FormatVersion {
				return nil, fmt.Errorf("line %d: unsupported export version %q", line, raw.Version)
			}
			snap.ProjectID = raw.Project
			sawHeader = true
		case TypeTask:
			var t model.Task
			err = json.Unmarshal(raw.Data, &t)
			snap.Tasks = append(snap.Tasks, &t)
		case TypeDependency:
			var d model.Dependency
			err = json.Unmarshal(raw.Data, &d)
			snap.Dependencies = append(snap.Dependencies, &d)
		case TypeAssignee:
			var a model.Assignee
			err = json.Unmarshal(raw.Data, &a)
			snap.Assignees = append(snap.Assignees, &a)
		case TypeAnalysis:
		default:
			return nil, fmt.Errorf("line %d: unknown record type %q", line, raw.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: decode %s: %w", line, raw.Type, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	if !sawHeader {
		return nil, errors.New("export has no header record")
	}
	return snap, nil
}
