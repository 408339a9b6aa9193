// Package workload aggregates per-assignee task load into utilization,
// efficiency and balance metrics. It does not look at the dependency graph.
package workload

import (
	"math"
	"sort"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// Default analysis parameters.
const (
	DefaultCapacityHours      = 40.0
	DefaultTargetUtilization  = 0.8
	DefaultOverloadThreshold  = 1.0
	DefaultUnderloadThreshold = 0.5
)

// Options tunes the workload analysis. Zero values select the defaults.
type Options struct {
	CapacityHoursPerWeek float64
	TargetUtilization    float64
	OverloadThreshold    float64
	UnderloadThreshold   float64
	Now                  time.Time // reference time for overdue counts
}

// WithDefaults returns o with zero fields replaced by defaults.
func (o Options) WithDefaults() Options {
	if o.CapacityHoursPerWeek <= 0 {
		o.CapacityHoursPerWeek = DefaultCapacityHours
	}
	if o.TargetUtilization <= 0 {
		o.TargetUtilization = DefaultTargetUtilization
	}
	if o.OverloadThreshold <= 0 {
		o.OverloadThreshold = DefaultOverloadThreshold
	}
	if o.UnderloadThreshold <= 0 {
		o.UnderloadThreshold = DefaultUnderloadThreshold
	}
	return o
}

// Record is the derived workload of one assignee.
type Record struct {
	AssigneeID       string   `json:"assignee_id"`
	Name             string   `json:"name,omitempty"`
	Role             string   `json:"role,omitempty"`
	Known            bool     `json:"known"` // false when only referenced by tasks
	TaskCount        int      `json:"task_count"`
	TaskIDs          []string `json:"task_ids"`
	EstimatedHours   float64  `json:"estimated_hours"`
	ActualHours      float64  `json:"actual_hours"`
	StoryPoints      int      `json:"story_points"`
	CapacityHours    float64  `json:"capacity_hours"`
	Utilization      float64  `json:"utilization"` // ratio, 1.0 = at capacity
	Efficiency       float64  `json:"efficiency"`  // percent, 100 = on estimate
	BalanceScore     float64  `json:"balance_score"`
	Overloaded       bool     `json:"overloaded"`
	Underloaded      bool     `json:"underloaded"`
	OverdueCount     int      `json:"overdue_count"`
	UnestimatedCount int      `json:"unestimated_count"`
}

// Analyze computes one Record per assignee. Every roster entry gets a record,
// and so does any assignee id referenced by a task but missing from the
// roster. Only non-archived tasks count. Output is sorted by assignee id and
// depends only on the inputs.
func Analyze(tasks []*model.Task, assignees []*model.Assignee, opts Options) []Record {
	opts = opts.WithDefaults()

	byID := make(map[string]*Record)
	for _, a := range assignees {
		if _, dup := byID[a.ID]; dup {
			continue
		}
		capacity := a.CapacityHours
		if capacity <= 0 {
			capacity = opts.CapacityHoursPerWeek
		}
		byID[a.ID] = &Record{
			AssigneeID:    a.ID,
			Name:          a.Name,
			Role:          a.Role,
			Known:         true,
			TaskIDs:       []string{},
			CapacityHours: capacity,
		}
	}

	for _, t := range tasks {
		if t.Assignee == "" || t.Status.IsArchived() {
			continue
		}
		r, ok := byID[t.Assignee]
		if !ok {
			r = &Record{AssigneeID: t.Assignee, TaskIDs: []string{}, CapacityHours: opts.CapacityHoursPerWeek}
			byID[t.Assignee] = r
		}
		r.TaskCount++
		r.TaskIDs = append(r.TaskIDs, t.ID)
		r.EstimatedHours += t.Hours()
		r.ActualHours += t.Actual()
		r.StoryPoints += t.Points()
		if !t.IsEstimated() {
			r.UnestimatedCount++
		}
		if !opts.Now.IsZero() && t.IsOverdue(opts.Now) {
			r.OverdueCount++
		}
	}

	records := make([]Record, 0, len(byID))
	for _, r := range byID {
		sort.Strings(r.TaskIDs)
		score(r, opts)
		records = append(records, *r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].AssigneeID < records[j].AssigneeID })
	return records
}

// score fills the derived ratios of r from its totals.
func score(r *Record, opts Options) {
	r.Utilization = r.EstimatedHours / r.CapacityHours
	r.Efficiency = Efficiency(r.ActualHours, r.EstimatedHours)
	r.BalanceScore = BalanceScore(r.Utilization, opts.TargetUtilization)
	r.Overloaded = r.Utilization > opts.OverloadThreshold
	r.Underloaded = r.Utilization < opts.UnderloadThreshold
}

// Efficiency returns actual/estimated hours as a percent. It is 100 when no
// actual hours are recorded or nothing is estimated.
func Efficiency(actual, estimated float64) float64 {
	if actual <= 0 || estimated <= 0 {
		return 100
	}
	return actual / estimated * 100
}

// BalanceScore rewards utilization close to target: 100 at the target,
// dropping one point per percentage point of distance, floored at 0.
func BalanceScore(utilization, target float64) float64 {
	return math.Max(0, 100-math.Abs(utilization*100-target*100))
}

// TeamBalance returns the mean balance score across records, or 0 for none.
func TeamBalance(records []Record) float64 {
	if len(records) == 0 {
		return 0
	}
	total := 0.0
	for _, r := range records {
		total += r.BalanceScore
	}
	return total / float64(len(records))
}

// Find returns the record for the assignee, if present.
func Find(records []Record, assigneeID string) (Record, bool) {
	i := sort.Search(len(records), func(i int) bool { return records[i].AssigneeID >= assigneeID })
	if i < len(records) && records[i].AssigneeID == assigneeID {
		return records[i], true
	}
	return Record{}, false
}

// Rescore returns a copy of r with hours moved in or out (delta may be
// negative) and its derived ratios recomputed. Used to simulate reassignment.
func Rescore(r Record, deltaHours float64, opts Options) Record {
	opts = opts.WithDefaults()
	r.EstimatedHours = math.Max(0, r.EstimatedHours+deltaHours)
	score(&r, opts)
	return r
}
