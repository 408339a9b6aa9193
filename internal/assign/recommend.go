// Package assign ranks assignees for unassigned tasks and proposes
// reassignments that even out team workload.
//
// Both are heuristics: scores rank candidates relative to each other and make
// no claim of a global optimum. Nothing here applies an assignment.
package assign

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/workload"
)

// Complexity buckets a task by size for the role affinity lookup.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// ComplexityOf classifies a task from its estimate and story points.
// Simple: at most 4h or 2 points. Complex: at least 16h or 8 points.
// A task with neither value is moderate.
func ComplexityOf(t *model.Task) Complexity {
	switch {
	case t.EstimatedHours == nil && t.StoryPoints == nil:
		return ComplexityModerate
	case (t.EstimatedHours != nil && *t.EstimatedHours >= 16) || (t.StoryPoints != nil && *t.StoryPoints >= 8):
		return ComplexityComplex
	case (t.EstimatedHours != nil && *t.EstimatedHours <= 4) || (t.StoryPoints != nil && *t.StoryPoints <= 2):
		return ComplexitySimple
	}
	return ComplexityModerate
}

// Affinity maps task complexity to a per-role score bonus. Roles are
// matched case-insensitively.
type Affinity map[Complexity]map[string]float64

// DefaultAffinity returns the built-in role affinity table.
func DefaultAffinity() Affinity {
	return Affinity{
		ComplexitySimple: {
			"junior":    5,
			"developer": 3,
			"designer":  2,
		},
		ComplexityModerate: {
			"developer": 5,
			"senior":    3,
			"designer":  2,
			"junior":    1,
		},
		ComplexityComplex: {
			"senior":    5,
			"lead":      5,
			"architect": 5,
			"developer": 2,
		},
	}
}

// Bonus returns the affinity bonus of role for complexity c.
func (a Affinity) Bonus(c Complexity, role string) float64 {
	return a[c][strings.ToLower(strings.TrimSpace(role))]
}

// Default scoring parameters.
const (
	DefaultTopN              = 3
	DefaultUrgencyBonus      = 10.0
	DefaultUtilizationWeight = 0.3
	DefaultEfficiencyWeight  = 0.1
	DefaultMinImprovement    = 1.0
	DefaultMaxMoves          = 10
)

// Options tunes recommendation and optimization. Zero values select the
// defaults.
type Options struct {
	Affinity          Affinity
	TopN              int
	UrgencyBonus      float64
	UtilizationWeight float64 // points subtracted per utilization percent
	EfficiencyWeight  float64 // points per efficiency percent above 100
	MinImprovement    float64 // team balance points a move must gain
	MaxMoves          int
	Workload          workload.Options

	// Critical marks tasks on the critical path. It only adds a reason; the
	// score is unaffected.
	Critical map[string]bool
}

// WithDefaults returns o with zero fields replaced by defaults.
func (o Options) WithDefaults() Options {
	if o.Affinity == nil {
		o.Affinity = DefaultAffinity()
	}
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	if o.UrgencyBonus <= 0 {
		o.UrgencyBonus = DefaultUrgencyBonus
	}
	if o.UtilizationWeight <= 0 {
		o.UtilizationWeight = DefaultUtilizationWeight
	}
	if o.EfficiencyWeight <= 0 {
		o.EfficiencyWeight = DefaultEfficiencyWeight
	}
	if o.MinImprovement <= 0 {
		o.MinImprovement = DefaultMinImprovement
	}
	if o.MaxMoves <= 0 {
		o.MaxMoves = DefaultMaxMoves
	}
	o.Workload = o.Workload.WithDefaults()
	return o
}

// Candidate is one ranked assignee suggestion for a task.
type Candidate struct {
	AssigneeID string   `json:"assignee_id"`
	Score      float64  `json:"score"`
	Reasons    []string `json:"reasons"`
}

// Recommend ranks assignees for every unassigned task that is still open.
// Each task maps to at most TopN candidates, best first; ties go to the
// smaller assignee id. Tasks already assigned or in a terminal status are
// skipped. An empty roster yields an empty map.
func Recommend(tasks []*model.Task, assignees []*model.Assignee, records []workload.Record, opts Options) map[string][]Candidate {
	opts = opts.WithDefaults()
	out := make(map[string][]Candidate)
	if len(assignees) == 0 {
		return out
	}

	for _, t := range tasks {
		if t.Assignee != "" || t.Status.IsTerminal() {
			continue
		}
		candidates := make([]Candidate, 0, len(assignees))
		for _, a := range assignees {
			rec, ok := workload.Find(records, a.ID)
			if !ok {
				rec = workload.Record{AssigneeID: a.ID, Role: a.Role, Efficiency: 100}
			}
			if rec.Role == "" {
				rec.Role = a.Role
			}
			candidates = append(candidates, Score(t, rec, opts))
		}
		rank(candidates)
		if len(candidates) > opts.TopN {
			candidates = candidates[:opts.TopN]
		}
		out[t.ID] = candidates
	}
	return out
}

// Score rates one assignee for one task. The score starts at 100, loses
// UtilizationWeight per utilization percent, gains the role affinity bonus,
// gains UrgencyBonus for urgent tasks when the assignee has nothing overdue,
// and moves by EfficiencyWeight per efficiency percent away from 100. The
// result is clamped to [0, 100].
func Score(t *model.Task, rec workload.Record, opts Options) Candidate {
	opts = opts.WithDefaults()
	c := Candidate{AssigneeID: rec.AssigneeID, Score: 100}

	utilPct := rec.Utilization * 100
	if penalty := utilPct * opts.UtilizationWeight; penalty > 0 {
		c.Score -= penalty
		c.Reasons = append(c.Reasons, fmt.Sprintf("%.0f%% utilized (-%.1f)", utilPct, penalty))
	} else {
		c.Reasons = append(c.Reasons, "no current workload")
	}

	complexity := ComplexityOf(t)
	if bonus := opts.Affinity.Bonus(complexity, rec.Role); bonus != 0 {
		c.Score += bonus
		c.Reasons = append(c.Reasons, fmt.Sprintf("%s role suits %s tasks (%+.1f)", rec.Role, complexity, bonus))
	}

	if t.Priority == model.PriorityUrgent && rec.OverdueCount == 0 {
		c.Score += opts.UrgencyBonus
		c.Reasons = append(c.Reasons, fmt.Sprintf("urgent task, no overdue work (+%.1f)", opts.UrgencyBonus))
	}

	if adj := (rec.Efficiency - 100) * opts.EfficiencyWeight; adj != 0 {
		c.Score += adj
		c.Reasons = append(c.Reasons, fmt.Sprintf("efficiency %.0f%% (%+.1f)", rec.Efficiency, adj))
	}

	if opts.Critical[t.ID] {
		c.Reasons = append(c.Reasons, "task is on the critical path")
	}

	c.Score = math.Max(0, math.Min(100, c.Score))
	return c
}

// rank sorts candidates by score, best first, then by assignee id.
func rank(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].AssigneeID < candidates[j].AssigneeID
	})
}
