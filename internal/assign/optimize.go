package assign

import (
	"fmt"
	"sort"

	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/workload"
)

// Move is an advisory reassignment of one task.
type Move struct {
	TaskID string  `json:"task_id"`
	From   string  `json:"from"`
	To     string  `json:"to"`
	Hours  float64 `json:"hours"`
	Score  float64 `json:"score"` // recommender score of To for the task
	Reason string  `json:"reason"`
	Impact float64 `json:"impact"` // team balance points gained
}

// Plan is the output of Optimize.
type Plan struct {
	BalanceScore          float64 `json:"balance_score"`           // current team balance
	ProjectedBalanceScore float64 `json:"projected_balance_score"` // after applying every move
	Recommendations       []Move  `json:"recommendations"`
}

// Optimize proposes moves from overloaded to underloaded assignees.
//
// Overloaded assignees are visited most loaded first. Their not-yet-started
// tasks are tried largest estimate first (lower priority first on ties) and
// offered to the best-scoring underloaded roster member the task would not
// overload. A move is kept only when it raises the mean team balance by at
// least MinImprovement. Kept moves update the simulated loads, so later
// moves account for earlier ones. At most MaxMoves are proposed.
func Optimize(tasks []*model.Task, assignees []*model.Assignee, records []workload.Record, opts Options) *Plan {
	opts = opts.WithDefaults()

	sim := make(map[string]workload.Record, len(records))
	ids := make([]string, 0, len(records))
	for _, r := range records {
		sim[r.AssigneeID] = r
		ids = append(ids, r.AssigneeID)
	}
	sort.Strings(ids)

	plan := &Plan{
		BalanceScore:    teamBalance(sim, ids),
		Recommendations: []Move{},
	}

	roster := make(map[string]bool, len(assignees))
	for _, a := range assignees {
		roster[a.ID] = true
	}

	var overloaded []string
	for _, id := range ids {
		if sim[id].Overloaded {
			overloaded = append(overloaded, id)
		}
	}
	sort.SliceStable(overloaded, func(i, j int) bool {
		return sim[overloaded[i]].Utilization > sim[overloaded[j]].Utilization
	})

	for _, from := range overloaded {
		for _, t := range movable(tasks, from) {
			if len(plan.Recommendations) >= opts.MaxMoves || !sim[from].Overloaded {
				break
			}

			var receivers []workload.Record
			for _, id := range ids {
				if id != from && roster[id] && sim[id].Underloaded {
					receivers = append(receivers, sim[id])
				}
			}
			if len(receivers) == 0 {
				break
			}

			best, newTo, ok := firstFit(t, receivers, sim, opts)
			if !ok {
				continue
			}
			before := teamBalance(sim, ids)
			newFrom := workload.Rescore(sim[from], -t.Hours(), opts.Workload)

			oldFrom, oldTo := sim[from], sim[best.AssigneeID]
			sim[from], sim[best.AssigneeID] = newFrom, newTo
			impact := teamBalance(sim, ids) - before
			if impact < opts.MinImprovement {
				sim[from], sim[best.AssigneeID] = oldFrom, oldTo
				continue
			}

			plan.Recommendations = append(plan.Recommendations, Move{
				TaskID: t.ID,
				From:   from,
				To:     best.AssigneeID,
				Hours:  t.Hours(),
				Score:  best.Score,
				Reason: fmt.Sprintf("%s is at %.0f%% utilization and %s at %.0f%%; moving %.1fh brings them to %.0f%% and %.0f%%",
					from, oldFrom.Utilization*100, best.AssigneeID, oldTo.Utilization*100,
					t.Hours(), newFrom.Utilization*100, newTo.Utilization*100),
				Impact: impact,
			})
		}
	}

	plan.ProjectedBalanceScore = teamBalance(sim, ids)
	return plan
}

// movable returns the estimated, not-yet-started tasks held by assignee,
// largest first, lower priority first on ties.
func movable(tasks []*model.Task, assignee string) []*model.Task {
	var out []*model.Task
	for _, t := range tasks {
		if t.Assignee == assignee && t.Status == model.StatusTodo && t.Hours() > 0 {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Hours() != out[j].Hours() {
			return out[i].Hours() > out[j].Hours()
		}
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() < out[j].Priority.Rank()
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// firstFit ranks receivers for t and returns the best-scoring one that the
// task would not overload, with its rescored record.
func firstFit(t *model.Task, receivers []workload.Record, sim map[string]workload.Record, opts Options) (Candidate, workload.Record, bool) {
	candidates := make([]Candidate, len(receivers))
	for i, r := range receivers {
		candidates[i] = Score(t, r, opts)
	}
	rank(candidates)
	for _, c := range candidates {
		if rec := workload.Rescore(sim[c.AssigneeID], t.Hours(), opts.Workload); !rec.Overloaded {
			return c, rec, true
		}
	}
	return Candidate{}, workload.Record{}, false
}

// teamBalance is workload.TeamBalance over the simulated records, summed in
// id order so results are reproducible.
func teamBalance(sim map[string]workload.Record, ids []string) float64 {
	if len(ids) == 0 {
		return 0
	}
	total := 0.0
	for _, id := range ids {
		total += sim[id].BalanceScore
	}
	return total / float64(len(ids))
}
