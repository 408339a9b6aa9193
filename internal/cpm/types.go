package cpm

// Result holds the complete critical path analysis of one graph.
type Result struct {
	Tasks           map[string]*TaskSchedule `json:"tasks"`
	CriticalTaskIDs []string                 `json:"critical_task_ids"` // every task on some maximal path, sorted
	CriticalPath    []string                 `json:"critical_path"`     // one maximal path, root to leaf
	PathLength      float64                  `json:"path_length"`
	Unestimated     []string                 `json:"unestimated"` // tasks without a recorded duration, sorted
	Waves           []Wave                   `json:"waves"`
	TopoOrder       []string                 `json:"topo_order"`
}

// TaskSchedule holds the scheduling info for a single task, in hours.
type TaskSchedule struct {
	TaskID      string  `json:"task_id"`
	Duration    float64 `json:"duration"`
	ES          float64 `json:"earliest_start"`
	EF          float64 `json:"earliest_finish"`
	LS          float64 `json:"latest_start"`
	LF          float64 `json:"latest_finish"`
	Slack       float64 `json:"slack"`
	LongestFrom float64 `json:"longest_from"` // duration of the longest chain starting here
	IsCritical  bool    `json:"is_critical"`
	Estimated   bool    `json:"estimated"`
	Wave        int     `json:"wave"`
}

// Wave is a group of tasks sharing an earliest start; its members can run
// in parallel.
type Wave struct {
	Index      int      `json:"index"`
	Start      float64  `json:"start"`
	TaskIDs    []string `json:"task_ids"`
	IsCritical bool     `json:"is_critical"` // true if the wave contains a critical task
}

// IsCritical reports whether the task lies on a maximal path.
func (r *Result) IsCritical(id string) bool {
	ts, ok := r.Tasks[id]
	return ok && ts.IsCritical
}

// CriticalSet returns the critical task ids as a set.
func (r *Result) CriticalSet() map[string]bool {
	set := make(map[string]bool, len(r.CriticalTaskIDs))
	for _, id := range r.CriticalTaskIDs {
		set[id] = true
	}
	return set
}
