package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/events"
	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// DefaultDebounce is the quiet period before a recomputation.
const DefaultDebounce = 500 * time.Millisecond

// SnapshotSource supplies consistent snapshots. store.Store satisfies it.
type SnapshotSource interface {
	Snapshot(ctx context.Context, projectID string) (*model.Snapshot, error)
}

// Refresher recomputes the report when the underlying data changes. Change
// notifications are debounced: a burst of changes yields one recomputation
// once the burst has been quiet for the debounce period, or after
// maxDelayFactor debounce periods when changes keep arriving.
type Refresher struct {
	engine    *Engine
	source    SnapshotSource
	publisher events.Publisher
	projectID string
	debounce  time.Duration
	logger    *slog.Logger

	trigger chan struct{}
	latest  atomic.Pointer[Report]
	runs    atomic.Int64
}

const maxDelayFactor = 10

// NewRefresher creates a Refresher for one project ("" for all tasks).
// publisher may be nil.
func NewRefresher(e *Engine, source SnapshotSource, publisher events.Publisher, projectID string, debounce time.Duration, logger *slog.Logger) *Refresher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		engine:    e,
		source:    source,
		publisher: publisher,
		projectID: projectID,
		debounce:  debounce,
		logger:    logger,
		trigger:   make(chan struct{}, 1),
	}
}

// Trigger requests a recomputation. It never blocks.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Latest returns the most recent report, or nil before the first run.
func (r *Refresher) Latest() *Report {
	return r.latest.Load()
}

// Runs returns how many recomputations have completed.
func (r *Refresher) Runs() int64 {
	return r.runs.Load()
}

// Run processes change notifications until ctx is cancelled. changes may be
// nil, in which case only Trigger schedules work. A closed changes channel
// is ignored from then on.
func (r *Refresher) Run(ctx context.Context, changes <-chan []byte) {
	r.logger.Info("analysis refresher started", "project", r.projectID, "debounce", r.debounce)

	var (
		timer        *time.Timer
		fire         <-chan time.Time
		pendingSince time.Time
	)
	schedule := func() {
		now := time.Now()
		if fire == nil {
			pendingSince = now
		} else if now.Sub(pendingSince) >= maxDelayFactor*r.debounce {
			return // let the pending timer fire
		}
		if timer == nil {
			timer = time.NewTimer(r.debounce)
		} else {
			timer.Reset(r.debounce)
		}
		fire = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			r.logger.Info("analysis refresher stopped", "project", r.projectID)
			return
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			schedule()
		case <-r.trigger:
			schedule()
		case <-fire:
			fire = nil
			if _, err := r.Refresh(ctx); err != nil {
				r.logger.Error("analysis refresh failed", "project", r.projectID, "err", err)
			}
		}
	}
}

// Refresh loads a fresh snapshot, computes its report and publishes an
// analysis-completed event.
func (r *Refresher) Refresh(ctx context.Context) (*Report, error) {
	snap, err := r.source.Snapshot(ctx, r.projectID)
	if err != nil {
		return nil, err
	}
	report, err := r.engine.Report(snap)
	if err != nil {
		return nil, err
	}
	r.latest.Store(report)
	r.runs.Add(1)

	evt := events.AnalysisCompleted{
		ProjectID:   report.ProjectID,
		Fingerprint: report.Fingerprint,
		TaskCount:   report.TaskCount,
		CycleCount:  len(report.Cycles),
		TeamBalance: report.TeamBalance,
		ComputedAt:  report.GeneratedAt,
	}
	if report.CriticalPath != nil {
		evt.PathLength = report.CriticalPath.PathLength
		evt.CriticalPath = report.CriticalPath.CriticalPath
	}
	if err := r.publisher.Publish(ctx, events.TopicAnalysisCompleted, evt); err != nil {
		r.logger.Warn("publishing analysis event", "err", err)
	}
	return report, nil
}
