// Package sync periodically exports the task graph as JSONL to backup
// destinations such as S3 or a git working copy.
package sync

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/engine"
)

// Destination is a sync target (S3, git, etc.).
type Destination interface {
	// Name identifies the destination in logs.
	Name() string
	// Write sends one export to the destination.
	Write(ctx context.Context, exp Export) error
}

// Scheduler runs periodic syncs to one or more destinations. An export
// whose digest matches the last one a destination accepted is not written
// to it again.
type Scheduler struct {
	source       Snapshotter
	engine       *engine.Engine
	projectID    string
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	mu   sync.Mutex
	last map[string]string // destination name -> last written digest

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports projectID (all projects when
// empty) from source to the given destinations at the specified interval.
func NewScheduler(source Snapshotter, e *engine.Engine, projectID string, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		source:       source,
		engine:       e,
		projectID:    projectID,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
		last:         make(map[string]string),
	}
}

// Start begins periodic sync. It runs an initial sync immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current sync (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.SyncOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SyncOnce(ctx)
		}
	}
}

// SyncOnce exports once and writes to every destination that has not
// already received the same content. It returns the number of writes that
// succeeded.
func (s *Scheduler) SyncOnce(ctx context.Context) int {
	var buf bytes.Buffer
	meta, err := ExportJSONL(ctx, s.source, s.engine, s.projectID, &buf)
	if err != nil {
		s.logger.Error("sync export failed", "err", err)
		return 0
	}
	exp := Export{Meta: meta, Data: buf.Bytes()}

	written := 0
	for _, dest := range s.destinations {
		name := dest.Name()
		if s.lastDigest(name) == meta.Digest {
			s.logger.Debug("sync skipped, unchanged", "destination", name)
			continue
		}
		if err := dest.Write(ctx, exp); err != nil {
			s.logger.Error("sync destination write failed", "destination", name, "err", err)
			continue
		}
		s.setLastDigest(name, meta.Digest)
		written++
	}

	if written > 0 {
		s.logger.Info("sync completed", "destinations", written, "bytes", len(exp.Data), "fingerprint", meta.Fingerprint)
	}
	return written
}

func (s *Scheduler) lastDigest(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[name]
}

func (s *Scheduler) setLastDigest(name, digest string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[name] = digest
}
