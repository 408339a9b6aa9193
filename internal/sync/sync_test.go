package sync

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// mockDestination records calls to Write.
type mockDestination struct {
	name   string
	writes atomic.Int64
	last   atomic.Value // Export
	fail   atomic.Bool
}

func (d *mockDestination) Name() string { return d.name }

func (d *mockDestination) Write(_ context.Context, exp Export) error {
	if d.fail.Load() {
		return errors.New("destination unavailable")
	}
	d.writes.Add(1)
	cp := exp
	cp.Data = append([]byte(nil), exp.Data...)
	d.last.Store(cp)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerStartStop(t *testing.T) {
	src := newMockSource(scenario())
	dest := &mockDestination{name: "mock"}

	sched := NewScheduler(src, newTestEngine(t), "", []Destination{dest}, 20*time.Millisecond, discardLogger())
	sched.Start()
	time.Sleep(50 * time.Millisecond)
	src.setTitle("A", "Renamed")
	time.Sleep(80 * time.Millisecond)
	sched.Stop()

	if writes := dest.writes.Load(); writes != 2 {
		t.Fatalf("expected 2 writes (initial and after change), got %d", writes)
	}
	exp, ok := dest.last.Load().(Export)
	if !ok || len(exp.Data) == 0 || exp.Digest == "" {
		t.Fatal("expected a non-empty export")
	}
	snap, err := ReadJSONL(bytes.NewReader(exp.Data))
	if err != nil {
		t.Fatalf("written export does not read back: %v", err)
	}
	if snap.TaskIndex()["A"].Title != "Renamed" {
		t.Error("last export should carry the renamed task")
	}
}

func TestSchedulerStop_NoStart(t *testing.T) {
	sched := NewScheduler(newMockSource(&model.Snapshot{}), newTestEngine(t), "", nil, time.Minute, discardLogger())
	// Stop without Start should not panic.
	sched.Stop()
}

func TestSyncOnce_SkipsUnchanged(t *testing.T) {
	src := newMockSource(scenario())
	dest := &mockDestination{name: "mock"}
	sched := NewScheduler(src, newTestEngine(t), "", []Destination{dest}, time.Minute, discardLogger())

	if n := sched.SyncOnce(context.Background()); n != 1 {
		t.Fatalf("first sync wrote %d destinations, want 1", n)
	}
	if n := sched.SyncOnce(context.Background()); n != 0 {
		t.Fatalf("unchanged sync wrote %d destinations, want 0", n)
	}
	src.setTitle("B", "Changed")
	if n := sched.SyncOnce(context.Background()); n != 1 {
		t.Fatalf("changed sync wrote %d destinations, want 1", n)
	}
}

func TestSyncOnce_RetriesFailedDestination(t *testing.T) {
	src := newMockSource(scenario())
	good := &mockDestination{name: "good"}
	bad := &mockDestination{name: "bad"}
	bad.fail.Store(true)
	sched := NewScheduler(src, newTestEngine(t), "", []Destination{good, bad}, time.Minute, discardLogger())

	if n := sched.SyncOnce(context.Background()); n != 1 {
		t.Fatalf("wrote %d destinations, want 1", n)
	}

	// The failed destination gets the same export on the next run.
	bad.fail.Store(false)
	if n := sched.SyncOnce(context.Background()); n != 1 {
		t.Fatalf("retry wrote %d destinations, want 1", n)
	}
	if good.writes.Load() != 1 || bad.writes.Load() != 1 {
		t.Errorf("writes good=%d bad=%d", good.writes.Load(), bad.writes.Load())
	}
}

func TestSyncOnce_ExportError(t *testing.T) {
	src := newMockSource(scenario())
	src.fail = true
	dest := &mockDestination{name: "mock"}
	sched := NewScheduler(src, newTestEngine(t), "", []Destination{dest}, time.Minute, discardLogger())

	if n := sched.SyncOnce(context.Background()); n != 0 {
		t.Fatalf("wrote %d destinations on export error", n)
	}
	if dest.writes.Load() != 0 {
		t.Error("destination should not be written")
	}
}
