// Package server exposes the task store and the scheduling engine over
// HTTP/JSON and gRPC. Both transports share the transport-agnostic methods
// in tasks.go and analysis.go.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/alfredjeanlab/taskgraph/internal/engine"
	"github.com/alfredjeanlab/taskgraph/internal/events"
	"github.com/alfredjeanlab/taskgraph/internal/graph"
	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/store"
)

// TaskGraphServer serves tasks, dependencies, assignees and analyses.
type TaskGraphServer struct {
	store     store.Store
	engine    *engine.Engine
	publisher events.Publisher
	refresher *engine.Refresher
	logger    *slog.Logger
}

// NewTaskGraphServer returns a server backed by the given store, engine and
// publisher. publisher and logger may be nil.
func NewTaskGraphServer(s store.Store, e *engine.Engine, p events.Publisher, logger *slog.Logger) *TaskGraphServer {
	if p == nil {
		p = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskGraphServer{store: s, engine: e, publisher: p, logger: logger}
}

// SetRefresher makes every successful mutation schedule a background
// recomputation.
func (s *TaskGraphServer) SetRefresher(r *engine.Refresher) {
	s.refresher = r
}

// recordAndPublish persists an event to the store and publishes it to NATS.
// Both operations are best-effort; failures are logged but do not block the caller.
func (s *TaskGraphServer) recordAndPublish(ctx context.Context, topic, taskID, actor string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal event", "topic", topic, "task_id", taskID, "error", err)
		return
	}
	if err := s.store.RecordEvent(ctx, &model.Event{
		Topic:   topic,
		TaskID:  taskID,
		Actor:   actor,
		Payload: payload,
	}); err != nil {
		s.logger.Warn("failed to record event", "topic", topic, "task_id", taskID, "error", err)
	}
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "task_id", taskID, "error", err)
	}
	if s.refresher != nil && topic != events.TopicDependencyRejected {
		s.refresher.Trigger()
	}
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// errorKind classifies a service error for the transports.
type errorKind int

const (
	kindInternal errorKind = iota
	kindInput
	kindNotFound
	kindCycle
	kindReference
)

func classify(err error) errorKind {
	var (
		ie inputError
		ve *model.ValidationError
	)
	switch {
	case errors.As(err, &ie), errors.As(err, &ve):
		return kindInput
	case errors.Is(err, sql.ErrNoRows):
		return kindNotFound
	case errors.Is(err, graph.ErrCyclicEdgeRejected), errors.Is(err, graph.ErrCyclicGraph):
		return kindCycle
	case errors.Is(err, graph.ErrInvalidReference):
		return kindReference
	}
	return kindInternal
}
