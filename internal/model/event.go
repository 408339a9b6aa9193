package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Event is the audit record of one mutation. Topic is the NATS subject the
// event was published on; Payload is the published JSON body.
type Event struct {
	ID        int64           `json:"id"`
	Topic     string          `json:"topic"`
	TaskID    string          `json:"task_id"`
	Actor     string          `json:"actor,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Action is the topic with its "taskgraph." prefix removed, e.g.
// "dependency.rejected".
func (e *Event) Action() string {
	return strings.TrimPrefix(e.Topic, "taskgraph.")
}
