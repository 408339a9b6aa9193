package model

import "time"

// Assignee is a person tasks can be assigned to.
type Assignee struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Role          string    `json:"role,omitempty"`
	CapacityHours float64   `json:"capacity_hours,omitempty"` // weekly; 0 = engine default
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
