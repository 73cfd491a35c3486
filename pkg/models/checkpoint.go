package models

import "time"

// Checkpoint parks a traversal on a long delay node until ResumeAt.
// NodeID is the delay node; the traversal continues along its outgoing edge.
type Checkpoint struct {
	ID        string           `json:"id"`
	FlowID    string           `json:"flow_id"`
	NodeID    string           `json:"node_id"`
	EventType string           `json:"event_type"`
	Context   ExecutionContext `json:"context"`
	Visited   []string         `json:"visited"`
	ResumeAt  time.Time        `json:"resume_at"`
	CreatedAt time.Time        `json:"created_at"`
}

// IsDue reports whether the checkpoint should be resumed at now.
func (c *Checkpoint) IsDue(now time.Time) bool {
	return !c.ResumeAt.After(now)
}
