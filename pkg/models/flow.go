// Package models defines the core domain models for graph-based marketing automation flows.
package models

import (
	"time"
)

// Channel is the delivery medium a flow sends its messages through.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Flow is an automation graph of typed nodes connected by edges.
// The node/edge graph is only ever replaced as a whole (see ReplaceGraph);
// metadata and activation flags may be patched independently.
type Flow struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"                   validate:"required,min=3"`
	Description string     `json:"description"`
	Channel     Channel    `json:"channel"                validate:"required,oneof=email sms"`
	IsActive    bool       `json:"is_active"`
	IsDraft     bool       `json:"is_draft"`
	Nodes       []*Node    `json:"nodes"                  validate:"dive"`
	Edges       []*Edge    `json:"edges"                  validate:"dive"`
	Stats       FlowStats  `json:"stats"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}

// Edge connects two nodes. BranchLabel selects the edge taken after a
// condition node; an empty label is the default (only) edge.
type Edge struct {
	ID          string `json:"id"                     validate:"required"`
	Source      string `json:"source"                 validate:"required"`
	Target      string `json:"target"                 validate:"required"`
	BranchLabel string `json:"branch_label,omitempty" validate:"omitempty,oneof=true false"`
}

// FlowStats are aggregate counters derived from the flow's execution logs.
type FlowStats struct {
	TotalExecutions int64      `json:"total_executions"`
	SuccessCount    int64      `json:"success_count"`
	FailureCount    int64      `json:"failure_count"`
	LastExecutedAt  *time.Time `json:"last_executed_at,omitempty"`
}

// Apply folds one execution log into the counters.
func (s *FlowStats) Apply(log *ExecutionLog) {
	s.TotalExecutions++

	switch log.Status {
	case LogStatusSuccess:
		s.SuccessCount++
	case LogStatusFailure:
		s.FailureCount++
	}

	executedAt := log.ExecutedAt
	if s.LastExecutedAt == nil || executedAt.After(*s.LastExecutedAt) {
		s.LastExecutedAt = &executedAt
	}
}

// IsRunnable reports whether the engine may start traversals of this flow.
func (f *Flow) IsRunnable() bool {
	return f.IsActive && !f.IsDraft
}

// TriggerNode returns the flow's entry node, or nil when none is declared.
func (f *Flow) TriggerNode() *Node {
	for _, node := range f.Nodes {
		if node.Type == NodeTypeTrigger {
			return node
		}
	}

	return nil
}

// NodeByID looks a node up by its id.
func (f *Flow) NodeByID(id string) (*Node, bool) {
	for _, node := range f.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}

// OutgoingEdges returns the edges leaving nodeID in declaration order.
func (f *Flow) OutgoingEdges(nodeID string) []*Edge {
	var edges []*Edge

	for _, edge := range f.Edges {
		if edge.Source == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// ReplaceGraph swaps the node/edge graph wholesale.
func (f *Flow) ReplaceGraph(nodes []*Node, edges []*Edge) {
	f.Nodes = nodes
	f.Edges = edges
	f.UpdatedAt = time.Now().UTC()
}
