// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"fmt"
	"time"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/google/uuid"
)

// TriggerNodeID is the id CreateTestFlow gives its trigger node.
const TriggerNodeID = "trigger"

// CreateTestFlow creates an active email flow with a single order_created
// trigger node. Overrides are applied in order.
func CreateTestFlow(overrides ...func(*models.Flow)) *models.Flow {
	now := time.Now().UTC()

	flow := &models.Flow{
		ID:        uuid.New().String(),
		Name:      "Test Flow",
		Channel:   models.ChannelEmail,
		IsActive:  true,
		Nodes:     []*models.Node{models.NewTriggerNode(TriggerNodeID, models.TriggerConfig{EventType: "order_created"})},
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, override := range overrides {
		override(flow)
	}

	return flow
}

// WithID sets the flow id.
func WithID(id string) func(*models.Flow) {
	return func(f *models.Flow) {
		f.ID = id
	}
}

// WithChannel sets the flow channel.
func WithChannel(channel models.Channel) func(*models.Flow) {
	return func(f *models.Flow) {
		f.Channel = channel
	}
}

// WithTrigger replaces the trigger node configuration.
func WithTrigger(cfg models.TriggerConfig) func(*models.Flow) {
	return func(f *models.Flow) {
		if trigger := f.TriggerNode(); trigger != nil {
			trigger.Trigger = &cfg
		}
	}
}

// WithNodes appends nodes to the flow.
func WithNodes(nodes ...*models.Node) func(*models.Flow) {
	return func(f *models.Flow) {
		f.Nodes = append(f.Nodes, nodes...)
	}
}

// WithChain links the given node ids one after another with unlabeled edges.
func WithChain(ids ...string) func(*models.Flow) {
	return func(f *models.Flow) {
		for i := 1; i < len(ids); i++ {
			f.Edges = append(f.Edges, newEdge(f, ids[i-1], ids[i], ""))
		}
	}
}

// WithBranch adds a labeled edge leaving a condition node.
func WithBranch(source, target string, branch bool) func(*models.Flow) {
	return func(f *models.Flow) {
		f.Edges = append(f.Edges, newEdge(f, source, target, fmt.Sprintf("%t", branch)))
	}
}

// Draft marks the flow as a draft.
func Draft() func(*models.Flow) {
	return func(f *models.Flow) {
		f.IsDraft = true
	}
}

// Inactive deactivates the flow.
func Inactive() func(*models.Flow) {
	return func(f *models.Flow) {
		f.IsActive = false
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func newEdge(f *models.Flow, source, target, label string) *models.Edge {
	return &models.Edge{
		ID:          fmt.Sprintf("e%d", len(f.Edges)+1),
		Source:      source,
		Target:      target,
		BranchLabel: label,
	}
}
