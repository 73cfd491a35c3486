// Package persistence provides the storage abstraction for flows, execution logs and checkpoints.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/marketflow/pkg/models"
)

// FlowRepository stores flow definitions.
type FlowRepository interface {
	Flows(ctx context.Context) ([]*models.Flow, error)
	// ActiveFlows returns the flows that are active and not drafts.
	ActiveFlows(ctx context.Context) ([]*models.Flow, error)
	FlowByID(ctx context.Context, id string) (*models.Flow, error)
	SaveFlow(ctx context.Context, flow *models.Flow) error
	DeleteFlow(ctx context.Context, id string) error
}

// ExecutionLogRepository is the append-only execution log. Append must
// update the owning flow's stats as part of the same write.
type ExecutionLogRepository interface {
	Append(ctx context.Context, log *models.ExecutionLog) error
	HasRecentSuccess(ctx context.Context, flowID, subjectKey, eventType string, since time.Time) (bool, error)
	Stats(ctx context.Context, flowID string) (models.FlowStats, error)
	// LogsByFlow returns the newest logs first; limit <= 0 returns all.
	LogsByFlow(ctx context.Context, flowID string, limit int) ([]*models.ExecutionLog, error)
}

// CheckpointRepository holds traversals parked on long delays.
type CheckpointRepository interface {
	Save(ctx context.Context, checkpoint *models.Checkpoint) error
	// Due returns up to limit checkpoints whose ResumeAt is not after now,
	// oldest first.
	Due(ctx context.Context, now time.Time, limit int) ([]*models.Checkpoint, error)
	// Delete removes a checkpoint and reports whether this call removed it.
	// Callers use it to claim a checkpoint before resuming.
	Delete(ctx context.Context, id string) (bool, error)
}

// Persistence bundles the repositories one storage back-end provides.
type Persistence interface {
	FlowRepository

	ExecutionLogs() ExecutionLogRepository
	Checkpoints() CheckpointRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
