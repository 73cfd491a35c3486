package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/persistence"
)

const flowsDir = "flows"

// Flows returns every stored flow ordered by creation time.
func (fp *Persistence) Flows(ctx context.Context) ([]*models.Flow, error) {
	ids, err := fp.ids(flowsDir)
	if err != nil {
		return nil, err
	}

	flows := make([]*models.Flow, 0, len(ids))

	for _, id := range ids {
		flow, err := fp.FlowByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load flow %s: %w", id, err)
		}

		flows = append(flows, flow)
	}

	sort.SliceStable(flows, func(i, j int) bool {
		return flows[i].CreatedAt.Before(flows[j].CreatedAt)
	})

	return flows, nil
}

// ActiveFlows returns the flows the engine may start.
func (fp *Persistence) ActiveFlows(ctx context.Context) ([]*models.Flow, error) {
	flows, err := fp.Flows(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]*models.Flow, 0, len(flows))

	for _, flow := range flows {
		if flow.IsRunnable() {
			active = append(active, flow)
		}
	}

	return active, nil
}

// FlowByID retrieves a flow by its ID from the file system.
func (fp *Persistence) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	err := validateID(id)
	if err != nil {
		return nil, persistence.NewFlowError("FlowByID", id, err)
	}

	var flow models.Flow

	err = fp.readJSON(flowsDir, id, &flow)
	if errors.Is(err, os.ErrNotExist) {
		return nil, persistence.NewFlowError("FlowByID", id, persistence.ErrFlowNotFound)
	}

	if err != nil {
		return nil, persistence.NewFlowError("FlowByID", id, err)
	}

	stats, err := fp.ExecutionLogs().Stats(ctx, id)
	if err != nil {
		return nil, err
	}

	flow.Stats = stats

	return &flow, nil
}

// SaveFlow saves a flow to the file system.
func (fp *Persistence) SaveFlow(_ context.Context, flow *models.Flow) error {
	err := validateID(flow.ID)
	if err != nil {
		return persistence.NewFlowError("SaveFlow", flow.ID, err)
	}

	now := time.Now().UTC()
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	return fp.writeJSON(flowsDir, flow.ID, flow)
}

// DeleteFlow removes a flow by its ID.
func (fp *Persistence) DeleteFlow(_ context.Context, id string) error {
	err := validateID(id)
	if err != nil {
		return persistence.NewFlowError("DeleteFlow", id, err)
	}

	err = os.Remove(fp.path(flowsDir, id, ".json"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete flow %s: %w", id, err)
	}

	return nil
}
