package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/persistence"
	"github.com/google/uuid"
)

const flowColumns = `
			id
		  , name
		  , description
		  , channel
		  , is_active
		  , is_draft
		  , nodes
		  , edges
		  , total_executions
		  , success_count
		  , failure_count
		  , last_executed_at
		  , created_at
		  , updated_at
		  , activated_at
`

// FlowRepository handles flow-related database operations.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

// All returns every flow, or only runnable ones when runnableOnly is set.
func (r *FlowRepository) All(ctx context.Context, runnableOnly bool) ([]*models.Flow, error) {
	query := `SELECT ` + flowColumns + ` FROM flows`
	if runnableOnly {
		query += ` WHERE is_active AND NOT is_draft`
	}

	query += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	flows := make([]*models.Flow, 0)

	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flows = append(flows, flow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}

// ByID returns a single flow.
func (r *FlowRepository) ByID(ctx context.Context, id string) (*models.Flow, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+flowColumns+` FROM flows WHERE id = $1`, id)

	flow, err := scanFlow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewFlowError("FlowByID", id, persistence.ErrFlowNotFound)
	}

	if err != nil {
		return nil, persistence.NewFlowError("FlowByID", id, err)
	}

	return flow, nil
}

// Save upserts a flow. Stats columns are owned by the execution log and are
// never overwritten here.
func (r *FlowRepository) Save(ctx context.Context, flow *models.Flow) error {
	now := time.Now().UTC()

	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	if flow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate flow ID: %w", err)
		}

		flow.ID = id.String()
	}

	nodesJSON, err := json.Marshal(flow.Nodes)
	if err != nil {
		return fmt.Errorf("failed to marshal nodes: %w", err)
	}

	edgesJSON, err := json.Marshal(flow.Edges)
	if err != nil {
		return fmt.Errorf("failed to marshal edges: %w", err)
	}

	query := `
		INSERT INTO flows (id, name, description, channel, is_active, is_draft, nodes, edges, created_at, updated_at, activated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			channel = EXCLUDED.channel,
			is_active = EXCLUDED.is_active,
			is_draft = EXCLUDED.is_draft,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			updated_at = EXCLUDED.updated_at,
			activated_at = EXCLUDED.activated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		flow.ID,
		flow.Name,
		flow.Description,
		flow.Channel,
		flow.IsActive,
		flow.IsDraft,
		nodesJSON,
		edgesJSON,
		flow.CreatedAt,
		flow.UpdatedAt,
		flow.ActivatedAt,
	)
	if err != nil {
		return persistence.NewFlowError("SaveFlow", flow.ID, err)
	}

	return nil
}

// Delete removes a flow. Its logs stay for auditing.
func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM flows WHERE id = $1`, id)
	if err != nil {
		return persistence.NewFlowError("DeleteFlow", id, err)
	}

	return nil
}

func scanFlow(scanner interface{ Scan(dest ...any) error }) (*models.Flow, error) {
	var (
		flow                 models.Flow
		nodesJSON, edgesJSON []byte
		lastExecutedAt       sql.NullTime
		activatedAt          sql.NullTime
	)

	err := scanner.Scan(
		&flow.ID,
		&flow.Name,
		&flow.Description,
		&flow.Channel,
		&flow.IsActive,
		&flow.IsDraft,
		&nodesJSON,
		&edgesJSON,
		&flow.Stats.TotalExecutions,
		&flow.Stats.SuccessCount,
		&flow.Stats.FailureCount,
		&lastExecutedAt,
		&flow.CreatedAt,
		&flow.UpdatedAt,
		&activatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(nodesJSON, &flow.Nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes of flow %s: %w", flow.ID, err)
	}

	err = json.Unmarshal(edgesJSON, &flow.Edges)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal edges of flow %s: %w", flow.ID, err)
	}

	if lastExecutedAt.Valid {
		flow.Stats.LastExecutedAt = &lastExecutedAt.Time
	}

	if activatedAt.Valid {
		flow.ActivatedAt = &activatedAt.Time
	}

	return &flow, nil
}
