package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/marketflow/pkg/models"
)

// CheckpointRepository stores parked traversals in flow_checkpoints.
type CheckpointRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCheckpointRepository creates a new checkpoint repository.
func NewCheckpointRepository(db *sql.DB, logger *slog.Logger) *CheckpointRepository {
	return &CheckpointRepository{db: db, logger: logger}
}

func (r *CheckpointRepository) Save(ctx context.Context, checkpoint *models.Checkpoint) error {
	contextJSON, err := json.Marshal(checkpoint.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint context: %w", err)
	}

	visitedJSON, err := json.Marshal(checkpoint.Visited)
	if err != nil {
		return fmt.Errorf("failed to marshal visited nodes: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO flow_checkpoints (id, flow_id, node_id, event_type, context, visited, resume_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			context = EXCLUDED.context,
			visited = EXCLUDED.visited,
			resume_at = EXCLUDED.resume_at
	`,
		checkpoint.ID,
		checkpoint.FlowID,
		checkpoint.NodeID,
		checkpoint.EventType,
		contextJSON,
		visitedJSON,
		checkpoint.ResumeAt,
		checkpoint.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", checkpoint.ID, err)
	}

	return nil
}

func (r *CheckpointRepository) Due(ctx context.Context, now time.Time, limit int) ([]*models.Checkpoint, error) {
	query := `
		SELECT id, flow_id, node_id, event_type, context, visited, resume_at, created_at
		FROM flow_checkpoints
		WHERE resume_at <= $1
		ORDER BY resume_at
	`
	args := []any{now}

	if limit > 0 {
		query += ` LIMIT $2`

		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query due checkpoints: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	checkpoints := make([]*models.Checkpoint, 0)

	for rows.Next() {
		var (
			checkpoint               models.Checkpoint
			contextJSON, visitedJSON []byte
		)

		err := rows.Scan(
			&checkpoint.ID,
			&checkpoint.FlowID,
			&checkpoint.NodeID,
			&checkpoint.EventType,
			&contextJSON,
			&visitedJSON,
			&checkpoint.ResumeAt,
			&checkpoint.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}

		err = json.Unmarshal(contextJSON, &checkpoint.Context)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint context: %w", err)
		}

		err = json.Unmarshal(visitedJSON, &checkpoint.Visited)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal visited nodes: %w", err)
		}

		checkpoints = append(checkpoints, &checkpoint)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating checkpoints: %w", err)
	}

	return checkpoints, nil
}

func (r *CheckpointRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM flow_checkpoints WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete checkpoint %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
