package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/google/uuid"
)

// ExecutionLogRepository handles execution log database operations.
type ExecutionLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionLogRepository creates a new execution log repository.
func NewExecutionLogRepository(db *sql.DB, logger *slog.Logger) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db, logger: logger}
}

// Append inserts the log row and bumps the flow's counters in one transaction.
func (r *ExecutionLogRepository) Append(ctx context.Context, log *models.ExecutionLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO flow_execution_logs
			(id, flow_id, node_id, subject_key, event_type, status, executed_at, error_message, provider_message_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		log.ID,
		log.FlowID,
		nullString(log.NodeID),
		log.SubjectKey,
		log.EventType,
		log.Status,
		log.ExecutedAt,
		nullString(log.ErrorMessage),
		nullString(log.ProviderMessageID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution log: %w", err)
	}

	success, failure := 0, 0
	if log.Status == models.LogStatusSuccess {
		success = 1
	} else {
		failure = 1
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE flows SET
			total_executions = total_executions + 1,
			success_count = success_count + $2,
			failure_count = failure_count + $3,
			last_executed_at = GREATEST(COALESCE(last_executed_at, $4), $4)
		WHERE id = $1
	`, log.FlowID, success, failure, log.ExecutedAt)
	if err != nil {
		return fmt.Errorf("failed to update flow stats: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit execution log: %w", err)
	}

	return nil
}

// HasRecentSuccess answers the re-entry suppression query.
func (r *ExecutionLogRepository) HasRecentSuccess(ctx context.Context, flowID, subjectKey, eventType string, since time.Time) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM flow_execution_logs
			WHERE flow_id = $1 AND subject_key = $2 AND event_type = $3
			  AND status = 'success' AND executed_at >= $4
		)
	`, flowID, subjectKey, eventType, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query recent executions: %w", err)
	}

	return exists, nil
}

// Stats reads the counters maintained by Append.
func (r *ExecutionLogRepository) Stats(ctx context.Context, flowID string) (models.FlowStats, error) {
	var (
		stats          models.FlowStats
		lastExecutedAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT total_executions, success_count, failure_count, last_executed_at
		FROM flows WHERE id = $1
	`, flowID).Scan(&stats.TotalExecutions, &stats.SuccessCount, &stats.FailureCount, &lastExecutedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FlowStats{}, nil
	}

	if err != nil {
		return models.FlowStats{}, fmt.Errorf("failed to query stats of flow %s: %w", flowID, err)
	}

	if lastExecutedAt.Valid {
		stats.LastExecutedAt = &lastExecutedAt.Time
	}

	return stats, nil
}

// LogsByFlow returns the newest logs of a flow first.
func (r *ExecutionLogRepository) LogsByFlow(ctx context.Context, flowID string, limit int) ([]*models.ExecutionLog, error) {
	query := `
		SELECT id, flow_id, node_id, subject_key, event_type, status, executed_at, error_message, provider_message_id
		FROM flow_execution_logs
		WHERE flow_id = $1
		ORDER BY executed_at DESC, id DESC
	`
	args := []any{flowID}

	if limit > 0 {
		query += ` LIMIT $2`

		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution logs: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	logs := make([]*models.ExecutionLog, 0)

	for rows.Next() {
		var (
			log                                   models.ExecutionLog
			nodeID, errorMessage, providerMessage sql.NullString
		)

		err := rows.Scan(
			&log.ID,
			&log.FlowID,
			&nodeID,
			&log.SubjectKey,
			&log.EventType,
			&log.Status,
			&log.ExecutedAt,
			&errorMessage,
			&providerMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}

		log.NodeID = nodeID.String
		log.ErrorMessage = errorMessage.String
		log.ProviderMessageID = providerMessage.String

		logs = append(logs, &log)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating execution logs: %w", err)
	}

	return logs, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
