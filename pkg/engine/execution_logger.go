package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/marketflow/pkg/eventbus"
	"github.com/dukex/marketflow/pkg/events"
	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/persistence"
	"github.com/google/uuid"
)

// ExecutionLogger appends execution log rows and mirrors them on the event
// bus. The row is the record; the bus notification is best effort.
type ExecutionLogger struct {
	logs      persistence.ExecutionLogRepository
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewExecutionLogger creates a logger. publisher may be nil.
func NewExecutionLogger(
	logs persistence.ExecutionLogRepository,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
	now func() time.Time,
) *ExecutionLogger {
	if now == nil {
		now = time.Now
	}

	return &ExecutionLogger{
		logs:      logs,
		publisher: publisher,
		logger:    logger.With("module", "execution_logger"),
		now:       now,
	}
}

// Record appends one row, filling its id and timestamp when unset. The
// repository updates the flow's stats in the same write.
func (l *ExecutionLogger) Record(ctx context.Context, log *models.ExecutionLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}

	if log.ExecutedAt.IsZero() {
		log.ExecutedAt = l.now().UTC()
	}

	// The row must survive a cancelled traversal.
	err := l.logs.Append(context.WithoutCancel(ctx), log)
	if err != nil {
		return fmt.Errorf("failed to append execution log for flow %s: %w", log.FlowID, err)
	}

	if l.publisher != nil {
		err = l.publisher.Publish(ctx, log.FlowID, events.NewNodeExecuted(log))
		if err != nil {
			l.logger.WarnContext(ctx, "failed to publish node executed event", "flow_id", log.FlowID, "error", err)
		}
	}

	return nil
}

func (l *ExecutionLogger) Stats(ctx context.Context, flowID string) (models.FlowStats, error) {
	return l.logs.Stats(ctx, flowID)
}
