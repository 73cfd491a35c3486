// Package condition provides the condition node executor. It evaluates one
// named predicate and reports the "true" or "false" branch.
package condition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/persistence"
	"github.com/dukex/marketflow/pkg/protocol"
)

const (
	BranchTrue  = "true"
	BranchFalse = "false"
)

var (
	ErrMissingConfig    = errors.New("condition node has no configuration")
	ErrUnknownPredicate = errors.New("unknown predicate")
	ErrMissingFact      = errors.New("predicate input unavailable")
)

// Event data keys checked before asking the directory.
var (
	orderValueKeys   = []string{"orderValue", "order_value", "cartValue", "cart_value"}
	itemCountKeys    = []string{"itemCount", "item_count"}
	orderCountKeys   = []string{"orderCount", "order_count"}
	registrationKeys = []string{"daysSinceRegistration", "days_since_registration"}
	registeredAtKeys = []string{"registeredAt", "registered_at"}
)

type Executor struct {
	directory protocol.Directory
	now       func() time.Time
	logger    *slog.Logger
}

var _ protocol.NodeExecutor = (*Executor)(nil)

// NewExecutor builds a condition executor. directory may be nil, in which
// case only event data is consulted.
func NewExecutor(directory protocol.Directory, now func() time.Time, logger *slog.Logger) *Executor {
	if now == nil {
		now = time.Now
	}

	return &Executor{
		directory: directory,
		now:       now,
		logger:    logger.With("module", "condition_node"),
	}
}

func (e *Executor) Type() models.NodeType {
	return models.NodeTypeCondition
}

func (e *Executor) Execute(ctx context.Context, step *protocol.Step) (protocol.Outcome, error) {
	cfg := step.Node.Condition
	if cfg == nil {
		return protocol.Outcome{}, ErrMissingConfig
	}

	result, err := e.evaluate(ctx, step, *cfg)
	if err != nil {
		return protocol.Outcome{}, err
	}

	branch := BranchFalse
	if result {
		branch = BranchTrue
	}

	e.logger.DebugContext(ctx, "condition evaluated",
		"flow_id", step.Flow.ID,
		"node_id", step.Node.ID,
		"predicate", cfg.Predicate,
		"branch", branch,
	)

	return protocol.Outcome{Branch: branch}, nil
}

func (e *Executor) evaluate(ctx context.Context, step *protocol.Step, cfg models.ConditionConfig) (bool, error) {
	execCtx := step.Context

	switch cfg.Predicate {
	case models.PredicateOrderValue:
		if value, ok := execCtx.Number(orderValueKeys...); ok {
			return cfg.Compare(value), nil
		}

		summary, err := e.orderSummary(ctx, execCtx)
		if err != nil {
			return false, err
		}

		return cfg.Compare(summary.Value), nil

	case models.PredicateOrderItemCount:
		if value, ok := execCtx.Number(itemCountKeys...); ok {
			return cfg.Compare(value), nil
		}

		summary, err := e.orderSummary(ctx, execCtx)
		if err != nil {
			return false, err
		}

		return cfg.Compare(float64(summary.ItemCount)), nil

	case models.PredicateCustomerOrderCount:
		if value, ok := execCtx.Number(orderCountKeys...); ok {
			return cfg.Compare(value), nil
		}

		if e.directory == nil || execCtx.SubjectID == "" {
			return false, fmt.Errorf("%w: customer order count", ErrMissingFact)
		}

		count, err := e.directory.OrderCount(ctx, execCtx.SubjectID)
		if err != nil {
			return false, fmt.Errorf("failed to count orders: %w", err)
		}

		return cfg.Compare(float64(count)), nil

	case models.PredicateDaysSinceRegistration:
		days, err := e.daysSinceRegistration(ctx, execCtx)
		if err != nil {
			return false, err
		}

		return cfg.Compare(days), nil

	case models.PredicateHasDestination:
		return e.hasDestination(ctx, execCtx, step.Flow.Channel)

	default:
		return false, fmt.Errorf("%w %q", ErrUnknownPredicate, cfg.Predicate)
	}
}

func (e *Executor) orderSummary(ctx context.Context, execCtx *models.ExecutionContext) (protocol.OrderSummary, error) {
	if e.directory == nil || execCtx.OrderRef == "" {
		return protocol.OrderSummary{}, fmt.Errorf("%w: order", ErrMissingFact)
	}

	summary, err := e.directory.OrderSummary(ctx, execCtx.OrderRef)
	if err != nil {
		return protocol.OrderSummary{}, fmt.Errorf("failed to load order %s: %w", execCtx.OrderRef, err)
	}

	return summary, nil
}

func (e *Executor) daysSinceRegistration(ctx context.Context, execCtx *models.ExecutionContext) (float64, error) {
	if days, ok := execCtx.Number(registrationKeys...); ok {
		return days, nil
	}

	var registeredAt time.Time

	if raw, ok := execCtx.Value(registeredAtKeys...); ok {
		if s, isString := raw.(string); isString {
			parsed, err := time.Parse(time.RFC3339, s)
			if err == nil {
				registeredAt = parsed
			}
		}
	}

	if registeredAt.IsZero() {
		if e.directory == nil || execCtx.SubjectID == "" {
			return 0, fmt.Errorf("%w: registration date", ErrMissingFact)
		}

		var err error

		registeredAt, err = e.directory.RegisteredAt(ctx, execCtx.SubjectID)
		if err != nil {
			return 0, fmt.Errorf("failed to load registration date: %w", err)
		}
	}

	return math.Floor(e.now().Sub(registeredAt).Hours() / 24), nil
}

func (e *Executor) hasDestination(ctx context.Context, execCtx *models.ExecutionContext, channel models.Channel) (bool, error) {
	if execCtx.DestinationAddress != "" {
		return true, nil
	}

	if e.directory == nil || execCtx.SubjectID == "" {
		return false, nil
	}

	destination, err := e.directory.DestinationFor(ctx, execCtx.SubjectID, channel)
	if persistence.IsSubjectNotFound(err) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to resolve destination: %w", err)
	}

	return destination != "", nil
}
