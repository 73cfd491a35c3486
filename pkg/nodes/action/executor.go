// Package action provides the action node executor for side effects that
// are not messages: tagging subjects, issuing discounts and ending the flow.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/protocol"
)

// DiscountCodeKey is the event data key an issued discount code is stored
// under, so later message templates can reference {{discount_code}}.
const DiscountCodeKey = "discount_code"

var (
	ErrMissingConfig = errors.New("action node has no configuration")
	ErrUnknownKind   = errors.New("unknown action kind")
	ErrNoSubject     = errors.New("action requires a subject")
	ErrNoPromotions  = errors.New("no promotions backend configured")
)

type Executor struct {
	promotions protocol.Promotions
	logger     *slog.Logger
}

var _ protocol.NodeExecutor = (*Executor)(nil)

func NewExecutor(promotions protocol.Promotions, logger *slog.Logger) *Executor {
	return &Executor{
		promotions: promotions,
		logger:     logger.With("module", "action_node"),
	}
}

func (e *Executor) Type() models.NodeType {
	return models.NodeTypeAction
}

func (e *Executor) Execute(ctx context.Context, step *protocol.Step) (protocol.Outcome, error) {
	cfg := step.Node.Action
	if cfg == nil {
		return protocol.Outcome{}, ErrMissingConfig
	}

	if cfg.Kind == models.ActionKindEndFlow {
		return protocol.Outcome{Stop: true}, nil
	}

	if cfg.Kind != models.ActionKindTagSubject && cfg.Kind != models.ActionKindIssueDiscount {
		return protocol.Outcome{}, fmt.Errorf("%w %q", ErrUnknownKind, cfg.Kind)
	}

	if e.promotions == nil {
		return protocol.Outcome{}, ErrNoPromotions
	}

	subjectKey := step.Context.SubjectKey()
	if subjectKey == "" {
		return protocol.Outcome{}, ErrNoSubject
	}

	if cfg.Kind == models.ActionKindTagSubject {
		err := e.promotions.TagSubject(ctx, subjectKey, cfg.Tag)
		if err != nil {
			return protocol.Outcome{}, fmt.Errorf("failed to tag subject: %w", err)
		}

		return protocol.Outcome{}, nil
	}

	code, err := e.promotions.IssueDiscount(ctx, subjectKey, cfg.DiscountPercent, cfg.DiscountValidity())
	if err != nil {
		return protocol.Outcome{}, fmt.Errorf("failed to issue discount: %w", err)
	}

	step.Context.Set(DiscountCodeKey, code)

	e.logger.InfoContext(ctx, "discount issued",
		"flow_id", step.Flow.ID,
		"subject_key", subjectKey,
		"percent", cfg.DiscountPercent,
	)

	return protocol.Outcome{}, nil
}
