package engine

import (
	"fmt"

	"github.com/dukex/marketflow/pkg/models"
)

// Event data keys read by trigger predicates. Both the platform's camelCase
// and snake_case spellings are accepted.
var (
	firstOrderKeys   = []string{"isFirstOrder", "is_first_order"}
	inactiveDaysKeys = []string{"inactiveDays", "inactive_days"}
	orderValueKeys   = []string{"orderValue", "order_value"}
)

// Match is a flow selected for an event, with the trigger node that accepted it.
type Match struct {
	Flow    *models.Flow
	Trigger *models.Node
}

// MatchFlows selects the runnable flows whose trigger accepts the event.
// It has no side effects.
func MatchFlows(eventType string, execCtx models.ExecutionContext, flows []*models.Flow) []*Match {
	var matches []*Match

	for _, flow := range flows {
		trigger, err := MatchTrigger(eventType, execCtx, flow)
		if err != nil {
			continue
		}

		matches = append(matches, &Match{Flow: flow, Trigger: trigger})
	}

	return matches
}

// MatchTrigger returns the flow's trigger node when it accepts the event,
// or an error wrapping ErrTriggerMismatch that says why not.
func MatchTrigger(eventType string, execCtx models.ExecutionContext, flow *models.Flow) (*models.Node, error) {
	if !flow.IsRunnable() {
		return nil, fmt.Errorf("%w: flow %s is not active", ErrTriggerMismatch, flow.ID)
	}

	trigger := flow.TriggerNode()
	if trigger == nil || trigger.Trigger == nil {
		return nil, fmt.Errorf("%w: flow %s has no trigger", ErrTriggerMismatch, flow.ID)
	}

	if trigger.Trigger.EventType != eventType {
		return nil, fmt.Errorf("%w: flow %s listens to %s", ErrTriggerMismatch, flow.ID, trigger.Trigger.EventType)
	}

	conditions := trigger.Trigger.Conditions

	if conditions.IsFirstOrder != nil {
		isFirstOrder, _ := execCtx.Bool(firstOrderKeys...)
		if isFirstOrder != *conditions.IsFirstOrder {
			return nil, fmt.Errorf("%w: first order flag is %t", ErrTriggerMismatch, isFirstOrder)
		}
	}

	if conditions.MinInactiveDays != nil {
		days, ok := execCtx.Number(inactiveDaysKeys...)
		if !ok || days < float64(*conditions.MinInactiveDays) {
			return nil, fmt.Errorf("%w: inactive for less than %d days", ErrTriggerMismatch, *conditions.MinInactiveDays)
		}
	}

	if conditions.MinOrderValue != nil {
		value, ok := execCtx.Number(orderValueKeys...)
		if !ok || value < *conditions.MinOrderValue {
			return nil, fmt.Errorf("%w: order value below %.2f", ErrTriggerMismatch, *conditions.MinOrderValue)
		}
	}

	return trigger, nil
}
