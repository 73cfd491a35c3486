package condition_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/nodes/condition"
	"github.com/dukex/marketflow/pkg/persistence/memory"
	"github.com/dukex/marketflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newExecutor() *condition.Executor {
	directory := memory.NewDirectory()
	directory.AddSubject(memory.Subject{
		ID: "cust-1", Email: "ana@example.com", OrderCount: 3,
		RegisteredAt: now.Add(-40 * 24 * time.Hour),
	})
	directory.AddSubject(memory.Subject{ID: "cust-2"})
	directory.AddOrder("o-1", protocol.OrderSummary{Value: 15, ItemCount: 2})

	return condition.NewExecutor(directory, func() time.Time { return now }, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExecutor_Predicates(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      models.ConditionConfig
		execCtx  models.ExecutionContext
		expected string
	}{
		{
			name:     "order value from event data",
			cfg:      models.ConditionConfig{Predicate: models.PredicateOrderValue, Value: 20},
			execCtx:  models.ExecutionContext{EventData: map[string]any{"orderValue": 25.0}},
			expected: condition.BranchTrue,
		},
		{
			name:     "order value below threshold from directory",
			cfg:      models.ConditionConfig{Predicate: models.PredicateOrderValue, Value: 20},
			execCtx:  models.ExecutionContext{OrderRef: "o-1"},
			expected: condition.BranchFalse,
		},
		{
			name:     "item count",
			cfg:      models.ConditionConfig{Predicate: models.PredicateOrderItemCount, Value: 2},
			execCtx:  models.ExecutionContext{OrderRef: "o-1"},
			expected: condition.BranchTrue,
		},
		{
			name:     "customer order count",
			cfg:      models.ConditionConfig{Predicate: models.PredicateCustomerOrderCount, Operator: models.OperatorGT, Value: 3},
			execCtx:  models.ExecutionContext{SubjectID: "cust-1"},
			expected: condition.BranchFalse,
		},
		{
			name:     "days since registration",
			cfg:      models.ConditionConfig{Predicate: models.PredicateDaysSinceRegistration, Value: 30},
			execCtx:  models.ExecutionContext{SubjectID: "cust-1"},
			expected: condition.BranchTrue,
		},
		{
			name:     "has destination from directory",
			cfg:      models.ConditionConfig{Predicate: models.PredicateHasDestination},
			execCtx:  models.ExecutionContext{SubjectID: "cust-1"},
			expected: condition.BranchTrue,
		},
		{
			name:     "subject without address",
			cfg:      models.ConditionConfig{Predicate: models.PredicateHasDestination},
			execCtx:  models.ExecutionContext{SubjectID: "cust-2"},
			expected: condition.BranchFalse,
		},
		{
			name:     "unknown subject has no destination",
			cfg:      models.ConditionConfig{Predicate: models.PredicateHasDestination},
			execCtx:  models.ExecutionContext{SubjectID: "ghost"},
			expected: condition.BranchFalse,
		},
	}

	executor := newExecutor()

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			execCtx := tc.execCtx

			outcome, err := executor.Execute(context.Background(), &protocol.Step{
				Flow:    &models.Flow{ID: "flow-1", Channel: models.ChannelEmail},
				Node:    models.NewConditionNode("check", tc.cfg),
				Context: &execCtx,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.expected, outcome.Branch)
			assert.False(t, outcome.Stop)
		})
	}
}

func TestExecutor_Errors(t *testing.T) {
	executor := newExecutor()

	_, err := executor.Execute(context.Background(), &protocol.Step{
		Flow:    &models.Flow{ID: "flow-1"},
		Node:    models.NewConditionNode("check", models.ConditionConfig{Predicate: "moon_phase"}),
		Context: &models.ExecutionContext{},
	})
	require.ErrorIs(t, err, condition.ErrUnknownPredicate)

	_, err = executor.Execute(context.Background(), &protocol.Step{
		Flow:    &models.Flow{ID: "flow-1"},
		Node:    models.NewConditionNode("check", models.ConditionConfig{Predicate: models.PredicateOrderValue, Value: 20}),
		Context: &models.ExecutionContext{},
	})
	require.ErrorIs(t, err, condition.ErrMissingFact)
}
