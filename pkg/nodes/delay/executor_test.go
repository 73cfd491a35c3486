package delay

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func delayStep(value int, unit models.DelayUnit) *protocol.Step {
	return &protocol.Step{
		Flow:    &models.Flow{ID: "flow-1"},
		Node:    models.NewDelayNode("wait", models.DelayConfig{Value: value, Unit: unit}),
		Context: &models.ExecutionContext{},
	}
}

func TestExecutor_LongDelaySuspends(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	executor := NewExecutor(DefaultShortDelayThreshold, func() time.Time { return now })

	outcome, err := executor.Execute(context.Background(), delayStep(2, models.DelayUnitDays))
	require.NoError(t, err)
	require.NotNil(t, outcome.Suspend)
	assert.Equal(t, now.Add(48*time.Hour), *outcome.Suspend)

	outcome, err = executor.Execute(context.Background(), delayStep(5, models.DelayUnitMinutes))
	require.NoError(t, err)
	require.NotNil(t, outcome.Suspend, "delays at the threshold are persisted")
}

func TestExecutor_ShortDelayWaitsInProcess(t *testing.T) {
	executor := NewExecutor(DefaultShortDelayThreshold, nil)

	outcome, err := executor.Execute(context.Background(), delayStep(0, models.DelayUnitMinutes))
	require.NoError(t, err)
	assert.Nil(t, outcome.Suspend)
}

func TestExecutor_ShortDelayHonoursCancellation(t *testing.T) {
	executor := NewExecutor(time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := executor.Execute(ctx, delayStep(1, models.DelayUnitMinutes))
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestExecutor_InvalidUnit(t *testing.T) {
	executor := NewExecutor(DefaultShortDelayThreshold, nil)

	_, err := executor.Execute(context.Background(), delayStep(1, "weeks"))
	assert.Error(t, err)
}
