package trigger

import (
	"context"
	"testing"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_IsNoop(t *testing.T) {
	executor := NewExecutor()
	assert.Equal(t, models.NodeTypeTrigger, executor.Type())

	outcome, err := executor.Execute(context.Background(), &protocol.Step{
		Node:    models.NewTriggerNode("trigger", models.TriggerConfig{EventType: "order_created"}),
		Context: &models.ExecutionContext{},
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.Outcome{}, outcome)
}
