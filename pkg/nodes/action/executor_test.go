package action_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/marketflow/pkg/mocks"
	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/nodes/action"
	"github.com/dukex/marketflow/pkg/persistence/memory"
	"github.com/dukex/marketflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func actionStep(cfg models.ActionConfig, execCtx *models.ExecutionContext) *protocol.Step {
	return &protocol.Step{
		Flow:    &models.Flow{ID: "flow-1"},
		Node:    models.NewActionNode("act", cfg),
		Context: execCtx,
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExecutor_TagSubject(t *testing.T) {
	directory := memory.NewDirectory()
	executor := action.NewExecutor(directory, discard())

	outcome, err := executor.Execute(context.Background(), actionStep(
		models.ActionConfig{Kind: models.ActionKindTagSubject, Tag: "first-order"},
		&models.ExecutionContext{SubjectID: "cust-1"},
	))
	require.NoError(t, err)
	assert.False(t, outcome.Stop)
	assert.Equal(t, []string{"first-order"}, directory.Tags("cust-1"))
}

func TestExecutor_IssueDiscountStoresCode(t *testing.T) {
	promotions := &mocks.MockPromotions{}
	promotions.On("IssueDiscount", context.Background(), "ana@example.com", 15.0, 7*24*time.Hour).Return("SAVE15", nil)

	executor := action.NewExecutor(promotions, discard())
	execCtx := &models.ExecutionContext{DestinationAddress: "ana@example.com"}

	_, err := executor.Execute(context.Background(), actionStep(
		models.ActionConfig{Kind: models.ActionKindIssueDiscount, DiscountPercent: 15},
		execCtx,
	))
	require.NoError(t, err)
	assert.Equal(t, "SAVE15", execCtx.EventData[action.DiscountCodeKey])
	promotions.AssertExpectations(t)
}

func TestExecutor_EndFlowStops(t *testing.T) {
	executor := action.NewExecutor(nil, discard())

	outcome, err := executor.Execute(context.Background(), actionStep(
		models.ActionConfig{Kind: models.ActionKindEndFlow},
		&models.ExecutionContext{},
	))
	require.NoError(t, err)
	assert.True(t, outcome.Stop)
}

func TestExecutor_Errors(t *testing.T) {
	promotions := &mocks.MockPromotions{}
	promotions.On("TagSubject", context.Background(), "cust-1", "vip").Return(errors.New("db down"))

	executor := action.NewExecutor(promotions, discard())

	_, err := executor.Execute(context.Background(), actionStep(
		models.ActionConfig{Kind: models.ActionKindTagSubject, Tag: "vip"},
		&models.ExecutionContext{SubjectID: "cust-1"},
	))
	require.ErrorContains(t, err, "db down")

	_, err = executor.Execute(context.Background(), actionStep(
		models.ActionConfig{Kind: models.ActionKindTagSubject, Tag: "vip"},
		&models.ExecutionContext{},
	))
	require.ErrorIs(t, err, action.ErrNoSubject)

	_, err = executor.Execute(context.Background(), actionStep(
		models.ActionConfig{Kind: "refund"},
		&models.ExecutionContext{SubjectID: "cust-1"},
	))
	require.ErrorIs(t, err, action.ErrUnknownKind)
}
