package mocks

import (
	"context"
	"time"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockFlowRepository is a mock implementation of persistence.FlowRepository interface.
type MockFlowRepository struct {
	mock.Mock
}

func (m *MockFlowRepository) Flows(ctx context.Context) ([]*models.Flow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Flow), args.Error(1)
}

func (m *MockFlowRepository) ActiveFlows(ctx context.Context) ([]*models.Flow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Flow), args.Error(1)
}

func (m *MockFlowRepository) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Flow), args.Error(1)
}

func (m *MockFlowRepository) SaveFlow(ctx context.Context, flow *models.Flow) error {
	args := m.Called(ctx, flow)

	return args.Error(0)
}

func (m *MockFlowRepository) DeleteFlow(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockExecutionLogRepository is a mock implementation of persistence.ExecutionLogRepository interface.
type MockExecutionLogRepository struct {
	mock.Mock
}

func (m *MockExecutionLogRepository) Append(ctx context.Context, log *models.ExecutionLog) error {
	args := m.Called(ctx, log)

	return args.Error(0)
}

func (m *MockExecutionLogRepository) HasRecentSuccess(ctx context.Context, flowID, subjectKey, eventType string, since time.Time) (bool, error) {
	args := m.Called(ctx, flowID, subjectKey, eventType, since)

	return args.Bool(0), args.Error(1)
}

func (m *MockExecutionLogRepository) Stats(ctx context.Context, flowID string) (models.FlowStats, error) {
	args := m.Called(ctx, flowID)

	return args.Get(0).(models.FlowStats), args.Error(1)
}

func (m *MockExecutionLogRepository) LogsByFlow(ctx context.Context, flowID string, limit int) ([]*models.ExecutionLog, error) {
	args := m.Called(ctx, flowID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ExecutionLog), args.Error(1)
}

// MockCheckpointRepository is a mock implementation of persistence.CheckpointRepository interface.
type MockCheckpointRepository struct {
	mock.Mock
}

func (m *MockCheckpointRepository) Save(ctx context.Context, checkpoint *models.Checkpoint) error {
	args := m.Called(ctx, checkpoint)

	return args.Error(0)
}

func (m *MockCheckpointRepository) Due(ctx context.Context, now time.Time, limit int) ([]*models.Checkpoint, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Checkpoint), args.Error(1)
}

func (m *MockCheckpointRepository) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)

	return args.Bool(0), args.Error(1)
}
