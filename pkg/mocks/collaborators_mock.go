package mocks

import (
	"context"
	"time"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/protocol"
	"github.com/stretchr/testify/mock"
)

// MockDispatcher is a mock implementation of protocol.Dispatcher interface.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Channel() models.Channel {
	args := m.Called()

	return args.Get(0).(models.Channel)
}

func (m *MockDispatcher) Send(ctx context.Context, msg protocol.Message) (protocol.DispatchResult, error) {
	args := m.Called(ctx, msg)

	return args.Get(0).(protocol.DispatchResult), args.Error(1)
}

// MockDirectory is a mock implementation of protocol.Directory interface.
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) DestinationFor(ctx context.Context, subjectID string, channel models.Channel) (string, error) {
	args := m.Called(ctx, subjectID, channel)

	return args.String(0), args.Error(1)
}

func (m *MockDirectory) OrderCount(ctx context.Context, subjectID string) (int, error) {
	args := m.Called(ctx, subjectID)

	return args.Int(0), args.Error(1)
}

func (m *MockDirectory) RegisteredAt(ctx context.Context, subjectID string) (time.Time, error) {
	args := m.Called(ctx, subjectID)

	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockDirectory) OrderSummary(ctx context.Context, orderRef string) (protocol.OrderSummary, error) {
	args := m.Called(ctx, orderRef)

	return args.Get(0).(protocol.OrderSummary), args.Error(1)
}

// MockPromotions is a mock implementation of protocol.Promotions interface.
type MockPromotions struct {
	mock.Mock
}

func (m *MockPromotions) TagSubject(ctx context.Context, subjectKey, tag string) error {
	args := m.Called(ctx, subjectKey, tag)

	return args.Error(0)
}

func (m *MockPromotions) IssueDiscount(ctx context.Context, subjectKey string, percent float64, validFor time.Duration) (string, error) {
	args := m.Called(ctx, subjectKey, percent, validFor)

	return args.String(0), args.Error(1)
}

// MockTemplateStore is a mock implementation of protocol.TemplateStore interface.
type MockTemplateStore struct {
	mock.Mock
}

func (m *MockTemplateStore) Template(ctx context.Context, id string) (*models.MessageTemplate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.MessageTemplate), args.Error(1)
}
