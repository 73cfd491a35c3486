package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/persistence"
	"github.com/dukex/marketflow/pkg/persistence/memory"
	"github.com/dukex/marketflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistence_ActiveFlowsFiltersDraftsAndInactive(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()

	require.NoError(t, store.SaveFlow(ctx, &models.Flow{ID: "active", IsActive: true}))
	require.NoError(t, store.SaveFlow(ctx, &models.Flow{ID: "draft", IsActive: true, IsDraft: true}))
	require.NoError(t, store.SaveFlow(ctx, &models.Flow{ID: "inactive"}))

	flows, err := store.ActiveFlows(ctx)
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "active", flows[0].ID)

	all, err := store.Flows(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPersistence_FlowByIDNotFound(t *testing.T) {
	store := memory.NewPersistence()

	_, err := store.FlowByID(context.Background(), "missing")
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestPersistence_AppendUpdatesStats(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()

	require.NoError(t, store.SaveFlow(ctx, &models.Flow{ID: "flow-1", IsActive: true}))

	now := time.Now().UTC()
	require.NoError(t, store.Append(ctx, &models.ExecutionLog{ID: "1", FlowID: "flow-1", Status: models.LogStatusSuccess, ExecutedAt: now}))
	require.NoError(t, store.Append(ctx, &models.ExecutionLog{ID: "2", FlowID: "flow-1", Status: models.LogStatusFailure, ExecutedAt: now}))

	stats, err := store.Stats(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalExecutions)
	assert.Equal(t, int64(1), stats.SuccessCount)
	assert.Equal(t, int64(1), stats.FailureCount)

	flow, err := store.FlowByID(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, stats, flow.Stats)

	logs, err := store.LogsByFlow(ctx, "flow-1", 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "2", logs[0].ID)
}

func TestPersistence_HasRecentSuccess(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	now := time.Now().UTC()

	require.NoError(t, store.Append(ctx, &models.ExecutionLog{
		FlowID: "flow-1", SubjectKey: "cust-1", EventType: "order_created",
		Status: models.LogStatusSuccess, ExecutedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, store.Append(ctx, &models.ExecutionLog{
		FlowID: "flow-1", SubjectKey: "cust-2", EventType: "order_created",
		Status: models.LogStatusFailure, ExecutedAt: now,
	}))

	testCases := []struct {
		name     string
		subject  string
		event    string
		since    time.Time
		expected bool
	}{
		{name: "inside window", subject: "cust-1", event: "order_created", since: now.Add(-24 * time.Hour), expected: true},
		{name: "outside window", subject: "cust-1", event: "order_created", since: now.Add(-time.Minute), expected: false},
		{name: "other event", subject: "cust-1", event: "cart_abandoned", since: now.Add(-24 * time.Hour), expected: false},
		{name: "failure only", subject: "cust-2", event: "order_created", since: now.Add(-24 * time.Hour), expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			found, err := store.HasRecentSuccess(ctx, "flow-1", tc.subject, tc.event, tc.since)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, found)
		})
	}
}

func TestCheckpoints_DueAndClaim(t *testing.T) {
	ctx := context.Background()
	checkpoints := memory.NewPersistence().Checkpoints()
	now := time.Now().UTC()

	require.NoError(t, checkpoints.Save(ctx, &models.Checkpoint{ID: "late", ResumeAt: now.Add(-time.Minute)}))
	require.NoError(t, checkpoints.Save(ctx, &models.Checkpoint{ID: "early", ResumeAt: now.Add(-time.Hour)}))
	require.NoError(t, checkpoints.Save(ctx, &models.Checkpoint{ID: "future", ResumeAt: now.Add(time.Hour)}))

	due, err := checkpoints.Due(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "early", due[0].ID)
	assert.Equal(t, "late", due[1].ID)

	claimed, err := checkpoints.Delete(ctx, "early")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = checkpoints.Delete(ctx, "early")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestDirectory_LookupsAndPromotions(t *testing.T) {
	ctx := context.Background()
	directory := memory.NewDirectory()
	registered := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	directory.AddSubject(memory.Subject{ID: "cust-1", Email: "ana@example.com", Phone: "+5511999", RegisteredAt: registered, OrderCount: 4})
	directory.AddOrder("order-1", protocol.OrderSummary{Value: 42.5, ItemCount: 3})

	email, err := directory.DestinationFor(ctx, "cust-1", models.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", email)

	phone, err := directory.DestinationFor(ctx, "cust-1", models.ChannelSMS)
	require.NoError(t, err)
	assert.Equal(t, "+5511999", phone)

	_, err = directory.DestinationFor(ctx, "ghost", models.ChannelEmail)
	assert.True(t, persistence.IsSubjectNotFound(err))

	summary, err := directory.OrderSummary(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.ItemCount)

	require.NoError(t, directory.TagSubject(ctx, "cust-1", "vip"))
	require.NoError(t, directory.TagSubject(ctx, "cust-1", "vip"))
	assert.Equal(t, []string{"vip"}, directory.Tags("cust-1"))

	code, err := directory.IssueDiscount(ctx, "cust-1", 10, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, code, 10)
	require.Len(t, directory.Discounts(), 1)
	assert.Equal(t, code, directory.Discounts()[0].Code)
}
