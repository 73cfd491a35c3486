package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/persistence"
	"github.com/dukex/marketflow/pkg/persistence/postgresql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Children first, parents last
	for _, table := range []string{
		"flow_checkpoints", "flow_execution_logs", "flows",
		"discount_codes", "customer_tags", "message_templates", "orders", "customers",
		"schema_migrations",
	} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("marketflow_test"),
			postgres.WithUsername("marketflow"),
			postgres.WithPassword("marketflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func testFlow() *models.Flow {
	return &models.Flow{
		ID:       "first-order",
		Name:     "First order thanks",
		Channel:  models.ChannelEmail,
		IsActive: true,
		Nodes: []*models.Node{
			models.NewTriggerNode("trigger", models.TriggerConfig{EventType: "order_created"}),
			models.NewConditionNode("big", models.ConditionConfig{Predicate: models.PredicateOrderValue, Value: 20}),
			models.NewMessageNode("thanks", models.MessageConfig{TemplateID: "thanks"}),
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trigger", Target: "big"},
			{ID: "e2", Source: "big", Target: "thanks", BranchLabel: "true"},
		},
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	for _, table := range []string{"flows", "flow_execution_logs", "flow_checkpoints", "customers", "orders", "message_templates"} {
		var exists bool

		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	assert.NoError(t, p.HealthCheck(ctx))
}

func TestFlows_SaveAndRetrieve(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	require.NoError(t, p.SaveFlow(ctx, testFlow()))

	draft := testFlow()
	draft.ID = "draft"
	draft.IsDraft = true
	require.NoError(t, p.SaveFlow(ctx, draft))

	flow, err := p.FlowByID(ctx, "first-order")
	require.NoError(t, err)
	require.Len(t, flow.Nodes, 3)
	require.NotNil(t, flow.Nodes[1].Condition)
	assert.InDelta(t, 20.0, flow.Nodes[1].Condition.Value, 0.001)
	assert.Equal(t, "true", flow.Edges[1].BranchLabel)

	active, err := p.ActiveFlows(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "first-order", active[0].ID)

	require.NoError(t, p.DeleteFlow(ctx, "draft"))

	_, err = p.FlowByID(ctx, "draft")
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestExecutionLogs_AppendMaintainsStats(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	logs := p.ExecutionLogs()

	require.NoError(t, p.SaveFlow(ctx, testFlow()))

	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, logs.Append(ctx, &models.ExecutionLog{
		FlowID: "first-order", NodeID: "trigger", SubjectKey: "cust-1",
		EventType: "order_created", Status: models.LogStatusSuccess, ExecutedAt: now,
	}))
	require.NoError(t, logs.Append(ctx, &models.ExecutionLog{
		FlowID: "first-order", NodeID: "thanks", SubjectKey: "cust-1",
		EventType: "order_created", Status: models.LogStatusFailure, ExecutedAt: now.Add(time.Second),
		ErrorMessage: "no destination",
	}))

	stats, err := logs.Stats(ctx, "first-order")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalExecutions)
	assert.Equal(t, int64(1), stats.SuccessCount)
	assert.Equal(t, int64(1), stats.FailureCount)
	require.NotNil(t, stats.LastExecutedAt)
	assert.True(t, now.Add(time.Second).Equal(*stats.LastExecutedAt))

	found, err := logs.HasRecentSuccess(ctx, "first-order", "cust-1", "order_created", now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.True(t, found)

	found, err = logs.HasRecentSuccess(ctx, "first-order", "cust-1", "order_created", now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, found)

	recent, err := logs.LogsByFlow(ctx, "first-order", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "thanks", recent[0].NodeID)
	assert.Equal(t, "no destination", recent[0].ErrorMessage)
}

func TestCheckpoints_ClaimOnce(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	checkpoints := p.Checkpoints()
	now := time.Now().UTC()

	require.NoError(t, checkpoints.Save(ctx, &models.Checkpoint{
		ID: "cp-1", FlowID: "first-order", NodeID: "wait", EventType: "order_created",
		Context:  models.ExecutionContext{SubjectID: "cust-1", EventData: map[string]any{"customer_name": "Ana"}},
		Visited:  []string{"trigger", "wait"},
		ResumeAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour),
	}))

	due, err := checkpoints.Due(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "Ana", due[0].Context.EventData["customer_name"])
	assert.Equal(t, []string{"trigger", "wait"}, due[0].Visited)

	claimed, err := checkpoints.Delete(ctx, "cp-1")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = checkpoints.Delete(ctx, "cp-1")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestDirectory_Lookups(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)
	directory := p.Directory()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() { _ = db.Close() }()

	_, err = db.ExecContext(ctx, `INSERT INTO customers (id, email, phone) VALUES ('cust-1', 'ana@example.com', '+5511999')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO orders (id, customer_id, total, item_count) VALUES ('o-1', 'cust-1', 15.50, 2), ('o-2', 'cust-1', 30, 1)`)
	require.NoError(t, err)

	email, err := directory.DestinationFor(ctx, "cust-1", models.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", email)

	_, err = directory.DestinationFor(ctx, "ghost", models.ChannelSMS)
	assert.True(t, persistence.IsSubjectNotFound(err))

	count, err := directory.OrderCount(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	summary, err := directory.OrderSummary(ctx, "o-1")
	require.NoError(t, err)
	assert.InDelta(t, 15.5, summary.Value, 0.001)
	assert.Equal(t, 2, summary.ItemCount)

	require.NoError(t, directory.TagSubject(ctx, "cust-1", "first-order"))
	require.NoError(t, directory.TagSubject(ctx, "cust-1", "first-order"))

	code, err := directory.IssueDiscount(ctx, "cust-1", 15, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, code, 10)

	require.NoError(t, directory.SaveTemplate(ctx, &models.MessageTemplate{
		ID: "thanks", Channel: models.ChannelEmail, Subject: "Thanks", Body: "Thanks {{customer_name}}",
	}))

	template, err := directory.Template(ctx, "thanks")
	require.NoError(t, err)
	assert.Equal(t, "Thanks {{customer_name}}", template.Body)
}
