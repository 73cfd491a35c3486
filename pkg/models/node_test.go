package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_UnmarshalJSON_SelectsConfigByType(t *testing.T) {
	raw := `[
		{"id": "t", "type": "trigger", "data": {"event_type": "order_created", "conditions": {"is_first_order": true}}},
		{"id": "m", "type": "message", "data": {"content": "Hi {{customer_name}}"}},
		{"id": "d", "type": "delay", "data": {"value": 24, "unit": "hours"}},
		{"id": "c", "type": "condition", "data": {"predicate": "order_value", "operator": "gte", "value": 20}},
		{"id": "a", "type": "action", "data": {"kind": "end_flow"}}
	]`

	var nodes []*Node

	err := json.Unmarshal([]byte(raw), &nodes)
	require.NoError(t, err)
	require.Len(t, nodes, 5)

	require.NotNil(t, nodes[0].Trigger)
	assert.Equal(t, "order_created", nodes[0].Trigger.EventType)
	require.NotNil(t, nodes[0].Trigger.Conditions.IsFirstOrder)
	assert.True(t, *nodes[0].Trigger.Conditions.IsFirstOrder)

	require.NotNil(t, nodes[1].Message)
	assert.Equal(t, "Hi {{customer_name}}", nodes[1].Message.Content)
	assert.Nil(t, nodes[1].Trigger)

	require.NotNil(t, nodes[2].Delay)
	duration, err := nodes[2].Delay.Duration()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, duration)

	require.NotNil(t, nodes[3].Condition)
	assert.Equal(t, PredicateOrderValue, nodes[3].Condition.Predicate)
	assert.InDelta(t, 20.0, nodes[3].Condition.Value, 0.0001)

	require.NotNil(t, nodes[4].Action)
	assert.True(t, nodes[4].IsEndFlow())
}

func TestNode_UnmarshalJSON_UnknownType(t *testing.T) {
	var node Node

	err := json.Unmarshal([]byte(`{"id": "x", "type": "webhook", "data": {}}`), &node)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownNodeType))
}

func TestNode_MarshalJSON_RoundTripsConfig(t *testing.T) {
	node := NewConditionNode("check", ConditionConfig{
		Predicate: PredicateCustomerOrderCount,
		Operator:  OperatorGT,
		Value:     3,
	})

	payload, err := json.Marshal(node)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"check","type":"condition","data":{"predicate":"customer_order_count","operator":"gt","value":3}}`, string(payload))

	var decoded Node

	err = json.Unmarshal(payload, &decoded)
	require.NoError(t, err)
	assert.Equal(t, node.Condition, decoded.Condition)
}

func TestDelayConfig_Duration(t *testing.T) {
	testCases := []struct {
		name     string
		config   DelayConfig
		expected time.Duration
		wantErr  bool
	}{
		{name: "minutes", config: DelayConfig{Value: 3, Unit: DelayUnitMinutes}, expected: 3 * time.Minute},
		{name: "hours", config: DelayConfig{Value: 2, Unit: DelayUnitHours}, expected: 2 * time.Hour},
		{name: "days", config: DelayConfig{Value: 1, Unit: DelayUnitDays}, expected: 24 * time.Hour},
		{name: "unknown unit", config: DelayConfig{Value: 1, Unit: "weeks"}, wantErr: true},
		{name: "negative", config: DelayConfig{Value: -1, Unit: DelayUnitHours}, wantErr: true},
		{name: "maximum", config: DelayConfig{Value: 3650, Unit: DelayUnitDays}, expected: MaxDelay},
		{name: "beyond maximum", config: DelayConfig{Value: 3651, Unit: DelayUnitDays}, wantErr: true},
		{name: "overflowing days", config: DelayConfig{Value: 200000, Unit: DelayUnitDays}, wantErr: true},
		{name: "overflowing minutes", config: DelayConfig{Value: math.MaxInt, Unit: DelayUnitMinutes}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			duration, err := tc.config.Duration()
			if tc.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, duration)
		})
	}
}

func TestExecutionContext_SubjectKey(t *testing.T) {
	assert.Equal(t, "cust-1", ExecutionContext{SubjectID: "cust-1", DestinationAddress: "a@b.c"}.SubjectKey())
	assert.Equal(t, "a@b.c", ExecutionContext{DestinationAddress: "a@b.c"}.SubjectKey())
	assert.Empty(t, ExecutionContext{}.SubjectKey())
}

func TestExecutionContext_CloneIsIndependent(t *testing.T) {
	original := ExecutionContext{SubjectID: "cust-1", EventData: map[string]any{"a": 1}}

	clone := original.Clone()
	clone.Set("b", 2)

	assert.NotContains(t, original.EventData, "b")
	assert.Equal(t, 1, clone.EventData["a"])
}

func TestFlowStats_Apply(t *testing.T) {
	var stats FlowStats

	first := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	stats.Apply(&ExecutionLog{Status: LogStatusSuccess, ExecutedAt: first})
	stats.Apply(&ExecutionLog{Status: LogStatusFailure, ExecutedAt: first.Add(time.Minute)})
	stats.Apply(&ExecutionLog{Status: LogStatusSuccess, ExecutedAt: first.Add(-time.Minute)})

	assert.Equal(t, int64(3), stats.TotalExecutions)
	assert.Equal(t, int64(2), stats.SuccessCount)
	assert.Equal(t, int64(1), stats.FailureCount)
	require.NotNil(t, stats.LastExecutedAt)
	assert.Equal(t, first.Add(time.Minute), *stats.LastExecutedAt)
}

func TestExecutionContext_Number(t *testing.T) {
	execCtx := ExecutionContext{EventData: map[string]any{
		"orderValue":   15.5,
		"itemCount":    3,
		"inactiveDays": "45",
		"label":        "n/a",
	}}

	value, ok := execCtx.Number("orderValue", "order_value")
	assert.True(t, ok)
	assert.InDelta(t, 15.5, value, 0.0001)

	value, ok = execCtx.Number("item_count", "itemCount")
	assert.True(t, ok)
	assert.InDelta(t, 3.0, value, 0.0001)

	value, ok = execCtx.Number("inactiveDays")
	assert.True(t, ok)
	assert.InDelta(t, 45.0, value, 0.0001)

	_, ok = execCtx.Number("label")
	assert.False(t, ok)

	_, ok = execCtx.Number("missing")
	assert.False(t, ok)
}

func TestExecutionContext_Bool(t *testing.T) {
	execCtx := ExecutionContext{EventData: map[string]any{"isFirstOrder": true, "is_vip": "false"}}

	value, ok := execCtx.Bool("isFirstOrder", "is_first_order")
	assert.True(t, ok)
	assert.True(t, value)

	value, ok = execCtx.Bool("is_vip")
	assert.True(t, ok)
	assert.False(t, value)

	_, ok = execCtx.Bool("missing")
	assert.False(t, ok)
}

func TestConditionConfig_Compare(t *testing.T) {
	testCases := []struct {
		operator ConditionOperator
		actual   float64
		expected bool
	}{
		{operator: "", actual: 20, expected: true},
		{operator: "", actual: 15, expected: false},
		{operator: OperatorGT, actual: 20, expected: false},
		{operator: OperatorLTE, actual: 20, expected: true},
		{operator: OperatorLT, actual: 19.99, expected: true},
		{operator: OperatorEQ, actual: 20, expected: true},
		{operator: OperatorNE, actual: 20, expected: false},
	}

	for _, tc := range testCases {
		cfg := ConditionConfig{Predicate: PredicateOrderValue, Operator: tc.operator, Value: 20}
		assert.Equal(t, tc.expected, cfg.Compare(tc.actual), "operator %q actual %v", tc.operator, tc.actual)
	}
}
