package template

import (
	"testing"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Placeholders(t *testing.T) {
	vars := map[string]any{
		"customer_name": "Ana",
		"order_value":   42.5,
		"items":         3,
		"order":         map[string]any{"total": 99.9, "id": "o-1"},
	}

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain text", input: "Hello there", expected: "Hello there"},
		{name: "simple variable", input: "Hi {{customer_name}}!", expected: "Hi Ana!"},
		{name: "spaces inside braces", input: "Hi {{ customer_name }}", expected: "Hi Ana"},
		{name: "numbers", input: "{{items}} items, {{order_value}}", expected: "3 items, 42.5"},
		{name: "dotted path", input: "Order {{order.id}} total {{order.total}}", expected: "Order o-1 total 99.9"},
		{name: "missing variable renders empty", input: "Code: {{discount_code}}.", expected: "Code: ."},
		{name: "native action", input: `{{ upper (lookup . "customer_name") }}`, expected: "ANA"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Render(tc.input, vars)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestRender_IsIdempotent(t *testing.T) {
	vars := map[string]any{"customer_name": "Ana", "discount_code": "ABC123"}
	input := "Hi {{customer_name}}, use {{discount_code}} on your next order."

	first, err := Render(input, vars)
	require.NoError(t, err)

	second, err := Render(input, vars)
	require.NoError(t, err)

	assert.Equal(t, []byte(first), []byte(second))
}

func TestRender_InvalidTemplate(t *testing.T) {
	_, err := Render("Hi {{ if }}", map[string]any{})
	assert.Error(t, err)
}

func TestVars_MergesSubjectAndEventData(t *testing.T) {
	vars := Vars(&models.ExecutionContext{
		SubjectID:          "cust-1",
		DestinationAddress: "ana@example.com",
		OrderRef:           "o-1",
		EventData:          map[string]any{"customer_name": "Ana", "order_ref": "override"},
	})

	assert.Equal(t, "cust-1", vars["subject_id"])
	assert.Equal(t, "ana@example.com", vars["destination_address"])
	assert.Equal(t, "override", vars["order_ref"])
	assert.Equal(t, "Ana", vars["customer_name"])
}

func TestRender_HasNoClockHelper(t *testing.T) {
	_, err := Render("Sent {{ now | upper }}", map[string]any{})
	require.Error(t, err)

	vars := map[string]any{"now": "2025-03-10"}

	first, err := Render("Sent {{now}}", vars)
	require.NoError(t, err)

	second, err := Render("Sent {{now}}", vars)
	require.NoError(t, err)

	assert.Equal(t, "Sent 2025-03-10", first)
	assert.Equal(t, first, second)
}
