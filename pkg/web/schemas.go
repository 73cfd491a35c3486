package web

import (
	"fmt"
	"strings"

	"github.com/dukex/marketflow/pkg/events"
	"github.com/xeipuuv/gojsonschema"
)

var numberOrNumeric = map[string]any{
	"oneOf": []any{
		map[string]any{"type": "number"},
		map[string]any{"type": "string", "pattern": `^-?[0-9]+(\.[0-9]+)?$`},
	},
}

// DefaultEventSchemas constrain the event data fields the built-in triggers
// and conditions read. Event types without a schema are accepted as is.
func DefaultEventSchemas() map[string]map[string]any {
	order := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"isFirstOrder": map[string]any{"type": "boolean"},
			"orderValue":   numberOrNumeric,
			"itemCount":    map[string]any{"type": "integer", "minimum": 0},
		},
	}

	return map[string]map[string]any{
		events.OrderCreated:   order,
		events.OrderCompleted: order,
		events.OrderDelivered: order,
		events.CartAbandoned: {
			"type": "object",
			"properties": map[string]any{
				"cartValue": numberOrNumeric,
				"itemCount": map[string]any{"type": "integer", "minimum": 0},
			},
		},
		events.CustomerRegistered: {
			"type": "object",
			"properties": map[string]any{
				"registeredAt": map[string]any{"type": "string", "format": "date-time"},
			},
		},
		events.CustomerInactive: {
			"type":     "object",
			"required": []any{"inactiveDays"},
			"properties": map[string]any{
				"inactiveDays": map[string]any{"type": "integer", "minimum": 0},
			},
		},
	}
}

// validateEventData checks data against the schema registered for eventType.
func validateEventData(schemas map[string]map[string]any, eventType string, data map[string]any) error {
	schema, ok := schemas[eventType]
	if !ok {
		return nil
	}

	if data == nil {
		data = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(data))
	if err != nil {
		return err
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return fmt.Errorf("invalid %s event data: %s", eventType, strings.Join(problems, "; "))
	}

	return nil
}
