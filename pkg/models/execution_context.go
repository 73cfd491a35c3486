package models

import (
	"encoding/json"
	"maps"
	"strconv"
	"strings"
)

// ExecutionContext carries the subject and event data of one traversal.
// It is never persisted as an entity of its own; checkpoints embed a copy.
type ExecutionContext struct {
	SubjectID          string         `json:"subject_id,omitempty"`
	DestinationAddress string         `json:"destination_address,omitempty"`
	OrderRef           string         `json:"order_ref,omitempty"`
	EventData          map[string]any `json:"event_data,omitempty"`
}

// SubjectKey identifies the subject for logging and concurrency control:
// the account id when known, the destination address otherwise.
func (c ExecutionContext) SubjectKey() string {
	if c.SubjectID != "" {
		return c.SubjectID
	}

	return c.DestinationAddress
}

// Clone returns a copy whose event data can be mutated independently.
func (c ExecutionContext) Clone() ExecutionContext {
	out := c
	out.EventData = make(map[string]any, len(c.EventData))
	maps.Copy(out.EventData, c.EventData)

	return out
}

// Set stores a value in the event data, allocating the map when needed.
func (c *ExecutionContext) Set(key string, value any) {
	if c.EventData == nil {
		c.EventData = make(map[string]any)
	}

	c.EventData[key] = value
}

// Value returns the first present event data entry among keys.
func (c ExecutionContext) Value(keys ...string) (any, bool) {
	for _, key := range keys {
		if value, ok := c.EventData[key]; ok && value != nil {
			return value, true
		}
	}

	return nil, false
}

// Number reads a numeric event data entry. Strings holding numbers are
// accepted since webhook payloads are not always typed.
func (c ExecutionContext) Number(keys ...string) (float64, bool) {
	value, ok := c.Value(keys...)
	if !ok {
		return 0, false
	}

	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()

		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)

		return f, err == nil
	default:
		return 0, false
	}
}

// Bool reads a boolean event data entry.
func (c ExecutionContext) Bool(keys ...string) (bool, bool) {
	value, ok := c.Value(keys...)
	if !ok {
		return false, false
	}

	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)

		return b, err == nil
	default:
		return false, false
	}
}
