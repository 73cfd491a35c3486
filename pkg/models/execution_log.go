package models

import "time"

// LogStatus is the outcome of one node execution.
type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusFailure LogStatus = "failure"
)

// ExecutionLog records one node execution. Logs are append-only; NodeID is
// empty for failures that cannot be attributed to a node.
type ExecutionLog struct {
	ID                string    `json:"id"`
	FlowID            string    `json:"flow_id"`
	NodeID            string    `json:"node_id,omitempty"`
	SubjectKey        string    `json:"subject_key"`
	EventType         string    `json:"event_type"`
	Status            LogStatus `json:"status"`
	ExecutedAt        time.Time `json:"executed_at"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
}
