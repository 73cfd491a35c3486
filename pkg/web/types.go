package web

import (
	"time"

	"github.com/dukex/marketflow/pkg/models"
)

// EventRequest is a domain event posted by the commerce platform.
type EventRequest struct {
	EventType          string         `json:"event_type"                    validate:"required"`
	SubjectID          string         `json:"subject_id,omitempty"          validate:"required_without=DestinationAddress"`
	DestinationAddress string         `json:"destination_address,omitempty" validate:"required_without=SubjectID"`
	OrderRef           string         `json:"order_ref,omitempty"`
	EventData          map[string]any `json:"event_data,omitempty"`
}

func (r EventRequest) ExecutionContext() models.ExecutionContext {
	return models.ExecutionContext{
		SubjectID:          r.SubjectID,
		DestinationAddress: r.DestinationAddress,
		OrderRef:           r.OrderRef,
		EventData:          r.EventData,
	}
}

// FlowRequest replaces a flow's definition. Activation goes through the
// activate endpoint, so the active flag is not accepted here.
type FlowRequest struct {
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Channel     models.Channel `json:"channel"     validate:"required,oneof=email sms"`
	IsDraft     bool           `json:"is_draft"`
	Nodes       []*models.Node `json:"nodes"       validate:"required,min=1"`
	Edges       []*models.Edge `json:"edges"`
}

type StatsResponse struct {
	FlowID string `json:"flow_id"`
	models.FlowStats
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Checkers  any       `json:"checkers"`
	Timestamp time.Time `json:"timestamp"`
}
