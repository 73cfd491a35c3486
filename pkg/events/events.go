// Package events defines the domain events flows react to and the lifecycle
// notifications the engine publishes while running them.
package events

import (
	"time"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topics.
const (
	Topic       = "marketflow.events"        // engine lifecycle notifications
	DomainTopic = "marketflow.domain.events" // business events consumed by the engine
)

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	DomainEventType        EventType = "domain.event"
	NodeExecutedEvent      EventType = "node.executed"
	TraversalFinishedEvent EventType = "traversal.finished"
	FlowActivatedEvent     EventType = "flow.activated"
	FlowDeactivatedEvent   EventType = "flow.deactivated"
)

// Business event types the built-in triggers understand. Any other string is
// accepted as long as some flow's trigger declares it.
const (
	OrderCreated       = "order_created"
	OrderCompleted     = "order_completed"
	OrderDelivered     = "order_delivered"
	CartAbandoned      = "cart_abandoned"
	CustomerRegistered = "customer_registered"
	CustomerInactive   = "customer_inactive"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	FlowID    string         `json:"flow_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func newBase(eventType EventType, flowID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		FlowID:    flowID,
	}
}

// DomainEvent is a business event emitted by the surrounding platform.
type DomainEvent struct {
	BaseEvent

	EventType          string         `json:"event_type"`
	SubjectID          string         `json:"subject_id,omitempty"`
	DestinationAddress string         `json:"destination_address,omitempty"`
	OrderRef           string         `json:"order_ref,omitempty"`
	EventData          map[string]any `json:"event_data,omitempty"`
}

func (e DomainEvent) GetType() EventType {
	return DomainEventType
}

// ExecutionContext builds the traversal context the event starts.
func (e DomainEvent) ExecutionContext() models.ExecutionContext {
	return models.ExecutionContext{
		SubjectID:          e.SubjectID,
		DestinationAddress: e.DestinationAddress,
		OrderRef:           e.OrderRef,
		EventData:          e.EventData,
	}
}

// NewDomainEvent wraps a business event for publishing.
func NewDomainEvent(eventType string, execCtx models.ExecutionContext) *DomainEvent {
	return &DomainEvent{
		BaseEvent:          newBase(DomainEventType, ""),
		EventType:          eventType,
		SubjectID:          execCtx.SubjectID,
		DestinationAddress: execCtx.DestinationAddress,
		OrderRef:           execCtx.OrderRef,
		EventData:          execCtx.EventData,
	}
}

// NodeExecuted mirrors one execution log row.
type NodeExecuted struct {
	BaseEvent

	NodeID            string           `json:"node_id,omitempty"`
	SubjectKey        string           `json:"subject_key"`
	EventType         string           `json:"event_type"`
	Status            models.LogStatus `json:"status"`
	ErrorMessage      string           `json:"error_message,omitempty"`
	ProviderMessageID string           `json:"provider_message_id,omitempty"`
}

func (e NodeExecuted) GetType() EventType {
	return NodeExecutedEvent
}

func NewNodeExecuted(log *models.ExecutionLog) *NodeExecuted {
	event := &NodeExecuted{
		BaseEvent:         newBase(NodeExecutedEvent, log.FlowID),
		NodeID:            log.NodeID,
		SubjectKey:        log.SubjectKey,
		EventType:         log.EventType,
		Status:            log.Status,
		ErrorMessage:      log.ErrorMessage,
		ProviderMessageID: log.ProviderMessageID,
	}
	event.Timestamp = log.ExecutedAt

	return event
}

// TraversalFinished is published once per traversal, including suspended ones.
type TraversalFinished struct {
	BaseEvent

	SubjectKey    string `json:"subject_key"`
	EventType     string `json:"event_type"`
	Status        string `json:"status"`
	NodesExecuted int    `json:"nodes_executed"`
	LastNodeID    string `json:"last_node_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

func (e TraversalFinished) GetType() EventType {
	return TraversalFinishedEvent
}

func NewTraversalFinished(flowID, subjectKey, eventType, status string) *TraversalFinished {
	return &TraversalFinished{
		BaseEvent:  newBase(TraversalFinishedEvent, flowID),
		SubjectKey: subjectKey,
		EventType:  eventType,
		Status:     status,
	}
}

type FlowActivated struct {
	BaseEvent
}

func (e FlowActivated) GetType() EventType {
	return FlowActivatedEvent
}

func NewFlowActivated(flowID string) *FlowActivated {
	return &FlowActivated{BaseEvent: newBase(FlowActivatedEvent, flowID)}
}

type FlowDeactivated struct {
	BaseEvent
}

func (e FlowDeactivated) GetType() EventType {
	return FlowDeactivatedEvent
}

func NewFlowDeactivated(flowID string) *FlowDeactivated {
	return &FlowDeactivated{BaseEvent: newBase(FlowDeactivatedEvent, flowID)}
}
