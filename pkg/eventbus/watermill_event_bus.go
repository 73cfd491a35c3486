package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/marketflow/pkg/events"
)

// decoders allocate the concrete event for a type read off the wire.
var decoders = map[events.EventType]func() any{
	events.DomainEventType:        func() any { return &events.DomainEvent{} },
	events.NodeExecutedEvent:      func() any { return &events.NodeExecuted{} },
	events.TraversalFinishedEvent: func() any { return &events.TraversalFinished{} },
	events.FlowActivatedEvent:     func() any { return &events.FlowActivated{} },
	events.FlowDeactivatedEvent:   func() any { return &events.FlowDeactivated{} },
}

// TopicFor returns the topic an event type travels on.
func TopicFor(eventType events.EventType) string {
	if eventType == events.DomainEventType {
		return events.DomainTopic
	}

	return events.Topic
}

type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger

	mu            sync.RWMutex
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		logger:        logger.With("module", "event_bus"),
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(_ context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.GetType(), err)
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	err = eb.publisher.Publish(TopicFor(event.GetType()), msg)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.GetType(), err)
	}

	return nil
}

// Subscribe starts consuming every topic that has at least one handler.
// Handlers must be registered before calling it.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	topics := map[string]struct{}{}

	eb.mu.RLock()
	for eventType := range eb.subscriptions {
		topics[TopicFor(eventType)] = struct{}{}
	}
	eb.mu.RUnlock()

	for topic := range topics {
		messages, err := eb.subscriber.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}

		go eb.consume(ctx, messages)
	}

	return nil
}

func (eb *WatermillEventBus) consume(ctx context.Context, messages <-chan *message.Message) {
	for msg := range messages {
		eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

		eb.mu.RLock()
		handler, exists := eb.subscriptions[eventType]
		eb.mu.RUnlock()

		if !exists {
			msg.Ack()

			continue
		}

		newEvent, known := decoders[eventType]
		if !known {
			eb.logger.WarnContext(ctx, "unknown event type", "event_type", eventType)
			msg.Nack()

			continue
		}

		event := newEvent()

		err := json.Unmarshal(msg.Payload, event)
		if err != nil {
			eb.logger.ErrorContext(ctx, "failed to decode event", "event_type", eventType, "error", err)
			// A payload that cannot be decoded will never succeed; drop it.
			msg.Ack()

			continue
		}

		err = handler(msg.Context(), event)
		if err != nil {
			eb.logger.ErrorContext(ctx, "event handler failed", "event_type", eventType, "error", err)
			msg.Nack()

			continue
		}

		msg.Ack()
	}
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
