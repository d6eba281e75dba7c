package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/mochkris/procurement-backend/pkg/config"
	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/enums"
	"github.com/mochkris/procurement-backend/pkg/outbox"
	"github.com/mochkris/procurement-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate, topic and payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is a decoded outbox row ready to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that will never publish, however often it is retried.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryable(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  aggregate,
		Topic:          topic,
		PayloadFactory: func() any { return new(T) },
	}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry builds the registry with the configured topic names. Workflow
// events (requisitions, purchase orders, suppliers) share one topic; stock events
// go to the inventory topic, or the workflow topic when none is configured.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	workflow := cfg.WorkflowTopic
	if workflow == "" {
		return nil, errors.New("workflow topic is required")
	}
	stock := cfg.InventoryTopic
	if stock == "" {
		stock = workflow
	}

	descriptors := []EventDescriptor{
		describe[payloads.RequisitionCreatedEvent](enums.EventRequisitionCreated, enums.AggregateRequisition, workflow),
		describe[payloads.RequisitionStatusChangedEvent](enums.EventRequisitionStatusChanged, enums.AggregateRequisition, workflow),
		describe[payloads.RequisitionAutoRestockedEvent](enums.EventRequisitionAutoRestocked, enums.AggregateRequisition, workflow),
		describe[payloads.PurchaseOrderCreatedEvent](enums.EventPurchaseOrderCreated, enums.AggregatePurchaseOrder, workflow),
		describe[payloads.PurchaseOrderStatusChangedEvent](enums.EventPurchaseOrderStatusChanged, enums.AggregatePurchaseOrder, workflow),
		describe[payloads.PurchaseOrderReceivedEvent](enums.EventPurchaseOrderReceived, enums.AggregatePurchaseOrder, workflow),
		describe[payloads.SupplierRatedEvent](enums.EventSupplierRated, enums.AggregateSupplier, workflow),
		describe[payloads.InventoryAdjustedEvent](enums.EventInventoryAdjusted, enums.AggregateInventoryItem, stock),
		describe[payloads.InventoryLowStockEvent](enums.EventInventoryLowStock, enums.AggregateInventoryItem, stock),
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, desc := range descriptors {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Topics lists the distinct topics the registry publishes to, sorted.
func (r *EventRegistry) Topics() []string {
	topics := make([]string, 0, 2)
	for _, desc := range r.entries {
		topics = append(topics, desc.Topic)
	}
	slices.Sort(topics)
	return slices.Compact(topics)
}

// Resolve validates the row and decodes its typed payload. Every failure is
// non-retryable: a malformed row stays malformed.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, nonRetryable("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, nonRetryable("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nonRetryable("payload missing for %s", event.EventType)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, nonRetryable("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
