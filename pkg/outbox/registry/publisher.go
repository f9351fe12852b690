package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/fashionmarket/storefront-backend/pkg/config"
	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
	"github.com/fashionmarket/storefront-backend/pkg/outbox"
	"github.com/fashionmarket/storefront-backend/pkg/outbox/payloads"
)

// EventDescriptor routes one event type: the aggregate it must belong to,
// the topic it is published on, and the payload schema it decodes into.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row that passed validation.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks rows that will never publish; the dispatcher
// dead-letters them instead of retrying.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func rejectf(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

// EventRegistry knows every event type the publisher may emit.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  aggregate,
		Topic:          topic,
		PayloadFactory: func() any { return new(T) },
	}
}

// NewEventRegistry builds the routing table. Restock events go to the stock
// topic when one is configured; everything else uses the domain topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	domain := cfg.DomainTopic
	if domain == "" {
		return nil, errors.New("domain topic is required")
	}
	stock := domain
	if topics := cfg.Topics(); len(topics) > 1 {
		stock = topics[1]
	}

	descriptors := []EventDescriptor{
		describe[payloads.OrderCreatedEvent](enums.EventOrderCreated, enums.AggregateOrder, domain),
		describe[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, enums.AggregateOrder, domain),
		describe[payloads.InvoiceIssuedEvent](enums.EventInvoiceIssued, enums.AggregateInvoice, domain),
		describe[payloads.InvoiceGenerationFailedEvent](enums.EventInvoiceGenerationFailed, enums.AggregateOrder, domain),
		describe[payloads.StockRestockedEvent](enums.EventStockRestocked, enums.AggregateProduct, stock),
		describe[payloads.ReturnRequestedEvent](enums.EventReturnRequested, enums.AggregateReturn, domain),
		describe[payloads.ReturnApprovedEvent](enums.EventReturnApproved, enums.AggregateReturn, domain),
		describe[payloads.ReturnRejectedEvent](enums.EventReturnRejected, enums.AggregateReturn, domain),
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, desc := range descriptors {
		if _, dup := reg.entries[desc.EventType]; dup {
			return nil, fmt.Errorf("event type %s registered twice", desc.EventType)
		}
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Topics lists the distinct topics the registry routes to.
func (r *EventRegistry) Topics() []string {
	var topics []string
	for _, desc := range r.entries {
		if !slices.Contains(topics, desc.Topic) {
			topics = append(topics, desc.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

// Resolve checks a row against its descriptor and decodes the typed payload.
// Every failure here is permanent for that row.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, rejectf("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, rejectf("%s belongs to %s aggregates, row says %s", event.EventType, desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, rejectf("%s row has no aggregate id", event.EventType)
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	switch {
	case errors.Is(err, outbox.ErrEmptyEventData):
		return nil, rejectf("payload missing for %s", event.EventType)
	case err != nil:
		return nil, NewNonRetryableError(err)
	case envelope.EventType != "" && envelope.EventType != event.EventType:
		return nil, rejectf("envelope type %s does not match row type %s", envelope.EventType, event.EventType)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, rejectf("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
