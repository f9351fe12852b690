package enums

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder      OutboxAggregateType = "order"
	AggregateInvoice    OutboxAggregateType = "invoice"
	AggregateReturn     OutboxAggregateType = "return"
	AggregateProduct    OutboxAggregateType = "product"
	AggregateCreditNote OutboxAggregateType = "credit_note"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateInvoice,
	AggregateReturn,
	AggregateProduct,
	AggregateCreditNote,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return known(a, validAggregateTypes)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(value, validAggregateTypes, "aggregate type")
}

// OutboxEventType is the wire name of a domain event.
type OutboxEventType string

const (
	EventOrderCreated            OutboxEventType = "order.created"
	EventOrderStatusChanged      OutboxEventType = "order.status_changed"
	EventInvoiceIssued           OutboxEventType = "invoice.issued"
	EventInvoiceGenerationFailed OutboxEventType = "invoice.generation_failed"
	EventStockRestocked          OutboxEventType = "stock.restocked"
	EventReturnRequested         OutboxEventType = "return.requested"
	EventReturnApproved          OutboxEventType = "return.approved"
	EventReturnRejected          OutboxEventType = "return.rejected"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventInvoiceIssued,
	EventInvoiceGenerationFailed,
	EventStockRestocked,
	EventReturnRequested,
	EventReturnApproved,
	EventReturnRejected,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	return known(e, validOutboxEventTypes)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(value, validOutboxEventTypes, "event type")
}

// OutboxDLQErrorReason explains why an event was dead-lettered.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
