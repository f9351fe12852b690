package main

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/outbox"
)

// publisherFactory returns the publisher for a topic, or nil when the topic
// is not served by this process.
type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// newMessage carries the stored envelope untouched. Messages are keyed by
// aggregate so a consumer sees one order's events in write order.
func newMessage(event models.OutboxEvent, envelope outbox.PayloadEnvelope) *gcppubsub.Message {
	stamp := func(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }
	attrs := map[string]string{
		"event_id":       envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     stamp(event.CreatedAt),
	}
	if !envelope.OccurredAt.IsZero() {
		attrs["occurred_at"] = stamp(envelope.OccurredAt)
	}
	return &gcppubsub.Message{
		Data:        event.Payload,
		Attributes:  attrs,
		OrderingKey: string(event.AggregateType) + ":" + event.AggregateID.String(),
	}
}

// gcpPublishers wraps the client's per-topic publishers.
func gcpPublishers(client pubSubClient) publisherFactory {
	return func(topic string) publisher {
		raw := client.Publisher(topic)
		if raw == nil {
			return nil
		}
		return &orderedPublisher{pub: raw}
	}
}

// orderedPublisher resumes a paused ordering key after a failed publish, so
// the retry of that row is accepted.
type orderedPublisher struct {
	pub *gcppubsub.Publisher
}

func (p *orderedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return resumingResult{pub: p.pub, key: msg.OrderingKey, res: p.pub.Publish(ctx, msg)}
}

type resumingResult struct {
	pub *gcppubsub.Publisher
	key string
	res *gcppubsub.PublishResult
}

func (r resumingResult) Get(ctx context.Context) (string, error) {
	if r.res == nil {
		return "", errors.New("publish returned no result")
	}
	id, err := r.res.Get(ctx)
	if err != nil && r.key != "" {
		r.pub.ResumePublish(r.key)
	}
	return id, err
}
