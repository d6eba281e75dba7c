package main

import (
	"context"
	"errors"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/outbox/registry"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type publisherFactory func(topic string) publisher

// buildMessage forwards the stored envelope unchanged. The aggregate id is the
// ordering key so consumers see one requisition's or order's events in sequence.
func buildMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if actor := resolved.Envelope.Actor; actor != nil && actor.Role != "" {
		attrs["actor_role"] = actor.Role
	}
	return &gcppubsub.Message{
		Data:        event.Payload,
		Attributes:  attrs,
		OrderingKey: event.AggregateID.String(),
	}
}

// topicPublishers lazily opens one ordered publisher per topic and stops them
// all on Close so buffered messages are flushed.
type topicPublishers struct {
	client pubSubClient

	mu   sync.Mutex
	open map[string]*orderedPublisher
}

func newTopicPublishers(client pubSubClient) *topicPublishers {
	return &topicPublishers{client: client, open: map[string]*orderedPublisher{}}
}

func (t *topicPublishers) For(topic string) publisher {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pub, ok := t.open[topic]; ok {
		return pub
	}
	raw := t.client.Publisher(topic)
	if raw == nil {
		return nil
	}
	raw.EnableMessageOrdering = true
	pub := &orderedPublisher{inner: raw}
	t.open[topic] = pub
	return pub
}

func (t *topicPublishers) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for topic, pub := range t.open {
		pub.inner.Stop()
		delete(t.open, topic)
	}
}

// orderedPublisher resumes a key after a failed publish; Pub/Sub pauses an
// ordering key on error until told otherwise.
type orderedPublisher struct {
	inner *gcppubsub.Publisher
}

func (p *orderedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return &orderedResult{
		res: p.inner.Publish(ctx, msg),
		resume: func() {
			p.inner.ResumePublish(msg.OrderingKey)
		},
	}
}

type orderedResult struct {
	res    *gcppubsub.PublishResult
	resume func()
}

func (r *orderedResult) Get(ctx context.Context) (string, error) {
	if r.res == nil {
		return "", errors.New("publish result is nil")
	}
	id, err := r.res.Get(ctx)
	if err != nil {
		r.resume()
	}
	return id, err
}
