package redis

import (
	"context"
	"encoding/json"
	"time"

	"daily-quiz-service/internal/domain"
	"daily-quiz-service/internal/logger"
	"github.com/redis/go-redis/v9"
)

// EventChannel is the pub/sub channel learner events travel on.
const EventChannel = "dailyquiz:events"

// EventBus fans learner events out across instances. Notify publishes to
// Redis; Run subscribes and hands every event to the local delivery func,
// usually the in-process push hub that owns the websocket connections.
type EventBus struct {
	client *redis.Client
	log    *logger.Logger
}

type envelope struct {
	LearnerID string          `json:"learnerId"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	At        time.Time       `json:"at"`
}

func NewEventBus(client *redis.Client, log *logger.Logger) *EventBus {
	if log == nil {
		log = logger.Nop()
	}
	return &EventBus{client: client, log: log}
}

// Notify is best-effort: publish failures are logged and dropped.
func (b *EventBus) Notify(ctx context.Context, learnerID string, event domain.Event) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		b.log.Warn("encode event payload", "type", event.Type, "error", err)
		return
	}
	raw, err := json.Marshal(envelope{LearnerID: learnerID, Type: event.Type, Payload: payload, At: event.At})
	if err != nil {
		b.log.Warn("encode event", "type", event.Type, "error", err)
		return
	}
	if err := b.client.Publish(ctx, EventChannel, raw).Err(); err != nil {
		b.log.Warn("publish event", "learner_id", learnerID, "type", event.Type, "error", err)
	}
}

// Run blocks until ctx is done, delivering every received event.
func (b *EventBus) Run(ctx context.Context, deliver func(learnerID string, event domain.Event)) error {
	sub := b.client.Subscribe(ctx, EventChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warn("decode event", "error", err)
				continue
			}
			deliver(env.LearnerID, domain.Event{Type: env.Type, Payload: env.Payload, At: env.At})
		}
	}
}
