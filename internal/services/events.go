package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront/internal/models"
)

const OrderEventsChannel = "orders:events"

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

type OrderEvent struct {
	Type       string             `json:"type"`
	Order      *models.Order      `json:"order"`
	FromStatus models.OrderStatus `json:"from_status,omitempty"`
	At         time.Time          `json:"at"`
}

// OrderEvents fans order changes out to every server instance through Redis
// pub/sub so connected merchants see them live.
type OrderEvents struct {
	redis  *redis.Client
	logger *zap.Logger
}

func NewOrderEvents(client *redis.Client, logger *zap.Logger) *OrderEvents {
	return &OrderEvents{redis: client, logger: logger}
}

// Publish never fails the caller; a lost event only delays the merchant view.
func (e *OrderEvents) Publish(ctx context.Context, event OrderEvent) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		e.logger.Error("Failed to encode order event", zap.Error(err))
		return
	}
	if err := e.redis.Publish(ctx, OrderEventsChannel, data).Err(); err != nil {
		e.logger.Warn("Failed to publish order event",
			zap.String("type", event.Type), zap.Error(err))
	}
}

// Subscribe streams decoded events until ctx is done. The returned channel is
// closed when the subscription ends.
func (e *OrderEvents) Subscribe(ctx context.Context) (<-chan OrderEvent, error) {
	pubsub := e.redis.Subscribe(ctx, OrderEventsChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan OrderEvent)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event OrderEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					e.logger.Warn("Dropping malformed order event", zap.Error(err))
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
