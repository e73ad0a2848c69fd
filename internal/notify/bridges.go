package notify

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"booking-service/internal/bookings"
	"booking-service/pkg/kafka"
)

const (
	RabbitExchange = "booking.events"
	bridgeBuffer   = 256
)

// KafkaClient is satisfied by *kafka.Client.
type KafkaClient interface {
	Publish(ctx context.Context, topic, key string, value any) error
	Subscribe(ctx context.Context, topic, groupID string, handler func([]byte) error)
}

// KafkaBridge publishes ledger events to the booking.status topic, keyed by
// booking id, and can relay the topic back into a local hub so every
// instance reaches its own WebSocket clients.
type KafkaBridge struct {
	*sink
	client KafkaClient
	log    *zap.Logger
}

func NewKafkaBridge(client KafkaClient, log *zap.Logger) *KafkaBridge {
	b := &KafkaBridge{client: client, log: log.Named("kafka-bridge")}
	b.sink = newSink("kafka-bridge", bridgeBuffer, func(ctx context.Context, ev bookings.Event) error {
		return client.Publish(ctx, kafka.TopicBookingStatus, ev.BookingID, ev)
	}, log)
	return b
}

// Relay feeds events from the topic into hub. groupID must be unique per
// instance so each one sees every event.
func (b *KafkaBridge) Relay(ctx context.Context, hub *Hub, groupID string) {
	b.client.Subscribe(ctx, kafka.TopicBookingStatus, groupID, func(data []byte) error {
		var ev bookings.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		hub.Notify(ev)
		return nil
	})
	b.log.Info("relaying booking events", zap.String("group", groupID))
}

// RabbitPublisher is satisfied by *rabbitmq.Publisher.
type RabbitPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// RabbitBridge publishes ledger events to the booking.events topic exchange
// with routing key booking.<status>.
type RabbitBridge struct {
	*sink
}

func NewRabbitBridge(pub RabbitPublisher, log *zap.Logger) *RabbitBridge {
	return &RabbitBridge{sink: newSink("rabbit-bridge", bridgeBuffer, func(ctx context.Context, ev bookings.Event) error {
		return pub.PublishJSON(ctx, RoutingKey(ev.Status), ev)
	}, log)}
}

func RoutingKey(s bookings.Status) string { return "booking." + string(s) }
