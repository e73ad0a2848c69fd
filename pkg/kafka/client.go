package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// TopicBookingStatus carries every booking ledger transition.
const TopicBookingStatus = "booking.status"

const (
	topicPartitions = 3
	dialAttempts    = 20
	dialBackoff     = 3 * time.Second
)

// Client holds one long-lived writer; readers are created per subscription.
type Client struct {
	brokers []string
	writer  *kafkago.Writer
	log     *zap.Logger
}

func NewClient(brokers []string, log *zap.Logger) *Client {
	return &Client{
		brokers: brokers,
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Balancer:     &kafkago.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
		log: log.Named("kafka"),
	}
}

// EnsureTopics creates the given topics, trying each broker in turn until one
// accepts a connection. Topics that already exist are left alone.
func (c *Client) EnsureTopics(ctx context.Context, topics ...string) error {
	configs := make([]kafkago.TopicConfig, 0, len(topics))
	for _, t := range topics {
		configs = append(configs, kafkago.TopicConfig{
			Topic:             t,
			NumPartitions:     topicPartitions,
			ReplicationFactor: 1,
		})
	}

	var lastErr error
	for attempt := 0; attempt < dialAttempts; attempt++ {
		broker := c.brokers[attempt%len(c.brokers)]
		conn, err := kafkago.DialContext(ctx, "tcp", broker)
		if err == nil {
			err = conn.CreateTopics(configs...)
			conn.Close()
			if err == nil || errors.Is(err, kafkago.TopicAlreadyExists) {
				c.log.Info("topics ready", zap.Strings("topics", topics))
				return nil
			}
		}
		lastErr = err
		c.log.Info("broker not ready", zap.String("broker", broker), zap.Int("attempt", attempt+1), zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dialBackoff):
		}
	}
	return fmt.Errorf("kafka topics not created after %d attempts: %w", dialAttempts, lastErr)
}

// Publish sends a JSON-serialised message to a topic. Messages with the same
// key land on the same partition, so one booking's events stay ordered.
func (c *Client) Publish(ctx context.Context, topic, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.writer.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	})
}

// Subscribe starts a background goroutine that reads from a topic. A new
// consumer group starts at the newest offset.
func (c *Client) Subscribe(ctx context.Context, topic, groupID string, handler func([]byte) error) {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     c.brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.LastOffset,
	})

	go func() {
		defer r.Close()
		for {
			msg, err := r.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.log.Warn("read error", zap.String("topic", topic), zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			if err := handler(msg.Value); err != nil {
				c.log.Warn("handler error", zap.String("topic", topic), zap.Error(err))
			}
		}
	}()
}

func (c *Client) Close() error { return c.writer.Close() }
