package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaNotifier publishes events to a Kafka topic for the surrounding
// application's push/email pipeline to consume. Fire-and-forget: publish
// failures are logged, never surfaced to the transition that produced them.
type KafkaNotifier struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// Compile-time check that KafkaNotifier implements Notifier.
var _ Notifier = (*KafkaNotifier)(nil)

// NewKafkaNotifier creates a notifier publishing to the given brokers/topic.
func NewKafkaNotifier(brokers []string, topic string, logger *slog.Logger) *KafkaNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Notify publishes the event keyed by item ID.
func (n *KafkaNotifier) Notify(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error("marshal notification", "error", err, "type", ev.Type)
		return
	}

	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ItemID),
		Value: payload,
	}); err != nil {
		n.logger.Error("publish notification", "error", err, "type", ev.Type, "item_id", ev.ItemID)
	}
}

// Close flushes and closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
