package messaging

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// kafkaWriter is the slice of *kafka.Writer KafkaQueue uses, split out
// so tests can substitute a recording fake.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaQueue publishes to Kafka topics through one shared writer; the
// topic comes per message from the rendered destination.
type KafkaQueue struct {
	writer kafkaWriter
}

func newKafkaQueue(brokers []string) (*KafkaQueue, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("messaging: kafka needs at least one broker")
	}
	return &KafkaQueue{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
	}, nil
}

func (q *KafkaQueue) Send(ctx context.Context, destination string, message []byte, attributes map[string]string) error {
	if err := checkMessage(destination, message); err != nil {
		return err
	}

	msg := kafka.Message{Topic: destination, Value: message}
	for k, v := range attributes {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := q.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("messaging: kafka write to %s: %w", destination, err)
	}
	return nil
}

func (q *KafkaQueue) Close() error {
	return q.writer.Close()
}
