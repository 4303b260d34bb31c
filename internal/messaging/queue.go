// Package messaging backs the MessagePublish node with provider-
// switched brokers (Kafka, RabbitMQ, SQS). The node only ever produces
// — no workflow node consumes from a queue — so the whole surface is
// one Send per rendered record plus Close.
package messaging

import (
	"context"
	"fmt"
)

// MessageQueue is the publish target MessagePublish runs against.
type MessageQueue interface {
	// Send publishes one message to destination (a topic, queue name,
	// or queue URL depending on the broker). attributes become broker
	// headers where the broker has them.
	Send(ctx context.Context, destination string, message []byte, attributes map[string]string) error
	Close() error
}

// QueueType names a supported broker.
type QueueType string

const (
	QueueTypeKafka    QueueType = "kafka"
	QueueTypeRabbitMQ QueueType = "rabbitmq"
	QueueTypeSQS      QueueType = "sqs"
)

// Config selects and parameterizes one broker; only the fields for the
// chosen Type are read.
type Config struct {
	Type    QueueType
	Brokers []string // kafka
	URL     string   // rabbitmq (amqp://...)
	Region  string   // sqs
}

// NewMessageQueue builds the broker client Config names.
func NewMessageQueue(ctx context.Context, cfg Config) (MessageQueue, error) {
	switch cfg.Type {
	case QueueTypeKafka:
		return newKafkaQueue(cfg.Brokers)
	case QueueTypeRabbitMQ:
		return newRabbitQueue(cfg.URL)
	case QueueTypeSQS:
		return newSQSQueue(cfg.Region)
	default:
		return nil, fmt.Errorf("messaging: unsupported queue type %q", cfg.Type)
	}
}

// checkMessage applies the send-time validation every broker shares, so
// a template that rendered empty fails the same way on all of them.
func checkMessage(destination string, body []byte) error {
	if destination == "" {
		return fmt.Errorf("messaging: destination is required")
	}
	if len(body) == 0 {
		return fmt.Errorf("messaging: message body is empty")
	}
	return nil
}
