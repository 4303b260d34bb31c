package messaging

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel is the slice of *amqp.Channel RabbitQueue uses, split out
// so tests can substitute a recording fake.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitQueue publishes persistent messages straight to named queues
// via the default exchange; destination is the queue name.
type RabbitQueue struct {
	conn    *amqp.Connection
	channel amqpChannel
}

func newRabbitQueue(url string) (*RabbitQueue, error) {
	if url == "" {
		return nil, fmt.Errorf("messaging: rabbitmq needs an amqp url")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("messaging: rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("messaging: rabbitmq channel: %w", err)
	}
	return &RabbitQueue{conn: conn, channel: ch}, nil
}

func (q *RabbitQueue) Send(ctx context.Context, destination string, message []byte, attributes map[string]string) error {
	if err := checkMessage(destination, message); err != nil {
		return err
	}

	headers := make(amqp.Table, len(attributes))
	for k, v := range attributes {
		headers[k] = v
	}

	err := q.channel.PublishWithContext(ctx, "", destination, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Body:         message,
	})
	if err != nil {
		return fmt.Errorf("messaging: rabbitmq publish to %s: %w", destination, err)
	}
	return nil
}

func (q *RabbitQueue) Close() error {
	var errs []error
	if q.channel != nil {
		errs = append(errs, q.channel.Close())
	}
	if q.conn != nil {
		errs = append(errs, q.conn.Close())
	}
	return errors.Join(errs...)
}
