package messaging

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageQueueRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown type", Config{Type: "carrier-pigeon"}},
		{"kafka without brokers", Config{Type: QueueTypeKafka}},
		{"sqs without region", Config{Type: QueueTypeSQS}},
		{"rabbitmq without url", Config{Type: QueueTypeRabbitMQ}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMessageQueue(context.Background(), tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestCheckMessage(t *testing.T) {
	assert.NoError(t, checkMessage("orders", []byte("x")))
	assert.Error(t, checkMessage("", []byte("x")))
	assert.Error(t, checkMessage("orders", nil))
}

type recordingKafkaWriter struct {
	messages []kafka.Message
	closed   bool
}

func (w *recordingKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingKafkaWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSendSetsTopicAndHeaders(t *testing.T) {
	w := &recordingKafkaWriter{}
	q := &KafkaQueue{writer: w}

	err := q.Send(context.Background(), "orders.eu", []byte(`{"id":1}`), map[string]string{"source": "wf"})
	require.NoError(t, err)

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "orders.eu", msg.Topic)
	assert.Equal(t, []byte(`{"id":1}`), msg.Value)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "source", msg.Headers[0].Key)
	assert.Equal(t, []byte("wf"), msg.Headers[0].Value)

	require.NoError(t, q.Close())
	assert.True(t, w.closed)
}

func TestKafkaSendRejectsEmptyInput(t *testing.T) {
	q := &KafkaQueue{writer: &recordingKafkaWriter{}}
	assert.Error(t, q.Send(context.Background(), "", []byte("x"), nil))
	assert.Error(t, q.Send(context.Background(), "topic", nil, nil))
}

type recordingChannel struct {
	key        string
	publishing amqp.Publishing
	closed     bool
}

func (c *recordingChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	c.key = key
	c.publishing = msg
	return nil
}

func (c *recordingChannel) Close() error {
	c.closed = true
	return nil
}

func TestRabbitSendPublishesPersistentJSON(t *testing.T) {
	ch := &recordingChannel{}
	q := &RabbitQueue{channel: ch}

	err := q.Send(context.Background(), "jobs", []byte(`{"id":2}`), map[string]string{"k": "v"})
	require.NoError(t, err)

	assert.Equal(t, "jobs", ch.key)
	assert.Equal(t, []byte(`{"id":2}`), ch.publishing.Body)
	assert.Equal(t, uint8(amqp.Persistent), ch.publishing.DeliveryMode)
	assert.Equal(t, "application/json", ch.publishing.ContentType)
	assert.Equal(t, "v", ch.publishing.Headers["k"])

	require.NoError(t, q.Close())
	assert.True(t, ch.closed)
}

type recordingSQS struct {
	sqsiface.SQSAPI
	input *sqs.SendMessageInput
}

func (c *recordingSQS) SendMessageWithContext(_ aws.Context, input *sqs.SendMessageInput, _ ...request.Option) (*sqs.SendMessageOutput, error) {
	c.input = input
	return &sqs.SendMessageOutput{MessageId: aws.String("id-1")}, nil
}

func TestSQSSendBuildsAttributes(t *testing.T) {
	client := &recordingSQS{}
	q := &SQSQueue{client: client}

	url := "https://sqs.eu-west-1.amazonaws.com/123/orders"
	err := q.Send(context.Background(), url, []byte("body"), map[string]string{"a": "1"})
	require.NoError(t, err)

	require.NotNil(t, client.input)
	assert.Equal(t, url, aws.StringValue(client.input.QueueUrl))
	assert.Equal(t, "body", aws.StringValue(client.input.MessageBody))
	attr := client.input.MessageAttributes["a"]
	require.NotNil(t, attr)
	assert.Equal(t, "1", aws.StringValue(attr.StringValue))
}
