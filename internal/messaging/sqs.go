package messaging

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
)

// SQSQueue publishes to AWS SQS; destination is the full queue URL.
// Credentials come from the default AWS chain.
type SQSQueue struct {
	client sqsiface.SQSAPI
}

func newSQSQueue(region string) (*SQSQueue, error) {
	if region == "" {
		return nil, fmt.Errorf("messaging: sqs needs a region")
	}
	sess, err := session.NewSession(aws.NewConfig().WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("messaging: sqs session: %w", err)
	}
	return &SQSQueue{client: sqs.New(sess)}, nil
}

func (q *SQSQueue) Send(ctx context.Context, destination string, message []byte, attributes map[string]string) error {
	if err := checkMessage(destination, message); err != nil {
		return err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(destination),
		MessageBody: aws.String(string(message)),
	}
	if len(attributes) > 0 {
		input.MessageAttributes = make(map[string]*sqs.MessageAttributeValue, len(attributes))
		for k, v := range attributes {
			input.MessageAttributes[k] = &sqs.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}
	}

	if _, err := q.client.SendMessageWithContext(ctx, input); err != nil {
		return fmt.Errorf("messaging: sqs send to %s: %w", destination, err)
	}
	return nil
}

// Close is a no-op; the v1 SDK client holds no connections of its own.
func (q *SQSQueue) Close() error { return nil }
